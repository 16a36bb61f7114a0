package models

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type sqlSubjectRepo struct{ db *sqlx.DB }

func NewSQLSubjectRepository(db *sqlx.DB) SubjectRepository { return &sqlSubjectRepo{db} }

const subjectColumns = `id, event_id, item_id, label, pos_label, neg_label, metadata, created_at`

func (r *sqlSubjectRepo) ListByEvent(ctx context.Context, eventID string) ([]Subject, error) {
	out := []Subject{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+subjectColumns+` FROM subjects WHERE event_id=$1 ORDER BY created_at`, eventID)
	return out, errors.Wrap(err, "list subjects by event")
}

func (r *sqlSubjectRepo) ListByItem(ctx context.Context, itemID string) ([]Subject, error) {
	out := []Subject{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+subjectColumns+` FROM subjects WHERE item_id=$1 ORDER BY created_at`, itemID)
	return out, errors.Wrap(err, "list subjects by item")
}

func (r *sqlSubjectRepo) GetByID(ctx context.Context, id string) (Subject, error) {
	var s Subject
	err := r.db.GetContext(ctx, &s, `SELECT `+subjectColumns+` FROM subjects WHERE id=$1`, id)
	if err != nil {
		return Subject{}, notFoundOr(err, "select subject")
	}
	return s, nil
}

func (r *sqlSubjectRepo) Create(ctx context.Context, s *Subject) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO subjects(id, event_id, item_id, label, pos_label, neg_label, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		s.ID, s.EventID, s.ItemID, s.Label, s.PosLabel, s.NegLabel, s.Metadata,
	).Scan(&s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "insert subject")
	}
	return nil
}

// Update only touches the labels; event and item membership are fixed at creation.
func (r *sqlSubjectRepo) Update(ctx context.Context, s *Subject) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subjects SET label=$2, pos_label=$3, neg_label=$4 WHERE id=$1`,
		s.ID, s.Label, s.PosLabel, s.NegLabel)
	return mustAffect(res, err, "update subject")
}

func (r *sqlSubjectRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id=$1`, id)
	return mustAffect(res, err, "delete subject")
}
