package models

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

type sqlVoteRepo struct{ db *sqlx.DB }

func NewSQLVoteRepository(db *sqlx.DB) VoteRepository { return &sqlVoteRepo{db} }

func (r *sqlVoteRepo) Insert(ctx context.Context, v *Vote) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO votes(id, subject_id, location_id, user_id, user_ip, choice, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		v.ID, v.SubjectID, v.LocationID, v.UserID, v.UserIP, v.Choice, v.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInvalidReference
		}
		return errors.Wrap(err, "insert vote")
	}
	return nil
}

func (r *sqlVoteRepo) Choices(ctx context.Context, subjectIDs []string, locationID string) ([]VoteChoice, error) {
	out := []VoteChoice{}
	var err error
	if locationID != "" {
		err = r.db.SelectContext(ctx, &out, `
			SELECT subject_id, choice FROM votes
			WHERE subject_id = ANY($1) AND location_id = $2`,
			pq.Array(subjectIDs), locationID)
	} else {
		err = r.db.SelectContext(ctx, &out, `
			SELECT subject_id, choice FROM votes
			WHERE subject_id = ANY($1)`,
			pq.Array(subjectIDs))
	}
	return out, errors.Wrap(err, "select vote choices")
}

func (r *sqlVoteRepo) Since(ctx context.Context, subjectID, locationID string, since time.Time) ([]Vote, error) {
	const cols = `id, subject_id, location_id, user_id, user_ip, choice, created_at`
	out := []Vote{}
	var err error
	if locationID != "" {
		err = r.db.SelectContext(ctx, &out, `SELECT `+cols+` FROM votes
			WHERE subject_id=$1 AND created_at >= $2 AND location_id=$3
			ORDER BY created_at ASC`, subjectID, since, locationID)
	} else {
		err = r.db.SelectContext(ctx, &out, `SELECT `+cols+` FROM votes
			WHERE subject_id=$1 AND created_at >= $2
			ORDER BY created_at ASC`, subjectID, since)
	}
	return out, errors.Wrap(err, "select votes since")
}
