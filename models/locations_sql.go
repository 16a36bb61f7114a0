package models

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type sqlLocationRepo struct{ db *sqlx.DB }

func NewSQLLocationRepository(db *sqlx.DB) LocationRepository { return &sqlLocationRepo{db} }

const locationColumns = `id, event_id, name, address, city, zip_code, lat, lon, created_at, updated_at`

func (r *sqlLocationRepo) ListByEvent(ctx context.Context, eventID string) ([]Location, error) {
	out := []Location{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+locationColumns+` FROM locations WHERE event_id=$1 ORDER BY name`, eventID)
	return out, errors.Wrap(err, "list locations")
}

func (r *sqlLocationRepo) GetByID(ctx context.Context, id string) (Location, error) {
	var l Location
	err := r.db.GetContext(ctx, &l, `SELECT `+locationColumns+` FROM locations WHERE id=$1`, id)
	if err != nil {
		return Location{}, notFoundOr(err, "select location")
	}
	return l, nil
}

func (r *sqlLocationRepo) SearchByZip(ctx context.Context, prefix, eventID string) ([]Location, error) {
	out := []Location{}
	// ILIKE 'prefix%'；先跳脫萬用字元
	pattern := escapeLike(prefix) + "%"
	var err error
	if eventID != "" {
		err = r.db.SelectContext(ctx, &out, `SELECT `+locationColumns+` FROM locations
			WHERE zip_code ILIKE $1 AND event_id=$2 ORDER BY name`, pattern, eventID)
	} else {
		err = r.db.SelectContext(ctx, &out, `SELECT `+locationColumns+` FROM locations
			WHERE zip_code ILIKE $1 ORDER BY name`, pattern)
	}
	return out, errors.Wrap(err, "search locations")
}

func (r *sqlLocationRepo) Create(ctx context.Context, l *Location) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO locations(id, event_id, name, address, city, zip_code, lat, lon)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		l.ID, l.EventID, l.Name, l.Address, l.City, l.ZipCode, l.Lat, l.Lon,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "insert location")
	}
	return nil
}

func (r *sqlLocationRepo) Update(ctx context.Context, l *Location) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE locations SET name=$2, address=$3, city=$4, zip_code=$5, lat=$6, lon=$7, updated_at=NOW()
		WHERE id=$1`,
		l.ID, l.Name, l.Address, l.City, l.ZipCode, l.Lat, l.Lon)
	return mustAffect(res, err, "update location")
}

func (r *sqlLocationRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE id=$1`, id)
	return mustAffect(res, err, "delete location")
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
