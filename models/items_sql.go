package models

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type sqlItemRepo struct{ db *sqlx.DB }

func NewSQLItemRepository(db *sqlx.DB) ItemRepository { return &sqlItemRepo{db} }

const itemColumns = `id, event_id, item_slug, name, item_id, category, image_url, created_at, updated_at`

func (r *sqlItemRepo) ListByEvent(ctx context.Context, eventID string) ([]Item, error) {
	out := []Item{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+itemColumns+` FROM items WHERE event_id=$1 ORDER BY name`, eventID)
	return out, errors.Wrap(err, "list items")
}

func (r *sqlItemRepo) GetByID(ctx context.Context, id string) (Item, error) {
	var it Item
	err := r.db.GetContext(ctx, &it, `SELECT `+itemColumns+` FROM items WHERE id=$1`, id)
	if err != nil {
		return Item{}, notFoundOr(err, "select item")
	}
	return it, nil
}

func (r *sqlItemRepo) GetBySlug(ctx context.Context, eventID, slug string) (Item, error) {
	var it Item
	err := r.db.GetContext(ctx, &it,
		`SELECT `+itemColumns+` FROM items WHERE event_id=$1 AND item_slug=$2`, eventID, slug)
	if err != nil {
		return Item{}, notFoundOr(err, "select item by slug")
	}
	return it, nil
}

func (r *sqlItemRepo) Create(ctx context.Context, it *Item) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO items(id, event_id, item_slug, name, item_id, category, image_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		it.ID, it.EventID, it.Slug, it.Name, it.ItemID, it.Category, it.ImageURL,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "insert item")
	}
	return nil
}

func (r *sqlItemRepo) Update(ctx context.Context, it *Item) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE items SET item_slug=$2, name=$3, item_id=$4, category=$5, image_url=$6, updated_at=NOW()
		WHERE id=$1`,
		it.ID, it.Slug, it.Name, it.ItemID, it.Category, it.ImageURL)
	return mustAffect(res, err, "update item")
}

func (r *sqlItemRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id=$1`, id)
	return mustAffect(res, err, "delete item")
}
