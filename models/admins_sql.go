package models

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type sqlAdminRepo struct{ db *sqlx.DB }

func NewSQLAdminRepository(db *sqlx.DB) AdminRepository {
	return &sqlAdminRepo{db}
}

func (r *sqlAdminRepo) Grant(ctx context.Context, a *Admin) error {
	// 依賴 UNIQUE(event_id, user_id)：同一人重複授權 → 更新角色
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO admins(event_id, user_id, role) VALUES ($1,$2,$3)
		ON CONFLICT (event_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING created_at`, a.EventID, a.UserID, a.Role).Scan(&a.CreatedAt)
	return errors.Wrap(err, "grant admin")
}

func (r *sqlAdminRepo) Revoke(ctx context.Context, eventID string, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM admins WHERE event_id=$1 AND user_id=$2`, eventID, userID)
	return mustAffect(res, err, "revoke admin")
}

func (r *sqlAdminRepo) Role(ctx context.Context, eventID string, userID int64) (string, error) {
	var role string
	err := r.db.GetContext(ctx, &role,
		`SELECT role FROM admins WHERE event_id=$1 AND user_id=$2`, eventID, userID)
	if err != nil {
		return "", notFoundOr(err, "select admin role")
	}
	return role, nil
}

func (r *sqlAdminRepo) ListByEvent(ctx context.Context, eventID string) ([]Admin, error) {
	out := []Admin{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT event_id, user_id, role, created_at FROM admins
		WHERE event_id=$1 ORDER BY created_at`, eventID)
	return out, errors.Wrap(err, "list admins by event")
}

func (r *sqlAdminRepo) ListByUser(ctx context.Context, userID int64) ([]Admin, error) {
	out := []Admin{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT event_id, user_id, role, created_at FROM admins
		WHERE user_id=$1 ORDER BY created_at`, userID)
	return out, errors.Wrap(err, "list admins by user")
}

func (r *sqlAdminRepo) DeleteByEvent(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE event_id=$1`, eventID)
	return errors.Wrap(err, "delete admins by event")
}
