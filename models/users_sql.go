package models

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"flashvote/utils"
)

type sqlUserRepo struct{ db *sqlx.DB }

func NewSQLUserRepository(db *sqlx.DB) UserRepository { return &sqlUserRepo{db} }

func (r *sqlUserRepo) Create(ctx context.Context, u *User) error {
	// u.Password 進來是明碼 → 先雜湊
	hashed, err := utils.HashPassword(u.Password)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	u.Password = hashed

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO users(email, password, name) VALUES ($1,$2,$3) RETURNING id`,
		u.Email, u.Password, u.Name).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "insert user")
	}
	return nil
}

func (r *sqlUserRepo) ValidateCredentials(ctx context.Context, email, plain string) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u,
		`SELECT id, email, password, name, is_premium FROM users WHERE email=$1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "select user")
	}

	if !utils.CheckPasswordHash(plain, u.Password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (r *sqlUserRepo) GetByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u,
		`SELECT id, email, name, is_premium FROM users WHERE id=$1`, id)
	if err != nil {
		return User{}, notFoundOr(err, "select user")
	}
	return u, nil
}
