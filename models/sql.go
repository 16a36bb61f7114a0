package models

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

// notFoundOr maps sql.ErrNoRows to ErrNotFound and wraps anything else.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// mustAffect returns ErrNotFound when an UPDATE/DELETE touched no row.
func mustAffect(res sql.Result, err error, msg string) error {
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
