package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"therabook/backend/internal/store"
)

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

// mapError translates driver errors into store sentinels. Unknown errors
// pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeExclusionViolation:
			return store.ErrConflict
		case codeUniqueViolation:
			if pgErr.ConstraintName == "sessions_idempotency_key_key" || pgErr.ConstraintName == "" {
				return store.ErrDuplicateKey
			}
		}
	}
	return err
}
