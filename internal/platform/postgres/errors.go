package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/echoscribe/echoscribe-api/internal/store"
)

// Postgres integrity violation codes (SQLSTATE class 23) the stores react to.
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
)

// MapError translates driver errors into the store error taxonomy so callers
// above the postgres layer never match on SQLSTATE codes. Errors with no
// mapping pass through unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case uniqueViolationCode:
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case foreignKeyViolationCode:
		return fmt.Errorf("%w: foreign key violation on %s: %v",
			store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case checkViolationCode:
		return fmt.Errorf("%w: check constraint violation on %s: %v",
			store.ErrInvalidEntity, pgErr.ConstraintName, err)
	default:
		return err
	}
}

// IsUniqueViolation reports whether err is a unique constraint violation. The
// job store uses it to turn a second active job for a note into
// store.ErrActiveJobExists.
func IsUniqueViolation(err error) bool {
	return hasPgCode(err, uniqueViolationCode)
}

// IsForeignKeyViolation reports whether err is a foreign key violation, which
// the stores treat as a reference to a missing note.
func IsForeignKeyViolation(err error) bool {
	return hasPgCode(err, foreignKeyViolationCode)
}

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// CheckRowsAffected converts a zero-row UPDATE or DELETE into
// store.ErrNotFound, naming the entity when one is given.
func CheckRowsAffected(result sql.Result, entityName string) error {
	if result == nil {
		return errors.New("CheckRowsAffected: nil result")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected unavailable: %w", err)
	}

	if affected == 0 {
		if entityName == "" {
			return store.ErrNotFound
		}
		return fmt.Errorf("%w: %s not found", store.ErrNotFound, entityName)
	}

	return nil
}
