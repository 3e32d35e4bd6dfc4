package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/quizgen-api/internal/store"
)

// PostgreSQL error codes the stores react to.
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	notNullViolationCode    = "23502"

	// lockedQuestionCode is raised by the guard_locked_question trigger.
	lockedQuestionCode = "23000"
)

// pgError returns the PostgreSQL error wrapped in err, if any.
func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func hasCode(err error, code string) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == code
}

// MapError translates a database error into the store's sentinel errors,
// keeping the original for context. Unrecognized errors are returned as is.
// Every store method passes its database errors through here.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	pgErr, ok := pgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case uniqueViolationCode:
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case lockedQuestionCode:
		return fmt.Errorf("%w: %s", store.ErrLocked, pgErr.Message)
	case foreignKeyViolationCode, checkViolationCode:
		return fmt.Errorf("%w: constraint %s: %v", store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case notNullViolationCode:
		return fmt.Errorf("%w: column %s is required: %v", store.ErrInvalidEntity, pgErr.ColumnName, err)
	default:
		return err
	}
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolationCode)
}

// IsForeignKeyViolation reports whether err references a missing row.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, foreignKeyViolationCode)
}

// IsLockedViolation reports whether the locked question trigger refused a change.
func IsLockedViolation(err error) bool {
	return hasCode(err, lockedQuestionCode)
}

// CheckRowsAffected returns store.ErrNotFound when the statement changed no rows.
func CheckRowsAffected(result sql.Result, entityName string) error {
	if result == nil {
		return errors.New("nil result provided to CheckRowsAffected")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if entityName == "" {
		return store.ErrNotFound
	}
	return fmt.Errorf("%w: %s not found", store.ErrNotFound, entityName)
}

// MapUniqueViolation maps a violation of constraintName to specificError.
// Violations of other constraints map to store.ErrDuplicate, and errors
// that are not unique violations are returned unchanged.
func MapUniqueViolation(err error, entityName, constraintName string, specificError error) error {
	pgErr, ok := pgError(err)
	if !ok || pgErr.Code != uniqueViolationCode {
		return err
	}
	if specificError != nil && (constraintName == "" || pgErr.ConstraintName == constraintName) {
		return fmt.Errorf("%w: %v", specificError, err)
	}
	return fmt.Errorf("%w: %s already exists: %v", store.ErrDuplicate, entityName, err)
}
