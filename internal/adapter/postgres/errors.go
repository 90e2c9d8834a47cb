package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// PostgreSQL error codes the record store cares about.
const (
	codeUniqueViolation      = "23505"
	codeNotNullViolation     = "23502"
	codeCheckViolation       = "23514"
	codeInvalidText          = "22P02"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// MapError converts pgx/pgconn errors to domain errors, prefixed with op.
// context.DeadlineExceeded and context.Canceled are not mapped.
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, domain.ErrAlreadyExists)
		case codeCheckViolation, codeNotNullViolation, codeInvalidText:
			return fmt.Errorf("%s: %s: %w", op, pgErr.Message, domain.ErrValidation)
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%s: %w", op, domain.ErrConflict)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
