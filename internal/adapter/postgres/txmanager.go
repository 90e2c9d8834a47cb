package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// TxManager runs callbacks inside a transaction carried by the context.
// Nested RunInTx calls are not supported: calling RunInTx inside a RunInTx
// callback starts a second independent transaction.
type TxManager struct {
	pool    *pgxpool.Pool
	opts    pgx.TxOptions
	retries int
}

// NewTxManager creates a TxManager using Read Committed (PostgreSQL default).
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithIsolation returns a copy of the manager that begins transactions at
// the given isolation level.
func (m *TxManager) WithIsolation(level pgx.TxIsoLevel) *TxManager {
	c := *m
	c.opts.IsoLevel = level
	return &c
}

// WithRetries returns a copy of the manager that reruns the whole callback
// up to n more times when the transaction loses a serialization conflict.
// fn must be safe to run again.
func (m *TxManager) WithRetries(n int) *TxManager {
	c := *m
	c.retries = max(n, 0)
	return &c
}

// RunInTx executes fn within a database transaction. It commits when fn
// succeeds and rolls back when fn fails or panics; a panic is re-raised.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= m.retries; attempt++ {
		if err = m.runOnce(ctx, fn); err == nil || !isSerializationFailure(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.pool.BeginTx(ctx, m.opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isSerializationFailure matches both raw driver errors and errors already
// passed through MapError.
func isSerializationFailure(err error) bool {
	if errors.Is(err, domain.ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}
