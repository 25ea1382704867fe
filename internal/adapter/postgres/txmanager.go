package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TxManager runs a callback inside a single database transaction, passing
// the transaction down through the context so store methods pick it up via
// QuerierFromCtx without changing their signatures. An import run wraps all
// of its writes in one RunInTx call, so a failure midway leaves the
// destination untouched.
//
// Nesting is not supported: RunInTx inside a RunInTx callback opens a
// second, independent transaction.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// RunInTx executes fn in a transaction at the default Read Committed level.
// The transaction commits when fn returns nil, rolls back when fn returns an
// error, and rolls back and re-panics when fn panics.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	done := false
	defer func() {
		if !done {
			// fn panicked; roll back before the panic propagates.
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		done = true
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return rollbackError(err, rbErr)
		}
		return err
	}

	done = true
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rollbackError keeps both the callback error and the rollback failure on
// the unwrap chain, so errors.Is checks against either still hold.
func rollbackError(cause, rbErr error) error {
	return fmt.Errorf("rollback failed: %w", errors.Join(cause, rbErr))
}
