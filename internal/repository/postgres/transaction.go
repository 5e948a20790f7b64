package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"sitesmith/internal/domain"
	"sitesmith/internal/domain/repositories"
)

// serializableRetries bounds the retry loop for serialization conflicts.
const serializableRetries = 3

// TransactionManager implements the TransactionManager interface
type TransactionManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(pool *pgxpool.Pool, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{pool: pool, logger: logger}
}

// ExecTx executes a function within a transaction
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return tm.run(ctx, pgx.TxOptions{}, fn)
}

// ExecSerializableTx executes a function within a serializable transaction,
// retrying on serialization conflicts. Pin-count checks and sequence
// allocation are read-then-write and need this isolation level.
func (tm *TransactionManager) ExecSerializableTx(ctx context.Context, fn repositories.TxFn) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}

	var err error
	for attempt := 0; attempt < serializableRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff; conflicts here are short-lived row contention
			// on a single parent's counter or pin set.
			time.Sleep(time.Duration(attempt) * 10 * time.Millisecond)
			tm.logger.Debug("retrying serializable transaction", "attempt", attempt)
		}

		err = tm.run(ctx, opts, fn)
		if err == nil || !IsPgSerializationError(err) {
			return err
		}
	}

	// Keep err in the chain: an allocation conflict carries a
	// SequencingError the caller can still match after exhaustion.
	return fmt.Errorf("%w: serialization conflict persisted after %d attempts: %w",
		domain.ErrTxAborted, serializableRetries, err)
}

// run opens a transaction, stores it in the context so repositories join it,
// and commits iff fn succeeds.
//
// A context that already carries a transaction is joined, not nested: the
// auto-snapshot trigger claims its plan id and creates the snapshot in one
// unit of work by wrapping SnapshotService.CreateSnapshot this way.
func (tm *TransactionManager) run(ctx context.Context, opts pgx.TxOptions, fn repositories.TxFn) error {
	if repositories.GetTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Defer rollback - safe even if commit succeeds
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			tm.logger.Error("transaction rollback failed", "error", err)
		}
	}()

	if err := fn(repositories.SetTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
