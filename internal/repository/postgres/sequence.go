package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"sitesmith/internal/domain"
	"sitesmith/internal/domain/repositories"
)

// CounterSequenceAllocator assigns version numbers from a durable per-
// (lineage, parent) counter row. The upsert takes a row lock, so two
// concurrent creates for the same parent serialize on the counter and can
// never see the same value; unrelated parents do not contend.
//
// The allocator joins the caller's ambient transaction: if the record insert
// aborts, the counter bump rolls back with it (the number is simply skipped
// on the retry, never reused).
type CounterSequenceAllocator struct {
	pool    *pgxpool.Pool
	tables  *TableNames
	retries int
	logger  *slog.Logger
}

// NewSequenceAllocator creates a counter-backed sequence allocator.
// retries bounds the autocommit-path retry loop; allocations made inside a
// caller's transaction are never retried at the statement level.
func NewSequenceAllocator(config *RepositoryConfig, retries int) repositories.SequenceAllocator {
	if retries < 1 {
		retries = 1
	}
	return &CounterSequenceAllocator{
		pool:    config.Pool,
		tables:  config.Tables,
		retries: retries,
		logger:  config.Logger,
	}
}

// Next allocates the next sequence number for a parent.
func (a *CounterSequenceAllocator) Next(ctx context.Context, lineage, parentID string) (int, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s AS c (lineage, parent_id, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (lineage, parent_id)
		DO UPDATE SET value = c.value + 1
		RETURNING value
	`, a.tables.VersionCounters)

	// Inside a caller's transaction a failed statement aborts the whole
	// transaction: every later statement fails with 25P02, so re-running
	// the upsert here can never succeed. Surface the conflict on the first
	// attempt; SequencingError unwraps to the raw pg error, so the
	// transaction-level retry in ExecSerializableTx still recognizes a
	// serialization failure and reruns the whole unit of work.
	if tx := repositories.GetTx(ctx); tx != nil {
		var value int
		err := tx.QueryRow(ctx, query, lineage, parentID).Scan(&value)
		if err == nil {
			return value, nil
		}
		if IsPgDuplicateError(err) || IsPgSerializationError(err) {
			return 0, &domain.SequencingError{
				Lineage:  lineage,
				ParentID: parentID,
				Attempts: 1,
				Err:      err,
			}
		}
		return 0, fmt.Errorf("allocate %s sequence: %w", lineage, err)
	}

	// Autocommit path: each attempt is its own implicit transaction, so a
	// bounded statement-level retry is sound.
	var lastErr error
	for attempt := 0; attempt < a.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 5 * time.Millisecond)
			a.logger.Debug("retrying sequence allocation",
				"lineage", lineage,
				"parent_id", parentID,
				"attempt", attempt,
			)
		}

		var value int
		err := a.pool.QueryRow(ctx, query, lineage, parentID).Scan(&value)
		if err == nil {
			return value, nil
		}
		if !IsPgDuplicateError(err) && !IsPgSerializationError(err) {
			return 0, fmt.Errorf("allocate %s sequence: %w", lineage, err)
		}
		lastErr = err
	}

	return 0, &domain.SequencingError{
		Lineage:  lineage,
		ParentID: parentID,
		Attempts: a.retries,
		Err:      lastErr,
	}
}
