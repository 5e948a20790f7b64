package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"sitesmith/internal/domain/repositories"
)

// PostgresSnapshotTriggerRepository implements the idempotency ledger for
// plan-completion snapshots. The primary key on plan_id is what makes the
// claim at-most-once: it survives process crashes where an in-memory lock
// would not.
type PostgresSnapshotTriggerRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewSnapshotTriggerRepository creates a new snapshot trigger ledger
func NewSnapshotTriggerRepository(config *RepositoryConfig) repositories.SnapshotTriggerRepository {
	return &PostgresSnapshotTriggerRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Claim records that a snapshot for the plan is being created. Returns false
// when the plan id was already claimed. Runs in the caller's transaction, so
// a failed snapshot insert releases the claim with it.
func (r *PostgresSnapshotTriggerRepository) Claim(ctx context.Context, planID string) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (plan_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (plan_id) DO NOTHING
	`, r.tables.SnapshotTriggers)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, planID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim plan trigger: %w", err)
	}

	return result.RowsAffected() > 0, nil
}
