package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"sitesmith/internal/domain"
	"sitesmith/internal/domain/models"
	"sitesmith/internal/domain/repositories"
)

// PostgresSnapshotRepository implements the SnapshotRepository interface
type PostgresSnapshotRepository struct {
	lineageStore
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewSnapshotRepository creates a new project snapshot repository
func NewSnapshotRepository(config *RepositoryConfig) repositories.SnapshotRepository {
	return &PostgresSnapshotRepository{
		lineageStore: lineageStore{
			pool:      config.Pool,
			table:     config.Tables.Snapshots,
			parentCol: "session_id",
			seqCol:    "snapshot_number",
			clearSet:  "doc_content = '', doc_spec = '{}'::jsonb, pages = '[]'::jsonb, content_cleared = TRUE",
		},
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a new snapshot row
func (r *PostgresSnapshotRepository) Create(ctx context.Context, snap *models.ProjectSnapshot) error {
	specJSON, err := json.Marshal(snap.DocSpec)
	if err != nil {
		return fmt.Errorf("encode snapshot doc spec: %w", err)
	}
	pagesJSON, err := json.Marshal(snap.Pages)
	if err != nil {
		return fmt.Errorf("encode snapshot pages: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, snapshot_number, source, label,
			doc_content, doc_spec, pages, pinned, released, content_cleared, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, r.tables.Snapshots)

	executor := GetExecutor(ctx, r.pool)
	_, err = executor.Exec(ctx, query,
		snap.ID,
		snap.SessionID,
		snap.SnapshotNumber,
		string(snap.Source),
		snap.Label,
		snap.DocContent,
		specJSON,
		pagesJSON,
		snap.Pinned,
		snap.Released,
		snap.ContentCleared,
		snap.CreatedAt,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			// UNIQUE(session_id, snapshot_number): a concurrent create won
			// the same number. Surface for the allocator's retry path.
			return fmt.Errorf("snapshot number %d taken for session %s: %w",
				snap.SnapshotNumber, snap.SessionID, err)
		}
		return fmt.Errorf("create snapshot: %w", err)
	}

	return nil
}

// GetByID retrieves a snapshot with its frozen content
func (r *PostgresSnapshotRepository) GetByID(ctx context.Context, id string) (*models.ProjectSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, snapshot_number, source, label,
			doc_content, doc_spec, pages, pinned, released, content_cleared, created_at
		FROM %s
		WHERE id = $1
	`, r.tables.Snapshots)

	executor := GetExecutor(ctx, r.pool)
	snap, err := scanSnapshot(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	return snap, nil
}

// ListBySession lists a session's snapshots, newest first
func (r *PostgresSnapshotRepository) ListBySession(ctx context.Context, sessionID string, includeReleased bool) ([]models.ProjectSnapshot, error) {
	filter := ""
	if !includeReleased {
		filter = "AND NOT released"
	}
	query := fmt.Sprintf(`
		SELECT id, session_id, snapshot_number, source, label,
			doc_content, doc_spec, pages, pinned, released, content_cleared, created_at
		FROM %s
		WHERE session_id = $1 %s
		ORDER BY snapshot_number DESC
	`, r.tables.Snapshots, filter)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.ProjectSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, *snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snaps, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*models.ProjectSnapshot, error) {
	var snap models.ProjectSnapshot
	var source string
	var specJSON, pagesJSON []byte

	err := row.Scan(
		&snap.ID,
		&snap.SessionID,
		&snap.SnapshotNumber,
		&source,
		&snap.Label,
		&snap.DocContent,
		&specJSON,
		&pagesJSON,
		&snap.Pinned,
		&snap.Released,
		&snap.ContentCleared,
		&snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	snap.Source = models.Source(source)
	if err := json.Unmarshal(specJSON, &snap.DocSpec); err != nil {
		return nil, fmt.Errorf("decode snapshot doc spec: %w", err)
	}
	if err := json.Unmarshal(pagesJSON, &snap.Pages); err != nil {
		return nil, fmt.Errorf("decode snapshot pages: %w", err)
	}

	return &snap, nil
}
