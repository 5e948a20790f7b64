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

// PostgresDocHistoryRepository implements the DocHistoryRepository interface.
// This lineage keeps its payload after release, so the embedded store has no
// clear clause.
type PostgresDocHistoryRepository struct {
	lineageStore
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewDocHistoryRepository creates a new product-doc history repository
func NewDocHistoryRepository(config *RepositoryConfig) repositories.DocHistoryRepository {
	return &PostgresDocHistoryRepository{
		lineageStore: lineageStore{
			pool:      config.Pool,
			table:     config.Tables.DocHistory,
			parentCol: "doc_id",
			seqCol:    "version_number",
		},
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a new history row
func (r *PostgresDocHistoryRepository) Create(ctx context.Context, hist *models.ProductDocHistory) error {
	specJSON, err := json.Marshal(hist.Spec)
	if err != nil {
		return fmt.Errorf("encode doc history spec: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, doc_id, version_number, source, change_summary,
			content, spec, pinned, released, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.tables.DocHistory)

	executor := GetExecutor(ctx, r.pool)
	_, err = executor.Exec(ctx, query,
		hist.ID,
		hist.DocID,
		hist.VersionNumber,
		string(hist.Source),
		hist.ChangeSummary,
		hist.Content,
		specJSON,
		hist.Pinned,
		hist.Released,
		hist.CreatedAt,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("history version %d taken for doc %s: %w",
				hist.VersionNumber, hist.DocID, err)
		}
		return fmt.Errorf("create doc history: %w", err)
	}

	return nil
}

// GetByID retrieves a history version with full content
func (r *PostgresDocHistoryRepository) GetByID(ctx context.Context, id string) (*models.ProductDocHistory, error) {
	query := fmt.Sprintf(`
		SELECT id, doc_id, version_number, source, change_summary,
			content, spec, pinned, released, created_at
		FROM %s
		WHERE id = $1
	`, r.tables.DocHistory)

	executor := GetExecutor(ctx, r.pool)
	hist, err := scanDocHistory(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("doc history %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get doc history: %w", err)
	}

	return hist, nil
}

// ListByDoc lists a doc's history, newest first
func (r *PostgresDocHistoryRepository) ListByDoc(ctx context.Context, docID string, includeReleased bool) ([]models.ProductDocHistory, error) {
	filter := ""
	if !includeReleased {
		filter = "AND NOT released"
	}
	query := fmt.Sprintf(`
		SELECT id, doc_id, version_number, source, change_summary,
			content, spec, pinned, released, created_at
		FROM %s
		WHERE doc_id = $1 %s
		ORDER BY version_number DESC
	`, r.tables.DocHistory, filter)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, docID)
	if err != nil {
		return nil, fmt.Errorf("list doc history: %w", err)
	}
	defer rows.Close()

	var versions []models.ProductDocHistory
	for rows.Next() {
		hist, err := scanDocHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan doc history: %w", err)
		}
		versions = append(versions, *hist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate doc history: %w", err)
	}

	return versions, nil
}

func scanDocHistory(row rowScanner) (*models.ProductDocHistory, error) {
	var hist models.ProductDocHistory
	var source string
	var specJSON []byte

	err := row.Scan(
		&hist.ID,
		&hist.DocID,
		&hist.VersionNumber,
		&source,
		&hist.ChangeSummary,
		&hist.Content,
		&specJSON,
		&hist.Pinned,
		&hist.Released,
		&hist.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	hist.Source = models.Source(source)
	if err := json.Unmarshal(specJSON, &hist.Spec); err != nil {
		return nil, fmt.Errorf("decode doc history spec: %w", err)
	}

	return &hist, nil
}
