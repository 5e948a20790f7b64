package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"sitesmith/internal/domain"
	"sitesmith/internal/domain/models"
	"sitesmith/internal/domain/repositories"
)

// PostgresPageVersionRepository implements the PageVersionRepository interface
type PostgresPageVersionRepository struct {
	lineageStore
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewPageVersionRepository creates a new page version repository
func NewPageVersionRepository(config *RepositoryConfig) repositories.PageVersionRepository {
	return &PostgresPageVersionRepository{
		lineageStore: lineageStore{
			pool:      config.Pool,
			table:     config.Tables.PageVersions,
			parentCol: "page_id",
			seqCol:    "version_number",
			clearSet:  "html = '', content_cleared = TRUE",
		},
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a new page version row
func (r *PostgresPageVersionRepository) Create(ctx context.Context, ver *models.PageVersion) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, page_id, version_number, source, html,
			pinned, released, content_cleared, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.tables.PageVersions)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		ver.ID,
		ver.PageID,
		ver.VersionNumber,
		string(ver.Source),
		ver.HTML,
		ver.Pinned,
		ver.Released,
		ver.ContentCleared,
		ver.CreatedAt,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("page version %d taken for page %s: %w",
				ver.VersionNumber, ver.PageID, err)
		}
		return fmt.Errorf("create page version: %w", err)
	}

	return nil
}

// GetByID retrieves a page version
func (r *PostgresPageVersionRepository) GetByID(ctx context.Context, id string) (*models.PageVersion, error) {
	query := fmt.Sprintf(`
		SELECT id, page_id, version_number, source, html,
			pinned, released, content_cleared, created_at
		FROM %s
		WHERE id = $1
	`, r.tables.PageVersions)

	var ver models.PageVersion
	var source string
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(
		&ver.ID,
		&ver.PageID,
		&ver.VersionNumber,
		&source,
		&ver.HTML,
		&ver.Pinned,
		&ver.Released,
		&ver.ContentCleared,
		&ver.CreatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("page version %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get page version: %w", err)
	}

	ver.Source = models.Source(source)
	return &ver, nil
}

// ListByPage lists a page's versions, newest first
func (r *PostgresPageVersionRepository) ListByPage(ctx context.Context, pageID string, includeReleased bool) ([]models.PageVersion, error) {
	filter := ""
	if !includeReleased {
		filter = "AND NOT released"
	}
	query := fmt.Sprintf(`
		SELECT id, page_id, version_number, source, html,
			pinned, released, content_cleared, created_at
		FROM %s
		WHERE page_id = $1 %s
		ORDER BY version_number DESC
	`, r.tables.PageVersions, filter)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("list page versions: %w", err)
	}
	defer rows.Close()

	var versions []models.PageVersion
	for rows.Next() {
		var ver models.PageVersion
		var source string
		err := rows.Scan(
			&ver.ID,
			&ver.PageID,
			&ver.VersionNumber,
			&source,
			&ver.HTML,
			&ver.Pinned,
			&ver.Released,
			&ver.ContentCleared,
			&ver.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan page version: %w", err)
		}
		ver.Source = models.Source(source)
		versions = append(versions, ver)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page versions: %w", err)
	}

	return versions, nil
}
