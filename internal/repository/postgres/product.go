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

// PostgresProductDocRepository implements the ProductDocRepository interface
type PostgresProductDocRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewProductDocRepository creates a new product doc repository
func NewProductDocRepository(config *RepositoryConfig) repositories.ProductDocRepository {
	return &PostgresProductDocRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a new product doc
func (r *PostgresProductDocRepository) Create(ctx context.Context, doc *models.ProductDoc) error {
	specJSON, err := json.Marshal(doc.Spec)
	if err != nil {
		return fmt.Errorf("encode doc spec: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, content, spec, current_history_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.tables.ProductDocs)

	executor := GetExecutor(ctx, r.pool)
	_, err = executor.Exec(ctx, query,
		doc.ID,
		doc.SessionID,
		doc.Content,
		specJSON,
		doc.CurrentHistoryID,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create product doc: %w", err)
	}

	return nil
}

// GetByID retrieves a product doc by id
func (r *PostgresProductDocRepository) GetByID(ctx context.Context, id string) (*models.ProductDoc, error) {
	return r.get(ctx, "id", id)
}

// GetBySession retrieves the session's product doc
func (r *PostgresProductDocRepository) GetBySession(ctx context.Context, sessionID string) (*models.ProductDoc, error) {
	return r.get(ctx, "session_id", sessionID)
}

func (r *PostgresProductDocRepository) get(ctx context.Context, col, key string) (*models.ProductDoc, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, content, spec, current_history_id, created_at, updated_at
		FROM %s
		WHERE %s = $1
	`, r.tables.ProductDocs, col)

	var doc models.ProductDoc
	var specJSON []byte
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, key).Scan(
		&doc.ID,
		&doc.SessionID,
		&doc.Content,
		&specJSON,
		&doc.CurrentHistoryID,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("product doc for %s %s: %w", col, key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get product doc: %w", err)
	}

	if err := json.Unmarshal(specJSON, &doc.Spec); err != nil {
		return nil, fmt.Errorf("decode doc spec: %w", err)
	}

	return &doc, nil
}

// Update writes the doc's content, spec and current-version pointer
func (r *PostgresProductDocRepository) Update(ctx context.Context, doc *models.ProductDoc) error {
	specJSON, err := json.Marshal(doc.Spec)
	if err != nil {
		return fmt.Errorf("encode doc spec: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET content = $2, spec = $3, current_history_id = $4, updated_at = $5
		WHERE id = $1
	`, r.tables.ProductDocs)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		doc.ID,
		doc.Content,
		specJSON,
		doc.CurrentHistoryID,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update product doc: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("product doc %s: %w", doc.ID, domain.ErrNotFound)
	}

	return nil
}

// PostgresPageRepository implements the PageRepository interface
type PostgresPageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewPageRepository creates a new page repository
func NewPageRepository(config *RepositoryConfig) repositories.PageRepository {
	return &PostgresPageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// GetByID retrieves a page by id
func (r *PostgresPageRepository) GetByID(ctx context.Context, id string) (*models.Page, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, title, html, current_version_id, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tables.Pages)

	var page models.Page
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(
		&page.ID,
		&page.SessionID,
		&page.Title,
		&page.HTML,
		&page.CurrentVersionID,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get page: %w", err)
	}

	return &page, nil
}

// ListBySession lists a session's pages
func (r *PostgresPageRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Page, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, title, html, current_version_id, created_at, updated_at
		FROM %s
		WHERE session_id = $1
		ORDER BY created_at ASC
	`, r.tables.Pages)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		var page models.Page
		err := rows.Scan(
			&page.ID,
			&page.SessionID,
			&page.Title,
			&page.HTML,
			&page.CurrentVersionID,
			&page.CreatedAt,
			&page.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, page)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}

	return pages, nil
}

// Upsert writes the page, recreating it under its original id if it was
// deleted since the snapshot being restored was taken.
func (r *PostgresPageRepository) Upsert(ctx context.Context, page *models.Page) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, title, html, current_version_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET title = $3, html = $4, current_version_id = $5, updated_at = $7
	`, r.tables.Pages)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		page.ID,
		page.SessionID,
		page.Title,
		page.HTML,
		page.CurrentVersionID,
		page.CreatedAt,
		page.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}

	return nil
}
