package repositories

import (
	"context"

	"sitesmith/internal/domain/models"
)

// ProductDocRepository persists the live product specification document.
type ProductDocRepository interface {
	Create(ctx context.Context, doc *models.ProductDoc) error
	GetByID(ctx context.Context, id string) (*models.ProductDoc, error)
	GetBySession(ctx context.Context, sessionID string) (*models.ProductDoc, error)
	Update(ctx context.Context, doc *models.ProductDoc) error
}

// PageRepository persists live pages.
type PageRepository interface {
	GetByID(ctx context.Context, id string) (*models.Page, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Page, error)

	// Upsert writes the page, recreating it if it was deleted since the
	// snapshot was taken. Rollback needs this to restore removed pages
	// under their original ids.
	Upsert(ctx context.Context, page *models.Page) error
}
