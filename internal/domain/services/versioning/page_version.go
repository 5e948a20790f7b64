package versioning

import (
	"context"

	"sitesmith/internal/domain/models"
)

// PageVersionService manages the per-page html version lineage.
type PageVersionService interface {
	// UpdatePage applies new html to the live page, records a version for
	// it and repoints the page's current pointer, all in one transaction.
	UpdatePage(ctx context.Context, pageID string, req *UpdatePageRequest) (*models.PageVersion, error)

	// GetVersion returns one page version with its html.
	GetVersion(ctx context.Context, pageID, versionID string) (*models.PageVersion, error)

	// ListVersions returns the page's versions, newest first.
	ListVersions(ctx context.Context, pageID string, includeReleased bool) ([]models.PageVersion, error)

	PinVersion(ctx context.Context, pageID, versionID string) (*models.PageVersion, error)
	UnpinVersion(ctx context.Context, pageID, versionID string) (*models.PageVersion, error)
}

// UpdatePageRequest represents a page mutation.
type UpdatePageRequest struct {
	HTML   string `json:"html"`
	Title  string `json:"title,omitempty"`
	Source string `json:"source,omitempty"`
}
