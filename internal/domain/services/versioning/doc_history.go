package versioning

import (
	"context"

	"sitesmith/internal/domain/models"
)

// DocHistoryService manages the product-doc version lineage.
type DocHistoryService interface {
	// UpdateDoc applies new content to the live doc, records a history
	// version for it and repoints the doc's current pointer, all in one
	// transaction.
	UpdateDoc(ctx context.Context, docID string, req *UpdateDocRequest) (*models.ProductDocHistory, error)

	// GetVersion returns one history version with full content.
	GetVersion(ctx context.Context, docID, versionID string) (*models.ProductDocHistory, error)

	// ListHistory returns the doc's versions, newest first.
	ListHistory(ctx context.Context, docID string, includeReleased bool) ([]models.ProductDocHistory, error)

	PinVersion(ctx context.Context, docID, versionID string) (*models.ProductDocHistory, error)
	UnpinVersion(ctx context.Context, docID, versionID string) (*models.ProductDocHistory, error)
}

// UpdateDocRequest represents a product-doc mutation.
type UpdateDocRequest struct {
	Content       string         `json:"content"`
	Spec          map[string]any `json:"spec,omitempty"`
	Source        string         `json:"source,omitempty"`
	ChangeSummary *string        `json:"change_summary,omitempty"`
}
