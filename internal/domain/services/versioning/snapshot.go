package versioning

import (
	"context"

	"sitesmith/internal/domain/models"
)

// SnapshotService manages the whole-project snapshot lineage.
type SnapshotService interface {
	// CreateSnapshot deep-copies the session's product doc and every page
	// into a new snapshot, then re-applies retention in one transaction.
	CreateSnapshot(ctx context.Context, req *CreateSnapshotRequest) (*models.ProjectSnapshot, error)

	// GetSnapshot returns a snapshot with its frozen content.
	GetSnapshot(ctx context.Context, sessionID, snapshotID string) (*models.ProjectSnapshot, error)

	// ListSnapshots returns the session's snapshots, newest first.
	ListSnapshots(ctx context.Context, sessionID string, includeReleased bool) ([]models.ProjectSnapshot, error)

	// PinSnapshot marks a snapshot exempt from age-based release,
	// subject to the per-session pin cap.
	PinSnapshot(ctx context.Context, sessionID, snapshotID string) (*models.ProjectSnapshot, error)

	// UnpinSnapshot clears the pinned flag and re-applies retention.
	UnpinSnapshot(ctx context.Context, sessionID, snapshotID string) (*models.ProjectSnapshot, error)
}

// CreateSnapshotRequest represents a snapshot creation request.
type CreateSnapshotRequest struct {
	SessionID string  `json:"-"` // Set by handler from the URL, not the body
	Source    string  `json:"source,omitempty"`
	Label     *string `json:"label,omitempty"`
}
