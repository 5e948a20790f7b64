package repositories

import (
	"context"
	"time"

	"sitesmith/internal/domain/models"
)

// VersionEntry is the lineage-agnostic view of a version record: everything
// the retention policy and the pin manager need, none of the payload.
type VersionEntry struct {
	ID        string
	ParentID  string
	Sequence  int
	Source    models.Source
	Pinned    bool
	Released  bool
	CreatedAt time.Time
}

// VersionStore is the shared lifecycle contract implemented by all three
// version repositories. Payload-typed reads and creation live on the
// per-lineage interfaces; this slice covers retention and pinning.
//
// All mutations are idempotent and participate in an ambient transaction
// when one is present in the context.
type VersionStore interface {
	// ListEntries returns every entry for a parent, released included,
	// ordered by sequence descending.
	ListEntries(ctx context.Context, parentID string) ([]VersionEntry, error)

	// GetEntry returns the entry for a record id.
	GetEntry(ctx context.Context, id string) (VersionEntry, error)

	// ListPinned returns the ids of currently pinned records for a parent.
	ListPinned(ctx context.Context, parentID string) ([]string, error)

	// SetPinned toggles the pinned flag.
	SetPinned(ctx context.Context, id string, pinned bool) error

	// MarkReleased releases a record, clearing its payload when the
	// lineage's release policy says so.
	MarkReleased(ctx context.Context, id string, clearPayload bool) error

	// MarkRetained flips a released record back into the working set.
	// Payload cleared by an earlier release is not restored.
	MarkRetained(ctx context.Context, id string) error
}

// SequenceAllocator assigns per-parent, monotonically increasing,
// gap-tolerant version numbers. Allocation must happen in the same
// transaction as the record insert.
type SequenceAllocator interface {
	Next(ctx context.Context, lineage, parentID string) (int, error)
}

// SnapshotRepository persists whole-project snapshots (parent = session).
type SnapshotRepository interface {
	VersionStore

	Create(ctx context.Context, snap *models.ProjectSnapshot) error
	GetByID(ctx context.Context, id string) (*models.ProjectSnapshot, error)
	ListBySession(ctx context.Context, sessionID string, includeReleased bool) ([]models.ProjectSnapshot, error)
}

// DocHistoryRepository persists product-doc versions (parent = doc).
type DocHistoryRepository interface {
	VersionStore

	Create(ctx context.Context, hist *models.ProductDocHistory) error
	GetByID(ctx context.Context, id string) (*models.ProductDocHistory, error)
	ListByDoc(ctx context.Context, docID string, includeReleased bool) ([]models.ProductDocHistory, error)
}

// PageVersionRepository persists per-page html versions (parent = page).
type PageVersionRepository interface {
	VersionStore

	Create(ctx context.Context, ver *models.PageVersion) error
	GetByID(ctx context.Context, id string) (*models.PageVersion, error)
	ListByPage(ctx context.Context, pageID string, includeReleased bool) ([]models.PageVersion, error)
}
