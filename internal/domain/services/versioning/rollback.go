package versioning

import (
	"context"

	"sitesmith/internal/domain/models"
)

// RollbackService replays a past snapshot forward: it materializes new
// doc-history, page-version and snapshot records whose content matches the
// target, and repoints all current pointers, never rewinding or reusing
// existing ids and sequence numbers.
type RollbackService interface {
	// Rollback restores the session to the state captured by the snapshot.
	// Fails with NotFound for an unknown snapshot and Unavailable for a
	// released one (its payload is cleared). All writes are atomic: a
	// failure anywhere leaves no new records and no moved pointers.
	Rollback(ctx context.Context, sessionID, snapshotID string) (*RollbackResult, error)
}

// RollbackResult reports what a rollback materialized.
type RollbackResult struct {
	NewSnapshot   *models.ProjectSnapshot `json:"new_snapshot"`
	RestoredPages []string                `json:"restored_pages"`
}
