package handler

import (
	"time"

	"sitesmith/internal/domain/models"
)

// snapshotSummary is the list-view shape of a snapshot: lifecycle state
// without the frozen payload.
type snapshotSummary struct {
	ID             string    `json:"id"`
	SnapshotNumber int       `json:"snapshot_number"`
	Source         string    `json:"source"`
	Label          *string   `json:"label,omitempty"`
	Pinned         bool      `json:"is_pinned"`
	Released       bool      `json:"is_released"`
	Available      bool      `json:"available"`
	ContentCleared bool      `json:"content_cleared"`
	PageCount      int       `json:"page_count"`
	CreatedAt      time.Time `json:"created_at"`
}

func toSnapshotSummary(snap *models.ProjectSnapshot) snapshotSummary {
	return snapshotSummary{
		ID:             snap.ID,
		SnapshotNumber: snap.SnapshotNumber,
		Source:         string(snap.Source),
		Label:          snap.Label,
		Pinned:         snap.Pinned,
		Released:       snap.Released,
		Available:      snap.Available(),
		ContentCleared: snap.ContentCleared,
		PageCount:      len(snap.Pages),
		CreatedAt:      snap.CreatedAt,
	}
}

type snapshotListResponse struct {
	Snapshots []snapshotSummary `json:"snapshots"`
	Total     int               `json:"total"`
}

type historyListResponse struct {
	History     []models.ProductDocHistory `json:"history"`
	Total       int                        `json:"total"`
	PinnedCount int                        `json:"pinned_count"`
}

type pageVersionListResponse struct {
	Versions []models.PageVersion `json:"versions"`
	Total    int                  `json:"total"`
}

type rollbackResponse struct {
	Message       string          `json:"message"`
	NewSnapshot   snapshotSummary `json:"new_snapshot"`
	RestoredPages []string        `json:"restored_pages"`
}

// planCompletedResponse acknowledges a plan completion signal. Snapshot is
// nil when the signal was a duplicate or the plan had failed tasks.
type planCompletedResponse struct {
	Snapshot *snapshotSummary `json:"snapshot,omitempty"`
	Skipped  bool             `json:"skipped"`
}
