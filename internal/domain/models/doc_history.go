package models

import "time"

// ProductDocHistory is one version of a session's product specification
// document. Unlike the other two lineages, released history keeps its
// payload: old revisions stay diffable, they are only hidden from default
// listings.
type ProductDocHistory struct {
	ID            string         `json:"id" db:"id"`
	DocID         string         `json:"doc_id" db:"doc_id"`
	VersionNumber int            `json:"version_number" db:"version_number"`
	Source        Source         `json:"source" db:"source"`
	ChangeSummary *string        `json:"change_summary,omitempty" db:"change_summary"`
	Content       string         `json:"content" db:"content"`
	Spec          map[string]any `json:"spec" db:"spec"`
	Pinned        bool           `json:"is_pinned" db:"pinned"`
	Released      bool           `json:"is_released" db:"released"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// Available reports whether the version is part of the working set.
func (h *ProductDocHistory) Available() bool {
	return !h.Released
}
