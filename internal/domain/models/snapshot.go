package models

import "time"

// PageCapture is the frozen copy of one page embedded in a snapshot.
// Captures are stored by value: releasing or clearing the live page's own
// version history never alters an already-taken snapshot.
type PageCapture struct {
	PageID string `json:"page_id"`
	Title  string `json:"title"`
	HTML   string `json:"html"`
}

// ProjectSnapshot is a whole-project version record: the product doc plus
// every page of a session, captured at one moment. On release the payload is
// cleared to bound storage.
type ProjectSnapshot struct {
	ID             string        `json:"id" db:"id"`
	SessionID      string        `json:"session_id" db:"session_id"`
	SnapshotNumber int           `json:"snapshot_number" db:"snapshot_number"`
	Source         Source        `json:"source" db:"source"`
	Label          *string       `json:"label,omitempty" db:"label"`
	DocContent     string        `json:"doc_content" db:"doc_content"`
	DocSpec        map[string]any `json:"doc_spec" db:"doc_spec"`
	Pages          []PageCapture `json:"pages" db:"pages"`
	Pinned         bool          `json:"is_pinned" db:"pinned"`
	Released       bool          `json:"is_released" db:"released"`
	ContentCleared bool          `json:"content_cleared" db:"content_cleared"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// Available reports whether the snapshot is part of the working set.
func (s *ProjectSnapshot) Available() bool {
	return !s.Released
}

// PageHTML returns the captured html for a page id, if present.
func (s *ProjectSnapshot) PageHTML(pageID string) (string, bool) {
	for _, p := range s.Pages {
		if p.PageID == pageID {
			return p.HTML, true
		}
	}
	return "", false
}
