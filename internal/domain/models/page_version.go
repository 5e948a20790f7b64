package models

import "time"

// PageVersion is one rendered-HTML version of a page. On release the html
// payload is cleared, mirroring ProjectSnapshot.
type PageVersion struct {
	ID             string    `json:"id" db:"id"`
	PageID         string    `json:"page_id" db:"page_id"`
	VersionNumber  int       `json:"version_number" db:"version_number"`
	Source         Source    `json:"source" db:"source"`
	HTML           string    `json:"html" db:"html"`
	Pinned         bool      `json:"is_pinned" db:"pinned"`
	Released       bool      `json:"is_released" db:"released"`
	ContentCleared bool      `json:"content_cleared" db:"content_cleared"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Available reports whether the version is part of the working set.
func (v *PageVersion) Available() bool {
	return !v.Released
}
