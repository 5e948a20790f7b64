package models

import "time"

// ProductDoc is the live product specification document of a session.
// Every content mutation produces a ProductDocHistory version; the doc
// itself only carries the current state and a pointer to it.
type ProductDoc struct {
	ID               string         `json:"id" db:"id"`
	SessionID        string         `json:"session_id" db:"session_id"`
	Content          string         `json:"content" db:"content"`
	Spec             map[string]any `json:"spec" db:"spec"`
	CurrentHistoryID *string        `json:"current_history_id" db:"current_history_id"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// Page is one live generated page of a session.
type Page struct {
	ID               string    `json:"id" db:"id"`
	SessionID        string    `json:"session_id" db:"session_id"`
	Title            string    `json:"title" db:"title"`
	HTML             string    `json:"html" db:"html"`
	CurrentVersionID *string   `json:"current_version_id" db:"current_version_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
