package config

const (
	// MaxLabelLength is the maximum length for snapshot labels.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255) and provide
	// reasonable UX (labels should be short and descriptive).
	MaxLabelLength = 255

	// MaxChangeSummaryLength is the maximum length for doc history change
	// summaries. Longer explanations belong in the doc content itself.
	MaxChangeSummaryLength = 500

	// MaxPageTitleLength is the maximum length for page titles.
	// Same as labels for consistency.
	MaxPageTitleLength = 255
)
