package domain

// UnknownAuthor is the fallback attribution when a title has no author link.
const UnknownAuthor = "Unknown"

// ResolvedBook is one book of a resolved series, assembled from the source
// catalog's title, author, and edition records.
type ResolvedBook struct {
	Title         string   `json:"title"`
	Position      *float64 `json:"position"`
	Author        string   `json:"author"`
	Year          *int     `json:"year"`
	ISBN          *string  `json:"isbn"`
	CoverURL      *string  `json:"cover_url"`
	Pages         *string  `json:"pages"`
	SourceTitleID int64    `json:"source_title_id"`
}

// ParentInfo identifies a resolved entry's parent series in the source catalog.
type ParentInfo struct {
	SeriesID int64  `json:"series_id"`
	Title    string `json:"title"`
}

// ResolvedSeriesEntry is one series ready for import: its source identifier,
// display name, ordered book list, and parent reference when one was resolved.
type ResolvedSeriesEntry struct {
	SeriesID int64          `json:"series_id"`
	Title    string         `json:"title"`
	Books    []ResolvedBook `json:"books"`
	Parent   *ParentInfo    `json:"parent,omitempty"`
}
