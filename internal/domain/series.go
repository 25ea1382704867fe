package domain

import (
	"time"

	"github.com/google/uuid"
)

// Confidence scores assigned by the import engine.
const (
	ImportConfidence     = 0.95
	ParentStubConfidence = 0.9
)

// Series is a destination-store series record.
// NameNormalized is always Normalize(Name) and must be recomputed whenever
// Name changes; matching queries by ExternalID first, then NameNormalized.
type Series struct {
	ID               uuid.UUID
	Name             string
	NameNormalized   string
	Author           *string
	AuthorNormalized *string
	TotalBooks       int
	YearStart        *int
	YearEnd          *int
	Confidence       float64
	Verified         bool
	ExternalID       *string
	Genre            *string
	ParentSeriesID   *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SeriesBook is a destination-store book record owned by a Series.
type SeriesBook struct {
	ID              uuid.UUID
	SeriesID        uuid.UUID
	Position        *float64
	Title           string
	TitleNormalized string
	Author          *string
	YearPublished   *int
	ISBN            *string
	Confidence      float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SourceRecord is an audit row capturing the raw resolved entry a series was
// imported from. Written once per newly inserted series, never updated.
type SourceRecord struct {
	ID        uuid.UUID
	SeriesID  uuid.UUID
	Source    string
	RawData   []byte
	BookCount int
	FetchedAt time.Time
}
