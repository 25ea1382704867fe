package domain

// Work types in the source catalog that count as standalone books.
// COLLECTION and OMNIBUS are deliberately excluded to avoid duplicate entries.
const (
	WorkNovel        = "NOVEL"
	WorkNovella      = "NOVELLA"
	WorkShortFiction = "SHORTFICTION"
)

// IncludedWorkTypes is the closed set of work types eligible for import.
var IncludedWorkTypes = map[string]bool{
	WorkNovel:        true,
	WorkNovella:      true,
	WorkShortFiction: true,
}

// SeriesRef is a read-only snapshot of a series record in the source catalog.
type SeriesRef struct {
	ID       int64
	Title    string
	ParentID *int64
	Position *int64
	Type     *string
}

// TitleRef is a read-only snapshot of a work record in the source catalog.
// Records that are sub-parts of another title or tagged with a non-primary
// language never surface as TitleRefs.
type TitleRef struct {
	ID        int64
	Title     string
	SeriesID  int64
	SeriesNum *string // position within series, free text, may be fractional
	Copyright *string // date string; year is its leading 4 digits
	Type      string
}

// EditionRef is a read-only snapshot of one published edition of a work.
type EditionRef struct {
	ID       int64
	TitleID  int64
	Format   *string // hc, tp, ebook, ...
	ISBN     *string
	CoverURL *string
	Pages    *string
	Price    *string
}

// AuthorRef is a read-only snapshot of an author record in the source catalog.
type AuthorRef struct {
	ID   int64
	Name string
}
