package dump

// The six source tables this system recognizes, with their fixed column
// counts. The raw scan depends on these positions; anything else in the
// export is ignored.
const (
	TableSeries          = "series"
	TableTitles          = "titles"
	TableCanonicalAuthor = "canonical_author"
	TableAuthors         = "authors"
	TablePubContent      = "pub_content"
	TablePubs            = "pubs"
)

// ColumnCounts maps each recognized table to its expected column count.
var ColumnCounts = map[string]int{
	TableSeries:          6,
	TableTitles:          23,
	TableCanonicalAuthor: 4,
	TableAuthors:         16,
	TablePubContent:      4,
	TablePubs:            15,
}

// Column positions within each table's tuples.
const (
	seriesColID       = 0
	seriesColTitle    = 1
	seriesColParent   = 2
	seriesColType     = 3
	seriesColPosition = 4

	titleColID        = 0
	titleColTitle     = 1
	titleColSeriesID  = 5
	titleColSeriesNum = 6
	titleColCopyright = 7
	titleColType      = 9
	titleColParent    = 12
	titleColLanguage  = 16

	caColTitleID  = 1
	caColAuthorID = 2

	authorColID   = 0
	authorColName = 1

	pcColTitleID = 1
	pcColPubID   = 2

	pubColID         = 0
	pubColPages      = 5
	pubColFormat     = 6
	pubColISBN       = 8
	pubColFrontImage = 9
	pubColPrice      = 10
)
