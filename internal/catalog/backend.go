// Package catalog defines the query contract over the source catalog export
// and the shared eligibility rules both backend implementations apply.
package catalog

import (
	"context"

	"github.com/shelfmark/seriesdb/internal/domain"
)

// PrimaryLanguageID is the source catalog's language id for English records.
// Title rows with no language tag are treated as primary-language.
const PrimaryLanguageID = 17

// Backend answers lookups against a source catalog export. Two
// implementations exist: the indexed SQLite snapshot (random access) and the
// raw dump scan (one full file pass per query). Both must return identical
// logical results for identical inputs; callers never branch on which one is
// active.
type Backend interface {
	// FindSeriesByName maps each input name (original casing preserved in
	// the keys) to its series record, case-insensitive exact match only.
	// Unmatched names are simply absent from the result.
	FindSeriesByName(ctx context.Context, names []string) (map[string]domain.SeriesRef, error)

	// FindSeriesByID maps each known identifier to its series record.
	FindSeriesByID(ctx context.Context, ids []int64) (map[int64]domain.SeriesRef, error)

	// FindChildSeries maps each parent id to the series whose parent it is.
	FindChildSeries(ctx context.Context, parentIDs []int64) (map[int64][]domain.SeriesRef, error)

	// FindTitles maps each series id to its eligible titles: primary
	// language, not a sub-part of another title, allowed work type, and not
	// excluded by the title filter.
	FindTitles(ctx context.Context, seriesIDs []int64) (map[int64][]domain.TitleRef, error)

	// FindTitleAuthors maps title id to its canonical author id. The
	// distinct author set is derived by the caller from the map values.
	FindTitleAuthors(ctx context.Context, titleIDs []int64) (map[int64]int64, error)

	// FindAuthorNames maps author id to canonical display name.
	FindAuthorNames(ctx context.Context, authorIDs []int64) (map[int64]string, error)

	// FindEditions maps title id to its selected edition (SelectEdition
	// applied over all editions of the title). Titles with no editions are
	// absent from the result.
	FindEditions(ctx context.Context, titleIDs []int64) (map[int64]domain.EditionRef, error)

	Close() error
}

// TitleEligible reports whether a raw title row may surface as a TitleRef.
// titleParent 0 and NULL are equivalent "no parent" sentinels in the source
// catalog; that equivalence is preserved here, not fixed.
func TitleEligible(ttype string, titleParent *int64, language *int64) bool {
	if !domain.IncludedWorkTypes[ttype] {
		return false
	}
	if titleParent != nil && *titleParent != 0 {
		return false
	}
	if language != nil && *language != PrimaryLanguageID {
		return false
	}
	return true
}
