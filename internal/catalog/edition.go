package catalog

import (
	"slices"

	"github.com/shelfmark/seriesdb/internal/domain"
)

// formatRank orders edition formats: physical hardcover and trade paperback
// over e-book over everything else.
func formatRank(format *string) int {
	if format == nil {
		return 0
	}
	switch *format {
	case "hc", "tp":
		return 2
	case "ebook":
		return 1
	default:
		return 0
	}
}

// editionRank is (has identifying code, format rank), both compared
// descending.
func editionRank(e domain.EditionRef) (int, int) {
	hasISBN := 0
	if e.ISBN != nil && *e.ISBN != "" {
		hasISBN = 1
	}
	return hasISBN, formatRank(e.Format)
}

// SelectEdition picks the canonical edition of a work from its candidates.
// Ranking: has-ISBN first, then format rank; the first-seen candidate wins
// ties, which keeps the choice deterministic for a given input order.
// Returns false when there are no candidates.
func SelectEdition(editions []domain.EditionRef) (domain.EditionRef, bool) {
	if len(editions) == 0 {
		return domain.EditionRef{}, false
	}

	best := editions[0]
	bestISBN, bestFormat := editionRank(best)
	for _, e := range editions[1:] {
		isbn, format := editionRank(e)
		if isbn > bestISBN || (isbn == bestISBN && format > bestFormat) {
			best, bestISBN, bestFormat = e, isbn, format
		}
	}
	return best, true
}

// BuildEditionIndex resolves each title to its selected edition. Candidates
// are considered in ascending edition-id order so both backends break rank
// ties the same way regardless of how their scans ordered the links.
func BuildEditionIndex(titleToEditions map[int64][]int64, editions map[int64]domain.EditionRef) map[int64]domain.EditionRef {
	selected := make(map[int64]domain.EditionRef, len(titleToEditions))
	for titleID, editionIDs := range titleToEditions {
		ids := slices.Clone(editionIDs)
		slices.Sort(ids)

		candidates := make([]domain.EditionRef, 0, len(ids))
		for _, id := range ids {
			if e, ok := editions[id]; ok {
				candidates = append(candidates, e)
			}
		}
		if best, ok := SelectEdition(candidates); ok {
			best.TitleID = titleID
			selected[titleID] = best
		}
	}
	return selected
}
