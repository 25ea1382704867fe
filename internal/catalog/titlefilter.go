package catalog

import (
	"regexp"
	"strings"
)

// Structural patterns that mark a title as excerpt/appendix/fragment noise
// rather than a standalone book. This is a closed, hand-curated denylist;
// extending it is a content-curation task, not an algorithmic one.
// All matching is case-insensitive.
var (
	excludedPrefixes = []string{
		"excerpt from",
		"appendix:",
		"deleted scene",
		"endnote",
		"prelude to",
		"dramatis personae",
		"the story so far",
		"first draft:",
		"edits:",
	}

	excludedSubstrings = []string{
		"(excerpt)",
		"extended excerpt",
		"prologue (",
		"untitled (",
		": prologue",
		": chapter",
	}

	// Whole titles like "Cultivation System" or "Gamer System".
	systemTitleRe = regexp.MustCompile(`^\w+ system$`)
)

// IncludeTitle reports whether a work title is a genuine standalone book.
// Empty titles and any single pattern match exclude the title.
func IncludeTitle(title string) bool {
	if strings.TrimSpace(title) == "" {
		return false
	}
	lower := strings.ToLower(title)

	for _, p := range excludedPrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	for _, s := range excludedSubstrings {
		if strings.Contains(lower, s) {
			return false
		}
	}
	return !systemTitleRe.MatchString(lower)
}
