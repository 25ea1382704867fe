package domain

import (
	"regexp"
	"strings"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize derives the canonical matching key from a display name:
// lowercase, strip characters that are neither word characters nor
// whitespace, collapse whitespace runs to one space, trim.
//
// Every matching site (series names, book titles, author names) must use
// this exact function; it is idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	text = nonWordRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizePtr normalizes the pointee, returning nil for nil or empty input.
func NormalizePtr(text *string) *string {
	if text == nil || *text == "" {
		return nil
	}
	n := Normalize(*text)
	return &n
}
