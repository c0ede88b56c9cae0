package util

import (
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Levenshtein returns the edit distance between two tokens, counted in runes
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	return fuzzy.LevenshteinDistance(a, b)
}

// ContextDistance scores two contexts position by position and sums the
// per-token distances. Positions present in only one context cost the rune
// length of that token.
func ContextDistance(a, b []string) int {
	n := max(len(a), len(b))

	var distance int
	for i := 0; i < n; i++ {
		switch {
		case i >= len(a):
			distance += utf8.RuneCountInString(b[i])
		case i >= len(b):
			distance += utf8.RuneCountInString(a[i])
		default:
			distance += Levenshtein(a[i], b[i])
		}
	}

	return distance
}
