package tokenizer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText applies NFKC, lower-cases without language-specific rules,
// collapses whitespace runs to one space and trims the ends
func NormalizeText(text string) string {
	// A Caser keeps state, so one is built per call
	lowered := cases.Lower(language.Und).String(norm.NFKC.String(text))
	return strings.Join(strings.Fields(lowered), " ")
}
