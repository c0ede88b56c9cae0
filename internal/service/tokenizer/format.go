package tokenizer

import "strings"

var (
	noSpaceBefore = map[string]bool{
		".": true, ",": true, "!": true, "?": true, ";": true,
		":": true, ")": true, "]": true, `"`: true,
	}
	noSpaceAfter = map[string]bool{
		"(": true, "[": true, `"`: true,
	}
)

// TokensToText joins word tokens with single spaces, except that closing
// punctuation attaches to the previous token and opening punctuation to the
// next one
func TokensToText(tokens []string) string {
	var b strings.Builder

	for i, token := range tokens {
		if i > 0 && !noSpaceBefore[token] && !noSpaceAfter[tokens[i-1]] {
			b.WriteByte(' ')
		}
		b.WriteString(token)
	}

	return b.String()
}
