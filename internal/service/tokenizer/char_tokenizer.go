package tokenizer

import "strings"

// CharTokenizer treats every rune of the normalized text as a token,
// including the single spaces left by normalization
type CharTokenizer struct{}

// NewCharTokenizer creates a new character tokenizer
func NewCharTokenizer() *CharTokenizer {
	return &CharTokenizer{}
}

func (t *CharTokenizer) Normalize(raw string) string {
	return NormalizeText(raw)
}

func (t *CharTokenizer) Tokenize(normalized string) []string {
	tokens := make([]string, 0, len(normalized))
	for _, r := range normalized {
		tokens = append(tokens, string(r))
	}
	return tokens
}

func (t *CharTokenizer) Format(tokens []string) string {
	return strings.Join(tokens, "")
}

func (t *CharTokenizer) Name() string {
	return "char"
}
