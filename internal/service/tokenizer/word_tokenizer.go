package tokenizer

import "regexp"

// Words are runs of letters, marks, digits and apostrophes; each listed
// punctuation mark is a token of its own. Anything else is dropped.
var wordPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}']+|[.,!?;:"()\[\]-]`)

// WordTokenizer implements word-level tokenization of natural-language text
type WordTokenizer struct{}

// NewWordTokenizer creates a new word tokenizer
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

func (t *WordTokenizer) Normalize(raw string) string {
	return NormalizeText(raw)
}

func (t *WordTokenizer) Tokenize(normalized string) []string {
	if normalized == "" {
		return []string{}
	}
	matches := wordPattern.FindAllString(normalized, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}

func (t *WordTokenizer) Format(tokens []string) string {
	return TokensToText(tokens)
}

func (t *WordTokenizer) Name() string {
	return "word"
}
