package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	tcs := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lower-cases", input: "El Gat", expected: "el gat"},
		{name: "collapses whitespace", input: "  el\t\tgat \n dorm  ", expected: "el gat dorm"},
		{name: "applies NFKC", input: "ﬁ", expected: "fi"},
		{name: "composes diacritics", input: "fe\u0301s", expected: "f\u00e9s"},
		{name: "empty", input: "   ", expected: ""},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeText(tc.input))
		})
	}
}

func TestWordTokenizer_Tokenize(t *testing.T) {
	tok := NewWordTokenizer()

	tcs := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "words and punctuation",
			input:    "El gat està content. El gos és feliç!",
			expected: []string{"el", "gat", "està", "content", ".", "el", "gos", "és", "feliç", "!"},
		},
		{
			name:     "apostrophes stay inside words",
			input:    "l'olor del mar",
			expected: []string{"l'olor", "del", "mar"},
		},
		{
			name:     "brackets and quotes",
			input:    `(hola) "adéu" [1]`,
			expected: []string{"(", "hola", ")", `"`, "adéu", `"`, "[", "1", "]"},
		},
		{
			name:     "unknown symbols are dropped",
			input:    "a @ b # c",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "empty",
			input:    "",
			expected: []string{},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Split(tok, tc.input))
		})
	}
}

func TestTokensToText(t *testing.T) {
	tcs := []struct {
		name     string
		tokens   []string
		expected string
	}{
		{name: "period attaches", tokens: []string{"el", "gat", "."}, expected: "el gat."},
		{name: "comma and question", tokens: []string{"si", ",", "no", "?"}, expected: "si, no?"},
		{name: "parentheses", tokens: []string{"a", "(", "b", ")", "c"}, expected: "a (b) c"},
		{name: "brackets", tokens: []string{"[", "x", "]"}, expected: "[x]"},
		{name: "empty", tokens: nil, expected: ""},
		{name: "single", tokens: []string{"hola"}, expected: "hola"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, TokensToText(tc.tokens))
		})
	}
}

func TestWordTokenizer_FormatIsBestEffortInverse(t *testing.T) {
	tok := NewWordTokenizer()
	text := "el gat dorm. el gos, però, juga (molt)!"

	assert.Equal(t, text, tok.Format(Split(tok, text)))
}

func TestCharTokenizer(t *testing.T) {
	tok := NewCharTokenizer()

	tokens := Split(tok, "Gat  és")
	assert.Equal(t, []string{"g", "a", "t", " ", "é", "s"}, tokens)
	assert.Equal(t, "gat és", tok.Format(tokens))
	assert.Empty(t, Split(tok, ""))
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	assert.Equal(t, []string{"char", "word"}, r.Names())

	word, err := r.Get("word")
	require.NoError(t, err)
	assert.Equal(t, "word", word.Name())

	_, err = r.Get("bpe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: char, word")
}
