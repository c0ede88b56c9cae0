package ngram

import "strings"

// keySeparator joins context tokens into a single map key. The unit separator
// cannot appear in a normalized token.
const keySeparator = "\x1f"

// NGram represents an n-gram (sequence of n tokens)
type NGram []string

// String returns the n-gram as a space-separated string
func (ng NGram) String() string {
	return strings.Join(ng, " ")
}

// Key returns the canonical table key for the n-gram
func (ng NGram) Key() string {
	return strings.Join(ng, keySeparator)
}

// LastToken returns the last token in the n-gram
func (ng NGram) LastToken() string {
	if len(ng) == 0 {
		return ""
	}
	return ng[len(ng)-1]
}

// Clone returns a copy that does not alias the receiver's backing array
func (ng NGram) Clone() NGram {
	out := make(NGram, len(ng))
	copy(out, ng)
	return out
}

// Candidate is a possible next token for a context. Count is zero for
// candidates blended from several contexts.
type Candidate struct {
	Token string  `json:"token"`
	Count int     `json:"count"`
	Prob  float64 `json:"prob"`
}

// Entry is one learned (context, next) pair, used for display
type Entry struct {
	Context NGram   `json:"context"`
	Next    string  `json:"next"`
	Count   int     `json:"count"`
	Prob    float64 `json:"prob"`
}

// ContextDistance pairs a trained context with its edit distance to a query
type ContextDistance struct {
	Context  NGram `json:"context"`
	Distance int   `json:"distance"`
}

// Weight is the blending weight of a context at this distance
func (cd ContextDistance) Weight() float64 {
	return 1 / (1 + float64(cd.Distance))
}

// ContextResult holds the candidates of a single resolved context
type ContextResult struct {
	Context    NGram       `json:"context"`
	Candidates []Candidate `json:"candidates"`
}

// WeightedResult holds candidates blended from the nearest trained contexts
type WeightedResult struct {
	Contexts   []ContextDistance `json:"contexts"`
	Candidates []Candidate       `json:"candidates"`
}
