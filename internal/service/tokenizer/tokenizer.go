package tokenizer

import (
	"fmt"
	"sort"
	"strings"
)

// Tokenizer turns corpus text into the token sequence the n-gram models are
// trained on, and formats generated tokens back into readable text
type Tokenizer interface {
	// Normalize canonicalizes raw text (Unicode form, case, whitespace)
	Normalize(raw string) string

	// Tokenize splits normalized text into tokens
	Tokenize(normalized string) []string

	// Format joins tokens back into surface text
	Format(tokens []string) string

	// Name returns the registry name of this tokenizer
	Name() string
}

// Split normalizes and tokenizes raw text in one step
func Split(t Tokenizer, raw string) []string {
	return t.Tokenize(t.Normalize(raw))
}

// Registry manages tokenizers by name
type Registry struct {
	tokenizers map[string]Tokenizer
}

// NewRegistry creates an empty tokenizer registry
func NewRegistry() *Registry {
	return &Registry{
		tokenizers: make(map[string]Tokenizer),
	}
}

// NewDefaultRegistry returns a registry holding the word and character tokenizers
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewWordTokenizer())
	r.Register(NewCharTokenizer())
	return r
}

// Register adds a tokenizer under its own name
func (r *Registry) Register(t Tokenizer) {
	r.tokenizers[t.Name()] = t
}

// Get returns the tokenizer registered under name
func (r *Registry) Get(name string) (Tokenizer, error) {
	t, ok := r.tokenizers[name]
	if !ok {
		return nil, fmt.Errorf("no tokenizer registered with name: %s (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return t, nil
}

// Names returns the registered tokenizer names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tokenizers))
	for name := range r.tokenizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
