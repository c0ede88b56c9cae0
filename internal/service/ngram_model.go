package service

import (
	"sort"
	"sync"

	"ngram-sandbox/internal/model/ngram"
	"ngram-sandbox/internal/service/tokenizer"
	"ngram-sandbox/internal/util"

	lru "github.com/hashicorp/golang-lru"
)

const (
	// DefaultBackfillLimit is the number of nearby contexts blended for an
	// unseen context
	DefaultBackfillLimit = 3

	// DefaultResolveCacheSize bounds the memo of fuzzy token resolutions
	DefaultResolveCacheSize = 1024

	// backfillMinOrder is the lowest order that backfills sparse contexts
	// unless configured otherwise
	backfillMinOrder = 4
)

// contextStats holds the next-token counts observed after one context
type contextStats struct {
	context ngram.NGram
	next    map[string]int
	order   []string // next tokens in first-seen order
	total   int
}

func (cs *contextStats) add(token string) {
	if _, seen := cs.next[token]; !seen {
		cs.order = append(cs.order, token)
	}
	cs.next[token]++
	cs.total++
}

func (cs *contextStats) candidates() []ngram.Candidate {
	candidates := make([]ngram.Candidate, 0, len(cs.order))
	for _, token := range cs.order {
		count := cs.next[token]
		candidates = append(candidates, ngram.Candidate{
			Token: token,
			Count: count,
			Prob:  float64(count) / float64(cs.total),
		})
	}
	sortCandidates(candidates)
	return candidates
}

// NGramModel stores the frequency table of one n-gram order. The table is a
// single map from the joined context to its next-token counts.
type NGramModel struct {
	order         int                      // N-gram size
	tokenizer     tokenizer.Tokenizer      // Used by Train
	backfill      bool                     // Blend nearby contexts for unseen ones
	backfillLimit int                      // Contexts blended when backfilling
	contexts      map[string]*contextStats // context key -> next-token counts
	keys          []string                 // context keys in first-seen order
	vocab         *vocabulary              // Distinct tokens + unigram counts
	resolved      *lru.Cache               // OOV token -> resolved vocabulary token
	totalTokens   int                      // Tokens in the last training pass
	mu            sync.RWMutex             // Protects all of the above
}

// ModelOption configures an NGramModel
type ModelOption func(*NGramModel)

// WithBackfill enables closest-context blending with the given number of
// contexts. A limit of zero or less disables it.
func WithBackfill(limit int) ModelOption {
	return func(m *NGramModel) {
		m.backfill = limit > 0
		m.backfillLimit = limit
	}
}

// WithResolveCacheSize sets the size of the fuzzy resolution memo. Zero
// disables memoization.
func WithResolveCacheSize(size int) ModelOption {
	return func(m *NGramModel) {
		m.resolved = nil
		if size > 0 {
			// lru.New only fails for non-positive sizes
			m.resolved, _ = lru.New(size)
		}
	}
}

// NewNGramModel creates an empty model of the given order. Orders below 2
// default to bigrams.
func NewNGramModel(order int, tok tokenizer.Tokenizer, opts ...ModelOption) *NGramModel {
	if order < 2 {
		order = 2
	}
	if tok == nil {
		tok = tokenizer.NewWordTokenizer()
	}

	m := &NGramModel{
		order:     order,
		tokenizer: tok,
		contexts:  make(map[string]*contextStats),
		vocab:     newVocabulary(0),
	}
	if order >= backfillMinOrder {
		m.backfill = true
		m.backfillLimit = DefaultBackfillLimit
	}
	WithResolveCacheSize(DefaultResolveCacheSize)(m)

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Train discards all previous state and rebuilds the tables from text
func (m *NGramModel) Train(text string) {
	m.TrainTokens(tokenizer.Split(m.tokenizer, text))
}

// TrainTokens discards all previous state and rebuilds the tables from an
// already tokenized corpus
func (m *NGramModel) TrainTokens(tokens []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contexts = make(map[string]*contextStats)
	m.keys = nil
	m.vocab = newVocabulary(len(tokens))
	m.totalTokens = len(tokens)
	if m.resolved != nil {
		m.resolved.Purge()
	}

	for _, token := range tokens {
		m.vocab.add(token)
	}

	width := m.order - 1
	for i := 0; i+width < len(tokens); i++ {
		context := ngram.NGram(tokens[i : i+width])
		key := context.Key()

		cs, ok := m.contexts[key]
		if !ok {
			cs = &contextStats{
				context: context.Clone(),
				next:    make(map[string]int),
			}
			m.contexts[key] = cs
			m.keys = append(m.keys, key)
		}
		cs.add(tokens[i+width])
	}
}

// Order returns the n-gram size
func (m *NGramModel) Order() int {
	return m.order
}

// Tokenizer returns the tokenizer used for training
func (m *NGramModel) Tokenizer() tokenizer.Tokenizer {
	return m.tokenizer
}

// Backfill reports whether unseen contexts are answered by blending the
// nearest trained contexts, and how many of them
func (m *NGramModel) Backfill() (bool, int) {
	return m.backfill, m.backfillLimit
}

// IsEmpty reports whether the model has no trained context
func (m *NGramModel) IsEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.contexts) == 0
}

// Vocabulary returns the distinct training tokens in first-seen order
func (m *NGramModel) Vocabulary() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.vocab.tokens))
	copy(out, m.vocab.tokens)
	return out
}

// ResolveToken maps any token onto the vocabulary: tokens already in it are
// returned unchanged, others map to the vocabulary token at minimum edit
// distance. It fails only for an empty token or an empty vocabulary.
func (m *NGramModel) ResolveToken(token string) (string, bool) {
	if token == "" {
		return "", false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.resolveLocked(token)
}

func (m *NGramModel) resolveLocked(token string) (string, bool) {
	if m.vocab.contains(token) {
		return token, true
	}
	if m.resolved != nil {
		if v, ok := m.resolved.Get(token); ok {
			return v.(string), true
		}
	}

	best, ok := m.vocab.closest(token)
	if ok && m.resolved != nil {
		m.resolved.Add(token, best)
	}
	return best, ok
}

// ResolveContext resolves every position of a context independently
func (m *NGramModel) ResolveContext(context ngram.NGram) (ngram.NGram, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resolved := make(ngram.NGram, len(context))
	for i, token := range context {
		if token == "" {
			return nil, false
		}
		r, ok := m.resolveLocked(token)
		if !ok {
			return nil, false
		}
		resolved[i] = r
	}
	return resolved, true
}

// MostCommonToken returns the most frequent token of the training corpus
func (m *NGramModel) MostCommonToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.vocab.mostCommon()
}

// TokenCount returns how often token occurred in the training corpus
func (m *NGramModel) TokenCount(token string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.vocab.counts[token]
}

// Candidates returns the next tokens observed after exactly this context,
// most probable first. Unseen contexts yield an empty slice.
func (m *NGramModel) Candidates(context ngram.NGram) []ngram.Candidate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.candidatesLocked(context)
}

func (m *NGramModel) candidatesLocked(context ngram.NGram) []ngram.Candidate {
	if len(context) != m.order-1 {
		return []ngram.Candidate{}
	}
	cs, ok := m.contexts[context.Key()]
	if !ok {
		return []ngram.Candidate{}
	}
	return cs.candidates()
}

// FindClosestContext scans every trained context and returns the one with
// the smallest component-wise edit distance to the query. The scan is
// O(distinct contexts) per call.
func (m *NGramModel) FindClosestContext(context ngram.NGram) (ngram.NGram, int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *contextStats
	bestDistance := 0
	for _, key := range m.keys {
		cs := m.contexts[key]
		d := util.ContextDistance(context, cs.context)
		if best == nil || d < bestDistance {
			best = cs
			bestDistance = d
		}
		if bestDistance == 0 {
			break
		}
	}

	if best == nil {
		return nil, 0, false
	}
	return best.context.Clone(), bestDistance, true
}

// ClosestContexts returns up to limit trained contexts ordered by edit
// distance to the query. Contexts at equal distance keep first-seen order.
func (m *NGramModel) ClosestContexts(context ngram.NGram, limit int) []ngram.ContextDistance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.closestLocked(context, limit)
}

func (m *NGramModel) closestLocked(context ngram.NGram, limit int) []ngram.ContextDistance {
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}

	all := make([]ngram.ContextDistance, 0, len(m.keys))
	for _, key := range m.keys {
		cs := m.contexts[key]
		all = append(all, ngram.ContextDistance{
			Context:  cs.context.Clone(),
			Distance: util.ContextDistance(context, cs.context),
		})
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Distance < all[j].Distance
	})

	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// CandidatesForContext returns the candidates of the exact context if it was
// trained, otherwise those of the single closest trained context. It returns
// nil for an empty model.
func (m *NGramModel) CandidatesForContext(context ngram.NGram) *ngram.ContextResult {
	if exact := m.Candidates(context); len(exact) > 0 {
		return &ngram.ContextResult{Context: context.Clone(), Candidates: exact}
	}

	closest, _, ok := m.FindClosestContext(context)
	if !ok {
		return nil
	}
	candidates := m.Candidates(closest)
	if len(candidates) == 0 {
		return nil
	}
	return &ngram.ContextResult{Context: closest, Candidates: candidates}
}

// WeightedCandidatesForContext returns the exact candidates of a trained
// context unchanged. For an unseen context it blends the limit nearest
// trained contexts: each contributes weight*prob per candidate, with
// weight = 1/(1+distance), and the scores are normalized to sum to one.
// Blended candidates carry a zero count. It returns nil when nothing can be
// produced.
func (m *NGramModel) WeightedCandidatesForContext(context ngram.NGram, limit int) *ngram.WeightedResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.contexts) == 0 {
		return nil
	}

	if exact := m.candidatesLocked(context); len(exact) > 0 {
		return &ngram.WeightedResult{
			Contexts:   []ngram.ContextDistance{{Context: context.Clone(), Distance: 0}},
			Candidates: exact,
		}
	}

	closest := m.closestLocked(context, limit)
	if len(closest) == 0 {
		return nil
	}

	scores := make(map[string]float64)
	var tokens []string
	for _, cd := range closest {
		weight := cd.Weight()
		for _, c := range m.contexts[cd.Context.Key()].candidates() {
			if _, seen := scores[c.Token]; !seen {
				tokens = append(tokens, c.Token)
			}
			scores[c.Token] += c.Prob * weight
		}
	}

	var total float64
	for _, token := range tokens {
		total += scores[token]
	}
	if total == 0 {
		return nil
	}

	candidates := make([]ngram.Candidate, 0, len(tokens))
	for _, token := range tokens {
		candidates = append(candidates, ngram.Candidate{Token: token, Prob: scores[token] / total})
	}
	sortCandidates(candidates)

	return &ngram.WeightedResult{Contexts: closest, Candidates: candidates}
}

// AllNGrams enumerates every learned (context, next) pair, most probable first
func (m *NGramModel) AllNGrams() []ngram.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.entriesLocked(func(*contextStats) bool { return true })
}

// NGramsFrom enumerates the learned pairs whose context ends with token
func (m *NGramModel) NGramsFrom(token string) []ngram.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.entriesLocked(func(cs *contextStats) bool {
		return cs.context.LastToken() == token
	})
}

func (m *NGramModel) entriesLocked(keep func(*contextStats) bool) []ngram.Entry {
	entries := make([]ngram.Entry, 0)
	for _, key := range m.keys {
		cs := m.contexts[key]
		if !keep(cs) {
			continue
		}
		for _, next := range cs.order {
			count := cs.next[next]
			entries = append(entries, ngram.Entry{
				Context: cs.context.Clone(),
				Next:    next,
				Count:   count,
				Prob:    float64(count) / float64(cs.total),
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Prob > entries[j].Prob
	})
	return entries
}

// Stats returns statistics about the model
func (m *NGramModel) Stats() ModelStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ngrams := 0
	for _, cs := range m.contexts {
		ngrams += len(cs.next)
	}

	return ModelStats{
		N:              m.order,
		VocabularySize: m.vocab.size(),
		ContextCount:   len(m.contexts),
		NGramCount:     ngrams,
		TotalTokens:    m.totalTokens,
		Backfill:       m.backfill,
		Tokenizer:      m.tokenizer.Name(),
	}
}

// ModelStats contains statistics about an n-gram model
type ModelStats struct {
	N              int    `json:"n"`
	VocabularySize int    `json:"vocabulary_size"`
	ContextCount   int    `json:"context_count"`
	NGramCount     int    `json:"ngram_count"`
	TotalTokens    int    `json:"total_tokens"`
	Backfill       bool   `json:"backfill"`
	Tokenizer      string `json:"tokenizer"`
}

// sortCandidates orders candidates by descending probability, keeping the
// relative order of equal probabilities
func sortCandidates(candidates []ngram.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Prob > candidates[j].Prob
	})
}
