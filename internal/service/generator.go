package service

import (
	"sort"

	"ngram-sandbox/internal/model/ngram"
	"ngram-sandbox/internal/service/tokenizer"

	"go.uber.org/zap"
)

// UnigramOrder marks tokens produced by the most-common-token base case
const UnigramOrder = 1

// ModelSet is a read-only group of models of different orders trained on
// the same corpus
type ModelSet struct {
	models map[int]*NGramModel
	orders []int // descending
}

// NewModelSet groups models by order. A later model replaces an earlier one
// of the same order.
func NewModelSet(models ...*NGramModel) *ModelSet {
	ms := &ModelSet{models: make(map[int]*NGramModel, len(models))}
	for _, m := range models {
		if m == nil {
			continue
		}
		if _, dup := ms.models[m.Order()]; !dup {
			ms.orders = append(ms.orders, m.Order())
		}
		ms.models[m.Order()] = m
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ms.orders)))
	return ms
}

// Get returns the model of the given order
func (ms *ModelSet) Get(order int) (*NGramModel, bool) {
	m, ok := ms.models[order]
	return m, ok
}

// Orders returns the available orders, highest first
func (ms *ModelSet) Orders() []int {
	out := make([]int, len(ms.orders))
	copy(out, ms.orders)
	return out
}

// MaxOrder returns the highest available order, or 0 for an empty set
func (ms *ModelSet) MaxOrder() int {
	if len(ms.orders) == 0 {
		return 0
	}
	return ms.orders[0]
}

// IsEmpty reports whether no model in the set has any training data
func (ms *ModelSet) IsEmpty() bool {
	for _, order := range ms.orders {
		if _, ok := ms.models[order].MostCommonToken(); ok {
			return false
		}
	}
	return true
}

// Tokenizer returns the tokenizer of the highest-order model
func (ms *ModelSet) Tokenizer() tokenizer.Tokenizer {
	if len(ms.orders) == 0 {
		return tokenizer.NewWordTokenizer()
	}
	return ms.models[ms.orders[0]].Tokenizer()
}

// Resolution is the outcome of walking the backoff chain for one prediction
// point
type Resolution struct {
	Order      int                     `json:"order"`
	Context    ngram.NGram             `json:"context"`
	Contexts   []ngram.ContextDistance `json:"contexts,omitempty"`
	Candidates []ngram.Candidate       `json:"candidates"`
}

// Step is one generated token together with how it was chosen
type Step struct {
	Token        string                  `json:"token"`
	Order        int                     `json:"order"`
	Context      ngram.NGram             `json:"context"`
	Contexts     []ngram.ContextDistance `json:"contexts,omitempty"`
	Alternatives []ngram.Candidate       `json:"alternatives"`
}

// Generator produces continuation tokens by backing off from the requested
// order to lower ones until some model has candidates
type Generator struct {
	models  *ModelSet
	sampler *Sampler
	logger  *zap.Logger
}

// NewGenerator creates a generator over a model set
func NewGenerator(models *ModelSet, sampler *Sampler, logger *zap.Logger) *Generator {
	if sampler == nil {
		sampler = NewSampler()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		models:  models,
		sampler: sampler,
		logger:  logger,
	}
}

// Models returns the model set the generator reads from
func (g *Generator) Models() *ModelSet {
	return g.models
}

// Resolve walks the chain order, order-1, ..., 2 for the end of tokens and
// returns the first candidate set found. An order is skipped when tokens are
// too short for its context, when a context token cannot be resolved, or
// when no candidates exist. The chain ends in the most common token, so it
// only fails when every model is empty.
func (g *Generator) Resolve(tokens []string, order int) (*Resolution, bool) {
	for k := order; k >= 2; k-- {
		m, ok := g.models.Get(k)
		if !ok || m.IsEmpty() {
			continue
		}

		width := k - 1
		if len(tokens) < width {
			continue
		}
		context, ok := m.ResolveContext(tokens[len(tokens)-width:])
		if !ok {
			continue
		}

		if backfill, limit := m.Backfill(); backfill {
			if res := m.WeightedCandidatesForContext(context, limit); res != nil && len(res.Candidates) > 0 {
				return &Resolution{Order: k, Context: context, Contexts: res.Contexts, Candidates: res.Candidates}, true
			}
			continue
		}

		if candidates := m.Candidates(context); len(candidates) > 0 {
			return &Resolution{Order: k, Context: context, Candidates: candidates}, true
		}
	}

	return g.unigram()
}

func (g *Generator) unigram() (*Resolution, bool) {
	for _, order := range g.models.Orders() {
		m, _ := g.models.Get(order)
		if token, ok := m.MostCommonToken(); ok {
			return &Resolution{
				Order:      UnigramOrder,
				Context:    ngram.NGram{},
				Candidates: []ngram.Candidate{{Token: token, Count: m.TokenCount(token), Prob: 1}},
			}, true
		}
	}
	return nil, false
}

// NextToken predicts one token to follow tokens. The second result is false
// when generation cannot continue.
func (g *Generator) NextToken(tokens []string, order int, temperature float64) (Step, bool) {
	res, ok := g.Resolve(tokens, order)
	if !ok {
		return Step{}, false
	}

	chosen, dist, ok := g.sampler.Pick(res.Candidates, temperature)
	if !ok {
		return Step{}, false
	}

	g.logger.Debug("Generated token",
		zap.String("token", chosen.Token),
		zap.Int("requested_order", order),
		zap.Int("order", res.Order),
		zap.String("context", res.Context.String()),
		zap.Int("candidates", len(res.Candidates)),
		zap.Float64("prob", chosen.Prob),
	)

	return Step{
		Token:        chosen.Token,
		Order:        res.Order,
		Context:      res.Context,
		Contexts:     res.Contexts,
		Alternatives: dist,
	}, true
}

// Generate appends up to n tokens to tokens, stopping early if generation
// cannot continue. The input slice is not modified.
func (g *Generator) Generate(tokens []string, n, order int, temperature float64) []Step {
	current := make([]string, len(tokens), len(tokens)+max(n, 0))
	copy(current, tokens)

	steps := make([]Step, 0, max(n, 0))
	for i := 0; i < n; i++ {
		step, ok := g.NextToken(current, order, temperature)
		if !ok {
			break
		}
		steps = append(steps, step)
		current = append(current, step.Token)
	}
	return steps
}

// Tokens extracts the generated tokens from steps
func Tokens(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Token
	}
	return out
}
