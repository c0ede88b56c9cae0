package service

import (
	"math"
	"math/rand/v2"

	"ngram-sandbox/internal/model/ngram"
)

// RandSource yields uniform values in [0, 1). *rand.Rand satisfies it, and
// tests inject fixed sequences.
type RandSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Sampler draws next tokens from candidate distributions
type Sampler struct {
	rng  RandSource
	topK int
}

// SamplerOption configures a Sampler
type SamplerOption func(*Sampler)

// WithRand replaces the random source
func WithRand(r RandSource) SamplerOption {
	return func(s *Sampler) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithTopK keeps only the k most probable candidates before sampling.
// Zero disables the cut.
func WithTopK(k int) SamplerOption {
	return func(s *Sampler) { s.topK = max(k, 0) }
}

// NewSampler creates a sampler backed by the global random source
func NewSampler(opts ...SamplerOption) *Sampler {
	s := &Sampler{rng: globalRand{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyTemperature raises each probability to 1/temperature and
// renormalizes. Temperatures below one sharpen the distribution, above one
// flatten it. A temperature of zero or less returns the input unchanged;
// greedy selection is the caller's job. An all-zero input is also returned
// unchanged.
//
// Powers are taken relative to the largest probability in log space, so the
// most probable candidate keeps weight one and tiny temperatures cannot
// underflow every weight to zero.
func ApplyTemperature(candidates []ngram.Candidate, temperature float64) []ngram.Candidate {
	out := make([]ngram.Candidate, len(candidates))
	copy(out, candidates)
	if len(out) == 0 || temperature <= 0 {
		return out
	}

	var pmax float64
	for _, c := range out {
		pmax = max(pmax, c.Prob)
	}
	if pmax <= 0 {
		return out
	}

	logMax := math.Log(pmax)
	var total float64
	for i := range out {
		if out[i].Prob <= 0 {
			out[i].Prob = 0
			continue
		}
		out[i].Prob = math.Exp((math.Log(out[i].Prob) - logMax) / temperature)
		total += out[i].Prob
	}

	for i := range out {
		out[i].Prob /= total
	}
	return out
}

// Sample walks the candidates in order, subtracting each probability from a
// uniform draw, and returns the first candidate that takes it to zero or
// below. If rounding leaves some of the draw over, the last candidate wins.
func (s *Sampler) Sample(candidates []ngram.Candidate) (ngram.Candidate, bool) {
	if len(candidates) == 0 {
		return ngram.Candidate{}, false
	}

	threshold := s.rng.Float64()
	for _, c := range candidates {
		threshold -= c.Prob
		if threshold <= 0 {
			return c, true
		}
	}
	return candidates[len(candidates)-1], true
}

// Pick selects one candidate at the given temperature and also returns the
// distribution it was drawn from. At temperature zero or below the most
// probable candidate is taken.
func (s *Sampler) Pick(candidates []ngram.Candidate, temperature float64) (ngram.Candidate, []ngram.Candidate, bool) {
	if len(candidates) == 0 {
		return ngram.Candidate{}, nil, false
	}

	pool := s.truncate(candidates)
	if temperature <= 0 {
		best := pool[0]
		for _, c := range pool[1:] {
			if c.Prob > best.Prob {
				best = c
			}
		}
		return best, pool, true
	}

	adjusted := ApplyTemperature(pool, temperature)
	chosen, ok := s.Sample(adjusted)
	return chosen, adjusted, ok
}

// truncate applies the top-k cut and renormalizes what is left
func (s *Sampler) truncate(candidates []ngram.Candidate) []ngram.Candidate {
	if s.topK == 0 || len(candidates) <= s.topK {
		return candidates
	}

	pool := make([]ngram.Candidate, len(candidates))
	copy(pool, candidates)
	sortCandidates(pool)
	pool = pool[:s.topK]

	var total float64
	for _, c := range pool {
		total += c.Prob
	}
	if total == 0 {
		return pool
	}
	for i := range pool {
		pool[i].Prob /= total
	}
	return pool
}
