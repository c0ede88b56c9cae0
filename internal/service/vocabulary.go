package service

import (
	"ngram-sandbox/internal/util"

	"github.com/bits-and-blooms/bloom/v3"
)

const vocabularyFalsePositiveRate = 0.01

// vocabulary tracks the distinct tokens of a training pass in first-seen
// order together with their unigram counts. A bloom filter answers most
// out-of-vocabulary membership tests without touching the map.
type vocabulary struct {
	tokens []string
	counts map[string]int
	filter *bloom.BloomFilter
}

func newVocabulary(expectedItems int) *vocabulary {
	return &vocabulary{
		tokens: make([]string, 0, expectedItems),
		counts: make(map[string]int, expectedItems),
		filter: bloom.NewWithEstimates(uint(max(expectedItems, 1)), vocabularyFalsePositiveRate),
	}
}

func (v *vocabulary) add(token string) {
	if _, seen := v.counts[token]; !seen {
		v.tokens = append(v.tokens, token)
		v.filter.AddString(token)
	}
	v.counts[token]++
}

func (v *vocabulary) contains(token string) bool {
	if !v.filter.TestString(token) {
		return false
	}
	_, ok := v.counts[token]
	return ok
}

func (v *vocabulary) size() int {
	return len(v.tokens)
}

// closest returns the token with the smallest edit distance to target. Ties
// go to the token seen first during training.
func (v *vocabulary) closest(target string) (string, bool) {
	if len(v.tokens) == 0 {
		return "", false
	}

	best := v.tokens[0]
	bestDistance := util.Levenshtein(target, best)
	for _, token := range v.tokens[1:] {
		if bestDistance == 0 {
			break
		}
		if d := util.Levenshtein(target, token); d < bestDistance {
			best = token
			bestDistance = d
		}
	}

	return best, true
}

// mostCommon returns the token with the highest unigram count, first seen
// winning ties
func (v *vocabulary) mostCommon() (string, bool) {
	best := ""
	bestCount := 0
	for _, token := range v.tokens {
		if count := v.counts[token]; count > bestCount {
			best = token
			bestCount = count
		}
	}
	return best, bestCount > 0
}
