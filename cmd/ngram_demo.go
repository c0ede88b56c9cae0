package main

import (
	"context"
	"fmt"
	"io"

	"ngram-sandbox/internal/config"
	"ngram-sandbox/internal/service"
)

const demoTopNGrams = 5

// NGramDemo trains the default corpus and prints per-order statistics, the
// most probable n-grams of each order and a greedy and a sampled
// continuation
func NGramDemo(ctx context.Context, catalog *service.CorpusCatalog, cfg *config.Config, out io.Writer) error {
	corpusID := catalog.DefaultID()
	cm, err := catalog.Manager(ctx, corpusID)
	if err != nil {
		return err
	}

	stats := cm.Stats()
	fmt.Fprintf(out, "=== Corpus %q (%s tokenizer) ===\n", corpusID, stats.Tokenizer)
	fmt.Fprintf(out, "Tokens: %d\n\n", stats.TotalTokens)

	models := cm.Models()
	for _, ms := range stats.Models {
		fmt.Fprintf(out, "--- Order %d ---\n", ms.N)
		fmt.Fprintf(out, "Vocabulary size: %d\n", ms.VocabularySize)
		fmt.Fprintf(out, "Contexts: %d\n", ms.ContextCount)
		fmt.Fprintf(out, "N-grams stored: %d\n", ms.NGramCount)
		if ms.Backfill {
			fmt.Fprintln(out, "Unseen contexts: blended from the closest known contexts")
		}

		m, _ := models.Get(ms.N)
		entries := m.AllNGrams()
		for i, e := range entries {
			if i == demoTopNGrams {
				break
			}
			fmt.Fprintf(out, "  %-24s -> %-10s %.3f (%d)\n", e.Context.String(), e.Next, e.Prob, e.Count)
		}
		fmt.Fprintln(out)
	}

	if models.IsEmpty() {
		fmt.Fprintln(out, "The corpus is empty, nothing to generate.")
		return nil
	}

	tok := models.Tokenizer()
	gen := service.NewGenerator(models, service.NewSampler(), nil)

	greedy := gen.Generate(nil, 20, models.MaxOrder(), 0)
	fmt.Fprintf(out, "Greedy (order %d):  %s\n", models.MaxOrder(), tok.Format(service.Tokens(greedy)))

	sampled := gen.Generate(nil, 20, cfg.App.DefaultOrder, cfg.App.DefaultTemperature)
	fmt.Fprintf(out, "Sampled (order %d, t=%.1f): %s\n", cfg.App.DefaultOrder, cfg.App.DefaultTemperature, tok.Format(service.Tokens(sampled)))

	return nil
}
