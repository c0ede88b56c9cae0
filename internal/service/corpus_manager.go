package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ngram-sandbox/internal/service/tokenizer"

	"go.uber.org/zap"
)

// DefaultOrders are the model orders trained for every corpus
var DefaultOrders = []int{2, 3, 4}

// TrainedCorpus is an immutable snapshot of one training run
type TrainedCorpus struct {
	CorpusID   string
	Text       string
	Models     *ModelSet
	TokenCount int
	TrainedAt  time.Time
}

// CorpusManagerConfig configures how a CorpusManager builds its models
type CorpusManagerConfig struct {
	Orders           []int
	Tokenizer        tokenizer.Tokenizer
	BackfillLimit    int // zero uses the model default
	ResolveCacheSize int // zero uses the model default
}

// CorpusManager owns the trained models of one corpus. Training builds a
// fresh model set and swaps it in atomically, so readers never see a model
// in the middle of retraining.
type CorpusManager struct {
	config  CorpusManagerConfig
	current atomic.Pointer[TrainedCorpus]
	logger  *zap.Logger
}

// NewCorpusManager creates a corpus manager with no trained models
func NewCorpusManager(config CorpusManagerConfig, logger *zap.Logger) *CorpusManager {
	if len(config.Orders) == 0 {
		config.Orders = DefaultOrders
	}
	if config.Tokenizer == nil {
		config.Tokenizer = tokenizer.NewWordTokenizer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CorpusManager{
		config: config,
		logger: logger,
	}
}

func (cm *CorpusManager) modelOptions(order int) []ModelOption {
	var opts []ModelOption
	if cm.config.BackfillLimit > 0 && order >= backfillMinOrder {
		opts = append(opts, WithBackfill(cm.config.BackfillLimit))
	}
	if cm.config.ResolveCacheSize != 0 {
		opts = append(opts, WithResolveCacheSize(cm.config.ResolveCacheSize))
	}
	return opts
}

// Train tokenizes text once, trains a new model per configured order and
// publishes the result. The previous models stay untouched for readers that
// still hold them.
func (cm *CorpusManager) Train(ctx context.Context, corpusID, text string) (*TrainedCorpus, error) {
	start := time.Now()
	tokens := tokenizer.Split(cm.config.Tokenizer, text)

	models := make([]*NGramModel, 0, len(cm.config.Orders))
	for _, order := range cm.config.Orders {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training of corpus %s interrupted: %w", corpusID, err)
		}
		m := NewNGramModel(order, cm.config.Tokenizer, cm.modelOptions(order)...)
		m.TrainTokens(tokens)
		models = append(models, m)
	}

	trained := &TrainedCorpus{
		CorpusID:   corpusID,
		Text:       text,
		Models:     NewModelSet(models...),
		TokenCount: len(tokens),
		TrainedAt:  time.Now(),
	}
	cm.current.Store(trained)

	if len(tokens) == 0 {
		cm.logger.Warn("Trained on an empty corpus", zap.String("corpus", corpusID))
	}
	cm.logger.Info("Trained corpus",
		zap.String("corpus", corpusID),
		zap.String("tokenizer", cm.config.Tokenizer.Name()),
		zap.Int("tokens", len(tokens)),
		zap.Ints("orders", cm.config.Orders),
		zap.Duration("elapsed", time.Since(start)),
	)

	return trained, nil
}

// Current returns the latest training snapshot, or nil before the first run
func (cm *CorpusManager) Current() *TrainedCorpus {
	return cm.current.Load()
}

// Models returns the current model set. Before any training it is an empty
// set whose queries all return no results.
func (cm *CorpusManager) Models() *ModelSet {
	if trained := cm.current.Load(); trained != nil {
		return trained.Models
	}
	return NewModelSet()
}

// IsTrained reports whether the current models were trained on text and
// hold any data
func (cm *CorpusManager) IsTrained(text string) bool {
	trained := cm.current.Load()
	return trained != nil && trained.Text == text && !trained.Models.IsEmpty()
}

// Stats returns statistics about the current models
func (cm *CorpusManager) Stats() CorpusStats {
	trained := cm.current.Load()
	if trained == nil {
		return CorpusStats{Tokenizer: cm.config.Tokenizer.Name(), Models: []ModelStats{}}
	}

	stats := CorpusStats{
		CorpusID:    trained.CorpusID,
		Tokenizer:   cm.config.Tokenizer.Name(),
		TotalTokens: trained.TokenCount,
		TrainedAt:   trained.TrainedAt,
		Models:      make([]ModelStats, 0, len(trained.Models.Orders())),
	}
	for _, order := range trained.Models.Orders() {
		m, _ := trained.Models.Get(order)
		stats.Models = append(stats.Models, m.Stats())
	}
	return stats
}

// CorpusStats contains statistics about the trained corpus
type CorpusStats struct {
	CorpusID    string       `json:"corpus_id"`
	Tokenizer   string       `json:"tokenizer"`
	TotalTokens int          `json:"total_tokens"`
	TrainedAt   time.Time    `json:"trained_at"`
	Models      []ModelStats `json:"models"`
}
