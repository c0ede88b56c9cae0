package service

import (
	"context"
	"fmt"
	"sync"

	"ngram-sandbox/internal/config"

	"go.uber.org/zap"
)

// CorpusInfo describes one catalog entry
type CorpusInfo struct {
	ID      string       `json:"id"`
	Label   string       `json:"label"`
	Trained bool         `json:"trained"`
	Stats   *CorpusStats `json:"stats,omitempty"`
}

// CorpusCatalog holds one CorpusManager per configured corpus. Managers are
// trained lazily on first use with the configured text.
type CorpusCatalog struct {
	corpora       []config.Corpus
	defaultID     string
	managerConfig CorpusManagerConfig
	managers      map[string]*CorpusManager
	logger        *zap.Logger
	mu            sync.Mutex
}

// NewCorpusCatalog creates a catalog over the configured corpora
func NewCorpusCatalog(corpora config.CorporaConfig, managerConfig CorpusManagerConfig, logger *zap.Logger) *CorpusCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CorpusCatalog{
		corpora:       corpora.Corpora,
		defaultID:     corpora.Default,
		managerConfig: managerConfig,
		managers:      make(map[string]*CorpusManager),
		logger:        logger,
	}
}

// DefaultID returns the corpus used when a caller does not pick one
func (c *CorpusCatalog) DefaultID() string {
	return c.defaultID
}

func (c *CorpusCatalog) lookup(id string) (config.Corpus, error) {
	for _, corpus := range c.corpora {
		if corpus.ID == id {
			return corpus, nil
		}
	}
	return config.Corpus{}, fmt.Errorf("%w: %s", config.ErrCorpusNotFound, id)
}

func (c *CorpusCatalog) manager(id string) *CorpusManager {
	c.mu.Lock()
	defer c.mu.Unlock()

	cm, ok := c.managers[id]
	if !ok {
		cm = NewCorpusManager(c.managerConfig, c.logger.With(zap.String("corpus", id)))
		c.managers[id] = cm
	}
	return cm
}

// Manager returns the manager for a corpus, training it with the configured
// text if it has never been trained
func (c *CorpusCatalog) Manager(ctx context.Context, id string) (*CorpusManager, error) {
	corpus, err := c.lookup(id)
	if err != nil {
		return nil, err
	}

	cm := c.manager(id)
	if cm.Current() == nil {
		if _, err := cm.Train(ctx, id, corpus.Text); err != nil {
			return nil, err
		}
	}
	return cm, nil
}

// Train retrains a corpus. An empty text uses the configured one.
func (c *CorpusCatalog) Train(ctx context.Context, id, text string) (*TrainedCorpus, error) {
	corpus, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	if text == "" {
		text = corpus.Text
	}
	return c.manager(id).Train(ctx, id, text)
}

// List returns every corpus in configuration order
func (c *CorpusCatalog) List() []CorpusInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]CorpusInfo, 0, len(c.corpora))
	for _, corpus := range c.corpora {
		info := CorpusInfo{ID: corpus.ID, Label: corpus.Label}
		if cm, ok := c.managers[corpus.ID]; ok && cm.Current() != nil {
			stats := cm.Stats()
			info.Trained = !cm.Models().IsEmpty()
			info.Stats = &stats
		}
		infos = append(infos, info)
	}
	return infos
}
