package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// ErrCorpusNotFound is returned when a corpus ID is not in the catalog
var ErrCorpusNotFound = errors.New("corpus not found")

const (
	DefaultPort                = 8080
	DefaultLogLevel            = "info"
	DefaultOrder               = 2
	DefaultTemperature         = 0.7
	DefaultAnimationIntervalMs = 200
	DefaultWeightedLimit       = 3
	DefaultResolveCacheSize    = 1024
	DefaultTopK                = 0
	DefaultTokenizer           = "word"
	DefaultCorpusID            = "basic"
	CustomCorpusID             = "custom"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	MCP     MCPConfig     `yaml:"mcp"`
	Corpora CorporaConfig `yaml:"-"`
}

type AppConfig struct {
	Port                int     `yaml:"port"`
	LogLevel            string  `yaml:"log_level"`
	DefaultOrder        int     `yaml:"default_order"`
	DefaultTemperature  float64 `yaml:"default_temperature"`
	AnimationIntervalMs int     `yaml:"animation_interval_ms"`
	WeightedLimit       int     `yaml:"weighted_limit"`
	ResolveCacheSize    int     `yaml:"resolve_cache_size"`
	TopK                int     `yaml:"top_k"`
	Tokenizer           string  `yaml:"tokenizer"`
}

// AnimationInterval is the delay between animated generation steps
func (a AppConfig) AnimationInterval() time.Duration {
	return time.Duration(a.AnimationIntervalMs) * time.Millisecond
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

type CorporaConfig struct {
	Default string   `yaml:"default"`
	Corpora []Corpus `yaml:"corpora"`
}

// Corpus is a named training text. Text is read from Path when it is not
// given inline.
type Corpus struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Text  string `yaml:"text"`
	Path  string `yaml:"path"`
}

// LoadConfig reads the application config and the corpus catalog. An empty
// corporaPath leaves only the built-in custom corpus in the catalog.
func LoadConfig(appConfigPath, corporaConfigPath string) (*Config, error) {
	// Zero is a valid temperature, so its default is set before parsing
	cfg := &Config{App: AppConfig{DefaultTemperature: DefaultTemperature, TopK: DefaultTopK}}

	if appConfigPath != "" {
		data, err := os.ReadFile(appConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read app config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse app config: %w", err)
		}
	}

	if corporaConfigPath != "" {
		data, err := os.ReadFile(corporaConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpora config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg.Corpora); err != nil {
			return nil, fmt.Errorf("failed to parse corpora config: %w", err)
		}
		if err := cfg.Corpora.loadTexts(filepath.Dir(corporaConfigPath)); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cc *CorporaConfig) loadTexts(baseDir string) error {
	for i := range cc.Corpora {
		c := &cc.Corpora[i]
		if c.Text != "" || c.Path == "" {
			continue
		}
		path := c.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read corpus %s: %w", c.ID, err)
		}
		c.Text = string(data)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Port == 0 {
		c.App.Port = DefaultPort
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = DefaultLogLevel
	}
	if c.App.DefaultOrder == 0 {
		c.App.DefaultOrder = DefaultOrder
	}
	if c.App.AnimationIntervalMs <= 0 {
		c.App.AnimationIntervalMs = DefaultAnimationIntervalMs
	}
	if c.App.WeightedLimit <= 0 {
		c.App.WeightedLimit = DefaultWeightedLimit
	}
	if c.App.ResolveCacheSize == 0 {
		c.App.ResolveCacheSize = DefaultResolveCacheSize
	}
	if c.App.Tokenizer == "" {
		c.App.Tokenizer = DefaultTokenizer
	}

	if _, err := c.GetCorpus(CustomCorpusID); err != nil {
		c.Corpora.Corpora = append(c.Corpora.Corpora, Corpus{ID: CustomCorpusID, Label: "Custom"})
	}
	if c.Corpora.Default == "" {
		c.Corpora.Default = DefaultCorpusID
		if _, err := c.GetCorpus(DefaultCorpusID); err != nil {
			c.Corpora.Default = c.Corpora.Corpora[0].ID
		}
	}
}

func (c *Config) validate() error {
	if c.App.DefaultOrder < 2 || c.App.DefaultOrder > 4 {
		return fmt.Errorf("default_order must be between 2 and 4, got %d", c.App.DefaultOrder)
	}
	if c.App.DefaultTemperature < 0 {
		return fmt.Errorf("default_temperature must not be negative, got %g", c.App.DefaultTemperature)
	}
	if c.App.TopK < 0 {
		return fmt.Errorf("top_k must not be negative, got %d", c.App.TopK)
	}
	seen := make(map[string]bool, len(c.Corpora.Corpora))
	for _, corpus := range c.Corpora.Corpora {
		if corpus.ID == "" {
			return errors.New("corpus without id")
		}
		if seen[corpus.ID] {
			return fmt.Errorf("duplicate corpus id: %s", corpus.ID)
		}
		seen[corpus.ID] = true
	}
	if _, err := c.GetCorpus(c.Corpora.Default); err != nil {
		return fmt.Errorf("default corpus: %w", err)
	}
	return nil
}

// GetCorpus looks up a corpus by ID
func (c *Config) GetCorpus(id string) (*Corpus, error) {
	for i := range c.Corpora.Corpora {
		if c.Corpora.Corpora[i].ID == id {
			return &c.Corpora.Corpora[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, id)
}
