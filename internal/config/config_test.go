package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.App.Port)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 2, cfg.App.DefaultOrder)
	assert.Equal(t, 0.7, cfg.App.DefaultTemperature)
	assert.Equal(t, 200*time.Millisecond, cfg.App.AnimationInterval())
	assert.Equal(t, 0, cfg.App.TopK)
	assert.Equal(t, "word", cfg.App.Tokenizer)
	assert.False(t, cfg.MCP.Enabled)

	// only the custom corpus exists, so it becomes the default
	require.Len(t, cfg.Corpora.Corpora, 1)
	assert.Equal(t, CustomCorpusID, cfg.Corpora.Default)
}

func TestLoadConfig_Files(t *testing.T) {
	dir := t.TempDir()
	appPath := writeFile(t, dir, "app.yaml", `
app:
  port: 9090
  log_level: debug
  default_order: 4
  default_temperature: 1.2
  animation_interval_ms: 50
  top_k: 5
  tokenizer: char
mcp:
  enabled: true
`)
	writeFile(t, dir, "texts/long.txt", "la pluja cau lenta.")
	corporaPath := writeFile(t, dir, "corpora.yaml", `
default: long
corpora:
  - id: short
    label: Short
    text: el gat dorm.
  - id: long
    label: Long
    path: texts/long.txt
`)

	cfg, err := LoadConfig(appPath, corporaPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 4, cfg.App.DefaultOrder)
	assert.Equal(t, 1.2, cfg.App.DefaultTemperature)
	assert.Equal(t, 50*time.Millisecond, cfg.App.AnimationInterval())
	assert.Equal(t, 5, cfg.App.TopK)
	assert.Equal(t, "char", cfg.App.Tokenizer)
	assert.True(t, cfg.MCP.Enabled)

	assert.Equal(t, "long", cfg.Corpora.Default)
	long, err := cfg.GetCorpus("long")
	require.NoError(t, err)
	assert.Equal(t, "la pluja cau lenta.", long.Text)

	custom, err := cfg.GetCorpus(CustomCorpusID)
	require.NoError(t, err)
	assert.Empty(t, custom.Text)
}

func TestLoadConfig_Temperature(t *testing.T) {
	dir := t.TempDir()

	greedy := writeFile(t, dir, "greedy.yaml", "app:\n  default_temperature: 0\n")
	cfg, err := LoadConfig(greedy, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.App.DefaultTemperature, "an explicit zero selects greedy generation")

	absent := writeFile(t, dir, "absent.yaml", "app:\n  port: 9000\n")
	cfg, err = LoadConfig(absent, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTemperature, cfg.App.DefaultTemperature)
	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, DefaultOrder, cfg.App.DefaultOrder)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		app     string
		corpora string
	}{
		{name: "invalid order", app: "app:\n  default_order: 7\n"},
		{name: "negative temperature", app: "app:\n  default_temperature: -0.5\n"},
		{name: "negative top_k", app: "app:\n  top_k: -1\n"},
		{name: "malformed yaml", app: "app: [\n"},
		{name: "duplicate corpus", corpora: "corpora:\n  - id: a\n  - id: a\n"},
		{name: "missing id", corpora: "corpora:\n  - label: x\n"},
		{name: "unknown default", corpora: "default: nope\ncorpora:\n  - id: a\n"},
		{name: "missing corpus file", corpora: "corpora:\n  - id: a\n    path: nowhere.txt\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var appPath, corporaPath string
			if tt.app != "" {
				appPath = writeFile(t, dir, tt.name+"-app.yaml", tt.app)
			}
			if tt.corpora != "" {
				corporaPath = writeFile(t, dir, tt.name+"-corpora.yaml", tt.corpora)
			}
			_, err := LoadConfig(appPath, corporaPath)
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(dir, "absent.yaml"), "")
	assert.Error(t, err)
}

func TestGetCorpus_NotFound(t *testing.T) {
	cfg, err := LoadConfig("", "")
	require.NoError(t, err)

	_, err = cfg.GetCorpus("missing")
	assert.ErrorIs(t, err, ErrCorpusNotFound)
}
