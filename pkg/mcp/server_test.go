package mcp

import (
	"context"
	"strings"
	"testing"

	"ngram-sandbox/internal/config"
	"ngram-sandbox/internal/service"
	"ngram-sandbox/internal/service/session"
	"ngram-sandbox/internal/util"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *GeneratorServer {
	t.Helper()
	cfg, err := config.LoadConfig("", "")
	require.NoError(t, err)
	cfg.Corpora = config.CorporaConfig{
		Default: "basic",
		Corpora: []config.Corpus{
			{ID: "basic", Text: "el gat està content. el gos és feliç. el gat dorm. el gos juga."},
			{ID: "custom"},
		},
	}

	catalog := service.NewCorpusCatalog(cfg.Corpora, service.CorpusManagerConfig{}, zap.NewNop())
	sessions := session.NewSessionService(catalog, nil, session.Config{}, zap.NewNop())
	t.Cleanup(sessions.Close)
	return NewGeneratorServer(sessions, cfg, zap.NewNop())
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestGenerateText(t *testing.T) {
	s := newTestServer(t)

	res, _, err := s.handleGenerateText(context.Background(), nil, GenerateTextParams{
		Seed:        "el gat",
		Count:       3,
		Order:       3,
		Temperature: util.Ptr(0.0),
	})
	require.NoError(t, err)
	assert.Equal(t, "el gat està content.", resultText(t, res))
}

func TestGenerateText_EmptyAndUnknownCorpus(t *testing.T) {
	s := newTestServer(t)

	res, _, err := s.handleGenerateText(context.Background(), nil, GenerateTextParams{CorpusID: "custom"})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "empty")

	res, _, err = s.handleGenerateText(context.Background(), nil, GenerateTextParams{CorpusID: "missing"})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "corpus not found")
}

func TestNextTokenCandidates(t *testing.T) {
	s := newTestServer(t)

	res, _, err := s.handleNextTokenCandidates(context.Background(), nil, CandidatesParams{Seed: "el gat", Order: 3})
	require.NoError(t, err)

	text := resultText(t, res)
	assert.True(t, strings.HasPrefix(text, "Order 3, context \"el gat\""))
	assert.Contains(t, text, "1. està 0.5000")
	assert.Contains(t, text, "2. dorm 0.5000")

	res, _, err = s.handleNextTokenCandidates(context.Background(), nil, CandidatesParams{Seed: "el", Limit: 1})
	require.NoError(t, err)
	text = resultText(t, res)
	assert.Contains(t, text, "1. gat")
	assert.Contains(t, text, "... 1 more")
}

func TestFormatResolution_Unigram(t *testing.T) {
	s := newTestServer(t)

	res, _, err := s.handleNextTokenCandidates(context.Background(), nil, CandidatesParams{})
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "most common token")
	assert.Contains(t, text, "1. el 1.0000")
}
