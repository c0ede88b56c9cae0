package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ngram-sandbox/internal/config"
	"ngram-sandbox/internal/controller"
	"ngram-sandbox/internal/service"
	"ngram-sandbox/internal/service/session"
	"ngram-sandbox/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	defaultCount     = 10
	maxCount         = 500
	defaultListLimit = 10
)

type GeneratorServer struct {
	server   *mcp.Server
	sessions *session.SessionService
	config   *config.Config
	logger   *zap.Logger
	handler  *mcp.StreamableHTTPHandler
}

type GenerateTextParams struct {
	CorpusID    string   `json:"corpus_id,omitempty" jsonschema:"the corpus to generate from, defaults to the configured corpus"`
	Seed        string   `json:"seed,omitempty" jsonschema:"text the generated tokens continue"`
	Count       int      `json:"count,omitempty" jsonschema:"number of tokens to generate"`
	Order       int      `json:"order,omitempty" jsonschema:"highest n-gram order to use, between 2 and 4"`
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"sampling temperature between 0 and 2, 0 picks the most likely token"`
}

type CandidatesParams struct {
	CorpusID string `json:"corpus_id,omitempty" jsonschema:"the corpus to query, defaults to the configured corpus"`
	Seed     string `json:"seed,omitempty" jsonschema:"text whose continuation is predicted"`
	Order    int    `json:"order,omitempty" jsonschema:"highest n-gram order to use, between 2 and 4"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of candidates to list"`
}

func NewGeneratorServer(sessions *session.SessionService, cfg *config.Config, logger *zap.Logger) *GeneratorServer {
	server := &GeneratorServer{
		sessions: sessions,
		config:   cfg,
		logger:   logger,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "NGramSandbox",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "generateText",
		Description: "Continue a seed text with tokens sampled from an n-gram model trained on a corpus. Returns the seed followed by the generated text",
	}, server.handleGenerateText)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "nextTokenCandidates",
		Description: "List the ranked candidate tokens that could follow a seed text, with their probabilities and the n-gram order that produced them",
	}, server.handleNextTokenCandidates)

	server.handler = mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	server.server = mcpServer
	return server
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func (s *GeneratorServer) order(requested int) int {
	if requested == 0 {
		return s.config.App.DefaultOrder
	}
	return requested
}

func (s *GeneratorServer) handleGenerateText(ctx context.Context, req *mcp.CallToolRequest, args GenerateTextParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling generateText request",
		zap.String("corpus", args.CorpusID),
		zap.Int("count", args.Count),
		zap.Int("order", args.Order))

	count := args.Count
	if count <= 0 {
		count = defaultCount
	}
	count = min(count, maxCount)
	temperature := util.Clamp(util.Deref(args.Temperature, s.config.App.DefaultTemperature), controller.MinTemperature, controller.MaxTemperature)

	text, steps, err := s.sessions.Complete(ctx, args.CorpusID, args.Seed, count, s.order(args.Order), temperature)
	if err != nil {
		s.logger.Error("Failed to generate text", zap.String("corpus", args.CorpusID), zap.Error(err))
		return textResult(fmt.Sprintf("Failed to generate text: %v", err)), nil, nil
	}
	if len(steps) == 0 {
		return textResult("The corpus is empty, nothing can be generated."), nil, nil
	}
	return textResult(text), nil, nil
}

func (s *GeneratorServer) handleNextTokenCandidates(ctx context.Context, req *mcp.CallToolRequest, args CandidatesParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling nextTokenCandidates request",
		zap.String("corpus", args.CorpusID),
		zap.Int("order", args.Order))

	res, err := s.sessions.Candidates(ctx, args.CorpusID, args.Seed, s.order(args.Order))
	if err != nil {
		s.logger.Error("Failed to resolve candidates", zap.String("corpus", args.CorpusID), zap.Error(err))
		return textResult(fmt.Sprintf("Failed to resolve candidates: %v", err)), nil, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	return textResult(formatResolution(res, limit)), nil, nil
}

func formatResolution(res *service.Resolution, limit int) string {
	if len(res.Candidates) == 0 {
		return "No candidates available."
	}

	var result strings.Builder
	if res.Order == service.UnigramOrder {
		result.WriteString("No context matched; falling back to the most common token.\n")
	} else {
		result.WriteString(fmt.Sprintf("Order %d, context \"%s\"\n", res.Order, res.Context.String()))
	}
	for _, cd := range res.Contexts {
		result.WriteString(fmt.Sprintf("  blended context \"%s\" (distance %d)\n", cd.Context.String(), cd.Distance))
	}

	for i, c := range res.Candidates {
		if i == limit {
			result.WriteString(fmt.Sprintf("... %d more\n", len(res.Candidates)-limit))
			break
		}
		result.WriteString(fmt.Sprintf("%d. %s %.4f\n", i+1, c.Token, c.Prob))
	}
	return result.String()
}

// SetupHTTPRoutes mounts the streamable MCP endpoint on the API router
func (s *GeneratorServer) SetupHTTPRoutes(router *gin.Engine) {
	router.Any("/mcp", gin.WrapH(s.handler))
}
