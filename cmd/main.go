package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ngram-sandbox/internal/config"
	"ngram-sandbox/internal/controller"
	"ngram-sandbox/internal/handler"
	"ngram-sandbox/internal/service"
	"ngram-sandbox/internal/service/session"
	"ngram-sandbox/internal/service/tokenizer"
	"ngram-sandbox/pkg/mcp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	var appConfigPath = flag.String("app", "config/app.yaml", "Path to app configuration file")
	var corporaConfigPath = flag.String("corpora", "config/corpora.yaml", "Path to corpus catalog file")
	var port = flag.Int("port", 0, "Server port, overrides the app configuration")
	var demo = flag.Bool("demo", false, "Print model statistics and a sample for the default corpus, then exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*appConfigPath, *corporaConfigPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if *port != 0 {
		cfg.App.Port = *port
	}

	cfgZap := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		log.Fatal("Invalid log level:", err)
	}
	cfgZap.Level.SetLevel(level)
	logger, err := cfgZap.Build()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.Int("port", cfg.App.Port),
		zap.Int("default_order", cfg.App.DefaultOrder),
		zap.String("tokenizer", cfg.App.Tokenizer),
		zap.Int("top_k", cfg.App.TopK),
		zap.Int("corpora", len(cfg.Corpora.Corpora)),
	)

	tok, err := tokenizer.NewDefaultRegistry().Get(cfg.App.Tokenizer)
	if err != nil {
		logger.Fatal("Failed to select tokenizer", zap.Error(err))
	}

	catalog := service.NewCorpusCatalog(cfg.Corpora, service.CorpusManagerConfig{
		Orders:           service.DefaultOrders,
		Tokenizer:        tok,
		BackfillLimit:    cfg.App.WeightedLimit,
		ResolveCacheSize: cfg.App.ResolveCacheSize,
	}, logger)

	if *demo {
		if err := NGramDemo(context.Background(), catalog, cfg, os.Stdout); err != nil {
			logger.Fatal("Demo failed", zap.Error(err))
		}
		return
	}

	if err := run(cfg, catalog, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, catalog *service.CorpusCatalog, logger *zap.Logger) error {
	sampler := service.NewSampler(service.WithTopK(cfg.App.TopK))
	sessions := session.NewSessionService(catalog, sampler, session.Config{
		DefaultOrder:       cfg.App.DefaultOrder,
		DefaultTemperature: cfg.App.DefaultTemperature,
		AnimationInterval:  cfg.App.AnimationInterval(),
	}, logger)
	defer sessions.Close()

	var mcpServer *mcp.GeneratorServer
	if cfg.MCP.Enabled {
		mcpServer = mcp.NewGeneratorServer(sessions, cfg, logger)
	}

	router := handler.SetupRouter(
		controller.NewCorpusController(catalog, logger),
		controller.NewSessionController(sessions, logger),
		mcpServer,
		logger,
	)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", zap.Int("port", cfg.App.Port), zap.Bool("mcp", mcpServer != nil))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
