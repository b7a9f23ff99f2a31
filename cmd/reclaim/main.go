// Package main is the entry point for the Reclaim matching service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reclaimhq/reclaim/internal/config"
	"github.com/reclaimhq/reclaim/internal/embeddings"
	"github.com/reclaimhq/reclaim/internal/encryption"
	"github.com/reclaimhq/reclaim/internal/events"
	"github.com/reclaimhq/reclaim/internal/matching"
	"github.com/reclaimhq/reclaim/internal/server"
	"github.com/reclaimhq/reclaim/internal/store"
)

func main() {
	// Logger
	logLevel := slog.LevelInfo
	if os.Getenv("RECLAIM_LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Embedding provider
	var embedder embeddings.Provider
	switch cfg.EmbeddingBackend {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Error("OpenAI API key required for openai embedding backend")
			os.Exit(1)
		}
		embedder = embeddings.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "local":
		embedder = embeddings.NewLocalProvider(cfg.EmbeddingSidecarURL)
	default:
		embedder = embeddings.NewSimpleProvider()
	}
	logger.Info("embedding provider initialized", "backend", embedder.Name())

	// Contact token encryption
	var encryptor *encryption.Encryptor
	if cfg.ContactTokenKey != "" {
		encryptor, err = encryption.NewEncryptor(cfg.ContactTokenKey)
		if err != nil {
			logger.Warn("failed to initialize encryptor, contact tokens disabled", "error", err)
		}
	}
	if encryptor == nil {
		logger.Warn("no contact token key configured, using ephemeral key for development")
		key, _ := encryption.GenerateKey()
		if key != nil {
			encryptor, _ = encryption.NewEncryptor(key.Encode())
		}
	}

	posts := store.NewPostStore(db)
	activity := store.NewActivityStore(db)
	matchCfg := matching.ConfigFromEnv()

	// NATS — optional, service works without it (manual refresh endpoint only)
	var bus *events.Client
	var publisher *events.Publisher
	var notifier *events.Notifier
	if cfg.NatsURL != "" {
		bus, err = events.NewClient(cfg.NatsURL, logger)
		if err != nil {
			logger.Warn("failed to connect to NATS, running without event bus", "error", err)
			bus = nil
		} else {
			defer bus.Close()
			logger.Info("connected to NATS", "url", cfg.NatsURL)
			publisher = events.NewPublisher(bus, logger)
			notifier = events.NewNotifier(publisher, logger)
		}
	}

	// Refresh pipeline
	var refresherNotifier matching.Notifier
	if notifier != nil {
		refresherNotifier = notifier
	}
	refresher := matching.NewRefresher(posts, embedder, activity, refresherNotifier, logger)
	engine := matching.NewEngine(posts, embedder, activity, matchCfg, logger)

	// Post event subscriber
	if bus != nil {
		subscriber := events.NewSubscriber(bus, refresher, cfg.RefreshTimeout, logger)
		if err := subscriber.Start(ctx); err != nil {
			logger.Warn("failed to start post event subscriber", "error", err)
		} else {
			defer subscriber.Stop()
		}
	}

	// Stale-Processing sweeper
	sweeper := matching.NewSweeper(posts, matchCfg, logger)
	sweeper.Start(ctx)

	// Server
	srv := server.New(cfg, db, engine, refresher, activity, bus, publisher, encryptor, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down gracefully...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("Reclaim starting", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("Reclaim stopped")
}
