// Copyright (c) 2024 cblomart
// Licensed under the MIT License

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedbrief/internal/api"
	"feedbrief/internal/cache"
	"feedbrief/internal/config"
	"feedbrief/internal/enrich"
	"feedbrief/internal/feeds"
	"feedbrief/internal/logging"
	"feedbrief/internal/pipeline"
	"feedbrief/internal/poller"
	"feedbrief/internal/storage"

	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("feedbrief stopped")
	}
	log.Info("Server stopped")
}

// run serves until SIGINT/SIGTERM. The store is closed only after the HTTP
// server and any in-flight ingestion run are done with it.
func run(cfg *config.Config, log *logrus.Logger) error {
	// Initialize persistent storage
	store, err := storage.NewStorage(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Error("Failed to close storage")
		}
	}()

	fetcher := feeds.New(cfg.Sources, feeds.Options{
		ItemsPerFeed: cfg.Pipeline.ItemsPerFeed,
		Timeout:      cfg.Pipeline.FetchTimeout,
	}, log)

	// A missing credential degrades every summary instead of stopping the service
	completer, err := enrich.NewCompleter(cfg.AI)
	if err != nil {
		if !errors.Is(err, enrich.ErrMissingCredential) {
			return fmt.Errorf("failed to initialize summarization client: %w", err)
		}
		log.Warn("No AI API key configured, articles will be stored without summaries")
	}
	enricher := enrich.New(completer, enrich.Options{
		PromptMaxChars: cfg.Pipeline.PromptMaxChars,
		TargetLanguage: cfg.AI.TargetLanguage,
	}, log)

	ingest := pipeline.New(fetcher, store, enricher, pipeline.Options{
		MaxArticles: cfg.Pipeline.MaxArticles,
		MaxPerRun:   cfg.Pipeline.MaxPerRun,
	}, log)

	feedsCache := cache.NewFeedsCache(cfg.FeedsCacheTTL)

	// Initialize background poller
	var backgroundPoller *poller.Poller
	if cfg.PollInterval > 0 {
		backgroundPoller = poller.New(ingest, cfg.PollInterval, func(result pipeline.Result) {
			if result.Processed > 0 {
				feedsCache.Invalidate()
			}
		}, log)
		backgroundPoller.Start()
	}
	defer backgroundPoller.Stop()

	// Initialize API server
	server := api.NewServer(ingest, store, backgroundPoller, feedsCache, cfg, log)

	log.WithFields(logrus.Fields{
		"port":          cfg.Port,
		"db_driver":     cfg.Database.Driver,
		"ai_provider":   cfg.AI.Provider,
		"ai_model":      cfg.AI.Model,
		"sources":       len(cfg.Sources),
		"max_articles":  cfg.Pipeline.MaxArticles,
		"max_per_run":   cfg.Pipeline.MaxPerRun,
		"poll_interval": cfg.PollInterval.String(),
		"cron_auth":     cfg.CronSecret != "",
	}).Info("Starting feedbrief")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-sigChan:
	}

	log.Info("Received shutdown signal, stopping services...")
	backgroundPoller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Shutdown did not complete cleanly")
	}
	return nil
}
