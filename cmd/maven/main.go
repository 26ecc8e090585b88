package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/maven/internal/anthropic"
	"github.com/MikeSquared-Agency/maven/internal/api"
	"github.com/MikeSquared-Agency/maven/internal/config"
	"github.com/MikeSquared-Agency/maven/internal/enrich"
	"github.com/MikeSquared-Agency/maven/internal/events"
	"github.com/MikeSquared-Agency/maven/internal/job"
	"github.com/MikeSquared-Agency/maven/internal/pipeline"
	"github.com/MikeSquared-Agency/maven/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("maven starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store — Postgres when configured, in-memory otherwise
	var st store.SessionStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("database connected")
	} else {
		st = store.NewMemory()
		slog.Warn("DATABASE_URL not set — sessions will not survive a restart")
	}
	defer st.Close()

	// Enrichment (optional — extraction works without AI, results just
	// carry no categories or notes)
	var enricher *enrich.Enricher
	if cfg.AnthropicAPIKey != "" {
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		enricher = enrich.New(llm, slog.Default())
		slog.Info("anthropic client ready", "model", cfg.AnthropicModel)
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set — running without AI enrichment")
	}

	// Events (optional)
	var publisher *events.Publisher
	if cfg.NatsURL != "" {
		var err error
		publisher, err = events.NewPublisher(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set — running without lifecycle events")
	}

	pipe := pipeline.New(pipeline.Config{
		DefaultRegion:     cfg.DefaultRegion,
		ProximityWindow:   cfg.ProximityWindow,
		MaxArchiveBytes:   cfg.MaxUploadBytes,
		MaxInflationRatio: cfg.MaxInflationRatio,
	}, enricher, slog.Default())

	manager := job.New(st, pipe, publisher,
		time.Duration(cfg.ProcessingTimeout)*time.Second,
		time.Duration(cfg.RetentionHours)*time.Hour,
		slog.Default(),
	)

	sweeper := job.NewSweeper(st, time.Hour, slog.Default())
	go sweeper.Run(ctx)

	srv := api.NewServer(api.Options{
		Port:              cfg.Port,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		MaxInflationRatio: cfg.MaxInflationRatio,
		CORSOrigins:       cfg.CORSOriginsList(),
	}, manager, st, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("maven ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	manager.Wait()
	slog.Info("maven stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
