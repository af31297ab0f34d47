package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moabill/ledgerd/internal/anthropic"
	"github.com/moabill/ledgerd/internal/api"
	"github.com/moabill/ledgerd/internal/bus"
	"github.com/moabill/ledgerd/internal/config"
	"github.com/moabill/ledgerd/internal/extractor"
	"github.com/moabill/ledgerd/internal/feedback"
	"github.com/moabill/ledgerd/internal/pipeline"
	"github.com/moabill/ledgerd/internal/slack"
	"github.com/moabill/ledgerd/internal/store"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("ledgerd starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Anthropic clients — separate models for text and vision extraction
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	textLLM := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.TextModel)
	visionLLM := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.VisionModel)
	slog.Info("anthropic clients ready", "text_model", cfg.TextModel, "vision_model", cfg.VisionModel)

	// Extractor, fed by the few-shot pool in the store
	ext := extractor.New(textLLM, visionLLM, db, slog.Default())

	// Analysis pipeline
	analyzer := pipeline.New(ext, ext, slog.Default())

	// NATS
	busClient, err := bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Slack review loop (optional — without it promoted examples wait in
	// the pending table for manual approval)
	var reviewer feedback.ExampleReviewer
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		slackReviewer := slack.NewReviewer(slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default()), db, slog.Default())
		if err := busClient.Subscribe("moabill.slack.reaction", slackReviewer.HandleReaction); err != nil {
			slog.Error("failed to subscribe to slack reactions", "error", err)
			os.Exit(1)
		}
		reviewer = slackReviewer
		slog.Info("slack review loop ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured — running without review loop")
	}

	// Feedback loop
	fb := feedback.NewService(db, busClient, reviewer, slog.Default(), cfg.PromoteUnknownKindChange)

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, slog.Default(), analyzer, fb, db, db)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := busClient.Publish(bus.SubjectRegistered, bus.Registration{
		Service:   "ledgerd",
		Version:   version,
		TextModel: cfg.TextModel,
		StartedAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("ledgerd ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("ledgerd stopped")
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
