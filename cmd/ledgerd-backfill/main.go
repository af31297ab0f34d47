// Command ledgerd-backfill imports historical message exports (SMS and
// notification dumps) through the extraction pipeline and persists the
// resulting ledger events. Runs are resumable: progress is checkpointed
// per file, so an interrupted import picks up where it stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moabill/ledgerd/internal/anthropic"
	"github.com/moabill/ledgerd/internal/backfill"
	"github.com/moabill/ledgerd/internal/config"
	"github.com/moabill/ledgerd/internal/extractor"
	"github.com/moabill/ledgerd/internal/pipeline"
	"github.com/moabill/ledgerd/internal/store"
)

func main() {
	var (
		dir       = flag.String("dir", "", "directory of export files (.jsonl, .txt)")
		file      = flag.String("file", "", "process a single export file")
		since     = flag.String("since", "", "skip messages before this date (YYYY-MM-DD)")
		until     = flag.String("until", "", "skip messages after this date (YYYY-MM-DD)")
		dryRun    = flag.Bool("dry-run", false, "extract but do not persist events")
		minLength = flag.Int("min-length", 10, "skip messages shorter than this many characters")
		pause     = flag.Duration("pause", 500*time.Millisecond, "wait between extraction calls")
	)
	flag.Parse()

	if *dir == "" && *file == "" {
		fmt.Fprintln(os.Stderr, "usage: ledgerd-backfill -dir <export-dir> | -file <export-file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	runCfg := backfill.Config{
		Dir:        *dir,
		SingleFile: *file,
		DryRun:     *dryRun,
		MinLength:  *minLength,
		Pause:      *pause,
	}
	var err error
	if runCfg.Since, err = parseDate(*since); err != nil {
		slog.Error("invalid -since", "error", err)
		os.Exit(2)
	}
	if runCfg.Until, err = parseDate(*until); err != nil {
		slog.Error("invalid -until", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop on the first signal so the runner checkpoints and exits cleanly.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("interrupt received, finishing current file")
		cancel()
	}()

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

	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	textLLM := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.TextModel)
	visionLLM := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.VisionModel)
	ext := extractor.New(textLLM, visionLLM, db, slog.Default())
	analyzer := pipeline.New(ext, ext, slog.Default())

	runner := backfill.NewRunner(runCfg, analyzer, db, slog.Default())
	if err := runner.Run(ctx); err != nil {
		slog.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
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
