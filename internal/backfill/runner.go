package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moabill/ledgerd/internal/pipeline"
	"github.com/moabill/ledgerd/internal/record"
	"github.com/moabill/ledgerd/internal/scanlog"
)

// Config holds the backfill run configuration.
type Config struct {
	Dir        string
	SingleFile string // process a single file only
	Since      time.Time
	Until      time.Time
	DryRun     bool
	MinLength  int           // skip messages shorter than this many runes
	Pause      time.Duration // wait between extraction calls
}

// Analyzer runs one message through the extraction pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request, sess *scanlog.Session) (record.Candidate, error)
}

// EventWriter persists extracted records.
type EventWriter interface {
	WriteEvent(ctx context.Context, requestID uuid.UUID, c record.Candidate) (uuid.UUID, error)
}

// Runner orchestrates the backfill process.
type Runner struct {
	cfg      Config
	analyzer Analyzer
	events   EventWriter
	logger   *slog.Logger

	loadState func() (*State, error)
}

func NewRunner(cfg Config, analyzer Analyzer, events EventWriter, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		analyzer:  analyzer,
		events:    events,
		logger:    logger,
		loadState: LoadState,
	}
}

// Run executes the backfill: discover export files, parse, dedup, analyze,
// persist. Progress is checkpointed per file so an interrupted run resumes
// where it stopped.
func (r *Runner) Run(ctx context.Context) error {
	state, err := r.loadState()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}
	r.logger.Info("export files discovered", "count", len(files))

	deduper := NewDeduper()

	for _, path := range files {
		if state.IsProcessed(path) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := parseFile(path)
		if err != nil {
			r.logger.Warn("failed to parse export file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("parse %s: %v", path, err))
			continue
		}

		r.processFile(ctx, path, msgs, deduper, state)

		state.MarkProcessed(path)
		if err := state.Save(); err != nil {
			r.logger.Warn("failed to save state", "error", err)
		}
	}

	r.logger.Info("backfill finished",
		"files", len(state.FilesProcessed),
		"messages", state.MessagesProcessed,
		"events", state.EventsWritten,
		"skipped", state.Skipped,
		"errors", len(state.Errors),
	)
	return nil
}

func (r *Runner) processFile(ctx context.Context, path string, msgs []Message, deduper *Deduper, state *State) {
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return
		}
		if !r.inDateRange(m) || r.tooShort(m) || deduper.Seen(m) {
			state.Skipped++
			continue
		}

		state.MessagesProcessed++

		requestID := uuid.New()
		sess := scanlog.NewSession(requestID, r.logger)

		req := pipeline.Request{
			Text:       m.Text,
			OCRQuality: 100, // export text is exact, not an OCR read
			PreferPast: true,
		}
		if !m.ReceivedAt.IsZero() {
			req.Now = m.ReceivedAt
		}

		result, err := r.analyzer.Analyze(ctx, req, sess)
		if err != nil {
			r.logger.Warn("backfill extraction failed", "path", path, "error", err)
			state.AddError(fmt.Sprintf("analyze (file %s): %v", path, err))
			continue
		}

		if r.cfg.DryRun {
			r.logger.Info("dry run result", "kind", string(result.Kind), "confidence", result.Confidence)
		} else if _, err := r.events.WriteEvent(ctx, requestID, result); err != nil {
			r.logger.Warn("persist backfill event failed", "error", err)
			state.AddError(fmt.Sprintf("persist (file %s): %v", path, err))
			continue
		} else {
			state.EventsWritten++
		}

		if r.cfg.Pause > 0 {
			select {
			case <-time.After(r.cfg.Pause):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		return []string{r.cfg.SingleFile}, nil
	}

	var files []string
	err := filepath.WalkDir(r.cfg.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jsonl", ".txt":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func parseFile(path string) ([]Message, error) {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return ParseJSONLFile(path)
	}
	return ParseTextFile(path)
}

func (r *Runner) inDateRange(m Message) bool {
	if m.ReceivedAt.IsZero() {
		return true // undated messages are always in range
	}
	if !r.cfg.Since.IsZero() && m.ReceivedAt.Before(r.cfg.Since) {
		return false
	}
	if !r.cfg.Until.IsZero() && m.ReceivedAt.After(r.cfg.Until) {
		return false
	}
	return true
}

func (r *Runner) tooShort(m Message) bool {
	if r.cfg.MinLength <= 0 {
		return false
	}
	return len([]rune(strings.TrimSpace(m.Text))) < r.cfg.MinLength
}
