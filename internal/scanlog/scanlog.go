// Package scanlog records per-stage outcomes for one analysis request.
// A Session is created at request start, passed by reference through the
// pipeline, and flushed to the record store at request end. There is no
// process-wide logger.
package scanlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Status is a stage outcome.
type Status string

const (
	StatusOK        Status = "ok"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusRecovered Status = "recovered"
	StatusSkipped   Status = "skipped"
)

// Entry is one recorded stage outcome.
type Entry struct {
	Stage     string        `json:"stage"`
	Status    Status        `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Sink persists a finished session's entries.
type Sink interface {
	WritePipelineLog(ctx context.Context, requestID uuid.UUID, startedAt time.Time, entries []Entry) error
}

// Session collects stage outcomes for a single request. Stages run
// sequentially, so no locking is needed.
type Session struct {
	RequestID uuid.UUID
	StartedAt time.Time

	logger  *slog.Logger
	entries []Entry
	starts  map[string]time.Time
}

func NewSession(requestID uuid.UUID, logger *slog.Logger) *Session {
	return &Session{
		RequestID: requestID,
		StartedAt: time.Now(),
		logger:    logger,
		starts:    make(map[string]time.Time),
	}
}

// StageStart marks a stage as begun.
func (s *Session) StageStart(stage string) {
	s.starts[stage] = time.Now()
	s.logger.Debug("stage start", "request_id", s.RequestID, "stage", stage)
}

// StageOutcome records how a stage ended. Duration is measured from the
// matching StageStart, or zero if the stage never formally started.
func (s *Session) StageOutcome(stage string, status Status, detail string) {
	started, ok := s.starts[stage]
	var dur time.Duration
	if ok {
		dur = time.Since(started)
	} else {
		started = time.Now()
	}
	s.entries = append(s.entries, Entry{
		Stage:     stage,
		Status:    status,
		Detail:    detail,
		StartedAt: started,
		Duration:  dur,
	})
	s.logger.Info("stage outcome",
		"request_id", s.RequestID,
		"stage", stage,
		"status", string(status),
		"duration", dur,
		"detail", detail,
	)
}

// Entries returns recorded outcomes in order.
func (s *Session) Entries() []Entry {
	return s.entries
}

// Flush writes the session to the sink. A nil sink is a no-op so the
// pipeline works without persistence configured.
func (s *Session) Flush(ctx context.Context, sink Sink) error {
	if sink == nil || len(s.entries) == 0 {
		return nil
	}
	return sink.WritePipelineLog(ctx, s.RequestID, s.StartedAt, s.entries)
}
