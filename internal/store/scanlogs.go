package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moabill/ledgerd/internal/scanlog"
)

// WritePipelineLog persists one request's stage log: a parent row in
// pipeline_logs and one pipeline_log_stages row per stage outcome, in a
// single transaction.
func (s *Store) WritePipelineLog(ctx context.Context, requestID uuid.UUID, startedAt time.Time, entries []scanlog.Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	logID := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO pipeline_logs (id, request_id, started_at, stage_count, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		logID, requestID, startedAt, len(entries),
	)
	if err != nil {
		return fmt.Errorf("insert pipeline log: %w", err)
	}

	for i, e := range entries {
		_, err = tx.Exec(ctx, `
			INSERT INTO pipeline_log_stages (id, log_id, position, stage, status, detail, started_at, duration_ms)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`,
			uuid.New(), logID, i, e.Stage, string(e.Status), e.Detail, e.StartedAt, e.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert pipeline log stage: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
