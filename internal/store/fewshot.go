package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/moabill/ledgerd/internal/extractor"
	"github.com/moabill/ledgerd/internal/feedback"
)

// ListActiveExamples returns approved few-shot examples ordered by
// priority, newest first within a priority tier. Satisfies the extraction
// prompt builder's example source.
func (s *Store) ListActiveExamples(ctx context.Context, limit int) ([]extractor.Example, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, input, output, priority
		FROM few_shot_examples
		WHERE active
		ORDER BY priority DESC, created_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query few-shot examples: %w", err)
	}
	defer rows.Close()

	var examples []extractor.Example
	for rows.Next() {
		var (
			ex   extractor.Example
			kind string
		)
		if err := rows.Scan(&kind, &ex.Input, &ex.Output, &ex.Priority); err != nil {
			return nil, fmt.Errorf("scan few-shot row: %w", err)
		}
		ex.Kind = kind
		examples = append(examples, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate few-shot rows: %w", err)
	}
	return examples, nil
}

// InsertPendingExample stores a promoted correction as an inactive
// few-shot candidate awaiting approval.
func (s *Store) InsertPendingExample(ctx context.Context, ex feedback.PendingExample) error {
	id := ex.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO few_shot_examples (id, kind, input, output, priority, active, created_at)
		VALUES ($1, $2, $3, $4, $5, false, now())`,
		id, string(ex.Kind), ex.Input, ex.Output, ex.Priority,
	)
	if err != nil {
		return fmt.Errorf("insert pending example: %w", err)
	}
	return nil
}

// RejectExample drops a pending few-shot example. Already-active examples
// are left alone; deactivating those is a separate curation decision.
func (s *Store) RejectExample(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM few_shot_examples WHERE id = $1 AND NOT active`,
		id,
	)
	if err != nil {
		return fmt.Errorf("reject example: %w", err)
	}
	return nil
}

// ApproveExample activates a pending few-shot example.
func (s *Store) ApproveExample(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE few_shot_examples SET active = true, approved_at = now()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("approve example: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("approve example: no row with id %s", id)
	}
	return nil
}
