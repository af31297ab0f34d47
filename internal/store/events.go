package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moabill/ledgerd/internal/record"
)

// EventRow is a persisted unified event: one extracted record plus its
// provenance.
type EventRow struct {
	ID         uuid.UUID
	RequestID  uuid.UUID
	Kind       record.Kind
	Confidence float64
	Record     record.Candidate
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// WriteEvent inserts a newly extracted record into the unified events
// table. The full candidate is stored as jsonb; kind and confidence are
// lifted into columns for querying.
func (s *Store) WriteEvent(ctx context.Context, requestID uuid.UUID, c record.Candidate) (uuid.UUID, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal event record: %w", err)
	}

	id := uuid.New()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO unified_events (id, request_id, kind, confidence, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())`,
		id, requestID, string(c.Kind), c.Confidence, payload,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert unified event: %w", err)
	}
	return id, nil
}

// UpdateEvent replaces the stored record for an event, typically after a
// user correction.
func (s *Store) UpdateEvent(ctx context.Context, id uuid.UUID, c record.Candidate) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE unified_events SET kind = $1, confidence = $2, record = $3, updated_at = now()
		WHERE id = $4`,
		string(c.Kind), c.Confidence, payload, id,
	)
	if err != nil {
		return fmt.Errorf("update unified event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update unified event: no row with id %s", id)
	}
	return nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM unified_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete unified event: %w", err)
	}
	return nil
}

// GetEventByID fetches one event.
func (s *Store) GetEventByID(ctx context.Context, id uuid.UUID) (*EventRow, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, request_id, kind, confidence, record, created_at, updated_at
		FROM unified_events WHERE id = $1`, id)

	var (
		e       EventRow
		kind    string
		payload []byte
	)
	if err := row.Scan(&e.ID, &e.RequestID, &kind, &e.Confidence, &payload, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Kind = record.Kind(kind)
	if err := json.Unmarshal(payload, &e.Record); err != nil {
		return nil, fmt.Errorf("unmarshal event record: %w", err)
	}
	return &e, nil
}

// ListEventsByKind returns the most recent events of one kind.
func (s *Store) ListEventsByKind(ctx context.Context, kind record.Kind, limit int) ([]EventRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, kind, confidence, record, created_at, updated_at
		FROM unified_events
		WHERE kind = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		string(kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query unified events: %w", err)
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var (
			e       EventRow
			k       string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &k, &e.Confidence, &payload, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Kind = record.Kind(k)
		if err := json.Unmarshal(payload, &e.Record); err != nil {
			return nil, fmt.Errorf("unmarshal event record: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}
