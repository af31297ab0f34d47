package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/moabill/ledgerd/internal/feedback"
)

// InsertCorrection persists one correction-log entry. Original and final
// records are stored as jsonb alongside the lifted diff columns.
func (s *Store) InsertCorrection(ctx context.Context, c feedback.Correction) error {
	original, err := json.Marshal(c.Original)
	if err != nil {
		return fmt.Errorf("marshal original record: %w", err)
	}
	final, err := json.Marshal(c.Final)
	if err != nil {
		return fmt.Errorf("marshal final record: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO corrections (id, original, final, changed_fields, edit_type, confirmation_level,
			confidence_before, confidence_after, image_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)`,
		c.ID, original, final, c.ChangedFields, string(c.EditType), string(c.ConfirmationLevel),
		c.ConfidenceBefore, c.ConfidenceAfter, c.ImageHash, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert correction: %w", err)
	}
	return nil
}

// HasCorrectionForImage reports whether a correction was already logged
// for an image with this content hash. Used to skip duplicate logs when
// the user re-saves the same screenshot.
func (s *Store) HasCorrectionForImage(ctx context.Context, imageHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM corrections WHERE image_hash = $1)`,
		imageHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check correction by image hash: %w", err)
	}
	return exists, nil
}
