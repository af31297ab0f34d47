package feedback

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/moabill/ledgerd/internal/confidence"
	"github.com/moabill/ledgerd/internal/record"
)

// Confirmation bonuses stack on the recomputed base score: every confirmed
// save earns the base bonus, and the heavier edit types earn more because
// they carry more signal about what the extractor got wrong.
const (
	confirmBonus      = 0.05
	kindChangeBonus   = 0.10
	addedMissingBonus = 0.07
	bonusCap          = 0.98

	promotionBar       = 0.90
	maxPromotedChanges = 3
	promotedPriority   = 100
)

const (
	subjectCorrectionLogged = "moabill.ledger.correction.logged"
	subjectFewshotPromoted  = "moabill.ledger.fewshot.promoted"
)

// Correction is one persisted correction-log entry.
type Correction struct {
	ID                uuid.UUID         `json:"id"`
	Original          *record.Candidate `json:"original"`
	Final             record.Candidate  `json:"final"`
	ChangedFields     []string          `json:"changed_fields"`
	EditType          EditType          `json:"edit_type"`
	ConfirmationLevel ConfirmationLevel `json:"confirmation_level"`
	ConfidenceBefore  float64           `json:"confidence_before"`
	ConfidenceAfter   float64           `json:"confidence_after"`
	ImageHash         string            `json:"image_hash,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// PendingExample is a few-shot candidate awaiting external approval before
// it enters the active pool.
type PendingExample struct {
	ID       uuid.UUID       `json:"id"`
	Kind     record.Kind     `json:"kind"`
	Input    string          `json:"input"`
	Output   json.RawMessage `json:"output"`
	Priority int             `json:"priority"`
}

// Recorder persists correction logs and few-shot candidates.
type Recorder interface {
	InsertCorrection(ctx context.Context, c Correction) error
	InsertPendingExample(ctx context.Context, ex PendingExample) error
	HasCorrectionForImage(ctx context.Context, imageHash string) (bool, error)
}

// EventPublisher announces feedback outcomes on the bus.
type EventPublisher interface {
	Publish(subject string, payload any) error
}

// ExampleReviewer submits a promoted example for human approval. Optional;
// without one, promoted examples simply wait in the pending table.
type ExampleReviewer interface {
	SubmitForReview(ctx context.Context, ex PendingExample)
}

// Service runs the feedback loop for one saved record at a time.
type Service struct {
	store    Recorder
	bus      EventPublisher
	reviewer ExampleReviewer
	logger   *slog.Logger

	// Kind corrections away from UNKNOWN are ambiguous training signal;
	// promoting them is a deployment policy, not a fixed rule.
	promoteUnknownKindChange bool
}

func NewService(store Recorder, bus EventPublisher, reviewer ExampleReviewer, logger *slog.Logger, promoteUnknownKindChange bool) *Service {
	return &Service{
		store:                    store,
		bus:                      bus,
		reviewer:                 reviewer,
		logger:                   logger,
		promoteUnknownKindChange: promoteUnknownKindChange,
	}
}

// Input is one user save action.
type Input struct {
	Original  *record.Candidate // AI output the user started from, nil for manual entry flows
	Final     record.Candidate  // what the user saved
	Level     ConfirmationLevel
	ImageHash string // stable content hash of the source image, if any
}

// ProcessUserFeedback runs edit detection, confidence recompute, correction
// logging and few-shot promotion. It never returns an error: every failure
// is logged and the remaining steps continue where they can.
func (s *Service) ProcessUserFeedback(ctx context.Context, in Input) {
	if in.Original == nil {
		return
	}

	// The image hash is the dedup key: re-saving the same screenshot must
	// not log the same correction twice.
	if in.ImageHash != "" {
		seen, err := s.store.HasCorrectionForImage(ctx, in.ImageHash)
		if err != nil {
			s.logger.Warn("image hash lookup failed", "error", err)
		} else if seen {
			s.logger.Debug("correction already logged for image", "image_hash", in.ImageHash)
			return
		}
	}

	edits := DetectEdits(in.Original, &in.Final)
	level := in.Level
	if level != ConfirmManualEntry && !edits.Edited() {
		level = ConfirmQuick
	}

	after := s.recompute(in.Final, edits, level)

	corr := Correction{
		ID:                uuid.New(),
		Original:          in.Original,
		Final:             in.Final,
		ChangedFields:     edits.ChangedFields,
		EditType:          edits.Type,
		ConfirmationLevel: level,
		ConfidenceBefore:  in.Original.Confidence,
		ConfidenceAfter:   after,
		ImageHash:         in.ImageHash,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.store.InsertCorrection(ctx, corr); err != nil {
		s.logger.Error("insert correction failed", "error", err, "edit_type", string(edits.Type))
	} else {
		s.publish(subjectCorrectionLogged, corr)
	}

	if s.shouldPromote(in.Original, edits, after, in.Final.RawText) {
		s.promote(ctx, in.Final, corr.ID)
	}
}

// recompute scores the final record as if it were a perfect vision read:
// the user's data is treated as ground truth, so warnings are dropped and
// OCR quality is maximal. Confirmation bonuses stack on top, capped below
// 0.99; manual entry overrides everything.
func (s *Service) recompute(final record.Candidate, edits EditResult, level ConfirmationLevel) float64 {
	if level == ConfirmManualEntry {
		return 1.0
	}

	cleaned := final
	cleaned.Warnings = nil
	res := confidence.Score(confidence.Input{
		Candidate:  cleaned,
		OCRQuality: 100,
		Stage:      confidence.StageVision,
	})

	score := res.Score + confirmBonus
	switch edits.Type {
	case EditKindChange:
		score += kindChangeBonus
	case EditAddedMissing:
		score += addedMissingBonus
	}
	if score > bonusCap {
		score = bonusCap
	}
	return score
}

// shouldPromote gates few-shot promotion: only high-confidence, lightly
// edited corrections with source text attached are worth teaching from.
func (s *Service) shouldPromote(original *record.Candidate, edits EditResult, score float64, rawText string) bool {
	if score <= promotionBar || rawText == "" {
		return false
	}
	if len(edits.ChangedFields) > maxPromotedChanges {
		return false
	}
	if edits.Type == EditKindChange && original.Kind == record.KindUnknown && !s.promoteUnknownKindChange {
		return false
	}
	return true
}

func (s *Service) promote(ctx context.Context, final record.Candidate, correctionID uuid.UUID) {
	out, err := json.Marshal(final)
	if err != nil {
		s.logger.Error("marshal promoted example failed", "error", err)
		return
	}
	ex := PendingExample{
		ID:       uuid.New(),
		Kind:     final.Kind,
		Input:    final.RawText,
		Output:   out,
		Priority: promotedPriority,
	}
	if err := s.store.InsertPendingExample(ctx, ex); err != nil {
		s.logger.Error("insert pending example failed", "error", err, "kind", string(final.Kind))
		return
	}
	if s.reviewer != nil {
		s.reviewer.SubmitForReview(ctx, ex)
	}
	s.publish(subjectFewshotPromoted, map[string]any{
		"example_id":    ex.ID,
		"kind":          final.Kind,
		"correction_id": correctionID,
	})
}

func (s *Service) publish(subject string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(subject, payload); err != nil {
		s.logger.Warn("publish failed", "subject", subject, "error", err)
	}
}
