package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/moabill/ledgerd/internal/feedback"
)

// ExampleStore is the subset of the record store the review loop needs.
type ExampleStore interface {
	ApproveExample(ctx context.Context, id uuid.UUID) error
	RejectExample(ctx context.Context, id uuid.UUID) error
}

type verdict int

const (
	verdictNone verdict = iota
	verdictApprove
	verdictReject
	verdictSkip
)

// Reviewer posts promoted few-shot candidates to Slack and applies the
// reviewer's reaction verdict back to the pending pool. Message timestamps
// are tracked in memory only: a restart orphans open reviews, which then
// simply stay pending.
type Reviewer struct {
	poster *Poster
	store  ExampleStore
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]uuid.UUID // message ts → example id
}

func NewReviewer(poster *Poster, store ExampleStore, logger *slog.Logger) *Reviewer {
	return &Reviewer{
		poster:  poster,
		store:   store,
		logger:  logger,
		pending: make(map[string]uuid.UUID),
	}
}

// SubmitForReview posts the example to the review channel. Failures are
// logged; the example stays in the pending table either way.
func (r *Reviewer) SubmitForReview(ctx context.Context, ex feedback.PendingExample) {
	ts, err := r.poster.PostExampleReview(ctx, ex)
	if err != nil {
		r.logger.Warn("failed to post example review", "example_id", ex.ID, "error", err)
		return
	}
	r.mu.Lock()
	r.pending[ts] = ex.ID
	r.mu.Unlock()
}

// reaction is a decoded slack-forwarder reaction event. The forwarder wraps
// the event fields in a metadata map, with the emoji name in "text",
// sometimes colon-wrapped.
type reaction struct {
	verdict   verdict
	messageTS string
	userID    string
}

func parseReaction(data []byte) (reaction, error) {
	var wrapper struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return reaction{}, fmt.Errorf("parse reaction wrapper: %w", err)
	}

	emoji := strings.Trim(wrapper.Metadata["text"], ":")
	v := verdictNone
	switch emoji {
	case "+1", "thumbsup":
		v = verdictApprove
	case "-1", "thumbsdown":
		v = verdictReject
	case "shrug":
		v = verdictSkip
	}

	return reaction{
		verdict:   v,
		messageTS: wrapper.Metadata["message_ts"],
		userID:    wrapper.Metadata["user_id"],
	}, nil
}

// HandleReaction processes the slack-forwarder reaction feed from NATS.
func (r *Reviewer) HandleReaction(subject string, data []byte) {
	ctx := context.Background()

	evt, err := parseReaction(data)
	if err != nil {
		r.logger.Error("failed to parse reaction", "error", err)
		return
	}
	if evt.verdict == verdictNone {
		return // not a review reaction
	}

	r.mu.Lock()
	exampleID, ok := r.pending[evt.messageTS]
	if ok {
		delete(r.pending, evt.messageTS)
	}
	r.mu.Unlock()
	if !ok {
		return // not a message we're tracking
	}

	switch evt.verdict {
	case verdictApprove:
		if err := r.store.ApproveExample(ctx, exampleID); err != nil {
			r.logger.Error("approve example failed", "example_id", exampleID, "error", err)
			return
		}
		r.logger.Info("example approved", "example_id", exampleID, "user_id", evt.userID)
	case verdictReject:
		if err := r.store.RejectExample(ctx, exampleID); err != nil {
			r.logger.Error("reject example failed", "example_id", exampleID, "error", err)
			return
		}
		r.logger.Info("example rejected", "example_id", exampleID, "user_id", evt.userID)
	case verdictSkip:
		r.logger.Info("example review skipped", "example_id", exampleID)
	}
}
