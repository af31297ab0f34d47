// Package slack posts promoted few-shot examples to a review channel and
// maps reviewer reactions back to approval verdicts.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/moabill/ledgerd/internal/feedback"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// SetAPIURL overrides the Slack endpoint. Test hook.
func (p *Poster) SetAPIURL(url string) {
	p.apiURL = url
}

// PostExampleReview posts a promoted few-shot candidate for human review.
// Returns the message timestamp (ts) which is used for tracking reactions.
func (p *Poster) PostExampleReview(ctx context.Context, ex feedback.PendingExample) (string, error) {
	text := formatExampleMessage(ex)

	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": "React: :+1: approve | :-1: reject | :shrug: skip",
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Info("posted example review to slack", "ts", slackResp.TS, "example_id", ex.ID)
	return slackResp.TS, nil
}

func formatExampleMessage(ex feedback.PendingExample) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*New few-shot candidate:* `%s` (priority %d)\n\n", ex.Kind, ex.Priority)
	fmt.Fprintf(&sb, "*Input:*\n```%s```\n", truncate(ex.Input, 500))
	fmt.Fprintf(&sb, "*Extracted:*\n```%s```", truncate(string(ex.Output), 500))

	return sb.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
