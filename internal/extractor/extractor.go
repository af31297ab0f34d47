package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/moabill/ledgerd/internal/anthropic"
	"github.com/moabill/ledgerd/internal/record"
	"github.com/moabill/ledgerd/internal/scanerr"
)

const (
	textMaxTokens   = 4096
	visionMaxTokens = 2048
)

// Extractor wraps the structured-output extraction calls. Text extraction
// returns multiple candidates; vision extraction returns exactly one.
type Extractor struct {
	text     *anthropic.Client
	vision   *anthropic.Client
	examples ExampleSource
	logger   *slog.Logger
}

func New(text, vision *anthropic.Client, examples ExampleSource, logger *slog.Logger) *Extractor {
	return &Extractor{text: text, vision: vision, examples: examples, logger: logger}
}

type llmResponse struct {
	Transactions []record.Candidate `json:"transactions"`
}

// ExtractFromText sends date-resolved text to the extraction service and
// parses the structured response into candidate records. A malformed
// response yields a parsing-kind error so the caller can recover locally.
func (e *Extractor) ExtractFromText(ctx context.Context, text string) ([]record.Candidate, error) {
	system := systemPrompt + "\n\n" + renderExamples(e.buildExamples(ctx))

	e.logger.Info("extracting from text", "text_len", len(text))

	raw, err := e.text.Complete(ctx, system, []anthropic.Message{{Role: "user", Content: text}}, textMaxTokens)
	if err != nil {
		return nil, stageErr("text", err)
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		e.logger.Error("failed to parse extraction response", "error", err, "raw", raw)
		return nil, scanerr.Wrap(scanerr.KindParsing, "text", err)
	}
	if len(resp.Transactions) == 0 {
		return nil, scanerr.New(scanerr.KindParsing, "text", "no transactions in response")
	}

	for i := range resp.Transactions {
		resp.Transactions[i].RawText = text
		resp.Transactions[i].Normalize()
	}

	e.logger.Info("text extraction complete", "candidates", len(resp.Transactions))
	return resp.Transactions, nil
}

// ExtractFromImage sends a base64 image to the vision-capable service and
// parses the single-record response.
func (e *Extractor) ExtractFromImage(ctx context.Context, mediaType, imageB64 string) (record.Candidate, error) {
	e.logger.Info("extracting from image", "media_type", mediaType, "image_len", len(imageB64))

	raw, err := e.vision.CompleteVision(ctx, systemPrompt, visionPrompt, mediaType, imageB64, visionMaxTokens)
	if err != nil {
		return record.Candidate{}, stageErr("vision", err)
	}

	var cand record.Candidate
	if err := json.Unmarshal([]byte(stripFences(raw)), &cand); err != nil {
		e.logger.Error("failed to parse vision response", "error", err, "raw", raw)
		return record.Candidate{}, scanerr.Wrap(scanerr.KindParsing, "vision", err)
	}

	cand.Medium = record.MediumScreenshot
	cand.Normalize()

	e.logger.Info("vision extraction complete", "kind", cand.Kind, "confidence", cand.Confidence)
	return cand, nil
}

// stageErr stamps the stage onto an already-tagged transport error, or
// wraps an untagged one using the generic classifier.
func stageErr(stage string, err error) error {
	var se *scanerr.Error
	if errors.As(err, &se) {
		se.Stage = stage
		return se
	}
	return scanerr.Wrap(scanerr.KindOf(err), stage, err)
}

// stripFences removes a surrounding markdown code fence, which the model
// occasionally adds around its JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
