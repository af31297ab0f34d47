// Package pipeline chains text extraction, vision fallback and regex
// last-resort extraction into one analysis flow with per-stage timeouts.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/moabill/ledgerd/internal/confidence"
	"github.com/moabill/ledgerd/internal/dateresolve"
	"github.com/moabill/ledgerd/internal/record"
	"github.com/moabill/ledgerd/internal/scanerr"
	"github.com/moabill/ledgerd/internal/scanlog"
)

const (
	defaultTextTimeout   = 15 * time.Second
	defaultVisionTimeout = 20 * time.Second

	// Below this score the text result is weak enough to try vision.
	visionThreshold = 0.6
)

// TextExtractor is the text-stage extraction call.
type TextExtractor interface {
	ExtractFromText(ctx context.Context, text string) ([]record.Candidate, error)
}

// VisionExtractor is the image-stage extraction call.
type VisionExtractor interface {
	ExtractFromImage(ctx context.Context, mediaType, imageB64 string) (record.Candidate, error)
}

// Analyzer orchestrates one analysis request at a time. Stages run
// cooperatively: each completes, fails or times out before the next starts.
type Analyzer struct {
	text   TextExtractor
	vision VisionExtractor
	logger *slog.Logger

	textTimeout   time.Duration
	visionTimeout time.Duration
}

func New(text TextExtractor, vision VisionExtractor, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		text:          text,
		vision:        vision,
		logger:        logger,
		textTimeout:   defaultTextTimeout,
		visionTimeout: defaultVisionTimeout,
	}
}

// Request is one user-initiated scan.
type Request struct {
	Text           string
	ImageB64       string
	ImageMediaType string
	OCRQuality     float64 // 0..100 from the OCR engine
	Now            time.Time
	PreferPast     bool
}

// Analyze runs the pipeline and always produces a record unless the vision
// stage — as the last attempted stage — times out, which surfaces as a
// typed terminal error.
func (a *Analyzer) Analyze(ctx context.Context, req Request, sess *scanlog.Session) (record.Candidate, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	resolved := dateresolve.Resolve(req.Text, dateresolve.Options{Now: now, PreferPast: req.PreferPast})

	textResult := a.runTextStage(ctx, resolved, req.OCRQuality, sess)

	if a.needsVision(textResult) && WorthVision(resolved) && req.ImageB64 != "" {
		final, terminal, err := a.runVisionStage(ctx, req, resolved, sess)
		if terminal {
			return record.Candidate{}, err
		}
		if err == nil {
			return final, nil
		}
		// Non-terminal vision failure: fall through to the text result.
	}

	if textResult != nil {
		return *textResult, nil
	}

	// Nothing else worked; the pipeline never returns nothing.
	fb := fallbackCandidate(resolved)
	sess.StageOutcome("fallback", scanlog.StatusRecovered, "regex last resort")
	return fb, nil
}

// runTextStage returns the scored text-stage result, the regex fallback on
// a parsing failure, or nil on harder failures.
func (a *Analyzer) runTextStage(ctx context.Context, text string, ocrQuality float64, sess *scanlog.Session) *record.Candidate {
	sess.StageStart("text")

	cands, err := a.raceText(ctx, text)
	switch {
	case err == nil && len(cands) > 0:
		best := pickBest(cands)
		res := confidence.Score(confidence.Input{
			Candidate:  best,
			OCRQuality: ocrQuality,
			Stage:      confidence.StageText,
		})
		best.Confidence = res.Score
		best.Breakdown = &res.Breakdown
		sess.StageOutcome("text", scanlog.StatusOK, "")
		return &best

	case scanerr.IsKind(err, scanerr.KindParsing):
		// Recover locally: a malformed response still leaves raw text to scan.
		a.logger.Warn("text stage parse failure, using regex fallback", "error", err)
		fb := fallbackCandidate(text)
		sess.StageOutcome("text", scanlog.StatusRecovered, "parse failure, regex fallback")
		return &fb

	case scanerr.IsKind(err, scanerr.KindTimeout):
		a.logger.Warn("text stage timed out", "timeout", a.textTimeout)
		sess.StageOutcome("text", scanlog.StatusTimeout, "")
		return nil

	default:
		a.logger.Warn("text stage failed", "error", err, "kind", string(scanerr.KindOf(err)))
		sess.StageOutcome("text", scanlog.StatusFailed, string(scanerr.KindOf(err)))
		return nil
	}
}

// runVisionStage returns the scored vision result, or an error that is
// terminal only for a stage timeout.
func (a *Analyzer) runVisionStage(ctx context.Context, req Request, resolved string, sess *scanlog.Session) (record.Candidate, bool, error) {
	sess.StageStart("vision")

	cand, err := a.raceVision(ctx, req.ImageMediaType, req.ImageB64)
	switch {
	case err == nil:
		res := confidence.Score(confidence.Input{
			Candidate:  cand,
			OCRQuality: req.OCRQuality,
			Stage:      confidence.StageVision,
		})
		cand.Confidence = res.Score
		cand.Breakdown = &res.Breakdown
		if cand.RawText == "" {
			cand.RawText = resolved
		}
		sess.StageOutcome("vision", scanlog.StatusOK, "")
		return cand, false, nil

	case scanerr.IsKind(err, scanerr.KindTimeout):
		// Vision was the last attempted stage; surface the timeout.
		sess.StageOutcome("vision", scanlog.StatusTimeout, "")
		return record.Candidate{}, true, err

	default:
		a.logger.Warn("vision stage failed", "error", err, "kind", string(scanerr.KindOf(err)))
		sess.StageOutcome("vision", scanlog.StatusFailed, string(scanerr.KindOf(err)))
		return record.Candidate{}, false, err
	}
}

// needsVision decides whether the text-stage outcome is weak enough to pay
// for a vision call.
func (a *Analyzer) needsVision(textResult *record.Candidate) bool {
	if a.vision == nil {
		return false
	}
	if textResult == nil {
		return true
	}
	return textResult.Confidence < visionThreshold ||
		textResult.Kind == record.KindUnknown ||
		len(textResult.Warnings) > 0
}

// raceText runs the text extraction against the stage deadline. On expiry
// the in-flight call is abandoned and its eventual result discarded.
func (a *Analyzer) raceText(ctx context.Context, text string) ([]record.Candidate, error) {
	type outcome struct {
		cands []record.Candidate
		err   error
	}
	stageCtx, cancel := context.WithTimeout(ctx, a.textTimeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		cands, err := a.text.ExtractFromText(stageCtx, text)
		ch <- outcome{cands, err}
	}()

	select {
	case out := <-ch:
		return out.cands, out.err
	case <-stageCtx.Done():
		return nil, deadlineErr("text", stageCtx.Err())
	}
}

func (a *Analyzer) raceVision(ctx context.Context, mediaType, imageB64 string) (record.Candidate, error) {
	type outcome struct {
		cand record.Candidate
		err  error
	}
	stageCtx, cancel := context.WithTimeout(ctx, a.visionTimeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		cand, err := a.vision.ExtractFromImage(stageCtx, mediaType, imageB64)
		ch <- outcome{cand, err}
	}()

	select {
	case out := <-ch:
		return out.cand, out.err
	case <-stageCtx.Done():
		return record.Candidate{}, deadlineErr("vision", stageCtx.Err())
	}
}

// deadlineErr distinguishes stage-deadline expiry from caller cancellation.
func deadlineErr(stage string, err error) error {
	if err == context.Canceled {
		return scanerr.Wrap(scanerr.KindCancelled, stage, err)
	}
	return scanerr.Wrap(scanerr.KindTimeout, stage, err)
}

// pickBest returns the candidate with the highest self-reported confidence.
func pickBest(cands []record.Candidate) record.Candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return best
}
