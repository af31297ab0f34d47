// Package confidence scores candidate records on four independent axes and
// combines them into a single trust score. Score is a pure function:
// identical inputs always produce identical output.
package confidence

import (
	"math"

	"github.com/moabill/ledgerd/internal/record"
)

// Stage identifies which pipeline attempt produced the candidate.
type Stage string

const (
	StageText   Stage = "text"
	StageVision Stage = "vision"
)

// Axis weights. Canonical weighting: OCR quality dominates because every
// downstream field depends on the reading being right.
const (
	weightOCR         = 0.35
	weightStruct      = 0.25
	weightType        = 0.20
	weightConsistency = 0.20
)

const (
	ocrVisionFixed = 0.95 // vision service reads the image itself
	ocrTextCap     = 0.95

	warningPenalty    = 0.15
	zeroAmountPenalty = 0.20
	subtypeBonus      = 0.05

	unknownTypeCap   = 0.30
	consistencyFloor = 0.40
	isoDatePenalty   = 0.20
	badAmountPenalty = 0.20

	missingMandatoryCeiling = 0.70
	unknownCeiling          = 0.40
	visionCompleteFloor     = 0.85
)

// Input carries everything Score needs.
type Input struct {
	Candidate  record.Candidate
	OCRQuality float64 // 0..100, from the OCR engine
	Stage      Stage
}

// Result is the combined score plus its per-axis breakdown, all rounded to
// two decimal places.
type Result struct {
	Score     float64
	Breakdown record.Breakdown
}

// Score computes the four axes, combines them by fixed weights, then
// applies the hard ceiling/floor clamps.
func Score(in Input) Result {
	c := in.Candidate
	missing := c.MissingMandatory()

	ocr := ocrAxis(in)
	structural := structAxis(c, missing)
	typ := typeAxis(c)
	consistency := consistencyAxis(c)

	score := weightOCR*ocr +
		weightStruct*structural +
		weightType*typ +
		weightConsistency*consistency

	// Hard clamps after weighting. The unknown ceiling goes last: UNKNOWN
	// has no mandatory fields, so the vision floor would otherwise lift an
	// already-capped score back up.
	if len(missing) > 0 && score > missingMandatoryCeiling {
		score = missingMandatoryCeiling
	}
	if in.Stage == StageVision && len(missing) == 0 && structural >= 0.95 && score < visionCompleteFloor {
		score = visionCompleteFloor
	}
	if c.Kind == record.KindUnknown && score > unknownCeiling {
		score = unknownCeiling
	}

	return Result{
		Score: round2(clamp01(score)),
		Breakdown: record.Breakdown{
			OCR:         round2(ocr),
			Struct:      round2(structural),
			Type:        round2(typ),
			Consistency: round2(consistency),
		},
	}
}

func ocrAxis(in Input) float64 {
	if in.Stage == StageVision {
		return ocrVisionFixed
	}
	q := in.OCRQuality / 100
	if q > ocrTextCap {
		q = ocrTextCap
	}
	return clamp01(q)
}

func structAxis(c record.Candidate, missing []string) float64 {
	s := 1.0
	if total := len(record.MandatoryFields(c.Kind)); total > 0 {
		s = float64(total-len(missing)) / float64(total)
	}
	if len(c.Warnings) > 0 {
		s -= warningPenalty
	}
	if record.AmountKind(c.Kind) && c.Amount == 0 {
		s -= zeroAmountPenalty
	}
	if s < 0 {
		s = 0
	}
	return s
}

func typeAxis(c record.Candidate) float64 {
	t := c.Confidence
	if c.Subtype != "" {
		t += subtypeBonus
	}
	if c.Kind == record.KindUnknown && t > unknownTypeCap {
		t = unknownTypeCap
	}
	return clamp01(t)
}

func consistencyAxis(c record.Candidate) float64 {
	s := 1.0
	for _, v := range c.DateFieldValues() {
		if !record.ValidISO(v) {
			s -= isoDatePenalty
			break
		}
	}
	if record.AmountKind(c.Kind) && c.Amount <= 0 {
		s -= badAmountPenalty
	}
	if s < consistencyFloor {
		s = consistencyFloor
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
