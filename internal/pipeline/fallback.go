package pipeline

import (
	"fmt"
	"regexp"
	"time"

	"github.com/moabill/ledgerd/internal/record"
)

// Regex-based last-resort extraction. When even the text stage cannot
// produce a record, the pipeline still returns something: an UNKNOWN
// candidate carrying whatever a date and amount scan could salvage as
// evidence snippets.

const fallbackConfidence = 0.15

var (
	fallbackFullDateRe = regexp.MustCompile(`(\d{4})[-./](\d{1,2})[-./](\d{1,2})`)
	fallbackAmountRe   = regexp.MustCompile(`([0-9][0-9,]*)\s*원`)
)

// fallbackCandidate scans text for the latest full date (an expiry/date
// guess) and the first currency amount (a price guess).
func fallbackCandidate(text string) record.Candidate {
	cand := record.Candidate{
		Kind:       record.KindUnknown,
		Confidence: fallbackConfidence,
		RawText:    text,
		Warnings:   []string{"regex_fallback"},
	}

	if latest, ok := latestDate(text); ok {
		cand.Evidence = append(cand.Evidence, "date:"+latest.Format("2006-01-02"))
	}
	if m := fallbackAmountRe.FindStringSubmatch(text); m != nil {
		cand.Evidence = append(cand.Evidence, "amount:"+m[1])
	}

	cand.Normalize()
	return cand
}

// latestDate returns the calendar-latest valid date mentioned in text.
func latestDate(text string) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, m := range fallbackFullDateRe.FindAllStringSubmatch(text, -1) {
		t, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]))
		if err != nil {
			continue
		}
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	return latest, found
}
