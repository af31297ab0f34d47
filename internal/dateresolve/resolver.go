// Package dateresolve rewrites relative Korean date expressions in OCR text
// into absolute ISO dates. Resolution is block-scoped: a blank line starts a
// new block, and relative expressions only ever resolve against an anchor
// date found inside their own block, falling back to the caller's "now".
package dateresolve

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Options controls resolution.
type Options struct {
	// Now is the reference time for blocks without an explicit anchor and
	// for inferring the year of ambiguous MM/DD anchors.
	Now time.Time
	// PreferPast forces ambiguous MM/DD anchors to the most recent past
	// occurrence. Off, the nearest calendar occurrence wins with past as
	// the tie-break.
	PreferPast bool
}

// Resolve replaces relative date expressions in text with absolute
// YYYY-MM-DD dates, leaving all other content untouched. Text without
// relative expressions is returned verbatim.
func Resolve(text string, opts Options) string {
	if text == "" {
		return text
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	lines := strings.Split(text, "\n")
	out := make([]string, len(lines))
	copy(out, lines)

	for _, b := range blockSpans(lines) {
		blockText := strings.Join(lines[b.start:b.end], "\n")
		base, ok := findAnchor(blockText, opts)
		if !ok {
			base = opts.Now
		}
		for i := b.start; i < b.end; i++ {
			out[i] = replaceRelatives(out[i], base, opts.PreferPast)
		}
	}

	return strings.Join(out, "\n")
}

type span struct {
	start, end int // [start, end) line indices
}

// blockSpans groups consecutive non-blank lines into blocks.
func blockSpans(lines []string) []span {
	var spans []span
	start := -1
	for i, line := range lines {
		blank := strings.TrimSpace(line) == ""
		switch {
		case blank && start >= 0:
			spans = append(spans, span{start, i})
			start = -1
		case !blank && start < 0:
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, span{start, len(lines)})
	}
	return spans
}

var (
	fullDateRe     = regexp.MustCompile(`(\d{4})[-./](\d{1,2})[-./](\d{1,2})`)
	monthDayTimeRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\s+(\d{1,2}):(\d{2})`)
	monthDayRe     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)
)

// findAnchor scans a block top-to-bottom for the first explicit date
// pattern. When two anchors exist, the first encountered is authoritative
// for the whole block.
func findAnchor(block string, opts Options) (time.Time, bool) {
	type match struct {
		at     int
		anchor time.Time
	}
	best := match{at: -1}
	consider := func(at int, t time.Time, ok bool) {
		if !ok {
			return
		}
		if best.at < 0 || at < best.at {
			best = match{at, t}
		}
	}

	if loc := fullDateRe.FindStringSubmatchIndex(block); loc != nil {
		y := atoi(block[loc[2]:loc[3]])
		m := atoi(block[loc[4]:loc[5]])
		d := atoi(block[loc[6]:loc[7]])
		consider(loc[0], newDate(y, m, d), validMonthDay(m, d))
	}
	if loc := monthDayTimeRe.FindStringSubmatchIndex(block); loc != nil {
		m := atoi(block[loc[2]:loc[3]])
		d := atoi(block[loc[4]:loc[5]])
		consider(loc[0], inferYear(m, d, opts), validMonthDay(m, d))
	}
	if loc := monthDayRe.FindStringSubmatchIndex(block); loc != nil {
		m := atoi(block[loc[2]:loc[3]])
		d := atoi(block[loc[4]:loc[5]])
		consider(loc[0], inferYear(m, d, opts), validMonthDay(m, d))
	}

	if best.at < 0 {
		return time.Time{}, false
	}
	return best.anchor, true
}

// inferYear assigns a year to a bare MM/DD anchor relative to opts.Now.
func inferYear(m, d int, opts Options) time.Time {
	today := dateOnly(opts.Now)

	if opts.PreferPast {
		c := newDate(today.Year(), m, d)
		if c.After(today) {
			c = c.AddDate(-1, 0, 0)
		}
		return c
	}

	// Nearest of last year, this year, next year. Iterating ascending with a
	// strict comparison makes the past candidate win distance ties.
	var best time.Time
	var bestDiff time.Duration
	for _, y := range []int{today.Year() - 1, today.Year(), today.Year() + 1} {
		c := newDate(y, m, d)
		diff := c.Sub(today)
		if diff < 0 {
			diff = -diff
		}
		if best.IsZero() || diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return best
}

// relRe lists day-offset words longest-first so 그저께 wins over 그제.
var relRe = regexp.MustCompile(`그저께|엊그제|그제|어제|오늘|내일|모레`)

var relOffsets = map[string]int{
	"그저께": -2,
	"엊그제": -2,
	"그제":  -2,
	"어제":  -1,
	"오늘":  0,
	"내일":  1,
	"모레":  2,
}

var dowRe = regexp.MustCompile(`(지난|다음|이번)?\s?([월화수목금토일])요일`)

var dowIndex = map[string]time.Weekday{
	"일": time.Sunday,
	"월": time.Monday,
	"화": time.Tuesday,
	"수": time.Wednesday,
	"목": time.Thursday,
	"금": time.Friday,
	"토": time.Saturday,
}

func replaceRelatives(line string, base time.Time, preferPast bool) string {
	anchor := dateOnly(base)

	line = relRe.ReplaceAllStringFunc(line, func(word string) string {
		return anchor.AddDate(0, 0, relOffsets[word]).Format("2006-01-02")
	})

	line = dowRe.ReplaceAllStringFunc(line, func(expr string) string {
		parts := dowRe.FindStringSubmatch(expr)
		target, ok := dowIndex[parts[2]]
		if !ok {
			return expr
		}
		return resolveWeekday(anchor, target, parts[1], preferPast).Format("2006-01-02")
	})

	return line
}

// resolveWeekday maps a day-of-week reference to a concrete date.
// 지난 means the previous occurrence strictly before the anchor, 다음 the
// next strictly after. A bare or 이번 reference resolves to the most recent
// occurrence when preferring the past, otherwise the nearest.
func resolveWeekday(anchor time.Time, target time.Weekday, modifier string, preferPast bool) time.Time {
	pastDelta := (int(anchor.Weekday()) - int(target) + 7) % 7
	futureDelta := (int(target) - int(anchor.Weekday()) + 7) % 7

	switch modifier {
	case "지난":
		if pastDelta == 0 {
			pastDelta = 7
		}
		return anchor.AddDate(0, 0, -pastDelta)
	case "다음":
		if futureDelta == 0 {
			futureDelta = 7
		}
		return anchor.AddDate(0, 0, futureDelta)
	}

	if preferPast || pastDelta == 0 {
		return anchor.AddDate(0, 0, -pastDelta)
	}
	if futureDelta < pastDelta {
		return anchor.AddDate(0, 0, futureDelta)
	}
	return anchor.AddDate(0, 0, -pastDelta)
}

func validMonthDay(m, d int) bool {
	return m >= 1 && m <= 12 && d >= 1 && d <= 31
}

func newDate(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s) // captures are digit-only by construction
	return n
}
