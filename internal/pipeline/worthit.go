package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// A vision call costs real money; it is only worth making when the text
// shows some sign of containing a document. The signals and keyword table
// live here as static data, checked by a single pure predicate.

var (
	amountSignalRe = regexp.MustCompile(`[0-9][0-9,]*\s*원|₩\s*[0-9][0-9,]*`)
	yearSignalRe   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

var worthKeywords = []string{
	"결제", "승인", "주문", "예약", "초대",
	"입금", "출금", "송금", "청구", "납부",
}

const minWorthLength = 10 // runes

// WorthVision reports whether the raw text justifies a vision-stage call.
func WorthVision(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	// Cheap short-circuit: tiny inputs without a keyword cannot carry the
	// longer signals either.
	if utf8.RuneCountInString(trimmed) < minWorthLength && !hasKeyword(trimmed) {
		return false
	}
	return amountSignalRe.MatchString(trimmed) ||
		yearSignalRe.MatchString(trimmed) ||
		hasKeyword(trimmed)
}

func hasKeyword(text string) bool {
	for _, kw := range worthKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
