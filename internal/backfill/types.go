// Package backfill imports historical message exports: it parses SMS and
// notification dumps, skips already-seen content, and runs each message
// through the extraction pipeline.
package backfill

import "time"

// Message is one historical notification or SMS from an export file.
type Message struct {
	Text       string
	ReceivedAt time.Time
	Source     string // "sms", "push", or "" when the export does not say
}

// ExportFormat indicates which parser produced a message batch.
type ExportFormat int

const (
	FormatJSONL ExportFormat = iota
	FormatText
)
