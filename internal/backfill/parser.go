package backfill

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// jsonlLine is one line of a structured export: the format most Android
// SMS-backup apps produce.
type jsonlLine struct {
	Text       string `json:"text"`
	Body       string `json:"body"` // some exporters use body instead of text
	ReceivedAt string `json:"received_at"`
	Date       string `json:"date"`
	Source     string `json:"source"`
}

// ParseJSONLFile parses a structured JSONL export. Malformed lines are
// skipped, not fatal: exports are frequently truncated mid-line.
func ParseJSONLFile(path string) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var msgs []Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line jsonlLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}

		text := line.Text
		if text == "" {
			text = line.Body
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		msgs = append(msgs, Message{
			Text:       text,
			ReceivedAt: parseTimestamp(line.ReceivedAt, line.Date),
			Source:     line.Source,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return msgs, nil
}

// ParseTextFile parses a plain-text export: messages separated by blank
// lines, an optional leading "[2026-01-10 16:11]" timestamp per block.
func ParseTextFile(path string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var msgs []Message
	for _, block := range strings.Split(string(data), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		ts, rest := splitLeadingTimestamp(block)
		if strings.TrimSpace(rest) == "" {
			continue
		}
		msgs = append(msgs, Message{Text: rest, ReceivedAt: ts})
	}
	return msgs, nil
}

// splitLeadingTimestamp strips a "[YYYY-MM-DD HH:MM]" prefix if present.
func splitLeadingTimestamp(block string) (time.Time, string) {
	if !strings.HasPrefix(block, "[") {
		return time.Time{}, block
	}
	end := strings.IndexByte(block, ']')
	if end < 0 {
		return time.Time{}, block
	}
	ts, err := time.Parse("2006-01-02 15:04", block[1:end])
	if err != nil {
		return time.Time{}, block
	}
	return ts, strings.TrimSpace(block[end+1:])
}

// parseTimestamp tries the timestamp formats seen across exporters.
func parseTimestamp(candidates ...string) time.Time {
	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		for _, f := range formats {
			if t, err := time.Parse(f, c); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
