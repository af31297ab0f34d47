package backfill

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestParseJSONLFile(t *testing.T) {
	content := `{"text":"[Web발신] 스타벅스 8,000원 결제","received_at":"2026-01-10T16:11:00Z","source":"sms"}
{"body":"국민은행 입금 400,000원","date":"2026-01-11 09:30"}
not json at all
{"text":"   "}
{"text":"쿠폰 만료 안내"}`

	msgs, err := ParseJSONLFile(writeFile(t, "export.jsonl", content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3 (malformed and blank skipped)", len(msgs))
	}

	if msgs[0].Source != "sms" {
		t.Errorf("source = %q, want sms", msgs[0].Source)
	}
	want := time.Date(2026, time.January, 10, 16, 11, 0, 0, time.UTC)
	if !msgs[0].ReceivedAt.Equal(want) {
		t.Errorf("received_at = %v, want %v", msgs[0].ReceivedAt, want)
	}

	// body and date fallbacks
	if msgs[1].Text != "국민은행 입금 400,000원" {
		t.Errorf("text = %q", msgs[1].Text)
	}
	if msgs[1].ReceivedAt.IsZero() {
		t.Error("expected date fallback parsed")
	}

	// missing timestamp is fine
	if !msgs[2].ReceivedAt.IsZero() {
		t.Errorf("expected zero time, got %v", msgs[2].ReceivedAt)
	}
}

func TestParseJSONLFile_Missing(t *testing.T) {
	if _, err := ParseJSONLFile("/no/such/file.jsonl"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseTextFile(t *testing.T) {
	content := `[2026-01-10 16:11] [Web발신] 스타벅스 8,000원 결제

국민은행 입금 400,000원
김철수

[bad timestamp stays in text`

	msgs, err := ParseTextFile(writeFile(t, "export.txt", content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}

	want := time.Date(2026, time.January, 10, 16, 11, 0, 0, time.UTC)
	if !msgs[0].ReceivedAt.Equal(want) {
		t.Errorf("received_at = %v, want %v", msgs[0].ReceivedAt, want)
	}
	if msgs[0].Text != "[Web발신] 스타벅스 8,000원 결제" {
		t.Errorf("text = %q", msgs[0].Text)
	}

	// multi-line block without timestamp
	if msgs[1].ReceivedAt.IsZero() == false {
		t.Error("expected zero time for undated block")
	}
	if msgs[1].Text != "국민은행 입금 400,000원\n김철수" {
		t.Errorf("text = %q", msgs[1].Text)
	}

	// unparseable prefix is kept as message text
	if msgs[2].Text == "" {
		t.Error("expected block with bad timestamp preserved")
	}
}
