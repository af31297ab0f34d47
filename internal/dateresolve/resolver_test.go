package dateresolve

import (
	"strings"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve_NoRelativeExpressionsUnchanged(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"plain korean", "스타벅스 아메리카노 4,500원 결제"},
		{"explicit dates only", "2026-01-10 16:11 400,000원 저금\n01/10 승인"},
		{"multi block no relatives", "첫 번째 블록\n\n두 번째 블록"},
		{"trailing newline", "결제 완료\n"},
	}

	opts := Options{Now: date(2026, time.January, 12)}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.text, opts); got != tt.text {
				t.Errorf("Resolve() changed text:\n got %q\nwant %q", got, tt.text)
			}
		})
	}
}

func TestResolve_AnchorScopedPerBlock(t *testing.T) {
	// Two blocks with different anchors and identical relative expressions
	// must resolve to different dates.
	text := "03/10 14:00 입금\n어제 주문 완료\n\n03/20 09:00 출금\n어제 주문 완료"
	got := Resolve(text, Options{Now: date(2026, time.March, 25), PreferPast: true})

	if !strings.Contains(got, "2026-03-09 주문 완료") {
		t.Errorf("first block should resolve against 03/10 anchor, got:\n%s", got)
	}
	if !strings.Contains(got, "2026-03-19 주문 완료") {
		t.Errorf("second block should resolve against 03/20 anchor, got:\n%s", got)
	}
}

func TestResolve_AnchorDoesNotLeakAcrossBlocks(t *testing.T) {
	// Second block has no anchor: its relative expression falls back to
	// now, never to the first block's anchor.
	text := "01/05 결제\n어제 승인\n\n어제 승인"
	got := Resolve(text, Options{Now: date(2026, time.January, 12), PreferPast: true})

	blocks := strings.Split(got, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if !strings.Contains(blocks[0], "2026-01-04") {
		t.Errorf("first block should use its own anchor, got %q", blocks[0])
	}
	if !strings.Contains(blocks[1], "2026-01-11") {
		t.Errorf("second block should fall back to now, got %q", blocks[1])
	}
}

func TestResolve_PreferPastYearBoundary(t *testing.T) {
	// Anchor 12/31 with now just past new year resolves into the previous
	// year; a "yesterday" relative to it lands on 12/30.
	text := "12/31 23:50 결제\n어제 주문"
	got := Resolve(text, Options{Now: date(2026, time.January, 2), PreferPast: true})

	if !strings.Contains(got, "2025-12-30") {
		t.Errorf("expected 2025-12-30 in output, got:\n%s", got)
	}
}

func TestResolve_NearestProximityWithoutPreferPast(t *testing.T) {
	tests := []struct {
		name string
		text string
		now  time.Time
		want string
	}{
		{
			"nearby future wins",
			"01/20 예약\n오늘 확정",
			date(2026, time.January, 12),
			"2026-01-20",
		},
		{
			"nearby past wins",
			"01/05 결제\n오늘 확인",
			date(2026, time.January, 12),
			"2026-01-05",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.text, Options{Now: tt.now})
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected %s in output, got:\n%s", tt.want, got)
			}
		})
	}
}

func TestResolve_FirstAnchorAuthoritative(t *testing.T) {
	// A block with two explicit anchors uses the first, top-to-bottom.
	text := "01/10 16:11 결제\n01/20 09:00 환불\n어제 문의"
	got := Resolve(text, Options{Now: date(2026, time.January, 25), PreferPast: true})

	if !strings.Contains(got, "2026-01-09 문의") {
		t.Errorf("expected resolution against first anchor 01/10, got:\n%s", got)
	}
}

func TestResolve_FullDateAnchor(t *testing.T) {
	text := "2025-06-15 방문\n그저께 예약"
	got := Resolve(text, Options{Now: date(2026, time.January, 12)})

	if !strings.Contains(got, "2025-06-13 예약") {
		t.Errorf("expected 2025-06-13, got:\n%s", got)
	}
}

func TestResolve_RelativeWords(t *testing.T) {
	now := date(2026, time.January, 12)
	tests := []struct {
		word string
		want string
	}{
		{"그저께", "2026-01-10"},
		{"그제", "2026-01-10"},
		{"엊그제", "2026-01-10"},
		{"어제", "2026-01-11"},
		{"오늘", "2026-01-12"},
		{"내일", "2026-01-13"},
		{"모레", "2026-01-14"},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			got := Resolve(tt.word+" 약속", Options{Now: now})
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("Resolve(%q) = %q, want prefix %s", tt.word, got, tt.want)
			}
		})
	}
}

func TestResolve_DayOfWeek(t *testing.T) {
	// 2026-01-12 is a Monday.
	now := date(2026, time.January, 12)
	tests := []struct {
		name       string
		text       string
		preferPast bool
		want       string
	}{
		{"bare same day", "월요일 회의", true, "2026-01-12"},
		{"prefer past friday", "금요일 모임", true, "2026-01-09"},
		{"nearest future wednesday", "수요일 모임", false, "2026-01-14"},
		{"last monday", "지난 월요일 회의", false, "2026-01-05"},
		{"next monday", "다음 월요일 회의", false, "2026-01-19"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.text, Options{Now: now, PreferPast: tt.preferPast})
			if !strings.Contains(got, tt.want) {
				t.Errorf("Resolve(%q) = %q, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestResolve_EndToEndScenario(t *testing.T) {
	// The block's anchor is 01/10, found after the relative expression, so
	// 그저께 resolves to 01/08 — not 01/10 relative to now.
	text := "(그저께) 15:32\n[Web발신] 8,000원 결제\n01/10 16:11 400,000원 저금"
	got := Resolve(text, Options{Now: date(2026, time.January, 12), PreferPast: true})

	if !strings.Contains(got, "(2026-01-08) 15:32") {
		t.Errorf("expected 그저께 → 2026-01-08, got:\n%s", got)
	}
	if !strings.Contains(got, "01/10 16:11 400,000원 저금") {
		t.Errorf("anchor line should be preserved verbatim, got:\n%s", got)
	}
}

func TestResolve_SurroundingTextPreserved(t *testing.T) {
	text := "  앞공백 어제 뒤텍스트  "
	got := Resolve(text, Options{Now: date(2026, time.January, 12)})
	want := "  앞공백 2026-01-11 뒤텍스트  "
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}
