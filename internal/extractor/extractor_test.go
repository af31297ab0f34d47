package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/moabill/ledgerd/internal/anthropic"
	"github.com/moabill/ledgerd/internal/record"
	"github.com/moabill/ledgerd/internal/scanerr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func textResponse(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": body}},
		})
	}))
}

func newTestExtractor(t *testing.T, server *httptest.Server, examples ExampleSource) *Extractor {
	t.Helper()
	text := anthropic.NewClient("key", "text-model")
	text.SetTestTransport(server.URL)
	vision := anthropic.NewClient("key", "vision-model")
	vision.SetTestTransport(server.URL)
	return New(text, vision, examples, discardLogger())
}

func TestExtractFromText_Success(t *testing.T) {
	server := textResponse(t, `{"transactions":[{"type":"STORE_PAYMENT","confidence":0.95,"amount":8000,"merchant":"스타벅스","occurred_at":"2026-01-10 16:11"}]}`)
	defer server.Close()

	e := newTestExtractor(t, server, nil)
	got, err := e.ExtractFromText(context.Background(), "[Web발신] 8,000원 결제")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Kind != record.KindStorePayment {
		t.Errorf("kind = %s, want STORE_PAYMENT", got[0].Kind)
	}
	if got[0].Amount != 8000 {
		t.Errorf("amount = %d, want 8000", got[0].Amount)
	}
	if got[0].RawText != "[Web발신] 8,000원 결제" {
		t.Errorf("raw text not attached: %q", got[0].RawText)
	}
}

func TestExtractFromText_StripsCodeFence(t *testing.T) {
	server := textResponse(t, "```json\n{\"transactions\":[{\"type\":\"BILL\",\"confidence\":0.9,\"amount\":55000,\"due_date\":\"2026-01-25\"}]}\n```")
	defer server.Close()

	e := newTestExtractor(t, server, nil)
	got, err := e.ExtractFromText(context.Background(), "청구 금액 55,000원")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Kind != record.KindBill {
		t.Errorf("kind = %s, want BILL", got[0].Kind)
	}
}

func TestExtractFromText_ParsingErrorKind(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "I could not find any transactions here."},
		{"empty transactions", `{"transactions":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := textResponse(t, tt.body)
			defer server.Close()

			e := newTestExtractor(t, server, nil)
			_, err := e.ExtractFromText(context.Background(), "text")
			if err == nil {
				t.Fatal("expected error")
			}
			if !scanerr.IsKind(err, scanerr.KindParsing) {
				t.Errorf("error kind = %s, want parsing", scanerr.KindOf(err))
			}
		})
	}
}

func TestExtractFromText_InvalidKindNormalizedToUnknown(t *testing.T) {
	server := textResponse(t, `{"transactions":[{"type":"LOTTERY","confidence":0.8,"amount":1000}]}`)
	defer server.Close()

	e := newTestExtractor(t, server, nil)
	got, err := e.ExtractFromText(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Kind != record.KindUnknown {
		t.Errorf("kind = %s, want UNKNOWN", got[0].Kind)
	}
	if got[0].Amount != 0 {
		t.Error("UNKNOWN candidate must not carry kind-specific fields")
	}
}

func TestExtractFromImage_Success(t *testing.T) {
	server := textResponse(t, `{"type":"GIFTICON","confidence":0.9,"brand":"CU","item_name":"아메리카노","expires_at":"2026-06-30"}`)
	defer server.Close()

	e := newTestExtractor(t, server, nil)
	got, err := e.ExtractFromImage(context.Background(), "image/png", "aGVsbG8=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != record.KindGifticon {
		t.Errorf("kind = %s, want GIFTICON", got.Kind)
	}
	if got.Medium != record.MediumScreenshot {
		t.Errorf("medium = %s, want screenshot", got.Medium)
	}
}

func TestExtractFromImage_ParsingError(t *testing.T) {
	server := textResponse(t, "sorry, no")
	defer server.Close()

	e := newTestExtractor(t, server, nil)
	_, err := e.ExtractFromImage(context.Background(), "image/png", "aGVsbG8=")
	if !scanerr.IsKind(err, scanerr.KindParsing) {
		t.Errorf("error kind = %s, want parsing", scanerr.KindOf(err))
	}
}

type fakeExampleSource struct {
	examples []Example
	err      error
	delay    time.Duration
	gotLimit int
}

func (f *fakeExampleSource) ListActiveExamples(ctx context.Context, limit int) ([]Example, error) {
	f.gotLimit = limit
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.examples, f.err
}

func TestBuildExamples_MergeCaps(t *testing.T) {
	var dynamic []Example
	for i := 0; i < 30; i++ {
		dynamic = append(dynamic, Example{
			Kind:   "STORE_PAYMENT",
			Input:  "input",
			Output: json.RawMessage(`{"type":"STORE_PAYMENT","confidence":0.9}`),
		})
	}
	src := &fakeExampleSource{examples: dynamic}
	e := New(nil, nil, src, discardLogger())

	merged := e.buildExamples(context.Background())
	if len(merged) > maxMergedExamples {
		t.Errorf("merged %d examples, cap is %d", len(merged), maxMergedExamples)
	}
	if src.gotLimit != maxDynamicExamples {
		t.Errorf("fetch limit = %d, want %d", src.gotLimit, maxDynamicExamples)
	}
}

func TestBuildExamples_FetchErrorFallsBackToBuiltins(t *testing.T) {
	src := &fakeExampleSource{err: errors.New("store down")}
	e := New(nil, nil, src, discardLogger())

	merged := e.buildExamples(context.Background())
	if len(merged) == 0 {
		t.Error("expected built-in examples on fetch failure")
	}
	if len(merged) > len(staticExamples) {
		t.Errorf("expected only built-ins, got %d", len(merged))
	}
}

func TestBuildExamples_SlowFetchTimesOut(t *testing.T) {
	src := &fakeExampleSource{
		examples: []Example{{Kind: "BILL", Input: "x", Output: json.RawMessage(`{}`)}},
		delay:    exampleFetchWait + time.Second,
	}
	e := New(nil, nil, src, discardLogger())

	start := time.Now()
	merged := e.buildExamples(context.Background())
	if elapsed := time.Since(start); elapsed > exampleFetchWait+500*time.Millisecond {
		t.Errorf("buildExamples blocked for %s", elapsed)
	}
	if len(merged) != len(staticExamples) {
		t.Errorf("expected built-ins only after timeout, got %d", len(merged))
	}
}

func TestNormalizeExample_StripsDisallowedFields(t *testing.T) {
	ex := Example{
		Kind:   "STORE_PAYMENT",
		Input:  "in",
		Output: json.RawMessage(`{"type":"STORE_PAYMENT","confidence":0.9,"amount":100,"warnings":["w"],"confidence_breakdown":{"ocr":1},"raw_text":"x"}`),
	}
	got := normalizeExample(ex)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(got.Output, &fields); err != nil {
		t.Fatalf("normalized output not JSON: %v", err)
	}
	for _, banned := range []string{"warnings", "confidence_breakdown", "raw_text"} {
		if _, ok := fields[banned]; ok {
			t.Errorf("field %s should be stripped", banned)
		}
	}
	for _, kept := range []string{"type", "confidence", "amount"} {
		if _, ok := fields[kept]; !ok {
			t.Errorf("field %s should be kept", kept)
		}
	}
}

func TestRenderExamples(t *testing.T) {
	if renderExamples(nil) != "" {
		t.Error("no examples should render empty string")
	}

	out := renderExamples([]Example{{
		Kind:   "BILL",
		Input:  "청구 금액 55,000원",
		Output: json.RawMessage(`{"type":"BILL","confidence":0.9}`),
	}})
	if !strings.Contains(out, "청구 금액 55,000원") {
		t.Error("rendered examples should include the input text")
	}
	if !strings.Contains(out, `"transactions"`) {
		t.Error("rendered output should be wrapped in the transactions schema")
	}
}
