package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const (
	maxMergedExamples  = 20
	maxDynamicExamples = 15
	exampleFetchWait   = 3 * time.Second
)

// Example is one input→output pair fed into the extraction prompt.
// Dynamic examples come from user-corrected records that cleared the
// promotion bar; static ones are built in.
type Example struct {
	Kind     string          `json:"kind"`
	Input    string          `json:"input"`
	Output   json.RawMessage `json:"output"`
	Priority int             `json:"priority"`
}

// ExampleSource lists approved examples, highest priority first.
type ExampleSource interface {
	ListActiveExamples(ctx context.Context, limit int) ([]Example, error)
}

// allowedExampleFields is the fixed field set example outputs are
// normalized to before entering the prompt. Anything else is stripped.
var allowedExampleFields = map[string]bool{
	"type": true, "confidence": true, "subtype": true,
	"amount": true, "merchant": true, "counterpart": true,
	"occurred_at": true, "due_date": true, "expires_at": true, "event_date": true,
	"location": true, "barcode": true, "account_number": true,
	"billing_period": true, "brand": true, "item_name": true, "participants": true,
}

// buildExamples merges stored corrections with a random sample of the
// built-in examples. The store fetch runs under its own short deadline:
// a slow record store degrades to built-ins only, never blocks extraction.
func (e *Extractor) buildExamples(ctx context.Context) []Example {
	var dynamic []Example
	if e.examples != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, exampleFetchWait)
		defer cancel()
		got, err := e.examples.ListActiveExamples(fetchCtx, maxDynamicExamples)
		if err != nil {
			e.logger.Warn("few-shot fetch failed, using built-ins only", "error", err)
		} else {
			dynamic = got
		}
	}
	if len(dynamic) > maxDynamicExamples {
		dynamic = dynamic[:maxDynamicExamples]
	}

	merged := make([]Example, 0, maxMergedExamples)
	for _, ex := range dynamic {
		merged = append(merged, normalizeExample(ex))
	}

	for _, i := range rand.Perm(len(staticExamples)) {
		if len(merged) >= maxMergedExamples {
			break
		}
		merged = append(merged, staticExamples[i])
	}
	if len(merged) > maxMergedExamples {
		merged = merged[:maxMergedExamples]
	}
	return merged
}

// normalizeExample strips output fields outside the allowed set, dropping
// metadata like breakdowns and warnings that corrected records carry.
func normalizeExample(ex Example) Example {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(ex.Output, &fields); err != nil {
		return ex
	}
	for name := range fields {
		if !allowedExampleFields[name] {
			delete(fields, name)
		}
	}
	cleaned, err := json.Marshal(fields)
	if err != nil {
		return ex
	}
	ex.Output = cleaned
	return ex
}

func renderExamples(examples []Example) string {
	if len(examples) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Examples:\n")
	for i, ex := range examples {
		fmt.Fprintf(&b, "\nInput %d:\n%s\nOutput %d:\n{\"transactions\":[%s]}\n", i+1, ex.Input, i+1, ex.Output)
	}
	return b.String()
}

var staticExamples = []Example{
	{
		Kind:   "STORE_PAYMENT",
		Input:  "[Web발신]\n신한카드 승인\n김*진님 8,000원 일시불\n01/10 16:11 스타벅스",
		Output: json.RawMessage(`{"type":"STORE_PAYMENT","confidence":0.95,"amount":8000,"merchant":"스타벅스","occurred_at":"2026-01-10 16:11","subtype":"카드결제"}`),
	},
	{
		Kind:   "BANK_TRANSFER",
		Input:  "국민은행 입금 400,000원\n01/10 16:11 김철수\n잔액 1,234,567원",
		Output: json.RawMessage(`{"type":"BANK_TRANSFER","confidence":0.93,"amount":400000,"counterpart":"김철수","occurred_at":"2026-01-10 16:11"}`),
	},
	{
		Kind:   "GIFTICON",
		Input:  "스타벅스 아이스 아메리카노 Tall\n교환처: 스타벅스\n유효기간: 2026-06-30\n주문번호 8012-3456-7890",
		Output: json.RawMessage(`{"type":"GIFTICON","confidence":0.9,"brand":"스타벅스","item_name":"아이스 아메리카노 Tall","expires_at":"2026-06-30","barcode":"8012-3456-7890"}`),
	},
	{
		Kind:   "INVITATION",
		Input:  "저희 두 사람이 결혼합니다\n2026-05-16 12:30\n더채플앳청담 3층",
		Output: json.RawMessage(`{"type":"INVITATION","confidence":0.92,"event_date":"2026-05-16 12:30","location":"더채플앳청담 3층"}`),
	},
	{
		Kind:   "BILL",
		Input:  "SKT 12월 요금 청구서\n청구 금액 55,000원\n납기일 2026-01-25",
		Output: json.RawMessage(`{"type":"BILL","confidence":0.91,"amount":55000,"due_date":"2026-01-25","billing_period":"2025-12"}`),
	},
	{
		Kind:   "UNKNOWN",
		Input:  "ㅋㅋㅋ 내일 보자",
		Output: json.RawMessage(`{"type":"UNKNOWN","confidence":0.2}`),
	},
}
