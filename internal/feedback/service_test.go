package feedback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/moabill/ledgerd/internal/record"
)

type fakeRecorder struct {
	corrections []Correction
	examples    []PendingExample
	seenHashes  map[string]bool
	corrErr     error
	exErr       error
}

func (f *fakeRecorder) InsertCorrection(ctx context.Context, c Correction) error {
	if f.corrErr != nil {
		return f.corrErr
	}
	f.corrections = append(f.corrections, c)
	return nil
}

func (f *fakeRecorder) InsertPendingExample(ctx context.Context, ex PendingExample) error {
	if f.exErr != nil {
		return f.exErr
	}
	f.examples = append(f.examples, ex)
	return nil
}

func (f *fakeRecorder) HasCorrectionForImage(ctx context.Context, imageHash string) (bool, error) {
	return f.seenHashes[imageHash], nil
}

type fakeBus struct {
	published []string
}

func (f *fakeBus) Publish(subject string, payload any) error {
	f.published = append(f.published, subject)
	return nil
}

func newTestService(rec *fakeRecorder, bus *fakeBus, promoteUnknown bool) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(rec, bus, nil, logger, promoteUnknown)
}

func finalPayment() record.Candidate {
	return record.Candidate{
		Kind:       record.KindStorePayment,
		Confidence: 0.9,
		Amount:     8000,
		Merchant:   "스타벅스",
		OccurredAt: "2026-01-10 16:11",
		RawText:    "[Web발신] 스타벅스 8,000원 결제",
	}
}

func TestProcessUserFeedback_NoOriginalIsNoop(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newTestService(rec, &fakeBus{}, false)

	svc.ProcessUserFeedback(context.Background(), Input{Final: finalPayment(), Level: ConfirmDetail})

	if len(rec.corrections) != 0 {
		t.Errorf("expected no correction without an original, got %d", len(rec.corrections))
	}
}

func TestProcessUserFeedback_KindChangeBonus(t *testing.T) {
	orig := finalPayment()
	final := finalPayment()
	final.Kind = record.KindBankTransfer
	final.Merchant = ""
	// Counterpart left empty: the missing-mandatory ceiling keeps both the
	// base and the bonused score below the cap, so the bonus is observable.

	rec := &fakeRecorder{}
	svc := newTestService(rec, &fakeBus{}, false)

	svc.ProcessUserFeedback(context.Background(), Input{Original: &orig, Final: final, Level: ConfirmDetail})

	if len(rec.corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(rec.corrections))
	}
	c := rec.corrections[0]
	if c.EditType != EditKindChange {
		t.Errorf("edit type = %s, want kind_change", c.EditType)
	}

	// Same final record without the kind change scores lower: the delta is
	// exactly the kind-change bonus.
	noEdit := DetectEdits(&final, &final)
	base := svc.recompute(final, noEdit, ConfirmDetail)
	if diff := c.ConfidenceAfter - base; diff < kindChangeBonus-0.001 || diff > kindChangeBonus+0.001 {
		t.Errorf("kind-change bonus = %f, want %f", diff, kindChangeBonus)
	}
}

func TestProcessUserFeedback_ManualEntryAlwaysOne(t *testing.T) {
	orig := finalPayment()
	final := finalPayment()
	final.Merchant = "" // incomplete record would otherwise be capped

	rec := &fakeRecorder{}
	svc := newTestService(rec, &fakeBus{}, false)

	svc.ProcessUserFeedback(context.Background(), Input{Original: &orig, Final: final, Level: ConfirmManualEntry})

	if len(rec.corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(rec.corrections))
	}
	if got := rec.corrections[0].ConfidenceAfter; got != 1.0 {
		t.Errorf("manual entry confidence = %f, want 1.0", got)
	}
}

func TestProcessUserFeedback_DemotesUneditedConfirmation(t *testing.T) {
	orig := finalPayment()
	final := finalPayment()

	rec := &fakeRecorder{}
	svc := newTestService(rec, &fakeBus{}, false)

	svc.ProcessUserFeedback(context.Background(), Input{Original: &orig, Final: final, Level: ConfirmDetail})

	if got := rec.corrections[0].ConfirmationLevel; got != ConfirmQuick {
		t.Errorf("level = %s, want quick_confirm demotion", got)
	}
}

func TestProcessUserFeedback_BonusCappedBelowCap(t *testing.T) {
	orig := finalPayment()
	orig.OccurredAt = ""
	final := finalPayment()

	rec := &fakeRecorder{}
	svc := newTestService(rec, &fakeBus{}, false)

	svc.ProcessUserFeedback(context.Background(), Input{Original: &orig, Final: final, Level: ConfirmDetail})

	if got := rec.corrections[0].ConfidenceAfter; got > bonusCap {
		t.Errorf("confidence %f exceeds cap %f", got, bonusCap)
	}
}

func TestProcessUserFeedback_PromotesHighQualityCorrection(t *testing.T) {
	orig := finalPayment()
	orig.Merchant = "스타박스"
	final := finalPayment()

	rec := &fakeRecorder{}
	bus := &fakeBus{}
	svc := newTestService(rec, bus, false)

	svc.ProcessUserFeedback(context.Background(), Input{Original: &orig, Final: final, Level: ConfirmDetail})

	if len(rec.examples) != 1 {
		t.Fatalf("examples = %d, want 1", len(rec.examples))
	}
	ex := rec.examples[0]
	if ex.Kind != record.KindStorePayment {
		t.Errorf("example kind = %s", ex.Kind)
	}
	if ex.Input != final.RawText {
		t.Errorf("example input = %q, want the source raw text", ex.Input)
	}
	if !strings.Contains(string(ex.Output), "STORE_PAYMENT") {
		t.Errorf("example output missing kind: %s", ex.Output)
	}

	var sawPromoted bool
	for _, subj := range bus.published {
		if subj == subjectFewshotPromoted {
			sawPromoted = true
		}
	}
	if !sawPromoted {
		t.Errorf("expected %s published, got %v", subjectFewshotPromoted, bus.published)
	}
}

func TestProcessUserFeedback_NoPromotionWithoutRawText(t *testing.T) {
	orig := finalPayment()
	orig.Merchant = "스타박스"
	final := finalPayment()
	final.RawText = ""

	rec := &fakeRecorder{}
	svc := newTestService(rec, &fakeBus{}, false)

	svc.ProcessUserFeedback(context.Background(), Input{Original: &orig, Final: final, Level: ConfirmDetail})

	if len(rec.examples) != 0 {
		t.Errorf("promoted without raw text: %d examples", len(rec.examples))
	}
}

func TestProcessUserFeedback_NoPromotionForHeavyEdits(t *testing.T) {
	orig := finalPayment()
	orig.Amount = 1
	orig.Merchant = "a"
	orig.OccurredAt = "2020-01-01"
	final := finalPayment()
	final.Location = "강남"
	final.Barcode = "123"

	rec := &fakeRecorder{}
	svc := newTestService(rec, &fakeBus{}, false)

	svc.ProcessUserFeedback(context.Background(), Input{Original: &orig, Final: final, Level: ConfirmDetail})

	if len(rec.examples) != 0 {
		t.Errorf("promoted a correction with %v changed fields", rec.corrections[0].ChangedFields)
	}
}

func TestProcessUserFeedback_UnknownKindChangePromotionGated(t *testing.T) {
	orig := record.Candidate{Kind: record.KindUnknown, Confidence: 0.15}
	final := finalPayment()

	for _, allow := range []bool{false, true} {
		rec := &fakeRecorder{}
		svc := newTestService(rec, &fakeBus{}, allow)

		svc.ProcessUserFeedback(context.Background(), Input{Original: &orig, Final: final, Level: ConfirmDetail})

		want := 0
		if allow {
			want = 1
		}
		if len(rec.examples) != want {
			t.Errorf("allow=%v: examples = %d, want %d", allow, len(rec.examples), want)
		}
	}
}

func TestProcessUserFeedback_DuplicateImageSkipped(t *testing.T) {
	orig := finalPayment()
	orig.Merchant = "스타박스"
	final := finalPayment()

	rec := &fakeRecorder{seenHashes: map[string]bool{"abc123": true}}
	svc := newTestService(rec, &fakeBus{}, false)

	svc.ProcessUserFeedback(context.Background(), Input{
		Original:  &orig,
		Final:     final,
		Level:     ConfirmDetail,
		ImageHash: "abc123",
	})

	if len(rec.corrections) != 0 {
		t.Errorf("logged %d corrections for an already-seen image", len(rec.corrections))
	}
}

func TestProcessUserFeedback_StoreFailureDoesNotPanic(t *testing.T) {
	orig := finalPayment()
	orig.Merchant = "스타박스"
	final := finalPayment()

	rec := &fakeRecorder{corrErr: errors.New("db down")}
	bus := &fakeBus{}
	svc := newTestService(rec, bus, false)

	svc.ProcessUserFeedback(context.Background(), Input{Original: &orig, Final: final, Level: ConfirmDetail})

	for _, subj := range bus.published {
		if subj == subjectCorrectionLogged {
			t.Error("published correction event despite failed insert")
		}
	}
}
