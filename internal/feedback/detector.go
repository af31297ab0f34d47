// Package feedback turns user-corrected records into correction logs and
// few-shot promotion candidates. Processing is best-effort: the save flow
// never waits on it and failures are logged, not surfaced.
package feedback

import (
	"sort"
	"strings"

	"github.com/moabill/ledgerd/internal/record"
)

// EditType classifies the difference between the AI output and the record
// the user finally saved.
type EditType string

const (
	EditNone         EditType = "no_edit"
	EditFieldFix     EditType = "field_fix"
	EditKindChange   EditType = "kind_change"
	EditAddedMissing EditType = "added_missing_field"
)

// ConfirmationLevel describes how deliberately the user confirmed a record.
type ConfirmationLevel string

const (
	ConfirmManualEntry ConfirmationLevel = "manual_entry"
	ConfirmDetail      ConfirmationLevel = "detail_confirm"
	ConfirmQuick       ConfirmationLevel = "quick_confirm"
)

// EditResult is the diff between an AI-produced candidate and the
// user-finalized record. It is consumed immediately and never persisted
// as its own entity.
type EditResult struct {
	Type          EditType
	ChangedFields []string
}

// Edited reports whether the user changed anything meaningful.
func (r EditResult) Edited() bool {
	return r.Type != EditNone
}

// DetectEdits diffs the original candidate against the final record. A
// kind change short-circuits the field comparison entirely. Otherwise
// every kind-specific field present in either record is compared with
// loose string equality; metadata fields never participate.
func DetectEdits(original, final *record.Candidate) EditResult {
	if original.Kind != final.Kind {
		return EditResult{Type: EditKindChange}
	}

	origFields := original.FieldSet()
	finalFields := final.FieldSet()

	names := make(map[string]bool, len(origFields)+len(finalFields))
	for name := range origFields {
		names[name] = true
	}
	for name := range finalFields {
		names[name] = true
	}

	var changed []string
	addedMissing := false
	for name := range names {
		before, hadBefore := origFields[name]
		after := finalFields[name]
		if looseEqual(before, after) {
			continue
		}
		changed = append(changed, name)
		if !hadBefore {
			addedMissing = true
		}
	}

	if len(changed) == 0 {
		return EditResult{Type: EditNone}
	}
	sort.Strings(changed)

	typ := EditFieldFix
	if addedMissing {
		typ = EditAddedMissing
	}
	return EditResult{Type: typ, ChangedFields: changed}
}

// looseEqual compares two field values after trimming and collapsing
// internal whitespace, so "스타 벅스 " and "스타 벅스" do not count as edits.
func looseEqual(a, b string) bool {
	return normalizeSpace(a) == normalizeSpace(b)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
