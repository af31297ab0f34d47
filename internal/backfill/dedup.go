package backfill

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// dedupWindow is how far apart two timestamps may be while still counting
// as the same message. SMS and notification exports of the same event
// usually disagree by a second or two.
const dedupWindowSeconds = 5

// Deduper skips messages already seen in this run. Exports overlap: a
// notification dump and an SMS dump both carry the same payment alert.
type Deduper struct {
	seen map[string]int64 // content key → unix seconds first seen
}

func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]int64)}
}

// Seen reports whether an equivalent message was already processed, and
// records this one if not.
func (d *Deduper) Seen(m Message) bool {
	key := contentKey(m.Text)
	ts := m.ReceivedAt.Unix()

	if prev, ok := d.seen[key]; ok {
		diff := ts - prev
		if diff < 0 {
			diff = -diff
		}
		// Zero timestamps collapse to the same instant and always match.
		if m.ReceivedAt.IsZero() || diff <= dedupWindowSeconds {
			return true
		}
	}
	d.seen[key] = ts
	return false
}

// contentKey hashes whitespace-normalized text, so re-wrapped exports of
// the same message still collide.
func contentKey(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
