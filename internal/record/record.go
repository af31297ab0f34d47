package record

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the candidate record union. It mirrors the `type`
// field of the extraction service's JSON schema.
type Kind string

const (
	KindStorePayment Kind = "STORE_PAYMENT"
	KindBankTransfer Kind = "BANK_TRANSFER"
	KindInvitation   Kind = "INVITATION"
	KindObituary     Kind = "OBITUARY"
	KindGifticon     Kind = "GIFTICON"
	KindBill         Kind = "BILL"
	KindSocialSplit  Kind = "SOCIAL_SPLIT"
	KindAppointment  Kind = "APPOINTMENT"
	KindReceipt      Kind = "RECEIPT"
	KindTransfer     Kind = "TRANSFER"
	KindUnknown      Kind = "UNKNOWN"
)

// Medium describes where the scanned input came from.
type Medium string

const (
	MediumScreenshot Medium = "screenshot"
	MediumPhoto      Medium = "photo"
	MediumUnknown    Medium = "unknown"
)

// Breakdown holds the four confidence axes, each in [0,1].
type Breakdown struct {
	OCR         float64 `json:"ocr"`
	Struct      float64 `json:"struct"`
	Type        float64 `json:"type"`
	Consistency float64 `json:"consistency"`
}

// Candidate is a typed, partially-confident extraction result for one
// document or transaction. The Kind tag discriminates which of the
// kind-specific fields are meaningful; MandatoryFields lists which are
// required per kind. An UNKNOWN candidate carries no kind-specific fields.
type Candidate struct {
	Kind       Kind       `json:"type"`
	Confidence float64    `json:"confidence"`
	Subtype    string     `json:"subtype,omitempty"`
	Evidence   []string   `json:"evidence,omitempty"`
	Warnings   []string   `json:"warnings,omitempty"`
	Medium     Medium     `json:"source_medium,omitempty"`
	RawText    string     `json:"raw_text,omitempty"`
	Breakdown  *Breakdown `json:"confidence_breakdown,omitempty"`

	// Kind-specific fields. Amounts are KRW.
	Amount        int64    `json:"amount,omitempty"`
	Merchant      string   `json:"merchant,omitempty"`
	Counterpart   string   `json:"counterpart,omitempty"`
	OccurredAt    string   `json:"occurred_at,omitempty"`
	DueDate       string   `json:"due_date,omitempty"`
	ExpiresAt     string   `json:"expires_at,omitempty"`
	EventDate     string   `json:"event_date,omitempty"`
	Location      string   `json:"location,omitempty"`
	Barcode       string   `json:"barcode,omitempty"`
	AccountNumber string   `json:"account_number,omitempty"`
	BillingPeriod string   `json:"billing_period,omitempty"`
	Brand         string   `json:"brand,omitempty"`
	ItemName      string   `json:"item_name,omitempty"`
	Participants  []string `json:"participants,omitempty"`
}

// mandatoryFields maps each kind to the fields that must be present for a
// fully trusted record of that kind.
var mandatoryFields = map[Kind][]string{
	KindStorePayment: {"amount", "merchant", "occurred_at"},
	KindBankTransfer: {"amount", "counterpart", "occurred_at"},
	KindTransfer:     {"amount", "counterpart"},
	KindInvitation:   {"event_date", "location"},
	KindObituary:     {"event_date", "location"},
	KindGifticon:     {"brand", "item_name", "expires_at"},
	KindBill:         {"amount", "due_date"},
	KindSocialSplit:  {"amount", "participants"},
	KindAppointment:  {"event_date"},
	KindReceipt:      {"amount", "merchant"},
	KindUnknown:      nil,
}

// dateFields are the kind-specific fields that must hold ISO dates once
// resolution has run.
var dateFields = []string{"occurred_at", "due_date", "expires_at", "event_date"}

// amountKinds are the kinds for which a zero amount is a known-bad state.
var amountKinds = map[Kind]bool{
	KindStorePayment: true,
	KindBankTransfer: true,
	KindTransfer:     true,
	KindBill:         true,
	KindSocialSplit:  true,
	KindReceipt:      true,
}

// ValidKind reports whether k is one of the defined kinds.
func ValidKind(k Kind) bool {
	_, ok := mandatoryFields[k]
	return ok
}

// MandatoryFields returns the required field names for a kind. The returned
// slice must not be mutated.
func MandatoryFields(k Kind) []string {
	return mandatoryFields[k]
}

// AmountKind reports whether kind k requires a positive amount.
func AmountKind(k Kind) bool {
	return amountKinds[k]
}

// DateFields returns the names of the ISO-date fields.
func DateFields() []string {
	return dateFields
}

// FieldSet returns the kind-specific fields present on c as a name→value
// map. Metadata (confidence, warnings, evidence, raw text, breakdown,
// medium, subtype) is excluded; absent fields are omitted.
func (c *Candidate) FieldSet() map[string]string {
	fields := make(map[string]string)
	if c.Amount != 0 {
		fields["amount"] = strconv.FormatInt(c.Amount, 10)
	}
	put := func(name, v string) {
		if v != "" {
			fields[name] = v
		}
	}
	put("merchant", c.Merchant)
	put("counterpart", c.Counterpart)
	put("occurred_at", c.OccurredAt)
	put("due_date", c.DueDate)
	put("expires_at", c.ExpiresAt)
	put("event_date", c.EventDate)
	put("location", c.Location)
	put("barcode", c.Barcode)
	put("account_number", c.AccountNumber)
	put("billing_period", c.BillingPeriod)
	put("brand", c.Brand)
	put("item_name", c.ItemName)
	if len(c.Participants) > 0 {
		fields["participants"] = strings.Join(c.Participants, ",")
	}
	return fields
}

// MissingMandatory returns the mandatory fields of c's kind that are
// absent, sorted by name.
func (c *Candidate) MissingMandatory() []string {
	present := c.FieldSet()
	var missing []string
	for _, name := range mandatoryFields[c.Kind] {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Normalize enforces the construction invariants: confidence clamped to
// [0,1], an unrecognized kind downgraded to UNKNOWN, and UNKNOWN records
// stripped of kind-specific fields.
func (c *Candidate) Normalize() {
	if !ValidKind(c.Kind) {
		c.Kind = KindUnknown
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	if c.Kind == KindUnknown {
		c.Subtype = ""
		c.Amount = 0
		c.Merchant = ""
		c.Counterpart = ""
		c.OccurredAt = ""
		c.DueDate = ""
		c.ExpiresAt = ""
		c.EventDate = ""
		c.Location = ""
		c.Barcode = ""
		c.AccountNumber = ""
		c.BillingPeriod = ""
		c.Brand = ""
		c.ItemName = ""
		c.Participants = nil
	}
}

var (
	isoDateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	isoDateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}$`)
)

// IsISODate reports whether s is a strict YYYY-MM-DD date.
func IsISODate(s string) bool {
	return isoDateRe.MatchString(s)
}

// ValidISO reports whether s is YYYY-MM-DD or YYYY-MM-DD HH:mm.
func ValidISO(s string) bool {
	return isoDateRe.MatchString(s) || isoDateTimeRe.MatchString(s)
}

// DateFieldValues returns the values of the ISO-date fields present on c.
func (c *Candidate) DateFieldValues() []string {
	var out []string
	for _, v := range []string{c.OccurredAt, c.DueDate, c.ExpiresAt, c.EventDate} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
