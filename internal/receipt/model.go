package receipt

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-extractor/constants"
)

// Keys used in Receipt.ConfidenceScores.
const (
	FieldItems    = "items"
	FieldTotals   = "totals"
	FieldMetadata = "metadata"
	FieldStore    = "store"
	FieldDate     = "date"
	FieldPayment  = "payment"
	FieldSubtotal = "subtotal"
	FieldTax      = "tax"
	FieldTotal    = "total"
)

// BoundingBox is an axis-aligned box in image pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TextBlock is one recognized region of text with the backend's confidence in 0..1.
type TextBlock struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// ExtractedText is the output of a single extraction run over one image.
type ExtractedText struct {
	Content  string        `json:"content"`
	Blocks   []TextBlock   `json:"blocks,omitempty"`
	Backend  string        `json:"backend,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Confidence is the mean block confidence; zero when no blocks were detected.
func (e ExtractedText) Confidence() float64 {
	if len(e.Blocks) == 0 {
		return 0
	}
	var sum float64
	for _, b := range e.Blocks {
		sum += b.Confidence
	}
	return sum / float64(len(e.Blocks))
}

// Lines returns the non-empty trimmed lines of the content.
func (e ExtractedText) Lines() []string {
	return SplitLines(e.Content)
}

// SplitLines splits text into trimmed, non-empty lines.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, ln := range raw {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// ItemConfidence holds the sub-scores of a line item.
type ItemConfidence struct {
	Description float64 `json:"description"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	Overall     float64 `json:"overall"`
}

type LineItem struct {
	Description string          `json:"description"`
	SKU         string          `json:"sku,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Confidence  ItemConfidence  `json:"confidence"`
	Suspicious  bool            `json:"suspicious"`
	Notes       string          `json:"notes,omitempty"`
}

// AddNote appends a note, separating multiple notes with "; ".
func (li *LineItem) AddNote(note string) {
	if li.Notes == "" {
		li.Notes = note
		return
	}
	li.Notes += "; " + note
}

// Metadata is the best-effort, vendor-specific information found on a receipt.
// Every field is optional.
type Metadata struct {
	StoreName     string              `json:"store_name,omitempty"`
	StoreNumber   string              `json:"store_number,omitempty"`
	Address       string              `json:"address,omitempty"`
	Phone         string              `json:"phone,omitempty"`
	Cashier       string              `json:"cashier,omitempty"`
	Register      string              `json:"register,omitempty"`
	TransactionID string              `json:"transaction_id,omitempty"`
	MemberNumber  string              `json:"member_number,omitempty"`
	MemberSavings decimal.NullDecimal `json:"member_savings"`
	Date          *time.Time          `json:"date,omitempty"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	CardLast4     string              `json:"card_last4,omitempty"`
	Currency      string              `json:"currency,omitempty"`
	Extra         map[string]string   `json:"extra,omitempty"`
}

// SetExtra records a vendor-specific key that has no dedicated field.
func (m *Metadata) SetExtra(key, value string) {
	if m.Extra == nil {
		m.Extra = make(map[string]string)
	}
	m.Extra[key] = value
}

// Receipt is the aggregate produced by one pipeline run.
type Receipt struct {
	ID                uuid.UUID                  `json:"id"`
	StoreName         string                     `json:"store_name,omitempty"`
	Date              *time.Time                 `json:"date,omitempty"`
	PaymentMethod     string                     `json:"payment_method,omitempty"`
	PaymentCategory   constants.PaymentCategory  `json:"payment_category,omitempty"`
	Currency          string                     `json:"currency"`
	Items             []LineItem                 `json:"items"`
	Totals            Totals                     `json:"totals"`
	Metadata          Metadata                   `json:"metadata"`
	ConfidenceScores  map[string]float64         `json:"confidence_scores"`
	OverallConfidence float64                    `json:"overall_confidence"`
	Status            constants.ProcessingStatus `json:"processing_status"`
	ValidationNotes   []string                   `json:"validation_notes"`
	HandlerUsed       string                     `json:"handler_used"`
	TemplateUsed      string                     `json:"template_used,omitempty"`
	TextConfidence    float64                    `json:"text_confidence,omitempty"`
	Reextracted       bool                       `json:"reextracted,omitempty"`
}

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("receipt-extractor"))

// IDForText derives a stable receipt ID from its source text.
func IDForText(text string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte(text))
}

// New returns an empty receipt for text with default currency applied.
func New(text, currency string) *Receipt {
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	return &Receipt{
		ID:               IDForText(text),
		Currency:         currency,
		Items:            []LineItem{},
		ConfidenceScores: make(map[string]float64),
		ValidationNotes:  []string{},
		Status:           constants.StatusFailed,
	}
}

// AddNote appends a validation note.
func (r *Receipt) AddNote(note string) {
	r.ValidationNotes = append(r.ValidationNotes, note)
}

// ItemSum is the sum of all line totals.
func (r *Receipt) ItemSum() decimal.Decimal {
	return SumItems(r.Items)
}

// SumItems adds the line totals of items.
func SumItems(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal)
	}
	return sum
}
