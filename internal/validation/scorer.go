package validation

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

const (
	foundScore  = 0.9
	absentScore = 0.3

	boostRatio    = 0.9
	mismatchRatio = 0.7
)

// DefaultCeiling is the generic suspicious-price ceiling.
var DefaultCeiling = decimal.NewFromInt(300)

type Weights struct {
	Items    float64
	Totals   float64
	Metadata float64
}

type Config struct {
	Weights   Weights
	Floor     float64
	Tolerance float64
}

func DefaultConfig() Config {
	return Config{
		Weights:   Weights{Items: 0.4, Totals: 0.4, Metadata: 0.2},
		Floor:     0.75,
		Tolerance: 0.02,
	}
}

// ConfigFrom reads scoring settings from the pipeline section of the app config.
func ConfigFrom(p common.PipelineConfig) Config {
	return Config{
		Weights:   Weights{Items: p.ItemsWeight, Totals: p.TotalsWeight, Metadata: p.MetadataWeight},
		Floor:     p.ConfidenceFloor,
		Tolerance: p.TotalsTolerance,
	}
}

// Input is what a strategy extracted from one receipt text.
type Input struct {
	Text     string
	Items    []receipt.LineItem
	Totals   receipt.Totals
	Metadata receipt.Metadata
	// Ceiling is the vendor's suspicious-price ceiling; zero means DefaultCeiling.
	Ceiling decimal.Decimal
}

// Result is the scored outcome. Items is a flagged copy of the input items.
type Result struct {
	Items   []receipt.LineItem
	Scores  map[string]float64
	Overall float64
	Status  constants.ProcessingStatus
	Notes   []string
}

// ApplyTo copies the result onto r.
func (res Result) ApplyTo(r *receipt.Receipt) {
	r.Items = res.Items
	for k, v := range res.Scores {
		r.ConfidenceScores[k] = v
	}
	r.OverallConfidence = res.Overall
	r.Status = res.Status
	for _, n := range res.Notes {
		r.AddNote(n)
	}
}

type Scorer struct {
	cfg    Config
	logger *slog.Logger
}

func NewScorer(cfg Config, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{cfg: cfg, logger: logger}
}

// Score computes per-field and overall confidence for in, flags suspicious
// items and runs the item-sum, suspicious-item and item-count cross-checks.
func (s *Scorer) Score(in Input) Result {
	items := make([]receipt.LineItem, len(in.Items))
	copy(items, in.Items)
	res := Result{Items: items, Scores: make(map[string]float64), Notes: []string{}}

	ceiling := in.Ceiling
	if ceiling.IsZero() {
		ceiling = DefaultCeiling
	}
	check := SuspicionCheck{Ceiling: ceiling, Total: in.Totals.Total, ItemCount: len(items)}
	flagged := check.Flag(items)

	t := in.Totals
	meta := in.Metadata
	storeC := baseline(meta.StoreName != "")
	dateC := baseline(meta.Date != nil)
	paymentC := baseline(meta.PaymentMethod != "")
	subtotalC := baseline(t.Subtotal.Valid)
	taxC := baseline(t.Tax.Valid)
	totalC := baseline(t.Total.Valid)

	itemsC := absentScore
	if len(items) > 0 {
		var sum float64
		for _, it := range items {
			sum += it.Confidence.Overall
		}
		itemsC = sum / float64(len(items))
	}
	totalsC := (2*totalC + subtotalC + taxC) / 4

	failed := false
	itemSum := receipt.SumItems(items)
	target, hasTarget := t.ReconciliationTarget()

	if hasTarget && len(items) > 0 && itemSum.IsPositive() && target.IsPositive() {
		ratio := reconciliationRatio(itemSum, target)
		switch {
		case ratio > boostRatio:
			itemsC = math.Max(itemsC, boostRatio)
			totalsC = math.Max(totalsC, boostRatio)
		case ratio < mismatchRatio:
			itemsC *= ratio
			totalsC *= ratio
			failed = true
			res.Notes = append(res.Notes, fmt.Sprintf("item sum %s does not match %s %s (ratio %.2f)",
				itemSum.StringFixed(2), targetName(t), target.StringFixed(2), ratio))
		}
	}

	if !t.Consistent(s.cfg.Tolerance) {
		d, _ := t.Discrepancy()
		totalsC *= mismatchRatio
		totalC *= mismatchRatio
		failed = true
		res.Notes = append(res.Notes, fmt.Sprintf("subtotal %s + tax %s does not equal total %s (off by %s)",
			t.Subtotal.Decimal.StringFixed(2), t.Tax.Decimal.StringFixed(2), t.Total.Decimal.StringFixed(2), d.StringFixed(2)))
	}

	if flagged > 0 {
		frac := float64(flagged) / float64(len(items))
		itemsC *= 1 - 0.5*frac
		res.Notes = append(res.Notes, fmt.Sprintf("%d suspicious item(s) flagged for review", flagged))
	}

	if expected, ok := ExpectedItemCount(in.Text); ok {
		got := len(items)
		if abs(got-expected) > 1 {
			itemsC *= float64(min(got, expected)) / float64(max(got, expected))
			failed = true
			res.Notes = append(res.Notes, fmt.Sprintf("extracted %d items but receipt lists %d", got, expected))
			if expected-got > 2 && hasTarget && !receipt.Within(itemSum, target, s.cfg.Tolerance) {
				itemsC *= 0.8
				res.Notes = append(res.Notes, "items appear to be missing: item sum also disagrees with "+targetName(t))
			}
		}
	}

	metaC := 0.6*storeC + 0.2*dateC + 0.2*paymentC

	w := s.cfg.Weights
	wsum := w.Items + w.Totals + w.Metadata
	if wsum <= 0 {
		w, wsum = DefaultConfig().Weights, 1
	}
	overall := (w.Items*itemsC + w.Totals*totalsC + w.Metadata*metaC) / wsum

	if len(items) >= 3 && !failed && goodFraction(items) >= 0.8 && overall < s.cfg.Floor {
		overall = s.cfg.Floor
	}

	res.Scores[receipt.FieldItems] = score(itemsC)
	res.Scores[receipt.FieldTotals] = score(totalsC)
	res.Scores[receipt.FieldMetadata] = score(metaC)
	res.Scores[receipt.FieldStore] = score(storeC)
	res.Scores[receipt.FieldDate] = score(dateC)
	res.Scores[receipt.FieldPayment] = score(paymentC)
	res.Scores[receipt.FieldSubtotal] = score(subtotalC)
	res.Scores[receipt.FieldTax] = score(taxC)
	res.Scores[receipt.FieldTotal] = score(totalC)
	res.Overall = score(overall)

	var missing []string
	res.Status, missing = Status(meta.StoreName != "", t.Total.Valid)
	res.Notes = append(res.Notes, missing...)

	s.logger.Debug("validation.score",
		"overall", res.Overall,
		"items", res.Scores[receipt.FieldItems],
		"totals", res.Scores[receipt.FieldTotals],
		"suspicious", flagged,
		"status", res.Status)
	return res
}

// Status derives the processing status from whether the store and total were
// found, returning a note for each missing element.
func Status(storeFound, totalFound bool) (constants.ProcessingStatus, []string) {
	var notes []string
	if !storeFound {
		notes = append(notes, "store name not detected")
	}
	if !totalFound {
		notes = append(notes, "total not detected")
	}
	switch {
	case storeFound && totalFound:
		return constants.StatusSuccess, notes
	case storeFound || totalFound:
		return constants.StatusPartialSuccess, notes
	default:
		return constants.StatusFailed, notes
	}
}

func reconciliationRatio(a, b decimal.Decimal) float64 {
	lo, hi := decimal.Min(a, b), decimal.Max(a, b)
	r, _ := lo.Div(hi).Float64()
	return r
}

func targetName(t receipt.Totals) string {
	if t.Subtotal.Valid {
		return receipt.FieldSubtotal
	}
	return receipt.FieldTotal
}

// goodFraction is the share of items that are not suspicious and carry a
// positive price.
func goodFraction(items []receipt.LineItem) float64 {
	if len(items) == 0 {
		return 0
	}
	n := 0
	for _, it := range items {
		if !it.Suspicious && it.LineTotal.IsPositive() {
			n++
		}
	}
	return float64(n) / float64(len(items))
}

func baseline(found bool) float64 {
	if found {
		return foundScore
	}
	return absentScore
}

func score(f float64) float64 {
	return receipt.Round2(receipt.Clamp01(f))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
