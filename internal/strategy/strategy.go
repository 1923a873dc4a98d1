// Package strategy holds the vendor-specific receipt parsers. Each strategy is
// a stateless set of ordered pattern rules; all of them are safe for
// concurrent use.
package strategy

import (
	"log/slog"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// Strategy extracts structured data from the raw text of one vendor's receipts.
type Strategy interface {
	// Name is the registry key, e.g. constants.VendorCostco.
	Name() string
	// StoreName is the display name written to Receipt.StoreName.
	StoreName() string
	// Detect reports how confident the strategy is that text belongs to its vendor, in 0..1.
	Detect(text string) (float64, error)
	ExtractItems(text string) []receipt.LineItem
	ExtractTotals(text string) receipt.Totals
	ExtractMetadata(text string) receipt.Metadata
	// PriceCeiling is the single-item price above which an item is implausible.
	PriceCeiling() decimal.Decimal
}

var (
	genericCeiling   = decimal.NewFromInt(300)
	wholesaleCeiling = decimal.NewFromInt(1000)
)

// base carries what every strategy shares: identity, logger and its rule set.
type base struct {
	name      string
	storeName string
	ceiling   decimal.Decimal
	items     ItemRules
	exclude   []*regexp.Regexp
	subtotal  AmountRules
	tax       AmountRules
	total     AmountRules
	logger    *slog.Logger
}

func (b *base) Name() string                  { return b.name }
func (b *base) StoreName() string             { return b.storeName }
func (b *base) PriceCeiling() decimal.Decimal { return b.ceiling }

// ExtractItems runs the item rules over every candidate line.
func (b *base) ExtractItems(text string) []receipt.LineItem {
	var items []receipt.LineItem
	for _, line := range receipt.SplitLines(text) {
		if b.excluded(line) {
			continue
		}
		item, grammar, ok := b.items.Match(line, b.logger)
		if !ok {
			continue
		}
		ScoreItem(&item, grammar, b.ceiling)
		items = append(items, item)
	}
	return items
}

// ExtractTotals applies the subtotal, tax and total rules.
func (b *base) ExtractTotals(text string) receipt.Totals {
	lines := receipt.SplitLines(text)
	return receipt.Totals{
		Subtotal: b.subtotal.Find(lines, b.logger),
		Tax:      b.tax.Find(lines, b.logger),
		Total:    b.total.Find(lines, b.logger),
	}
}

func (b *base) excluded(line string) bool {
	if IsSummaryLine(line) {
		return true
	}
	for _, m := range b.exclude {
		if m.MatchString(line) {
			return true
		}
	}
	return false
}

func newBase(name, storeName string, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		name:      name,
		storeName: storeName,
		ceiling:   genericCeiling,
		subtotal:  DefaultSubtotalRules,
		tax:       DefaultTaxRules,
		total:     DefaultTotalRules,
		logger:    logger.With("strategy", name),
	}
}
