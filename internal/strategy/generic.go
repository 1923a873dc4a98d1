package strategy

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// GenericDetectScore is what the generic strategy reports for any text.
const GenericDetectScore = 0.1

const genericMinLine = 5

var (
	// Skip keywords match whole words only so "TAXI" or "CASHEW" are still items.
	reGenericSkip   = regexp.MustCompile(`(?i)\b(?:total|subtotal|tax|sum|amount|balance|credit|debit|change|cash|payment|paid|discount|due|account|customer|store|receipt|invoice|date|welcome|thank\s+you|thanks|phone|tel|fax|address|website|url|email|e-mail)\b|https?://|www\.`)
	reGenericHeader = regexp.MustCompile(`(?i)^(?:item|qty|description|price|amount)$`)

	genericItemRules = ItemRules{
		NewItemRule("generic_qty_at", `^(?P<desc>[\p{L}\p{N}\s'"&,.()/-]+?)\s+(?P<qty>\d+)\s+@\s*[$£€]?\s*(?P<unit>`+money+`)\s+[$£€]?\s*(?P<total>`+money+`)$`, 0.8),
		NewItemRule("generic_qty_x", `^(?P<desc>[\p{L}\p{N}\s'"&,.()/-]+?)\s+(?P<qty>\d+)\s*[xX]\s*[$£€]?\s*(?P<unit>`+money+`)$`, 0.75),
		NewItemRule("generic_plain", `^(?P<desc>[\p{L}\p{N}\s'"&,.()/-]+?)\s+[$£€]?\s*(?P<total>`+money+`)$`, 0.7),
	}

	genericSubtotalRules = AmountRules{
		NewAmountRule("subtotal", `(?i)\bsub[\s-]*total\s*:?\s*[$£€]?\s*(?P<amount>`+money+`)`),
		NewAmountRule("goods", `(?i)\bgoods\s*:?\s*[$£€]?\s*(?P<amount>`+money+`)`),
	}
	genericTaxRules = AmountRules{
		NewAmountRule("tax", `(?i)\b(?:sales\s+)?tax\b.*?[$£€]?\s*(?P<amount>`+money+`)\s*$`),
		NewAmountRule("vat", `(?i)\b(?:vat|gst|hst)\b.*?[$£€]?\s*(?P<amount>`+money+`)\s*$`),
	}
	genericTotalRules = AmountRules{
		NewAmountRule("total", `(?i)^(?:\*+\s*)?(?:grand\s+)?total\b[^\d\n]*?[$£€]?\s*(?P<amount>`+money+`)\s*$`).Excluding(`(?i)sub[\s-]*total|total\s+(?:tax|savings|items?|number)`),
		NewAmountRule("amount_due", `(?i)\b(?:amount|balance)(?:\s+due)?\s*:?\s*[$£€]?\s*(?P<amount>`+money+`)\s*$`),
		NewAmountRule("due", `(?i)\bdue\s*:?\s*[$£€]?\s*(?P<amount>`+money+`)\s*$`),
		NewAmountRule("sum", `(?i)\bsum\s*:?\s*[$£€]?\s*(?P<amount>`+money+`)\s*$`),
	}
)

type generic struct {
	base
}

// NewGeneric returns the fallback strategy. It matches any receipt with a low
// constant score and reads items, totals and metadata with broad patterns.
func NewGeneric(logger *slog.Logger) Strategy {
	b := newBase(constants.VendorGeneric, "", logger)
	b.items = genericItemRules
	b.subtotal = genericSubtotalRules
	b.tax = genericTaxRules
	b.total = genericTotalRules
	return &generic{base: b}
}

func (g *generic) Detect(string) (float64, error) {
	return GenericDetectScore, nil
}

// ExtractItems skips short and keyword lines and suppresses repeated descriptions.
func (g *generic) ExtractItems(text string) []receipt.LineItem {
	return genericItems(text, g.items, g.ceiling, g.logger)
}

func genericItems(text string, rules ItemRules, ceiling decimal.Decimal, logger *slog.Logger) []receipt.LineItem {
	var items []receipt.LineItem
	seen := make(map[string]bool)
	for _, line := range receipt.SplitLines(text) {
		if len(line) < genericMinLine || reGenericSkip.MatchString(line) || IsSummaryLine(line) {
			continue
		}
		item, grammar, ok := rules.Match(line, logger)
		if !ok {
			continue
		}
		if len(item.Description) < 2 || reGenericHeader.MatchString(item.Description) {
			continue
		}
		key := strings.ToUpper(item.Description)
		if seen[key] {
			logger.Debug("strategy.generic.duplicate", "description", item.Description)
			continue
		}
		seen[key] = true
		ScoreItem(&item, grammar, ceiling)
		items = append(items, item)
	}
	return items
}

// ExtractTotals drops a tax above a quarter of the total and a non-positive
// subtotal, then derives a missing amount.
func (g *generic) ExtractTotals(text string) receipt.Totals {
	t := g.base.ExtractTotals(text)
	return sanitizeTotals(t, g.logger)
}

var quarter = decimal.NewFromFloat(0.25)

func sanitizeTotals(t receipt.Totals, logger *slog.Logger) receipt.Totals {
	if t.Subtotal.Valid && !t.Subtotal.Decimal.IsPositive() {
		t.Subtotal = decimal.NullDecimal{}
	}
	if t.Tax.Valid && t.Total.Valid && t.Tax.Decimal.GreaterThan(t.Total.Decimal.Mul(quarter)) {
		logger.Debug("strategy.generic.tax.discard", "tax", t.Tax.Decimal.String(), "total", t.Total.Decimal.String())
		t.Tax = decimal.NullDecimal{}
	}
	if field := t.Derive(); field != "" {
		logger.Debug("strategy.generic.derived", "field", field)
	}
	return t
}

func (g *generic) ExtractMetadata(text string) receipt.Metadata {
	return genericMetadata(text)
}

func genericMetadata(text string) receipt.Metadata {
	lines := receipt.SplitLines(text)
	md := receipt.Metadata{}
	if name, ok := KnownStore(text); ok {
		md.StoreName = name
	} else {
		md.StoreName = HeaderStoreName(lines)
	}
	if md.StoreName != "" {
		upper := strings.ToUpper(md.StoreName)
		for i, line := range lines {
			if strings.Contains(strings.ToUpper(line), upper) {
				md.Address = AddressAfter(lines, i)
				break
			}
		}
	}
	md.Currency = DetectCurrency(text)
	md.Phone = DetectPhone(text)
	md.Date = ParseDate(text)
	pay := DetectPayment(text)
	md.PaymentMethod = pay.Method
	md.CardLast4 = pay.Last4
	return md
}
