package strategy

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// Named groups understood by ItemRule patterns.
const (
	groupDesc    = "desc"
	groupSKU     = "sku"
	groupQty     = "qty"
	groupUnit    = "unit"
	groupTotal   = "total"
	groupSavings = "savings"
	groupAmount  = "amount"
)

// money matches a printed amount with a dot or comma decimal separator.
const money = `\d[\d,]*[.,]\d{2}`

var errNoAmount = errors.New("rule matched without an amount")

// ItemRule is one line grammar for a purchased item. Its pattern uses the
// named groups desc, sku, qty, unit, total and savings; desc is required as
// is one of total or unit.
type ItemRule struct {
	Name       string
	Pattern    *regexp.Regexp
	Confidence float64
}

// NewItemRule compiles pattern; it panics on an invalid expression.
func NewItemRule(name, pattern string, confidence float64) ItemRule {
	return ItemRule{Name: name, Pattern: regexp.MustCompile(pattern), Confidence: confidence}
}

// ItemRules is tried in order; the first rule that yields an item wins.
type ItemRules []ItemRule

// Match returns the item parsed from line and the grammar confidence of the
// rule that produced it. Lines whose numbers fail strict parsing are skipped.
func (rs ItemRules) Match(line string, logger *slog.Logger) (receipt.LineItem, float64, bool) {
	for _, r := range rs {
		item, ok, err := r.apply(line)
		if err != nil {
			if logger != nil {
				logger.Debug("strategy.item.skip", "rule", r.Name, "line", line, "error", err)
			}
			continue
		}
		if ok {
			return item, r.Confidence, true
		}
	}
	return receipt.LineItem{}, 0, false
}

func (r ItemRule) apply(line string) (receipt.LineItem, bool, error) {
	m := r.Pattern.FindStringSubmatch(line)
	if m == nil {
		return receipt.LineItem{}, false, nil
	}
	group := func(name string) string {
		if i := r.Pattern.SubexpIndex(name); i >= 0 && i < len(m) {
			return strings.TrimSpace(m[i])
		}
		return ""
	}

	desc := CleanDescription(group(groupDesc))
	if desc == "" {
		return receipt.LineItem{}, false, nil
	}

	var (
		qty, unit, total          decimal.Decimal
		hasQty, hasUnit, hasTotal bool
		err                       error
	)
	if s := group(groupQty); s != "" {
		if qty, err = receipt.ParseQuantity(s); err != nil {
			return receipt.LineItem{}, false, err
		}
		hasQty = true
	}
	if s := group(groupUnit); s != "" {
		if unit, err = receipt.ParseAmount(NormalizeDecimal(s)); err != nil {
			return receipt.LineItem{}, false, err
		}
		hasUnit = true
	}
	if s := group(groupTotal); s != "" {
		if total, err = receipt.ParseAmount(NormalizeDecimal(s)); err != nil {
			return receipt.LineItem{}, false, err
		}
		hasTotal = true
	}

	switch {
	case hasTotal:
	case hasUnit && hasQty:
		total = unit.Mul(qty).Round(2)
	case hasUnit:
		total = unit
	default:
		return receipt.LineItem{}, false, errNoAmount
	}
	if !hasQty {
		qty = decimal.NewFromInt(1)
		if hasUnit && unit.IsPositive() && !unit.Equal(total) {
			qty = deriveQuantity(total, unit)
		}
	}
	if !hasUnit {
		unit = total
		if qty.IsPositive() {
			unit = total.Div(qty).Round(2)
		}
	}

	item := receipt.LineItem{
		Description: desc,
		SKU:         group(groupSKU),
		UnitPrice:   unit,
		Quantity:    qty,
		LineTotal:   total,
	}
	if s := group(groupSavings); s != "" {
		savings, err := receipt.ParseAmount(NormalizeDecimal(s))
		if err != nil {
			return receipt.LineItem{}, false, err
		}
		if savings.GreaterThan(total) {
			item.AddNote("member savings " + savings.StringFixed(2) + " exceed price, not applied")
			return item, true, nil
		}
		item.LineTotal = total.Sub(savings)
		if qty.IsPositive() {
			item.UnitPrice = item.LineTotal.Div(qty).Round(2)
		}
		item.AddNote("member savings " + savings.StringFixed(2))
	}
	return item, true, nil
}

// deriveQuantity recovers a quantity printed only as the total over a unit
// price. Near-whole results are rounded to the whole count.
func deriveQuantity(total, unit decimal.Decimal) decimal.Decimal {
	q := total.Div(unit).Round(3)
	if whole := q.Round(0); q.Sub(whole).Abs().LessThan(decimal.NewFromFloat(0.05)) && whole.IsPositive() {
		return whole
	}
	if !q.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return q
}

// AmountRule finds one summary amount. The pattern captures the value in a
// group named amount, or in its first group.
type AmountRule struct {
	Name    string
	Pattern *regexp.Regexp
	Exclude *regexp.Regexp
}

func NewAmountRule(name, pattern string) AmountRule {
	return AmountRule{Name: name, Pattern: regexp.MustCompile(pattern)}
}

// Excluding returns a copy of r that ignores lines matching pattern.
func (r AmountRule) Excluding(pattern string) AmountRule {
	r.Exclude = regexp.MustCompile(pattern)
	return r
}

// AmountRules is tried in order, each over every line top to bottom.
type AmountRules []AmountRule

// Find returns the first amount that parses, or an invalid NullDecimal.
func (rs AmountRules) Find(lines []string, logger *slog.Logger) decimal.NullDecimal {
	for _, r := range rs {
		for _, line := range lines {
			if r.Exclude != nil && r.Exclude.MatchString(line) {
				continue
			}
			raw, ok := r.capture(line)
			if !ok {
				continue
			}
			d, err := receipt.ParseAmount(NormalizeDecimal(raw))
			if err != nil {
				if logger != nil {
					logger.Debug("strategy.amount.skip", "rule", r.Name, "line", line, "error", err)
				}
				continue
			}
			return receipt.Some(d)
		}
	}
	return decimal.NullDecimal{}
}

func (r AmountRule) capture(line string) (string, bool) {
	m := r.Pattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	if i := r.Pattern.SubexpIndex(groupAmount); i > 0 {
		return m[i], m[i] != ""
	}
	if len(m) > 1 {
		return m[1], m[1] != ""
	}
	return "", false
}

// Summary rules shared by the vendor strategies. Amounts sit at the end of the line.
var (
	DefaultSubtotalRules = AmountRules{
		NewAmountRule("subtotal", `(?i)^(?:\*+\s*)?SUB[\s-]*TOTAL\s*:?\s*\$?\s*(?P<amount>`+money+`)\s*$`),
	}
	DefaultTaxRules = AmountRules{
		NewAmountRule("tax", `(?i)^(?:TOTAL\s+|SALES\s+|STATE\s+)?TAX\b.*?\$?\s*(?P<amount>`+money+`)\s*$`),
	}
	DefaultTotalRules = AmountRules{
		NewAmountRule("total", `(?i)^(?:\*+\s*)?(?:GRAND\s+)?TOTAL(?:\s+(?:DUE|SALE|AMOUNT))?\s*:?\s*\$?\s*(?P<amount>`+money+`)\s*$`),
		NewAmountRule("balance", `(?i)^BALANCE(?:\s+DUE)?\s*:?\s*\$?\s*(?P<amount>`+money+`)\s*$`),
		NewAmountRule("amount_due", `(?i)^AMOUNT\s+DUE\s*:?\s*\$?\s*(?P<amount>`+money+`)\s*$`),
	}
)

var (
	reCommaDecimal = regexp.MustCompile(`^(\d+),(\d{2})$`)
	reThousands    = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+,\d{2}$`)
	reDescNoise    = regexp.MustCompile(`^[\s\-*#:.]+|[\s\-*#:]+$`)
	reDescSpaces   = regexp.MustCompile(`\s{2,}`)
	reDescClean    = regexp.MustCompile(`^[\p{L}\p{N} &'.,\-/#%()*+!]+$`)
)

// NormalizeDecimal rewrites a comma decimal ("12,99", "1.234,50") as a dot
// decimal. Other input is returned unchanged.
func NormalizeDecimal(s string) string {
	s = strings.TrimSpace(s)
	if reThousands.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	return reCommaDecimal.ReplaceAllString(s, "$1.$2")
}

// CleanDescription trims leading and trailing punctuation noise.
func CleanDescription(s string) string {
	s = reDescNoise.ReplaceAllString(s, "")
	return strings.TrimSpace(reDescSpaces.ReplaceAllString(s, " "))
}

var (
	hundred = decimal.NewFromInt(100)
)

// ScoreItem fills the confidence sub-scores of item. The overall score is the
// weighted sub-score mean scaled by the grammar confidence of the rule that
// matched the line.
func ScoreItem(item *receipt.LineItem, grammar float64, ceiling decimal.Decimal) {
	c := receipt.ItemConfidence{Description: 0.3, Price: 1, Quantity: 1}
	if d := item.Description; len(d) >= 3 {
		c.Description = 0.7
		if reDescClean.MatchString(d) {
			c.Description = 1
		}
	}
	switch {
	case item.LineTotal.IsZero():
		c.Price = 0
	case item.LineTotal.GreaterThan(ceiling):
		c.Price = 0.5
	}
	switch {
	case item.Quantity.IsZero():
		c.Quantity = 0
	case item.Quantity.GreaterThan(hundred):
		c.Quantity = 0.5
	}
	if grammar <= 0 {
		grammar = 1
	}
	c.Overall = receipt.Round2((0.3*c.Description + 0.4*c.Price + 0.3*c.Quantity) * grammar)
	item.Confidence = c
}
