package strategy

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// Seed is the pattern set a layout template contributes. Item must use the
// named groups understood by ItemRule; the amount patterns capture the value
// in their first group, Payment the method. Nil patterns fall back to the
// generic rules.
type Seed struct {
	Name      string
	StoreName string
	Store     *regexp.Regexp
	Item      *regexp.Regexp
	Subtotal  *regexp.Regexp
	Tax       *regexp.Regexp
	Total     *regexp.Regexp
	Payment   *regexp.Regexp
}

const seedConfidence = 0.85

type seeded struct {
	base
	seed Seed
}

// NewSeeded builds a strategy from a template seed. Its patterns run before
// the generic ones.
func NewSeeded(seed Seed, logger *slog.Logger) Strategy {
	b := newBase(seed.Name, seed.StoreName, logger)
	if seed.Item != nil {
		b.items = append(b.items, ItemRule{Name: seed.Name + "_item", Pattern: seed.Item, Confidence: seedConfidence})
	}
	b.items = append(b.items, genericItemRules...)
	b.subtotal = prepend(seed.Name+"_subtotal", seed.Subtotal, genericSubtotalRules)
	b.tax = prepend(seed.Name+"_tax", seed.Tax, genericTaxRules)
	b.total = prepend(seed.Name+"_total", seed.Total, genericTotalRules)
	return &seeded{base: b, seed: seed}
}

func prepend(name string, re *regexp.Regexp, rules AmountRules) AmountRules {
	if re == nil {
		return rules
	}
	out := AmountRules{{Name: name, Pattern: re}}
	return append(out, rules...)
}

func (s *seeded) Detect(text string) (float64, error) {
	if s.seed.Store != nil && s.seed.Store.MatchString(text) {
		return 0.9, nil
	}
	if s.storeName != "" && strings.Contains(strings.ToUpper(text), strings.ToUpper(s.storeName)) {
		return 0.75, nil
	}
	return 0, nil
}

func (s *seeded) ExtractItems(text string) []receipt.LineItem {
	return genericItems(text, s.items, s.ceiling, s.logger)
}

func (s *seeded) ExtractTotals(text string) receipt.Totals {
	return sanitizeTotals(s.base.ExtractTotals(text), s.logger)
}

func (s *seeded) ExtractMetadata(text string) receipt.Metadata {
	md := genericMetadata(text)
	if s.storeName != "" {
		md.StoreName = s.storeName
	}
	if s.seed.Payment != nil {
		if m := s.seed.Payment.FindStringSubmatch(text); len(m) > 1 && m[1] != "" {
			md.PaymentMethod = strings.ToUpper(strings.TrimSpace(m[1]))
		}
	}
	if md.Currency == "" {
		md.Currency = constants.DefaultCurrency
	}
	return md
}
