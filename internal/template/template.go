// Package template recognizes receipt layouts from structural signatures and
// learns new layouts from processed receipts.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-extractor/internal/strategy"
)

// Template is a known receipt layout for one store. Pattern fields are RE2
// expressions; ItemPattern uses the named groups desc, qty, unit and total.
type Template struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	StoreName       string     `json:"store_name"`
	StorePatterns   []string   `json:"store_patterns,omitempty"`
	HeaderPattern   string     `json:"header_pattern,omitempty"`
	Keywords        []string   `json:"keywords,omitempty"`
	ItemPattern     string     `json:"item_pattern,omitempty"`
	SubtotalPattern string     `json:"subtotal_pattern,omitempty"`
	TaxPattern      string     `json:"tax_pattern,omitempty"`
	TotalPattern    string     `json:"total_pattern,omitempty"`
	PaymentPattern  string     `json:"payment_pattern,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	Signature       *Signature `json:"signature,omitempty"`
	Version         int        `json:"version"`
	UsageCount      int        `json:"usage_count"`
	SuccessRate     float64    `json:"success_rate"`
	Builtin         bool       `json:"builtin"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// headerLines is how many leading lines stand in for the store name when no
// hint is given.
const headerLines = 5

// MatchesStore reports whether name matches one of the template's store
// patterns, its header pattern, or contains one of its keywords.
func (t *Template) MatchesStore(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if t.StoreName != "" && strings.EqualFold(t.StoreName, name) {
		return true
	}
	for _, p := range t.StorePatterns {
		if re, err := compileFold(p); err == nil && re.MatchString(name) {
			return true
		}
	}
	if t.HeaderPattern != "" {
		if re, err := compileFold(t.HeaderPattern); err == nil && re.MatchString(name) {
			return true
		}
	}
	upper := strings.ToUpper(name)
	for _, kw := range t.Keywords {
		if kw != "" && strings.Contains(upper, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}

// MatchConfidence scores how well lines fit t: 0.5 when the store matches
// plus half the layout similarity. Without a store hint the header lines are
// tested instead.
func (t *Template) MatchConfidence(lines []string, sig Signature, storeHint string) float64 {
	var conf float64
	name := storeHint
	if name == "" {
		n := min(len(lines), headerLines)
		name = strings.Join(lines[:n], "\n")
	}
	if t.MatchesStore(name) {
		conf += 0.5
	}
	if t.Signature != nil {
		conf += 0.5 * Similarity(sig, *t.Signature)
	}
	return conf
}

// RecordUsage folds one more use into the running success rate.
func (t *Template) RecordUsage(success bool, now time.Time) {
	total := t.SuccessRate * float64(t.UsageCount)
	if success {
		total++
	}
	t.UsageCount++
	t.SuccessRate = total / float64(t.UsageCount)
	t.UpdatedAt = now
}

// relearn takes sig as the layout and counts the successful receipt it came from.
func (t *Template) relearn(sig Signature, now time.Time) {
	t.Signature = &sig
	t.Version++
	t.RecordUsage(true, now)
}

// Seed compiles the template's patterns for a seeded strategy.
func (t *Template) Seed() (strategy.Seed, error) {
	seed := strategy.Seed{Name: "template_" + seedName(t.Name), StoreName: t.StoreName}
	var err error
	compile := func(field, pattern string) *regexp.Regexp {
		if pattern == "" || err != nil {
			return nil
		}
		re, cerr := regexp.Compile(pattern)
		if cerr != nil {
			err = fmt.Errorf("template %s %s pattern: %w", t.Name, field, cerr)
			return nil
		}
		return re
	}
	if t.HeaderPattern != "" {
		seed.Store = compile("header", "(?i)"+t.HeaderPattern)
	}
	seed.Item = compile("item", t.ItemPattern)
	seed.Subtotal = compile("subtotal", t.SubtotalPattern)
	seed.Tax = compile("tax", t.TaxPattern)
	seed.Total = compile("total", t.TotalPattern)
	seed.Payment = compile("payment", t.PaymentPattern)
	if err != nil {
		return strategy.Seed{}, err
	}
	return seed, nil
}

// Clone returns a deep copy safe to hand out of the registry.
func (t *Template) Clone() *Template {
	c := *t
	c.StorePatterns = append([]string(nil), t.StorePatterns...)
	c.Keywords = append([]string(nil), t.Keywords...)
	if t.Signature != nil {
		sig := *t.Signature
		sig.Positions = make(map[string]float64, len(t.Signature.Positions))
		for k, v := range t.Signature.Positions {
			sig.Positions[k] = v
		}
		c.Signature = &sig
	}
	return &c
}

func compileFold(p string) (*regexp.Regexp, error) {
	if !strings.HasPrefix(p, "(?i)") {
		p = "(?i)" + p
	}
	return regexp.Compile(p)
}

var reNonWord = regexp.MustCompile(`[^a-z0-9]+`)

func seedName(name string) string {
	return strings.Trim(reNonWord.ReplaceAllString(strings.ToLower(name), "_"), "_")
}
