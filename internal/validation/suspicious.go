// Package validation scores extracted receipts, cross-checks their fields and
// flags line items a reviewer should look at.
package validation

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

var (
	rePaymentKeyword = regexp.MustCompile(`(?i)\b(?:VISA|MASTER\s*CARD|AMEX|AMERICAN\s+EXPRESS|DISCOVER|DEBIT|CREDIT|EBT|CASH|CHANGE|APPROVED|APPROVAL|BALANCE|REFERENCE|REF|AUTH(?:ORIZATION)?|PAYMENT|TEND(?:ER|ERED)?|TRANSACTION|ACCOUNT|SUB\s*TOTAL|TOTAL|TAX)\b`)
	reDigitRun       = regexp.MustCompile(`\d{4,}`)
	reDigitToken     = regexp.MustCompile(`^\d+$`)
)

// SuspicionCheck carries the receipt-level facts the item heuristics need.
type SuspicionCheck struct {
	Ceiling   decimal.Decimal
	Total     decimal.NullDecimal
	ItemCount int
}

// Reasons lists why item looks like something other than a purchased
// product. An empty result means the item is not suspicious.
func (c SuspicionCheck) Reasons(item receipt.LineItem) []string {
	var reasons []string
	desc := strings.TrimSpace(item.Description)

	if rePaymentKeyword.MatchString(desc) {
		reasons = append(reasons, "payment keyword in description")
	}
	if !c.Ceiling.IsZero() && item.LineTotal.GreaterThan(c.Ceiling) {
		reasons = append(reasons, "price above "+c.Ceiling.StringFixed(2))
	}
	if c.ItemCount > 1 && c.Total.Valid && item.LineTotal.Equal(c.Total.Decimal) {
		reasons = append(reasons, "price equals receipt total")
	}
	switch {
	case item.LineTotal.IsZero():
		reasons = append(reasons, "zero price")
	case item.LineTotal.IsNegative():
		reasons = append(reasons, "negative price")
	}
	if len([]rune(desc)) < 3 {
		reasons = append(reasons, "description too short")
	} else if mostlyDigits(desc) {
		reasons = append(reasons, "description mostly numeric")
	} else if reDigitRun.MatchString(desc) {
		reasons = append(reasons, "description contains a long digit run")
	}
	return reasons
}

func (c SuspicionCheck) IsSuspicious(item receipt.LineItem) bool {
	return len(c.Reasons(item)) > 0
}

func mostlyDigits(desc string) bool {
	tokens := strings.Fields(desc)
	if len(tokens) == 0 {
		return false
	}
	n := 0
	for _, t := range tokens {
		if reDigitToken.MatchString(t) {
			n++
		}
	}
	return float64(n)/float64(len(tokens)) > 0.6
}

// Flag marks suspicious items in place and returns how many were flagged.
// Flagged items are kept.
func (c SuspicionCheck) Flag(items []receipt.LineItem) int {
	n := 0
	for i := range items {
		reasons := c.Reasons(items[i])
		if len(reasons) == 0 {
			continue
		}
		items[i].Suspicious = true
		items[i].AddNote("suspicious: " + strings.Join(reasons, ", "))
		n++
	}
	return n
}
