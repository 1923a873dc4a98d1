package receipt

import (
	"github.com/shopspring/decimal"
)

// Totals holds the declared summary amounts. Each may be absent.
type Totals struct {
	Subtotal decimal.NullDecimal `json:"subtotal"`
	Tax      decimal.NullDecimal `json:"tax"`
	Total    decimal.NullDecimal `json:"total"`
}

// Some wraps a known amount.
func Some(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Complete reports whether all three amounts are known.
func (t Totals) Complete() bool {
	return t.Subtotal.Valid && t.Tax.Valid && t.Total.Valid
}

// Empty reports whether no amount is known.
func (t Totals) Empty() bool {
	return !t.Subtotal.Valid && !t.Tax.Valid && !t.Total.Valid
}

// Derive fills one missing amount from the other two when the derived value
// is non-negative. It returns the name of the derived field, or "".
func (t *Totals) Derive() string {
	switch {
	case !t.Total.Valid && t.Subtotal.Valid && t.Tax.Valid:
		t.Total = Some(t.Subtotal.Decimal.Add(t.Tax.Decimal))
		return FieldTotal
	case !t.Subtotal.Valid && t.Total.Valid && t.Tax.Valid:
		if d := t.Total.Decimal.Sub(t.Tax.Decimal); !d.IsNegative() {
			t.Subtotal = Some(d)
			return FieldSubtotal
		}
	case !t.Tax.Valid && t.Total.Valid && t.Subtotal.Valid:
		if d := t.Total.Decimal.Sub(t.Subtotal.Decimal); !d.IsNegative() {
			t.Tax = Some(d)
			return FieldTax
		}
	}
	return ""
}

// Discrepancy returns |subtotal+tax-total| when all three are known.
func (t Totals) Discrepancy() (decimal.Decimal, bool) {
	if !t.Complete() {
		return decimal.Zero, false
	}
	return t.Subtotal.Decimal.Add(t.Tax.Decimal).Sub(t.Total.Decimal).Abs(), true
}

// Consistent reports whether subtotal+tax matches total within tol.
// Incomplete totals are treated as consistent.
func (t Totals) Consistent(tol float64) bool {
	d, ok := t.Discrepancy()
	if !ok {
		return true
	}
	return d.LessThanOrEqual(decimal.NewFromFloat(tol))
}

// ReconciliationTarget is the amount the item sum should match: the subtotal
// when present, otherwise the total.
func (t Totals) ReconciliationTarget() (decimal.Decimal, bool) {
	if t.Subtotal.Valid {
		return t.Subtotal.Decimal, true
	}
	if t.Total.Valid {
		return t.Total.Decimal, true
	}
	return decimal.Zero, false
}
