package receipt

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
)

var (
	reAmount   = regexp.MustCompile(`^\d+\.\d{2}$`)
	reQuantity = regexp.MustCompile(`^\d+(\.\d{1,3})?$`)
)

// ParseAmount parses a printed money value such as "$1,234.56" or "12.99".
// The value must be non-negative with exactly two fraction digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := cleanNumber(s)
	if !reAmount.MatchString(clean) {
		return decimal.Zero, common.FieldParseError("amount", s, common.ErrInvalidInput)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, common.FieldParseError("amount", s, err)
	}
	return d, nil
}

// ParseQuantity parses a count ("2") or a weight ("0.50", "1.235").
func ParseQuantity(s string) (decimal.Decimal, error) {
	clean := cleanNumber(s)
	if !reQuantity.MatchString(clean) {
		return decimal.Zero, common.FieldParseError("quantity", s, common.ErrInvalidInput)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, common.FieldParseError("quantity", s, err)
	}
	return d, nil
}

func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// Cents returns d as a float rounded to two places, for JSON-free comparisons and logs.
func Cents(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// Within reports whether |a-b| <= tol.
func Within(a, b decimal.Decimal, tol float64) bool {
	return a.Sub(b).Abs().LessThanOrEqual(decimal.NewFromFloat(tol))
}

// Round2 rounds a score to two decimals.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Clamp01 bounds f to [0,1].
func Clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
