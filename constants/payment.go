package constants

import (
	"strings"
)

type PaymentCategory string

const (
	PaymentCredit     PaymentCategory = "credit"
	PaymentDebit      PaymentCategory = "debit"
	PaymentCash       PaymentCategory = "cash"
	PaymentElectronic PaymentCategory = "electronic"
	PaymentCheck      PaymentCategory = "check"
	PaymentGiftCard   PaymentCategory = "gift_card"
	PaymentUnknown    PaymentCategory = "unknown"
)

var allPaymentCategories = []PaymentCategory{
	PaymentCredit,
	PaymentDebit,
	PaymentCash,
	PaymentElectronic,
	PaymentCheck,
	PaymentGiftCard,
}

func PaymentCategories() []string {
	result := make([]string, len(allPaymentCategories))
	for i, cat := range allPaymentCategories {
		result[i] = string(cat)
	}
	return result
}

// CanonicalizePayment maps a payment method as printed on a receipt
// ("VISA", "WALMART PAY", "EBT") to a PaymentCategory.
func CanonicalizePayment(method string) (PaymentCategory, bool) {
	if method == "" {
		return PaymentUnknown, false
	}

	normalized := strings.ToLower(strings.Join(strings.Fields(method), " "))

	synonyms := map[string]PaymentCategory{
		"visa":             PaymentCredit,
		"mastercard":       PaymentCredit,
		"master card":      PaymentCredit,
		"amex":             PaymentCredit,
		"american express": PaymentCredit,
		"discover":         PaymentCredit,
		"credit":           PaymentCredit,
		"credit card":      PaymentCredit,
		"debit":            PaymentDebit,
		"debit card":       PaymentDebit,
		"ebt":              PaymentDebit,
		"cash":             PaymentCash,
		"apple pay":        PaymentElectronic,
		"google pay":       PaymentElectronic,
		"walmart pay":      PaymentElectronic,
		"paypal":           PaymentElectronic,
		"venmo":            PaymentElectronic,
		"check":            PaymentCheck,
		"cheque":           PaymentCheck,
		"gift card":        PaymentGiftCard,
		"gift":             PaymentGiftCard,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allPaymentCategories {
		if normalized == string(cat) || strings.ReplaceAll(normalized, " ", "_") == string(cat) {
			return cat, true
		}
	}

	return PaymentUnknown, false
}
