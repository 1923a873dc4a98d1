package template

import "time"

const (
	itemPlain      = `^(?P<desc>[A-Za-z0-9][A-Za-z0-9 &'.,\-/()#+*]*[A-Za-z0-9&')]{2})\s+\$?(?P<total>\d+\.\d{2})(?:\s+[A-Z]{1,2})?$`
	itemQtyAt      = `^(?P<desc>[A-Za-z][A-Za-z0-9 &'.,\-/()#+*]{2,}?)\s+(?P<qty>\d+)\s*(?:@|X|FOR)\s*\$?(?P<unit>\d+\.\d{2})\s+\$?(?P<total>\d+\.\d{2})(?:\s+[A-Z])?$`
	subtotalCommon = `(?i)^SUB[\s-]*TOTAL\s*\$?\s*(\d+\.\d{2})$`
	totalCommon    = `(?i)^(?:\*+\s*)?(?:TOTAL|BALANCE)(?:\s+(?:SALE|DUE))?\s*\$?\s*(\d+\.\d{2})$`
	taxCommon      = `(?i)^(?:SALES\s+)?TAX\b.*?\$?\s*(\d+\.\d{2})$`
)

// Builtins returns the templates shipped with the registry.
func Builtins(now time.Time) []*Template {
	tpls := []*Template{
		{
			Name:            "Costco",
			StoreName:       "Costco",
			HeaderPattern:   `\bCOSTCO\b|\bWHOLESALE\b`,
			Keywords:        []string{"COSTCO", "WHOLESALE", "WAREHOUSE", "EXECUTIVE MEMBER"},
			ItemPattern:     `^(?:E\s+)?(?P<sku>\d{3,})\s+(?P<desc>[A-Za-z][A-Za-z0-9 &'.,\-/()#+*]+?)\s+(?P<total>\d+\.\d{2})(?:\s+[A-Z])?$`,
			SubtotalPattern: subtotalCommon,
			TaxPattern:      taxCommon,
			TotalPattern:    `(?i)^(?:\*+\s*)?TOTAL\s*\$?\s*(\d+\.\d{2})$`,
			PaymentPattern:  `(?i)\b(MASTERCARD|VISA|AMEX|DISCOVER|DEBIT)\b`,
		},
		{
			Name:            "Target",
			StoreName:       "Target",
			HeaderPattern:   `\bTARGET\b|EXPECT\s+MORE|PAY\s+LESS`,
			Keywords:        []string{"TARGET", "EXPECT MORE PAY LESS"},
			ItemPattern:     `^(?:\d{9}\s+)?(?P<desc>[A-Za-z][A-Za-z0-9 &'.,\-/()#+*]*[A-Za-z0-9&')]{2})\s+\$?(?P<total>\d+\.\d{2})$`,
			SubtotalPattern: subtotalCommon,
			TaxPattern:      `(?i)^(?:T\s*=\s*)?(?:[A-Z]{2}\s+)?TAX\b.*?\$?\s*(\d+\.\d{2})$`,
			TotalPattern:    totalCommon,
			PaymentPattern:  `(?i)\b(REDCARD|MASTERCARD|VISA|AMEX|DISCOVER|DEBIT|CREDIT)\b`,
		},
		{
			Name:            "H Mart",
			StoreName:       "H Mart",
			HeaderPattern:   `\bH[\s.\-]?MART\b`,
			Keywords:        []string{"H MART", "HMART", "H-MART"},
			ItemPattern:     itemPlain,
			SubtotalPattern: `(?i)^(?:SUB[\s-]*TOTAL|SUB\s*AMT)\s*\$?\s*(\d+\.\d{2})$`,
			TaxPattern:      `(?i)^(?:SALES\s+)?(?:TAX|TX)\b.*?\$?\s*(\d+\.\d{2})$`,
			TotalPattern:    `(?i)^(?:TOTAL|AMOUNT|BALANCE)(?:\s+DUE)?\s*\$?\s*(\d+\.\d{2})$`,
			PaymentPattern:  `(?i)\b(MASTERCARD|VISA|AMEX|DISCOVER|DEBIT|CREDIT)\b`,
		},
		{
			Name:            "Walmart",
			StoreName:       "Walmart",
			HeaderPattern:   `\bWAL[\s\-]?MART\b|SAVE\s+MONEY|LIVE\s+BETTER`,
			Keywords:        []string{"WALMART", "WAL-MART", "SUPERCENTER", "SAVE MONEY LIVE BETTER"},
			ItemPattern:     `^(?P<desc>[A-Za-z][A-Za-z0-9 &'.,\-/()#+*]{2,}?)\s+(?P<sku>\d{12,13})\s+(?:[A-Z]\s+)?(?P<total>\d+\.\d{2})(?:\s+[A-Z])?$`,
			SubtotalPattern: subtotalCommon,
			TaxPattern:      `(?i)^TAX\s*\d*\s+[\d.]+\s*%\s*\$?\s*(\d+\.\d{2})$`,
			TotalPattern:    totalCommon,
			PaymentPattern:  `(?i)\b(WALMART\s+PAY|MASTERCARD|VISA|AMEX|DISCOVER|DEBIT|EBT|CASH)\b`,
		},
		{
			Name:            "Trader Joe's",
			StoreName:       "Trader Joe's",
			HeaderPattern:   `TRADER\s*JOE'?S?`,
			Keywords:        []string{"TRADER JOE"},
			ItemPattern:     itemPlain,
			SubtotalPattern: subtotalCommon,
			TaxPattern:      taxCommon,
			TotalPattern:    totalCommon,
			PaymentPattern:  `(?i)\b(VISA|MASTERCARD|AMEX|DISCOVER|DEBIT|CREDIT|CASH)\b`,
		},
		{
			Name:            "Key Food",
			StoreName:       "Key Food",
			HeaderPattern:   `\bKEY\s*FOOD\b`,
			Keywords:        []string{"KEY FOOD", "KEYFOOD"},
			ItemPattern:     itemQtyAt,
			SubtotalPattern: subtotalCommon,
			TaxPattern:      taxCommon,
			TotalPattern:    totalCommon,
			PaymentPattern:  `(?i)\b(VISA|MASTERCARD|AMEX|DISCOVER|DEBIT|EBT|CASH)\b`,
		},
	}
	for _, t := range tpls {
		t.ID = "builtin-" + seedName(t.Name)
		t.Builtin = true
		t.Version = 1
		t.Currency = "USD"
		t.CreatedAt = now
		t.UpdatedAt = now
	}
	return tpls
}
