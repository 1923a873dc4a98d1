package strategy

import (
	"log/slog"
	"regexp"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

var (
	reHMartName  = regexp.MustCompile(`(?i)\bH[\s-]?MART\b|h-mart\.com`)
	reHMartTotal = regexp.MustCompile(`(?i)\bTOTAL\s+\$?\d+\.\d{2}`)
	reHangul     = regexp.MustCompile(`\p{Hangul}`)
)

type hMart struct {
	base
}

// NewHMart parses H Mart receipts, where item lines print the description
// first and an optional "qty [lb] @ unit" before the line total. Descriptions
// may be Korean.
func NewHMart(logger *slog.Logger) Strategy {
	b := newBase(constants.VendorHMart, "H Mart", logger)
	b.items = ItemRules{
		NewItemRule("hmart_qty", `(?i)^(?P<desc>[^\d$].*?)\s+(?P<qty>\d+(?:\.\d{1,3})?)\s*(?:LBS?)?\s*@\s*\$?(?P<unit>`+money+`)\s+\$?(?P<total>`+money+`)$`, 0.9),
		NewItemRule("hmart_unit_total", `^(?P<desc>[^\d$].*?)\s+\$?(?P<unit>`+money+`)\s+\$?(?P<total>`+money+`)$`, 0.85),
		NewItemRule("hmart_plain", `^(?P<desc>[^\d$].*?)\s+\$?(?P<total>`+money+`)$`, 0.75),
	}
	b.exclude = []*regexp.Regexp{
		regexp.MustCompile(`(?i)h-mart\.com`),
		regexp.MustCompile(`(?i)\b(?:POINTS?|REWARDS?)\b`),
	}
	return &hMart{base: b}
}

func (h *hMart) Detect(text string) (float64, error) {
	if !reHMartName.MatchString(text) {
		return 0, nil
	}
	score := 0.8
	if reHMartTotal.MatchString(text) {
		score += 0.1
	}
	if reHangul.MatchString(text) {
		score += 0.1
	}
	return receipt.Clamp01(score), nil
}

func (h *hMart) ExtractMetadata(text string) receipt.Metadata {
	md := receipt.Metadata{StoreName: h.storeName, Currency: constants.DefaultCurrency}
	lines := receipt.SplitLines(text)
	for i, line := range lines {
		if reHMartName.MatchString(line) {
			md.Address = AddressAfter(lines, i)
			break
		}
	}
	md.Phone = DetectPhone(text)
	md.Date = ParseDate(text)
	pay := DetectPayment(text)
	md.PaymentMethod = pay.Method
	md.CardLast4 = pay.Last4
	if reHangul.MatchString(text) {
		md.SetExtra("language", "ko")
	}
	return md
}
