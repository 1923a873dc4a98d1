package strategy

import (
	"log/slog"
	"regexp"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

var (
	reWalmartName    = regexp.MustCompile(`(?i)\bWAL[\s-]?MART\b`)
	reWalmartSlogan  = regexp.MustCompile(`(?i)SAVE\s+MONEY\.?\s+LIVE\s+BETTER`)
	reWalmartTC      = regexp.MustCompile(`(?i)\bTC#\s*\d+-\d+-\d+`)
	reWalmartTotal   = regexp.MustCompile(`(?i)\bTOTAL\s+\$?\d+\.\d{2}`)
	reWalmartStore   = regexp.MustCompile(`(?i)\bST(?:ORE)?\s*#\s*(\d+)`)
	reWalmartCashier = regexp.MustCompile(`(?i)\bCASHIER\s*:?\s*(\S+)`)
	reWalmartReg     = regexp.MustCompile(`(?i)\bREG(?:ISTER)?\s*#?\s*:?\s*(\d+)`)
	reWalmartTrans   = regexp.MustCompile(`(?i)\bTRANS(?:ACTION)?\s*#?\s*:?\s*(\d+)`)
	reWalmartTCNo    = regexp.MustCompile(`(?i)\bTC#\s*([\d-]+)`)
)

type walmart struct {
	base
}

// NewWalmart parses Walmart supercenter receipts, including UPC-coded,
// department-coded, quantity and by-weight item lines.
func NewWalmart(logger *slog.Logger) Strategy {
	b := newBase(constants.VendorWalmart, "Walmart", logger)
	b.ceiling = wholesaleCeiling
	b.items = ItemRules{
		NewItemRule("walmart_upc_first", `^(?P<sku>\d{12,13})\s+(?P<desc>.+?)\s+\$?(?P<total>`+money+`)(?:\s+[A-Z])?$`, 0.95),
		NewItemRule("walmart_upc", `^(?P<desc>[A-Za-z].*?)\s+(?P<sku>\d{12,13})\s+\$?(?P<total>`+money+`)(?:\s+[A-Z]{1,2})?$`, 0.95),
		NewItemRule("walmart_dept", `(?i)^DEPT\s+(?P<sku>\d+)\s+(?P<desc>.+?)\s+\$?(?P<total>`+money+`)$`, 0.9),
		NewItemRule("walmart_weight", `(?i)^(?P<qty>\d+(?:\.\d{1,3})?)\s*LBS?\s*@\s*\$?(?P<unit>`+money+`)\s*/\s*LB\s+(?P<desc>.+?)\s+\$?(?P<total>`+money+`)$`, 0.8),
		NewItemRule("walmart_qty", `^(?P<qty>\d+)\s*@\s*\$?(?P<unit>`+money+`)\s+(?P<desc>.+?)\s+\$?(?P<total>`+money+`)$`, 0.85),
		NewItemRule("walmart_plain", `^(?P<desc>[A-Za-z][^$]*?)\s+\$?(?P<total>`+money+`)(?:\s+[A-Z])?$`, 0.7),
	}
	b.exclude = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:TC#|ST#|OP#|TE#|TR#)`),
		regexp.MustCompile(`(?i)\bSAVE\s+MONEY\b`),
	}
	return &walmart{base: b}
}

func (w *walmart) Detect(text string) (float64, error) {
	if !reWalmartName.MatchString(text) {
		return 0, nil
	}
	factor := 0.7
	if reWalmartSlogan.MatchString(text) {
		factor += 0.4
	}
	if reWalmartTC.MatchString(text) {
		factor += 0.3
	}
	if reWalmartTotal.MatchString(text) {
		factor += 0.3
	}
	return receipt.Clamp01(0.8 * factor), nil
}

func (w *walmart) ExtractMetadata(text string) receipt.Metadata {
	md := receipt.Metadata{StoreName: w.storeName, Currency: constants.DefaultCurrency}
	lines := receipt.SplitLines(text)
	for i, line := range lines {
		if reWalmartName.MatchString(line) {
			md.Address = AddressAfter(lines, i+1)
			break
		}
	}
	if m := reWalmartStore.FindStringSubmatch(text); m != nil {
		md.StoreNumber = m[1]
	}
	if m := reWalmartCashier.FindStringSubmatch(text); m != nil {
		md.Cashier = m[1]
	}
	if m := reWalmartReg.FindStringSubmatch(text); m != nil {
		md.Register = m[1]
	}
	if m := reWalmartTrans.FindStringSubmatch(text); m != nil {
		md.TransactionID = m[1]
	}
	if m := reWalmartTCNo.FindStringSubmatch(text); m != nil {
		md.SetExtra("tc", m[1])
		if md.TransactionID == "" {
			md.TransactionID = m[1]
		}
	}
	md.Phone = DetectPhone(text)
	md.Date = ParseDate(text)
	pay := DetectPayment(text)
	md.PaymentMethod = pay.Method
	md.CardLast4 = pay.Last4
	return md
}
