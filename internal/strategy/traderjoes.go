package strategy

import (
	"log/slog"
	"regexp"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

var (
	reTJName    = regexp.MustCompile(`(?i)\bTRADER\s+JOE'?S|\bTJ'?S\b`)
	reTJTotal   = regexp.MustCompile(`(?i)\bTOTAL\s+\$?\d+\.\d{2}`)
	reTJStoreNo = regexp.MustCompile(`(?i)\bSTORE\s*#\s*(\d+)|(?:TRADER\s+JOE'?S|TJ'?S)\s*#\s*(\d+)`)
	reTJCrew    = regexp.MustCompile(`(?i)\bCREW(?:\s+MEMBER)?\s*:?\s*([A-Za-z][\w .'-]*)`)
	reTJMarker  = regexp.MustCompile(`(?i)\bSTORE\s*#|\bCREW\b`)
)

type traderJoes struct {
	base
}

// NewTraderJoes parses Trader Joe's receipts. Quantity and weight lines put
// the "n @ $unit" prefix before the description.
func NewTraderJoes(logger *slog.Logger) Strategy {
	b := newBase(constants.VendorTraderJoes, "Trader Joe's", logger)
	b.items = ItemRules{
		NewItemRule("tj_qty", `^(?P<qty>\d+)\s*@\s*\$?(?P<unit>`+money+`)\s+(?P<desc>.+?)\s+\$?(?P<total>`+money+`)$`, 0.9),
		NewItemRule("tj_weight", `(?i)^(?P<qty>\d+(?:\.\d{1,3})?)\s*LBS?\s*@\s*\$?(?P<unit>`+money+`)\s*/\s*LB\s+(?P<desc>.+?)\s+\$?(?P<total>`+money+`)$`, 0.85),
		NewItemRule("tj_plain", `^(?P<desc>[A-Za-z][^$]*?)\s+\$?(?P<total>`+money+`)$`, 0.9),
	}
	b.exclude = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bCREW\b`),
		regexp.MustCompile(`(?i)\bSTORE\s*#`),
	}
	return &traderJoes{base: b}
}

func (t *traderJoes) Detect(text string) (float64, error) {
	if !reTJName.MatchString(text) {
		return 0, nil
	}
	score := 0.8
	if reTJTotal.MatchString(text) {
		score += 0.1
	}
	if reTJMarker.MatchString(text) {
		score += 0.1
	}
	return receipt.Clamp01(score), nil
}

func (t *traderJoes) ExtractMetadata(text string) receipt.Metadata {
	md := receipt.Metadata{StoreName: t.storeName, Currency: constants.DefaultCurrency}
	if m := reTJStoreNo.FindStringSubmatch(text); m != nil {
		md.StoreNumber = m[1]
		if md.StoreNumber == "" {
			md.StoreNumber = m[2]
		}
	}
	if m := reTJCrew.FindStringSubmatch(text); m != nil {
		md.Cashier = m[1]
	}
	lines := receipt.SplitLines(text)
	for i, line := range lines {
		if reTJName.MatchString(line) {
			md.Address = AddressAfter(lines, i)
			break
		}
	}
	md.Phone = DetectPhone(text)
	md.Date = ParseDate(text)
	pay := DetectPayment(text)
	md.PaymentMethod = pay.Method
	md.CardLast4 = pay.Last4
	return md
}
