package strategy

import (
	"log/slog"
	"regexp"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

var (
	reKeyFoodName      = regexp.MustCompile(`(?i)\bKEY[\s-]*FOOD\b`)
	reKeyFoodStoreNo   = regexp.MustCompile(`(?i)\bSTORE\s*#\s*:?\s*(\d+)`)
	reKeyFoodMarket    = regexp.MustCompile(`(?i)\b(?:MARKETPLACE|STORE)\b`)
	reKeyFoodSavings   = regexp.MustCompile(`(?i)\bMEMBER\s+(?:SAVINGS|PRICE)\b`)
	reKeyFoodTotal     = regexp.MustCompile(`(?i)\bTOTAL\s+\$?\d+\.\d{2}`)
	reKeyFoodMemberNo  = regexp.MustCompile(`(?i)\bMEMBER\s*#\s*:?\s*(\d+)`)
	reKeyFoodCashier   = regexp.MustCompile(`(?i)\bCASHIER\s*:?\s*(\S+)`)
	reKeyFoodRegister  = regexp.MustCompile(`(?i)\bREG(?:ISTER)?\s*#?\s*:?\s*(\d+)`)
	reKeyFoodSavedLine = regexp.MustCompile(`(?i)\bMEMBER\s*SAVINGS?\s*:\s*\$?\s*(\d+\.\d{2})`)
)

type keyFood struct {
	base
}

// NewKeyFood parses Key Food receipts. Member-price lines print the regular
// price followed by the savings; the line total is the difference.
func NewKeyFood(logger *slog.Logger) Strategy {
	b := newBase(constants.VendorKeyFood, "Key Food", logger)
	b.items = ItemRules{
		NewItemRule("keyfood_member_savings", `(?i)^(?P<desc>[A-Za-z].*?)\s+\$?(?P<total>`+money+`)\s*-\s*\$?(?P<savings>`+money+`)\s+MEMBER\s+SAVINGS?$`, 0.9),
		NewItemRule("keyfood_weight", `(?i)^(?P<qty>\d+(?:\.\d{1,3})?)\s*LBS?\s*@\s*\$?(?P<unit>`+money+`)\s*/\s*LB\s+(?P<desc>.+?)\s+\$?(?P<total>`+money+`)$`, 0.85),
		NewItemRule("keyfood_qty", `^(?P<qty>\d+)\s*@\s*\$?(?P<unit>`+money+`)\s+(?P<desc>.+?)\s+\$?(?P<total>`+money+`)$`, 0.85),
		NewItemRule("keyfood_standard", `^(?P<desc>[A-Za-z][^$]*?)\s+\$?(?P<total>`+money+`)$`, 0.8),
	}
	b.exclude = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bMEMBER\s*SAVINGS?\s*:`),
		regexp.MustCompile(`(?i)\bYOU\s+SAVED\b`),
	}
	return &keyFood{base: b}
}

func (k *keyFood) Detect(text string) (float64, error) {
	if !reKeyFoodName.MatchString(text) {
		return 0, nil
	}
	store := 0.8
	if reKeyFoodStoreNo.MatchString(text) {
		store = 1.0
	}
	factor := 0.7
	if reKeyFoodMarket.MatchString(text) {
		factor += 0.4
	}
	if reKeyFoodSavings.MatchString(text) {
		factor += 0.3
	}
	if reKeyFoodTotal.MatchString(text) {
		factor += 0.3
	}
	return receipt.Clamp01(store * factor), nil
}

func (k *keyFood) ExtractMetadata(text string) receipt.Metadata {
	md := receipt.Metadata{StoreName: k.storeName, Currency: constants.DefaultCurrency}
	lines := receipt.SplitLines(text)
	for i, line := range lines {
		if reKeyFoodName.MatchString(line) {
			md.Address = AddressAfter(lines, i)
			break
		}
	}
	if m := reKeyFoodStoreNo.FindStringSubmatch(text); m != nil {
		md.StoreNumber = m[1]
	}
	if m := reKeyFoodMemberNo.FindStringSubmatch(text); m != nil {
		md.MemberNumber = m[1]
	}
	if m := reKeyFoodCashier.FindStringSubmatch(text); m != nil {
		md.Cashier = m[1]
	}
	if m := reKeyFoodRegister.FindStringSubmatch(text); m != nil {
		md.Register = m[1]
	}
	if m := reKeyFoodSavedLine.FindStringSubmatch(text); m != nil {
		if d, err := receipt.ParseAmount(m[1]); err == nil {
			md.MemberSavings = receipt.Some(d)
		}
	}
	md.Phone = DetectPhone(text)
	md.Date = ParseDate(text)
	pay := DetectPayment(text)
	md.PaymentMethod = pay.Method
	md.CardLast4 = pay.Last4
	return md
}
