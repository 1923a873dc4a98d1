package strategy

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

var (
	reCostcoName      = regexp.MustCompile(`(?i)\bCOSTCO\b`)
	reCostcoWholesale = regexp.MustCompile(`(?i)\bWHOLESALE\b`)
	reCostcoTotal     = regexp.MustCompile(`(?i)\bTOTAL\s+\d+\.\d{2}`)
	reCostcoMember    = regexp.MustCompile(`(?i)\bMEMBER\b`)

	// "00003483l0 / 1841021 3.00-" takes 3.00 off the item with sku 1841021.
	reCostcoDiscount = regexp.MustCompile(`^(?:\S+\s+)?/\s*(\d{3,})\s+(\d+\.\d{2})-$`)
	// "2 @ 5.99 11.98" carries the quantity of the preceding item.
	reCostcoQty = regexp.MustCompile(`^(\d+)\s*@\s*(\d+\.\d{2})(?:\s+(\d+\.\d{2}))?$`)

	reCostcoStoreNo  = regexp.MustCompile(`^(.*?)\s*#\s*(\d{2,5})\b`)
	reCostcoMemberNo = regexp.MustCompile(`(?i)MEMBER\s*#?\s*(\d{10,})`)
	reCostcoTranID   = regexp.MustCompile(`(?i)\bTRAN(?:S(?:ACTION)?)?\s*ID\s*#?\s*:?\s*(\w+)`)
)

type costco struct {
	base
}

// NewCostco parses Costco Wholesale warehouse receipts: "[E] SKU DESC PRICE [F]"
// item lines, quantity continuation lines and instant-savings discount lines.
func NewCostco(logger *slog.Logger) Strategy {
	b := newBase(constants.VendorCostco, "Costco", logger)
	b.ceiling = wholesaleCeiling
	b.items = ItemRules{
		NewItemRule("costco_sku", `^(?:E\s+)?(?P<sku>\d{3,})\s+(?P<desc>.+?)\s+(?P<total>\d+\.\d{2})(?:\s+[A-Z])?$`, 0.95),
		NewItemRule("costco_plain", `^(?P<desc>[A-Za-z][A-Za-z0-9 &'./-]*?)\s+(?P<total>\d+\.\d{2})(?:\s+[A-Z])?$`, 0.7),
	}
	b.exclude = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bMEMBER\b`),
		regexp.MustCompile(`(?i)\bINSTANT\s+SAVINGS\b`),
		regexp.MustCompile(`(?i)^(?:AID|SEQ|TRAN|APP|RESP)\b`),
	}
	b.total = AmountRules{
		NewAmountRule("costco_total", `(?i)^(?:\*+\s*)?TOTAL\s*\$?\s*(\d+\.\d{2})$`),
	}
	b.total = append(b.total, DefaultTotalRules...)
	return &costco{base: b}
}

func (c *costco) Detect(text string) (float64, error) {
	if !reCostcoName.MatchString(text) {
		return 0, nil
	}
	score := 0.8
	if reCostcoWholesale.MatchString(text) {
		score += 0.1
	}
	if reCostcoTotal.MatchString(text) {
		score += 0.1
	}
	if reCostcoMember.MatchString(text) {
		score += 0.1
	}
	return receipt.Clamp01(score), nil
}

// ExtractItems walks lines in order so discount and quantity lines can amend
// the item they refer to.
func (c *costco) ExtractItems(text string) []receipt.LineItem {
	var items []receipt.LineItem
	bySKU := make(map[string]int)

	for _, line := range receipt.SplitLines(text) {
		if m := reCostcoDiscount.FindStringSubmatch(line); m != nil {
			c.applyDiscount(items, bySKU, m[1], m[2])
			continue
		}
		if m := reCostcoQty.FindStringSubmatch(line); m != nil && len(items) > 0 {
			c.applyQuantity(&items[len(items)-1], m)
			continue
		}
		if c.excluded(line) {
			continue
		}
		item, grammar, ok := c.items.Match(line, c.logger)
		if !ok {
			continue
		}
		ScoreItem(&item, grammar, c.ceiling)
		if item.SKU != "" {
			bySKU[item.SKU] = len(items)
		}
		items = append(items, item)
	}
	return items
}

func (c *costco) applyDiscount(items []receipt.LineItem, bySKU map[string]int, sku, amount string) {
	i, ok := bySKU[sku]
	if !ok {
		c.logger.Debug("strategy.costco.discount.orphan", "sku", sku, "amount", amount)
		return
	}
	off, err := receipt.ParseAmount(amount)
	if err != nil {
		return
	}
	it := &items[i]
	if off.GreaterThan(it.LineTotal) {
		c.logger.Warn("strategy.costco.discount.exceeds_price", "sku", sku, "amount", amount, "line_total", it.LineTotal.StringFixed(2))
		it.AddNote("discount " + off.StringFixed(2) + " exceeds price, not applied")
		return
	}
	it.LineTotal = it.LineTotal.Sub(off)
	if it.Quantity.IsPositive() {
		it.UnitPrice = it.LineTotal.Div(it.Quantity).Round(2)
	}
	it.AddNote("discount " + off.StringFixed(2))
}

func (c *costco) applyQuantity(it *receipt.LineItem, m []string) {
	qty, err := receipt.ParseQuantity(m[1])
	if err != nil || qty.IsZero() {
		return
	}
	unit, err := receipt.ParseAmount(m[2])
	if err != nil {
		return
	}
	it.Quantity = qty
	it.UnitPrice = unit
	if m[3] != "" {
		if total, err := receipt.ParseAmount(m[3]); err == nil {
			it.LineTotal = total
		}
	} else if it.LineTotal.IsZero() {
		it.LineTotal = unit.Mul(qty).Round(2)
	}
	it.AddNote("quantity " + qty.String() + " @ " + unit.StringFixed(2))
}

func (c *costco) ExtractMetadata(text string) receipt.Metadata {
	lines := receipt.SplitLines(text)
	md := receipt.Metadata{StoreName: c.storeName, Currency: constants.DefaultCurrency}

	header := 0
	for i, line := range lines {
		if reCostcoName.MatchString(line) {
			header = i
			break
		}
	}
	for i := header + 1; i < len(lines) && i <= header+3; i++ {
		if m := reCostcoStoreNo.FindStringSubmatch(lines[i]); m != nil {
			md.StoreNumber = m[2]
			if loc := strings.TrimSpace(m[1]); loc != "" {
				md.SetExtra("warehouse", loc)
			}
			break
		}
	}
	md.Address = AddressAfter(lines, header)

	if m := reCostcoMemberNo.FindStringSubmatch(text); m != nil {
		md.MemberNumber = m[1]
	}
	if m := reCostcoTranID.FindStringSubmatch(text); m != nil {
		md.TransactionID = m[1]
	}
	md.Phone = DetectPhone(text)
	md.Date = ParseDate(text)
	pay := DetectPayment(text)
	md.PaymentMethod = pay.Method
	md.CardLast4 = pay.Last4
	return md
}

