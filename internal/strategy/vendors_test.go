package strategy

import (
	"regexp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

func descriptions(items []receipt.LineItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Description
	}
	return out
}

var _ = Describe("Costco", func() {
	var (
		s    Strategy
		text string
	)

	BeforeEach(func() {
		s = NewCostco(nil)
		text = sample("costco")
	})

	It("detects its own receipts with high confidence", func() {
		score, err := s.Detect(text)
		Expect(err).NotTo(HaveOccurred())
		Expect(score).To(BeNumerically(">=", 0.9))

		score, _ = s.Detect(sample("walmart"))
		Expect(score).To(BeZero())
	})

	It("extracts all fifteen items and applies the instant savings", func() {
		items := s.ExtractItems(text)
		Expect(items).To(HaveLen(15))
		Expect(items[0].SKU).To(Equal("1854948"))
		Expect(items[0].Description).To(Equal("GAP SHORT"))

		gerry := items[2]
		Expect(gerry.SKU).To(Equal("1841021"))
		Expect(gerry.LineTotal.StringFixed(2)).To(Equal("9.99"))
		Expect(gerry.Notes).To(ContainSubstring("discount 3.00"))

		Expect(receipt.SumItems(items).StringFixed(2)).To(Equal("202.55"))
		Expect(descriptions(items)).NotTo(ContainElement(ContainSubstring("TOTAL")))
	})

	It("reads the summary block", func() {
		t := s.ExtractTotals(text)
		Expect(t.Subtotal.Decimal.StringFixed(2)).To(Equal("202.55"))
		Expect(t.Tax.Decimal.StringFixed(2)).To(Equal("0.00"))
		Expect(t.Total.Decimal.StringFixed(2)).To(Equal("202.55"))
	})

	It("reads warehouse metadata", func() {
		md := s.ExtractMetadata(text)
		Expect(md.StoreName).To(Equal("Costco"))
		Expect(md.StoreNumber).To(Equal("243"))
		Expect(md.Extra).To(HaveKeyWithValue("warehouse", "Queens"))
		Expect(md.Address).To(Equal("32-50 Vernon Blvd, Long Island, NY 11106"))
		Expect(md.MemberNumber).To(Equal("112016559052"))
		Expect(md.TransactionID).To(Equal("917300041683"))
		Expect(md.PaymentMethod).To(Equal("VISA"))
		Expect(md.CardLast4).To(Equal("9433"))
		Expect(md.Date).NotTo(BeNil())
		Expect(md.Date.Format("2006-01-02 15:04")).To(Equal("2023-05-12 14:32"))
	})

	It("applies a quantity continuation line to the previous item", func() {
		items := s.ExtractItems("1234567 PAPER TOWELS 39.98\n2 @ 19.99\nSUBTOTAL 39.98")
		Expect(items).To(HaveLen(1))
		Expect(items[0].Quantity.String()).To(Equal("2"))
		Expect(items[0].UnitPrice.StringFixed(2)).To(Equal("19.99"))
		Expect(items[0].LineTotal.StringFixed(2)).To(Equal("39.98"))
	})

	It("refuses a discount larger than the item price", func() {
		items := s.ExtractItems("1841021 GERRY SHORT 2.99 F\n0000348310 / 1841021 3.00-\nSUBTOTAL 2.99")
		Expect(items).To(HaveLen(1))
		Expect(items[0].LineTotal.StringFixed(2)).To(Equal("2.99"))
		Expect(items[0].LineTotal.IsNegative()).To(BeFalse())
		Expect(items[0].Notes).To(ContainSubstring("exceeds price"))
	})

	It("allows the wholesale price ceiling", func() {
		Expect(s.PriceCeiling().IntPart()).To(Equal(int64(1000)))
	})
})

var _ = Describe("Walmart", func() {
	var s Strategy

	BeforeEach(func() {
		s = NewWalmart(nil)
	})

	It("detects Walmart receipts", func() {
		score, _ := s.Detect(sample("walmart"))
		Expect(score).To(BeNumerically(">=", 0.7))

		for _, v := range []string{"WAL-MART #123", "WALMART", "WAL MART SUPERCENTER"} {
			score, _ = s.Detect(v)
			Expect(score).To(BeNumerically(">", 0), v)
		}
		for _, v := range []string{"TARGET", "COSTCO WHOLESALE", "KROGER"} {
			score, _ = s.Detect(v)
			Expect(score).To(BeZero(), v)
		}
	})

	It("extracts plain, quantity, weight, UPC and department items", func() {
		items := s.ExtractItems(sample("walmart"))
		Expect(descriptions(items)).To(Equal([]string{"BANANAS", "APPLES", "GRAPES", "BREAD", "MILK"}))

		Expect(items[1].Quantity.String()).To(Equal("2"))
		Expect(items[1].UnitPrice.StringFixed(2)).To(Equal("1.99"))
		Expect(items[1].LineTotal.StringFixed(2)).To(Equal("3.98"))

		Expect(items[2].Quantity.String()).To(Equal("1.5"))
		Expect(items[2].UnitPrice.StringFixed(2)).To(Equal("4.99"))
		Expect(items[2].LineTotal.StringFixed(2)).To(Equal("7.49"))

		Expect(items[3].SKU).To(Equal("012345678901"))
		Expect(items[4].SKU).To(Equal("123"))
	})

	It("reads store, cashier, register and transaction", func() {
		md := s.ExtractMetadata(sample("walmart"))
		Expect(md.StoreNumber).To(Equal("789"))
		Expect(md.Cashier).To(Equal("JOHN456"))
		Expect(md.Register).To(Equal("12"))
		Expect(md.TransactionID).To(Equal("789012"))
		Expect(md.Extra).To(HaveKeyWithValue("tc", "456-789-012"))
		Expect(md.Date.Format("2006-01-02 15:04")).To(Equal("2023-05-25 14:30"))
	})
})

var _ = Describe("Key Food", func() {
	var s Strategy

	BeforeEach(func() {
		s = NewKeyFood(nil)
	})

	It("detects variations of the name", func() {
		score, _ := s.Detect(sample("key_food"))
		Expect(score).To(BeNumerically(">=", 0.9))
		for _, v := range []string{"KEY FOOD #123", "KEYFOOD", "KEY-FOOD MARKETPLACE"} {
			score, _ = s.Detect(v)
			Expect(score).To(BeNumerically(">", 0), v)
		}
		score, _ = s.Detect("TRADER JOE'S")
		Expect(score).To(BeZero())
	})

	It("extracts items and keeps the savings summary out", func() {
		items := s.ExtractItems(sample("key_food"))
		Expect(descriptions(items)).To(Equal([]string{"ORGANIC BANANAS", "APPLES", "GRAPES", "BREAD", "MILK"}))
		Expect(items[1].UnitPrice.StringFixed(2)).To(Equal("2.50"))
		Expect(items[2].Quantity.String()).To(Equal("1.5"))
	})

	It("nets member savings out of a member-price line", func() {
		items := s.ExtractItems("CHEERIOS 5.99 - 1.50 MEMBER SAVINGS")
		Expect(items).To(HaveLen(1))
		Expect(items[0].LineTotal.StringFixed(2)).To(Equal("4.49"))
		Expect(items[0].Notes).To(ContainSubstring("member savings 1.50"))
	})

	It("keeps the price when member savings exceed it", func() {
		items := s.ExtractItems("CHEERIOS 1.00 - 1.50 MEMBER SAVINGS")
		Expect(items).To(HaveLen(1))
		Expect(items[0].LineTotal.StringFixed(2)).To(Equal("1.00"))
		Expect(items[0].Notes).To(ContainSubstring("exceed price"))
	})

	It("reads member metadata", func() {
		md := s.ExtractMetadata(sample("key_food"))
		Expect(md.StoreNumber).To(Equal("456"))
		Expect(md.MemberNumber).To(Equal("123456"))
		Expect(md.Cashier).To(Equal("JOHN123"))
		Expect(md.MemberSavings.Valid).To(BeTrue())
		Expect(md.MemberSavings.Decimal.StringFixed(2)).To(Equal("2.50"))
		Expect(md.CardLast4).To(Equal("5678"))
	})
})

var _ = Describe("H Mart", func() {
	var s Strategy

	BeforeEach(func() {
		s = NewHMart(nil)
	})

	It("detects the aliases", func() {
		for _, v := range []string{"H MART", "HMART", "H-MART", "visit h-mart.com"} {
			score, _ := s.Detect(v)
			Expect(score).To(BeNumerically(">=", 0.8), v)
		}
	})

	It("extracts description-first items including Korean text", func() {
		items := s.ExtractItems(sample("h_mart"))
		Expect(descriptions(items)).To(Equal([]string{"KIMCHI 김치", "NAPA CABBAGE", "ASIAN PEAR", "SHIN RAMYUN", "TOFU"}))
		Expect(items[1].Quantity.String()).To(Equal("2"))
		Expect(items[2].Quantity.String()).To(Equal("1.25"))
		Expect(items[3].Quantity.String()).To(Equal("3"))
		Expect(items[3].UnitPrice.StringFixed(2)).To(Equal("1.50"))
		Expect(receipt.SumItems(items).StringFixed(2)).To(Equal("25.70"))
	})

	It("flags Korean receipts in metadata", func() {
		md := s.ExtractMetadata(sample("h_mart"))
		Expect(md.Extra).To(HaveKeyWithValue("language", "ko"))
		Expect(md.Phone).To(Equal("718-555-0142"))
		Expect(md.PaymentMethod).To(Equal("MASTERCARD"))
	})
})

var _ = Describe("Trader Joe's", func() {
	var s Strategy

	BeforeEach(func() {
		s = NewTraderJoes(nil)
	})

	It("detects the store", func() {
		score, _ := s.Detect(sample("trader_joes"))
		Expect(score).To(BeNumerically(">=", 0.9))
		for _, v := range []string{"TJ'S #123", "TRADER JOES"} {
			score, _ = s.Detect(v)
			Expect(score).To(BeNumerically(">=", 0.8), v)
		}
	})

	It("extracts quantity and weight prefixed items", func() {
		items := s.ExtractItems(sample("trader_joes"))
		Expect(descriptions(items)).To(Equal([]string{"ORGANIC BANANAS", "AVOCADOS", "APPLES", "DARK CHOCOLATE", "GREEK YOGURT"}))
		Expect(items[1].Quantity.String()).To(Equal("2"))
		Expect(items[1].UnitPrice.StringFixed(2)).To(Equal("3.99"))
		Expect(items[2].Quantity.String()).To(Equal("0.5"))
		Expect(items[2].LineTotal.StringFixed(2)).To(Equal("2.99"))
	})

	It("reads totals and crew member", func() {
		t := s.ExtractTotals(sample("trader_joes"))
		Expect(t.Subtotal.Decimal.StringFixed(2)).To(Equal("22.44"))
		Expect(t.Tax.Decimal.StringFixed(2)).To(Equal("1.87"))
		Expect(t.Total.Decimal.StringFixed(2)).To(Equal("24.31"))

		md := s.ExtractMetadata(sample("trader_joes"))
		Expect(md.StoreName).To(Equal("Trader Joe's"))
		Expect(md.StoreNumber).To(Equal("123"))
		Expect(md.Cashier).To(Equal("JOHN"))
		Expect(md.Date.Format("2006-01-02 15:04")).To(Equal("2023-05-15 10:30"))
	})
})

var _ = Describe("Generic", func() {
	var s Strategy

	BeforeEach(func() {
		s = NewGeneric(nil)
	})

	It("always reports the low fallback score", func() {
		score, err := s.Detect("anything at all")
		Expect(err).NotTo(HaveOccurred())
		Expect(score).To(Equal(GenericDetectScore))
	})

	It("suppresses duplicates and keyword lines", func() {
		items := s.ExtractItems(sample("generic"))
		Expect(descriptions(items)).To(Equal([]string{"Croissant", "Latte", "Blueberry Muffin"}))
		Expect(items[1].Quantity.String()).To(Equal("2"))
		Expect(items[1].LineTotal.StringFixed(2)).To(Equal("9.00"))
	})

	It("derives a missing total", func() {
		t := s.ExtractTotals("Subtotal 10.00\nTax 0.80")
		Expect(t.Total.Valid).To(BeTrue())
		Expect(t.Total.Decimal.StringFixed(2)).To(Equal("10.80"))
	})

	It("discards an implausible tax", func() {
		t := s.ExtractTotals("Tax 6.00\nTotal 10.00")
		Expect(t.Tax.Valid).To(BeFalse())
	})

	It("normalizes comma decimals", func() {
		items := s.ExtractItems("Brot Vollkorn 2,49\nKaese 4,99")
		Expect(items).To(HaveLen(2))
		Expect(items[0].LineTotal.StringFixed(2)).To(Equal("2.49"))
	})

	It("takes the store name from the header", func() {
		md := s.ExtractMetadata(sample("generic"))
		Expect(md.StoreName).To(Equal("CORNER BAKERY CAFE"))
		Expect(md.Address).To(Equal("418 Elm Street, Springfield, IL 62701"))
		Expect(md.PaymentMethod).To(Equal("VISA"))
		Expect(md.CardLast4).To(Equal("1111"))
		Expect(md.Date.Format("2006-01-02")).To(Equal("2024-03-08"))
	})
})

var _ = Describe("Seeded", func() {
	It("runs template patterns before the generic ones", func() {
		s := NewSeeded(Seed{
			Name:      "corner_bakery",
			StoreName: "Corner Bakery",
			Store:     regexp.MustCompile(`(?i)CORNER\s+BAKERY`),
			Item:      regexp.MustCompile(`^(?P<desc>[A-Za-z ]+?)\s+\.{2,}\s+(?P<total>\d+\.\d{2})$`),
			Total:     regexp.MustCompile(`(?i)^AMOUNT\s+PAID\s+(\d+\.\d{2})$`),
		}, nil)

		score, _ := s.Detect("CORNER BAKERY CAFE")
		Expect(score).To(BeNumerically(">=", 0.9))

		items := s.ExtractItems("Scone ..... 3.10\nTea 2.00")
		Expect(descriptions(items)).To(Equal([]string{"Scone", "Tea"}))

		t := s.ExtractTotals("AMOUNT PAID 5.10")
		Expect(t.Total.Decimal.StringFixed(2)).To(Equal("5.10"))
		Expect(s.ExtractMetadata("x").StoreName).To(Equal("Corner Bakery"))
	})
})

var _ = Describe("Builtins", func() {
	It("registers every vendor with generic last", func() {
		names := []string{}
		for _, s := range Builtins(nil) {
			names = append(names, s.Name())
		}
		Expect(names).To(Equal([]string{
			constants.VendorCostco,
			constants.VendorWalmart,
			constants.VendorKeyFood,
			constants.VendorHMart,
			constants.VendorTraderJoes,
			constants.VendorGeneric,
		}))
	})
})
