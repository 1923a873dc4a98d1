package receipt

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var _ = Describe("ParseAmount", func() {
	It("accepts two fraction digits with currency symbol and separators", func() {
		d, err := ParseAmount("$1,234.56")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Equal(dec("1234.56"))).To(BeTrue())
	})

	It("rejects values without two fraction digits", func() {
		_, err := ParseAmount("12.5")
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, common.ErrFieldParse)).To(BeTrue())
		Expect(common.IsCode(err, common.CodeFieldParse)).To(BeTrue())
	})

	It("rejects negative values", func() {
		_, err := ParseAmount("-3.00")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ParseQuantity", func() {
	It("accepts counts and weights", func() {
		q, err := ParseQuantity("2")
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Equal(dec("2"))).To(BeTrue())

		q, err = ParseQuantity("0.50")
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Equal(dec("0.5"))).To(BeTrue())
	})

	It("rejects garbage", func() {
		_, err := ParseQuantity("two")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Totals", func() {
	var t Totals

	BeforeEach(func() {
		t = Totals{}
	})

	When("total is missing", func() {
		It("derives it from subtotal and tax", func() {
			t.Subtotal = Some(dec("22.44"))
			t.Tax = Some(dec("1.87"))
			Expect(t.Derive()).To(Equal(FieldTotal))
			Expect(t.Total.Decimal.Equal(dec("24.31"))).To(BeTrue())
		})
	})

	When("a derived value would be negative", func() {
		It("leaves the field absent", func() {
			t.Total = Some(dec("5.00"))
			t.Tax = Some(dec("6.00"))
			Expect(t.Derive()).To(BeEmpty())
			Expect(t.Subtotal.Valid).To(BeFalse())
		})
	})

	It("reports consistency within tolerance", func() {
		t.Subtotal = Some(dec("10.00"))
		t.Tax = Some(dec("0.80"))
		t.Total = Some(dec("10.81"))
		Expect(t.Consistent(0.02)).To(BeTrue())

		t.Total = Some(dec("11.00"))
		Expect(t.Consistent(0.02)).To(BeFalse())
	})

	It("treats incomplete totals as consistent", func() {
		t.Total = Some(dec("11.00"))
		Expect(t.Consistent(0.02)).To(BeTrue())
	})

	It("reconciles against subtotal before total", func() {
		t.Total = Some(dec("11.00"))
		target, ok := t.ReconciliationTarget()
		Expect(ok).To(BeTrue())
		Expect(target.Equal(dec("11.00"))).To(BeTrue())

		t.Subtotal = Some(dec("10.00"))
		target, _ = t.ReconciliationTarget()
		Expect(target.Equal(dec("10.00"))).To(BeTrue())
	})
})

var _ = Describe("ExtractedText", func() {
	It("reports zero confidence without blocks", func() {
		Expect(ExtractedText{Content: "hello"}.Confidence()).To(BeZero())
	})

	It("averages block confidences", func() {
		et := ExtractedText{Blocks: []TextBlock{{Confidence: 0.8}, {Confidence: 0.6}}}
		Expect(et.Confidence()).To(BeNumerically("~", 0.7, 1e-9))
	})

	It("drops blank lines", func() {
		et := ExtractedText{Content: "A\n\n  B  \n"}
		Expect(et.Lines()).To(Equal([]string{"A", "B"}))
	})
})

var _ = Describe("Receipt", func() {
	It("derives the same ID from the same text", func() {
		Expect(IDForText("abc")).To(Equal(IDForText("abc")))
		Expect(IDForText("abc")).NotTo(Equal(IDForText("abd")))
	})

	It("serializes to JSON that satisfies the receipt schema", func() {
		r := New("COSTCO", "")
		r.StoreName = "Costco"
		r.HandlerUsed = constants.VendorCostco
		r.Status = constants.StatusSuccess
		r.OverallConfidence = 0.91
		r.ConfidenceScores[FieldItems] = 0.9
		r.Totals.Total = Some(dec("202.55"))
		r.Items = append(r.Items, LineItem{
			Description: "KS TORTELLON",
			UnitPrice:   dec("11.29"),
			Quantity:    decimal.NewFromInt(1),
			LineTotal:   dec("11.29"),
			Confidence:  ItemConfidence{Description: 1, Price: 1, Quantity: 1, Overall: 1},
		})
		Expect(r.Currency).To(Equal("USD"))
		Expect(r.Validate()).To(Succeed())
	})

	It("rejects an out-of-range confidence", func() {
		r := New("x", "USD")
		r.HandlerUsed = constants.VendorGeneric
		r.OverallConfidence = 1.5
		Expect(r.Validate()).NotTo(Succeed())
	})

	It("sums line totals", func() {
		r := New("x", "USD")
		r.Items = []LineItem{{LineTotal: dec("1.10")}, {LineTotal: dec("2.20")}}
		Expect(r.ItemSum().Equal(dec("3.30"))).To(BeTrue())
	})
})
