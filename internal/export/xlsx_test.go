package export

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

var _ = Describe("Writer", func() {
	var (
		rows []Row
		buf  *bytes.Buffer
		book *excelize.File
	)

	BeforeEach(func() {
		r := receipt.New("CORNER BAKERY CAFE\nTOTAL 16.42", "")
		r.StoreName = "CORNER BAKERY CAFE"
		r.Status = constants.StatusSuccess
		r.HandlerUsed = "generic"
		r.Totals.Total = receipt.Some(decimal.RequireFromString("16.42"))
		r.Items = []receipt.LineItem{
			{Description: "Croissant", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("4.20"), LineTotal: decimal.RequireFromString("4.20")},
			{Description: "Latte", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("5.50"), LineTotal: decimal.RequireFromString("11.00")},
		}
		r.AddNote("subtotal derived")
		rows = []Row{{Source: "bakery.jpg", Receipt: r}, {Source: "broken.jpg"}}
		buf = &bytes.Buffer{}
	})

	JustBeforeEach(func() {
		Expect(NewWriter(nil).WriteXLSX(buf, rows)).To(Succeed())
		var err error
		book, err = excelize.OpenReader(buf)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = book.Close() })
	})

	It("writes one summary row per receipt", func() {
		got, err := book.GetRows(SheetReceipts)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(2))
		Expect(got[0]).To(Equal(receiptHeaders))
		Expect(got[1][1]).To(Equal("bakery.jpg"))
		Expect(got[1][2]).To(Equal("CORNER BAKERY CAFE"))
		Expect(got[1][7]).To(Equal("16.42"))
		Expect(got[1][8]).To(Equal("2"))
		Expect(got[1][10]).To(Equal(string(constants.StatusSuccess)))
		Expect(got[1][12]).To(Equal("subtotal derived"))
	})

	It("leaves unknown amounts empty", func() {
		got, err := book.GetRows(SheetReceipts)
		Expect(err).NotTo(HaveOccurred())
		Expect(got[1][5]).To(BeEmpty())
		Expect(got[1][6]).To(BeEmpty())
	})

	It("writes every line item on the item sheet", func() {
		got, err := book.GetRows(SheetItems)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(3))
		Expect(got[0]).To(Equal(itemHeaders))
		Expect(got[1][1]).To(Equal("Croissant"))
		Expect(got[2][1]).To(Equal("Latte"))
		Expect(got[2][5]).To(Equal("11"))
		Expect(got[1][0]).To(Equal(got[2][0]))
	})

	When("there are no receipts", func() {
		BeforeEach(func() { rows = nil })

		It("still writes the headers", func() {
			got, err := book.GetRows(SheetReceipts)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
		})
	})
})
