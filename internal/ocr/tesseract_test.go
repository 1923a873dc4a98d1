package ocr

import (
	"context"
	"errors"
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

func tsvRow(level, block, line, word, left, top, w, h int, conf, text string) string {
	cols := []string{
		itoa(level), "1", itoa(block), "1", itoa(line), itoa(word),
		itoa(left), itoa(top), itoa(w), itoa(h), conf, text,
	}
	return strings.Join(cols, "\t")
}

func itoa(i int) string { return strconv.Itoa(i) }

var sampleTSV = strings.Join([]string{
	"level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext",
	tsvRow(4, 1, 1, 0, 0, 0, 0, 0, "-1", ""),
	tsvRow(5, 1, 1, 1, 1, 1, 5, 2, "90", "COSTCO"),
	tsvRow(5, 1, 1, 2, 7, 1, 8, 2, "80", "WHOLESALE"),
	tsvRow(5, 2, 1, 1, 1, 4, 5, 2, "70.5", "TOTAL"),
	tsvRow(5, 2, 1, 2, 7, 4, 5, 2, "-1", "12.99"),
	"",
}, "\n")

var _ = Describe("ParseTSV", func() {
	It("rebuilds lines and averages word confidence per line", func() {
		res := ParseTSV(sampleTSV)
		Expect(res.Content).To(Equal("COSTCO WHOLESALE\nTOTAL 12.99"))
		Expect(res.Blocks).To(HaveLen(2))
		Expect(res.Blocks[0].Confidence).To(BeNumerically("~", 0.85, 1e-9))
		Expect(res.Blocks[1].Confidence).To(BeNumerically("~", 0.705, 1e-9))
		Expect(res.Blocks[0].Box).To(Equal(receipt.BoundingBox{X: 1, Y: 1, Width: 14, Height: 2}))
	})

	It("returns empty text for header-only output", func() {
		res := ParseTSV("level\tpage_num\n")
		Expect(res.Content).To(BeEmpty())
		Expect(res.Confidence()).To(BeZero())
	})
})

var _ = Describe("Tesseract backend", func() {
	var (
		runner *fakeRunner
		tess   *Tesseract
	)

	BeforeEach(func() {
		runner = &fakeRunner{stdout: []byte(sampleTSV)}
		tess = NewTesseract(TesseractConfig{Lang: "eng", TessdataDir: "/td"}, runner, nil)
	})

	It("runs tesseract in TSV mode with the default page segmentation", func() {
		res, err := tess.Recognize(context.Background(), receipt.Image{Source: "/tmp/r.png"}, Hints{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Backend).To(Equal(BackendTesseract))
		Expect(runner.name).To(Equal("tesseract"))
		Expect(runner.args).To(Equal([]string{"/tmp/r.png", "stdout", "-l", "eng", "--psm", "6", "--tessdata-dir", "/td", "tsv"}))
	})

	It("switches page segmentation for the aggressive pass", func() {
		_, err := tess.Recognize(context.Background(), receipt.Image{Source: "/tmp/r.png"}, Hints{Aggressive: true, Language: "spa"})
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.args).To(ContainElements("--psm", "4", "spa"))
	})

	It("writes in-memory images to a temporary file", func() {
		_, err := tess.Recognize(context.Background(), receipt.Image{Data: []byte("png"), Format: "png"}, Hints{})
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.args[0]).To(HaveSuffix(".png"))
	})

	It("keeps deadline errors transient", func() {
		runner.err = context.DeadlineExceeded
		_, err := tess.Recognize(context.Background(), receipt.Image{Source: "/tmp/r.png"}, Hints{})
		Expect(err).To(HaveOccurred())
		Expect(IsTransient(err)).To(BeTrue())
	})

	It("treats process failures as permanent", func() {
		runner.err = errors.New("exit status 1")
		_, err := tess.Recognize(context.Background(), receipt.Image{Source: "/tmp/r.png"}, Hints{})
		Expect(err).To(HaveOccurred())
		Expect(IsTransient(err)).To(BeFalse())
	})

	It("rejects images with no data and no path", func() {
		_, err := tess.Recognize(context.Background(), receipt.Image{}, Hints{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Normalize", func() {
	It("collapses whitespace and drops separator lines", func() {
		in := "COSTCO   WHOLESALE\r\n-----\r\n\tTOTAL\t12.99  \n\n\n\nTHANK YOU"
		Expect(Normalize(in)).To(Equal("COSTCO WHOLESALE\n\nTOTAL 12.99\n\nTHANK YOU"))
	})

	It("leaves dates alone", func() {
		Expect(Normalize("05/15/2023 10:30 AM")).To(Equal("05/15/2023 10:30 AM"))
	})
})

var _ = Describe("HeuristicConfidence", func() {
	It("scores receipt-like text above noise", func() {
		rec := HeuristicConfidence("05/15/2023\nBANANAS $2.99\nTOTAL 2.99")
		noise := HeuristicConfidence("lorem ipsum")
		Expect(rec).To(BeNumerically(">", noise))
		Expect(rec).To(BeNumerically("<=", 1.0))
	})

	It("falls back to the heuristic only when no blocks are reported", func() {
		Expect(TextConfidence(0.8, 3, "x")).To(Equal(0.8))
		Expect(TextConfidence(0, 0, "")).To(BeZero())
		Expect(TextConfidence(0, 0, "TOTAL 1.00")).To(BeNumerically(">", 0))
	})
})
