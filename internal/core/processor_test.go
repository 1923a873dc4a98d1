package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

type stubBackend struct {
	name string
	text string
	err  error
}

func (b stubBackend) Name() string { return b.name }

func (b stubBackend) Recognize(context.Context, receipt.Image, ocr.Hints) (receipt.ExtractedText, error) {
	if b.err != nil {
		return receipt.ExtractedText{}, b.err
	}
	return receipt.ExtractedText{Content: b.text}, nil
}

func stubFactory(b stubBackend) BackendFactory {
	return func(context.Context, common.OCRConfig, *slog.Logger) (ocr.Backend, error) {
		return b, nil
	}
}

type stubNormalizer struct{}

func (stubNormalizer) Normalize(_ context.Context, path string) (receipt.Image, error) {
	return receipt.Image{Source: path, Format: "png", Data: []byte("png")}, nil
}

func costcoText() string {
	GinkgoHelper()
	b, err := os.ReadFile(filepath.Join("..", "..", "testdata", "receipts", "costco.txt"))
	Expect(err).NotTo(HaveOccurred())
	return string(b)
}

var _ = Describe("NewEngine", func() {
	var cfg common.OCRConfig

	BeforeEach(func() {
		cfg = common.DefaultConfig().OCR
		cfg.Fallback = ""
		cfg.MaxAttempts = 1
	})

	It("builds the primary backend and extracts through it", func() {
		backends := map[string]BackendFactory{"stub": stubFactory(stubBackend{name: "stub", text: "TOTAL 10.00 THANK YOU"})}
		cfg.Primary = "stub"
		e, err := NewEngine(context.Background(), cfg, backends, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&ocr.FallbackEngine{}))

		res, err := e.Extract(context.Background(), receipt.Image{Data: []byte("x")}, ocr.Hints{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Backend).To(Equal("stub"))
	})

	It("falls back when the primary fails", func() {
		backends := map[string]BackendFactory{
			"broken": stubFactory(stubBackend{name: "broken", err: errors.New("exit status 1")}),
			"stub":   stubFactory(stubBackend{name: "stub", text: "TOTAL 10.00 THANK YOU"}),
		}
		cfg.Primary, cfg.Fallback = "broken", "stub"
		e, err := NewEngine(context.Background(), cfg, backends, nil)
		Expect(err).NotTo(HaveOccurred())
		res, err := e.Extract(context.Background(), receipt.Image{Data: []byte("x")}, ocr.Hints{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Backend).To(Equal("stub"))
	})

	It("skips a fallback that cannot be built", func() {
		backends := map[string]BackendFactory{
			"stub": stubFactory(stubBackend{name: "stub", text: "TOTAL 10.00 THANK YOU"}),
			"bad": func(context.Context, common.OCRConfig, *slog.Logger) (ocr.Backend, error) {
				return nil, errors.New("no credentials")
			},
		}
		cfg.Primary, cfg.Fallback = "stub", "bad"
		_, err := NewEngine(context.Background(), cfg, backends, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("wraps the engine in a cache when a TTL is set", func() {
		cfg.Primary = "stub"
		cfg.CacheTTL = time.Minute
		e, err := NewEngine(context.Background(), cfg, map[string]BackendFactory{"stub": stubFactory(stubBackend{name: "stub"})}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&ocr.CachingEngine{}))
	})

	It("rejects unknown backends", func() {
		cfg.Primary = "abbyy"
		_, err := NewEngine(context.Background(), cfg, nil, nil)
		Expect(common.IsCode(err, common.CodeConfig)).To(BeTrue())
	})
})

var _ = Describe("NewProcessor", func() {
	var (
		ctx context.Context
		cfg *common.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = common.DefaultConfig()
		cfg.OCR.Primary = "stub"
		cfg.OCR.Fallback = ""
	})

	It("wires a working pipeline from configuration", func() {
		p, err := NewProcessor(ctx, cfg, nil,
			WithBackend("stub", stubFactory(stubBackend{name: "stub", text: costcoText()})),
			WithNormalizer(stubNormalizer{}),
		)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)

		Expect(p.Handlers.Names()).To(HaveLen(6))
		Expect(p.Templates.Len()).To(Equal(6))

		r, err := p.ProcessImage(ctx, "costco.jpg", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.StoreName).To(Equal("Costco"))
		Expect(r.Status).To(Equal(constants.StatusSuccess))
		Expect(r.Items).To(HaveLen(15))
	})

	It("persists learned templates in the configured store", func() {
		cfg.Templates = common.TemplateConfig{Store: "bolt", Path: filepath.Join(GinkgoT().TempDir(), "templates.db")}
		p, err := NewProcessor(ctx, cfg, nil, WithEngine(&countingEngine{}), WithNormalizer(stubNormalizer{}))
		Expect(err).NotTo(HaveOccurred())
		r := p.ProcessReceiptText(costcoText(), "", "")
		Expect(p.Learn(ctx, r, costcoText())).To(Succeed())
		Expect(p.Close()).To(Succeed())

		again, err := NewProcessor(ctx, cfg, nil, WithEngine(&countingEngine{}), WithNormalizer(stubNormalizer{}))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(again.Close)
		tpl, ok := again.Templates.Get("builtin-costco")
		Expect(ok).To(BeTrue())
		Expect(tpl.Version).To(Equal(2))
		Expect(tpl.Signature).NotTo(BeNil())
	})

	It("fails on an unknown template store", func() {
		cfg.Templates.Store = "redis"
		_, err := NewProcessor(ctx, cfg, nil, WithEngine(&countingEngine{}))
		Expect(common.IsCode(err, common.CodeConfig)).To(BeTrue())
	})
})

type countingEngine struct{ calls int }

func (c *countingEngine) Extract(context.Context, receipt.Image, ocr.Hints) (receipt.ExtractedText, error) {
	c.calls++
	return receipt.ExtractedText{}, nil
}
