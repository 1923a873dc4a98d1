// Package pipeline is the caller-facing entry point: it extracts text from
// receipt images, parses and scores it, and feeds results back into the
// template registry.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
	"github.com/joseph-ayodele/receipt-extractor/internal/template"
)

// Processor coordinates extraction, then parsing, then template learning.
type Processor struct {
	logger    *slog.Logger
	parse     *ParseStage
	extract   *ExtractStage
	templates *template.Registry
	reextract bool
	learn     bool
}

type Option func(*Processor)

// WithReextract enables the single aggressive re-extraction pass for images
// whose first parse found no items or no total. Enabled by default.
func WithReextract(on bool) Option {
	return func(p *Processor) { p.reextract = on }
}

// WithLearning enables template learning after each processed image.
// Enabled by default.
func WithLearning(on bool) Option {
	return func(p *Processor) { p.learn = on }
}

func NewProcessor(logger *slog.Logger, parse *ParseStage, extract *ExtractStage, templates *template.Registry, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if parse == nil {
		parse = NewParseStage(logger, nil, templates, nil, "")
	}
	p := &Processor{
		logger:    logger,
		parse:     parse,
		extract:   extract,
		templates: templates,
		reextract: true,
		learn:     true,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessReceiptText parses already-extracted receipt text. It never fails:
// problems are reported through the receipt's status and validation notes.
// Identical inputs against identical registries give identical receipts.
func (p *Processor) ProcessReceiptText(text, imagePathHint, storeNameHint string) *receipt.Receipt {
	return p.parse.Run(ParseRequest{
		Text:          text,
		ImagePathHint: imagePathHint,
		StoreNameHint: storeNameHint,
	})
}

// ProcessImage runs the whole pipeline for the image at path. The returned
// receipt is never nil; when extraction failed it is FAILED and the error
// says why.
func (p *Processor) ProcessImage(ctx context.Context, path, storeNameHint string) (*receipt.Receipt, error) {
	logger := common.LoggerFromContext(ctx, p.logger)
	if p.extract == nil {
		err := fmt.Errorf("process %s: no extraction stage: %w", path, common.ErrEngineUnavailable)
		return p.failed(path, err), err
	}

	img, err := p.extract.Load(ctx, path)
	if err != nil {
		logger.Error("processor.normalize.failed", "image", path, "error", err)
		return p.failed(path, err), err
	}

	res, err := p.extract.Run(ctx, img, ocr.Hints{})
	if err != nil {
		return p.failed(path, err), err
	}
	r := p.parse.Run(ParseRequest{Text: res.Content, ImagePathHint: path, StoreNameHint: storeNameHint})
	r.TextConfidence = textConfidence(res)

	if p.reextract && needsReextraction(r) {
		logger.Info("processor.reextract", "image", path, "items", len(r.Items), "total_found", r.Totals.Total.Valid)
		second, err := p.extract.Run(ctx, img, ocr.Hints{Aggressive: true})
		if err != nil {
			logger.Warn("processor.reextract.failed", "image", path, "error", err)
		} else {
			r2 := p.parse.Run(ParseRequest{
				Text:          second.Content,
				ImagePathHint: path,
				StoreNameHint: storeNameHint,
				Strategy:      r.HandlerUsed,
				Template:      r.TemplateUsed,
			})
			r2.TextConfidence = textConfidence(second)
			if better(r2, r) {
				r, res = r2, second
			}
		}
		r.Reextracted = true
	}

	if p.learn {
		if err := p.Learn(ctx, r, res.Content); err != nil {
			logger.Warn("processor.learn.failed", "image", path, "error", err)
		}
	}

	logger.Info("processor.image.ok",
		"image", path,
		"receipt_id", r.ID,
		"handler", r.HandlerUsed,
		"status", r.Status,
		"confidence", r.OverallConfidence,
		"reextracted", r.Reextracted,
	)
	return r, nil
}

// Learn feeds a processed receipt back into the template registry. A receipt
// parsed through a template updates that template's usage statistics, and a
// successful one also refreshes its layout signature. A successful receipt of
// a known store teaches the registry its layout.
func (p *Processor) Learn(ctx context.Context, r *receipt.Receipt, text string) error {
	if p.templates == nil || r == nil {
		return nil
	}
	success := r.Status == constants.StatusSuccess
	lines := receipt.SplitLines(ocr.Normalize(text))
	if r.TemplateUsed != "" {
		if success {
			return p.templates.Reinforce(ctx, r.TemplateUsed, lines)
		}
		return p.templates.RecordUsage(ctx, r.TemplateUsed, false)
	}
	if r.StoreName == "" || !success {
		return nil
	}
	_, err := p.templates.CreateOrUpdate(ctx, r.StoreName, lines)
	return err
}

func (p *Processor) failed(path string, err error) *receipt.Receipt {
	r := receipt.New(path, p.parse.DefaultCurrency)
	r.HandlerUsed = constants.VendorGeneric
	r.AddNote(fmt.Sprintf("text extraction failed: %v", err))
	return r
}

func needsReextraction(r *receipt.Receipt) bool {
	return len(r.Items) == 0 || !r.Totals.Total.Valid
}

// better reports whether a beats b: a higher status wins, then higher
// overall confidence.
func better(a, b *receipt.Receipt) bool {
	if ra, rb := statusRank(a.Status), statusRank(b.Status); ra != rb {
		return ra > rb
	}
	return a.OverallConfidence > b.OverallConfidence
}

func statusRank(s constants.ProcessingStatus) int {
	switch s {
	case constants.StatusSuccess:
		return 2
	case constants.StatusPartialSuccess:
		return 1
	default:
		return 0
	}
}

func textConfidence(res receipt.ExtractedText) float64 {
	return receipt.Round2(ocr.TextConfidence(res.Confidence(), len(res.Blocks), res.Content))
}
