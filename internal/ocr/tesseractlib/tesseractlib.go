// Package tesseractlib is an in-process tesseract backend built on libtesseract
// through cgo. It is kept out of package ocr so that builds without the C
// libraries only lose this backend.
package tesseractlib

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

type Config struct {
	Lang        string
	TessdataDir string
}

// Backend implements ocr.Backend. A fresh client is created per call, so a
// Backend is safe for concurrent use.
type Backend struct {
	cfg           Config
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	return &Backend{cfg: cfg, clientFactory: gosseract.NewClient, logger: logger}
}

// FromConfig builds the backend from text extraction configuration.
func FromConfig(_ context.Context, cfg common.OCRConfig, logger *slog.Logger) (ocr.Backend, error) {
	return New(Config{Lang: cfg.TesseractLang, TessdataDir: cfg.TessdataDir}, logger), nil
}

func (b *Backend) Name() string { return ocr.BackendTesseractLib }

func (b *Backend) Recognize(ctx context.Context, img receipt.Image, hints ocr.Hints) (receipt.ExtractedText, error) {
	if err := ctx.Err(); err != nil {
		return receipt.ExtractedText{}, err
	}
	start := time.Now()
	c := b.clientFactory()
	defer c.Close()

	if b.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(b.cfg.TessdataDir); err != nil {
			return receipt.ExtractedText{}, fmt.Errorf("set tessdata: %w", err)
		}
	}
	lang := b.cfg.Lang
	if hints.Language != "" {
		lang = hints.Language
	}
	if err := c.SetLanguage(strings.Split(lang, "+")...); err != nil {
		return receipt.ExtractedText{}, fmt.Errorf("set languages: %w", err)
	}
	mode := gosseract.PSM_SINGLE_BLOCK
	if hints.Aggressive {
		mode = gosseract.PSM_SINGLE_COLUMN
	}
	if err := c.SetPageSegMode(mode); err != nil {
		return receipt.ExtractedText{}, fmt.Errorf("set page seg mode: %w", err)
	}

	switch {
	case len(img.Data) > 0:
		if err := c.SetImageFromBytes(img.Data); err != nil {
			return receipt.ExtractedText{}, fmt.Errorf("set image: %w", err)
		}
	case img.Source != "":
		if err := c.SetImage(img.Source); err != nil {
			return receipt.ExtractedText{}, fmt.Errorf("set image: %w", err)
		}
	default:
		return receipt.ExtractedText{}, fmt.Errorf("image has neither data nor path")
	}

	text, err := c.Text()
	if err != nil {
		return receipt.ExtractedText{}, fmt.Errorf("recognize text: %w", err)
	}
	res := receipt.ExtractedText{
		Content:  strings.TrimSpace(text),
		Blocks:   lineBlocks(c),
		Backend:  b.Name(),
		Duration: time.Since(start),
	}
	b.logger.Debug("ocr.tesseractlib.ok", "source", img.Source, "blocks", len(res.Blocks))
	return res, nil
}

func lineBlocks(c *gosseract.Client) []receipt.TextBlock {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil
	}
	out := make([]receipt.TextBlock, 0, len(boxes))
	for _, bb := range boxes {
		text := strings.TrimSpace(bb.Word)
		if text == "" {
			continue
		}
		out = append(out, receipt.TextBlock{
			Text:       text,
			Confidence: bb.Confidence / 100.0,
			Box: receipt.BoundingBox{
				X:      bb.Box.Min.X,
				Y:      bb.Box.Min.Y,
				Width:  bb.Box.Dx(),
				Height: bb.Box.Dy(),
			},
		})
	}
	return out
}
