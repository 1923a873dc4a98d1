package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// Normalizer turns a raw image path into a normalized image.
type Normalizer interface {
	Normalize(ctx context.Context, path string) (receipt.Image, error)
}

// ExtractStage normalizes an image once and runs the text extraction engine
// over it, possibly more than once with different hints.
type ExtractStage struct {
	Logger     *slog.Logger
	Normalizer Normalizer
	Engine     ocr.Engine
}

func NewExtractStage(logger *slog.Logger, normalizer Normalizer, engine ocr.Engine) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{Logger: logger, Normalizer: normalizer, Engine: engine}
}

// Load normalizes the image at path.
func (s *ExtractStage) Load(ctx context.Context, path string) (receipt.Image, error) {
	img, err := s.Normalizer.Normalize(ctx, path)
	if err != nil {
		if common.IsCode(err, common.CodeNormalize) {
			return receipt.Image{}, err
		}
		return receipt.Image{}, common.NewAppError(common.CodeNormalize, path, err)
	}
	if img.Source == "" {
		img.Source = path
	}
	return img, nil
}

// Run extracts text from img.
func (s *ExtractStage) Run(ctx context.Context, img receipt.Image, hints ocr.Hints) (receipt.ExtractedText, error) {
	logger := common.LoggerFromContext(ctx, s.Logger)
	start := time.Now()

	res, err := s.Engine.Extract(ctx, img, hints)
	if err != nil {
		logger.Error("pipeline.extract.failed", "image", img.Source, "aggressive", hints.Aggressive, "error", err)
		return receipt.ExtractedText{}, err
	}
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	logger.Debug("pipeline.extract.ok",
		"image", img.Source,
		"backend", res.Backend,
		"attempts", res.Attempts,
		"chars", len(res.Content),
		"blocks", len(res.Blocks),
		"aggressive", hints.Aggressive,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
