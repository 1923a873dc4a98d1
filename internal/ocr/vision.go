package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// VisionConfig configures the Google Cloud Vision backend.
type VisionConfig struct {
	CredentialsFile string
	APIKey          string
	Endpoint        string
	// RequestsPerSecond throttles outgoing calls; zero disables the limiter.
	RequestsPerSecond float64
	LanguageHints     []string
}

const (
	featureDocumentText = "DOCUMENT_TEXT_DETECTION"
	featureText         = "TEXT_DETECTION"
)

// Vision calls images:annotate on the Cloud Vision REST API.
type Vision struct {
	svc     *vision.Service
	limiter *rate.Limiter
	hints   []string
	logger  *slog.Logger
}

// NewVision builds the backend. Extra client options (for example
// option.WithHTTPClient) are appended after the ones derived from cfg.
func NewVision(ctx context.Context, cfg VisionConfig, logger *slog.Logger, extra ...option.ClientOption) (*Vision, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision service: %w", err)
	}
	v := &Vision{svc: svc, hints: cfg.LanguageHints, logger: logger}
	if cfg.RequestsPerSecond > 0 {
		v.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return v, nil
}

func (v *Vision) Name() string { return BackendVision }

func (v *Vision) Recognize(ctx context.Context, img receipt.Image, hints Hints) (receipt.ExtractedText, error) {
	if len(img.Data) == 0 {
		return receipt.ExtractedText{}, fmt.Errorf("vision: image data is empty")
	}
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return receipt.ExtractedText{}, fmt.Errorf("vision rate limit: %w", err)
		}
	}

	start := time.Now()
	feature := featureDocumentText
	if hints.Aggressive {
		feature = featureText
	}
	langs := v.hints
	if hints.Language != "" {
		langs = []string{hints.Language}
	}
	req := &vision.AnnotateImageRequest{
		Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(img.Data)},
		Features: []*vision.Feature{{Type: feature}},
	}
	if len(langs) > 0 {
		req.ImageContext = &vision.ImageContext{LanguageHints: langs}
	}

	resp, err := v.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{req},
	}).Context(ctx).Do()
	if err != nil {
		return receipt.ExtractedText{}, classifyVisionError(err)
	}
	if len(resp.Responses) == 0 {
		return receipt.ExtractedText{}, fmt.Errorf("vision: empty response")
	}
	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return receipt.ExtractedText{}, fmt.Errorf("vision: %s", r.Error.Message)
	}

	res := convertVisionResponse(r)
	res.Backend = v.Name()
	res.Duration = time.Since(start)
	v.logger.Debug("ocr.vision.ok",
		"source", img.Source,
		"feature", feature,
		"blocks", len(res.Blocks),
		"confidence", res.Confidence(),
	)
	return res, nil
}

// classifyVisionError marks rate limiting and server-side failures as transient.
func classifyVisionError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 429 || gerr.Code >= 500 {
			return Transient(fmt.Errorf("vision: %w", err))
		}
		return fmt.Errorf("vision: %w", err)
	}
	if IsTransient(err) {
		return Transient(fmt.Errorf("vision: %w", err))
	}
	return fmt.Errorf("vision: %w", err)
}

func convertVisionResponse(r *vision.AnnotateImageResponse) receipt.ExtractedText {
	if r.FullTextAnnotation != nil {
		out := receipt.ExtractedText{Content: r.FullTextAnnotation.Text}
		for _, page := range r.FullTextAnnotation.Pages {
			for _, blk := range page.Blocks {
				out.Blocks = append(out.Blocks, receipt.TextBlock{
					Text:       blockText(blk),
					Confidence: blk.Confidence,
					Box:        polyBox(blk.BoundingBox),
				})
			}
		}
		return out
	}

	// TEXT_DETECTION: the first annotation is the whole text, the rest are words
	if len(r.TextAnnotations) == 0 {
		return receipt.ExtractedText{}
	}
	out := receipt.ExtractedText{Content: r.TextAnnotations[0].Description}
	for _, ann := range r.TextAnnotations[1:] {
		conf := ann.Confidence
		if conf == 0 {
			conf = ann.Score
		}
		out.Blocks = append(out.Blocks, receipt.TextBlock{
			Text:       ann.Description,
			Confidence: conf,
			Box:        polyBox(ann.BoundingPoly),
		})
	}
	return out
}

func blockText(blk *vision.Block) string {
	var b strings.Builder
	for _, par := range blk.Paragraphs {
		for _, w := range par.Words {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			for _, s := range w.Symbols {
				b.WriteString(s.Text)
			}
		}
	}
	return b.String()
}

func polyBox(p *vision.BoundingPoly) receipt.BoundingBox {
	if p == nil || len(p.Vertices) == 0 {
		return receipt.BoundingBox{}
	}
	x0, y0 := p.Vertices[0].X, p.Vertices[0].Y
	x1, y1 := x0, y0
	for _, v := range p.Vertices[1:] {
		x0, y0 = min(x0, v.X), min(y0, v.Y)
		x1, y1 = max(x1, v.X), max(y1, v.Y)
	}
	return receipt.BoundingBox{X: int(x0), Y: int(y0), Width: int(x1 - x0), Height: int(y1 - y0)}
}
