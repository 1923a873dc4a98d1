// Package core assembles the extraction pipeline from configuration.
package core

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/imagenorm"
	"github.com/joseph-ayodele/receipt-extractor/internal/imagenorm/fitzpdf"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipt-extractor/internal/pipeline"
	"github.com/joseph-ayodele/receipt-extractor/internal/registry"
	"github.com/joseph-ayodele/receipt-extractor/internal/template"
	"github.com/joseph-ayodele/receipt-extractor/internal/validation"
)

// Processor owns everything one process needs to turn receipts into records.
type Processor struct {
	*pipeline.Processor

	Handlers  *registry.Registry
	Templates *template.Registry
	Engine    ocr.Engine
	logger    *slog.Logger
}

type options struct {
	engine     ocr.Engine
	normalizer pipeline.Normalizer
	store      template.Store
	backends   map[string]BackendFactory
}

type Option func(*options)

// WithEngine skips building an engine from configuration.
func WithEngine(e ocr.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithNormalizer replaces the default image normalizer.
func WithNormalizer(n pipeline.Normalizer) Option {
	return func(o *options) { o.normalizer = n }
}

// WithTemplateStore replaces the store opened from cfg.Templates.
func WithTemplateStore(s template.Store) Option {
	return func(o *options) { o.store = s }
}

// WithBackend makes an additional backend selectable by name.
func WithBackend(name string, f BackendFactory) Option {
	return func(o *options) { o.backends[name] = f }
}

// NewProcessor wires handlers, templates, scorer, normalizer and engine as
// configured by cfg. Close releases the template store.
func NewProcessor(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...Option) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = common.DefaultConfig()
	}
	o := &options{backends: DefaultBackends()}
	for _, opt := range opts {
		opt(o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = template.OpenStore(ctx, cfg.Templates, logger)
		if err != nil {
			return nil, err
		}
	}
	templates, err := template.NewRegistry(ctx,
		template.WithStore(store),
		template.WithMatchThreshold(cfg.Pipeline.TemplateThreshold),
		template.WithLogger(logger),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	engine := o.engine
	if engine == nil {
		engine, err = NewEngine(ctx, cfg.OCR, o.backends, logger)
		if err != nil {
			_ = templates.Close()
			return nil, err
		}
	}

	normalizer := o.normalizer
	if normalizer == nil {
		normalizer = imagenorm.New(
			imagenorm.WithPDFRenderer(fitzpdf.Renderer{}),
			imagenorm.WithArtifactCacheDir(cfg.OCR.ArtifactCacheDir),
			imagenorm.WithGrayscale(cfg.OCR.Grayscale),
			imagenorm.WithLogger(logger),
		)
	}

	handlers := registry.NewDefault(
		registry.WithThreshold(cfg.Pipeline.DispatchThreshold),
		registry.WithLogger(logger),
	)
	scorer := validation.NewScorer(validation.ConfigFrom(cfg.Pipeline), logger)
	parse := pipeline.NewParseStage(logger, handlers, templates, scorer, cfg.Pipeline.DefaultCurrency)
	extract := pipeline.NewExtractStage(logger, normalizer, engine)

	logger.Debug("processor.ready",
		"handlers", len(handlers.Names()),
		"templates", templates.Len(),
		"template_store", cfg.Templates.Store,
		"reextract", cfg.Pipeline.Reextract,
		"learn", cfg.Pipeline.LearnTemplates,
	)
	return &Processor{
		Processor: pipeline.NewProcessor(logger, parse, extract, templates,
			pipeline.WithReextract(cfg.Pipeline.Reextract),
			pipeline.WithLearning(cfg.Pipeline.LearnTemplates),
		),
		Handlers:  handlers,
		Templates: templates,
		Engine:    engine,
		logger:    logger,
	}, nil
}

// Close releases the template store.
func (p *Processor) Close() error {
	return p.Templates.Close()
}
