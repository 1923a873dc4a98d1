package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
)

// BackendFactory builds one text extraction backend from configuration.
type BackendFactory func(ctx context.Context, cfg common.OCRConfig, logger *slog.Logger) (ocr.Backend, error)

// DefaultBackends are the backends available without cgo. The in-process
// tesseract backend is registered by the commands that link it.
func DefaultBackends() map[string]BackendFactory {
	return map[string]BackendFactory{
		ocr.BackendTesseract: func(_ context.Context, cfg common.OCRConfig, logger *slog.Logger) (ocr.Backend, error) {
			return ocr.NewTesseract(ocr.TesseractConfig{
				Binary:      cfg.TesseractBin,
				Lang:        cfg.TesseractLang,
				TessdataDir: cfg.TessdataDir,
				PSM:         cfg.PSM,
				OEM:         cfg.OEM,
			}, nil, logger), nil
		},
		ocr.BackendVision: func(ctx context.Context, cfg common.OCRConfig, logger *slog.Logger) (ocr.Backend, error) {
			var hints []string
			if cfg.TesseractLang != "" && cfg.TesseractLang != "eng" {
				hints = []string{cfg.TesseractLang}
			}
			return ocr.NewVision(ctx, ocr.VisionConfig{
				CredentialsFile:   cfg.VisionCredentialsFile,
				APIKey:            cfg.VisionAPIKey,
				Endpoint:          cfg.VisionEndpoint,
				RequestsPerSecond: cfg.VisionRPS,
				LanguageHints:     hints,
			}, logger)
		},
	}
}

// NewEngine builds the primary/fallback engine described by cfg, wrapped in
// a result cache when cfg.CacheTTL is positive. A fallback that cannot be
// built is logged and skipped; a primary that cannot be built is an error.
func NewEngine(ctx context.Context, cfg common.OCRConfig, backends map[string]BackendFactory, logger *slog.Logger) (ocr.Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if backends == nil {
		backends = DefaultBackends()
	}

	primary, err := buildBackend(ctx, cfg.Primary, cfg, backends, logger)
	if err != nil {
		return nil, err
	}

	var fallback ocr.Backend
	if cfg.Fallback != "" {
		fallback, err = buildBackend(ctx, cfg.Fallback, cfg, backends, logger)
		if err != nil {
			logger.Warn("ocr.fallback.disabled", "backend", cfg.Fallback, "error", err)
			fallback = nil
		}
	}

	policy := ocr.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		policy.BaseDelay = cfg.BaseDelay
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxDelay > 0 {
		policy.MaxDelay = cfg.MaxDelay
	}

	engine := ocr.NewFallbackEngine(primary, fallback,
		ocr.WithRetryPolicy(policy),
		ocr.WithAttemptTimeout(cfg.Timeout),
		ocr.WithMinTextLength(cfg.MinTextLength),
		ocr.WithEngineLogger(logger),
	)
	fallbackName := ""
	if fallback != nil {
		fallbackName = fallback.Name()
	}
	logger.Info("ocr.engine.ready",
		"primary", primary.Name(),
		"fallback", fallbackName,
		"max_attempts", policy.MaxAttempts,
		"cache_ttl", cfg.CacheTTL.String(),
	)
	return ocr.NewCachingEngine(engine, cfg.CacheTTL, logger), nil
}

func buildBackend(ctx context.Context, name string, cfg common.OCRConfig, backends map[string]BackendFactory, logger *slog.Logger) (ocr.Backend, error) {
	f, ok := backends[name]
	if !ok {
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown text extraction backend %q", name), common.ErrInvalidInput)
	}
	b, err := f(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build %s backend: %w", name, err)
	}
	return b, nil
}
