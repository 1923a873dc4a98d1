package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// RetryPolicy bounds the retries made against the primary backend.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is 3 attempts, 1s base delay doubling up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2, MaxDelay: 10 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

const (
	defaultTimeout       = 30 * time.Second
	defaultMinTextLength = 10
)

// FallbackEngine tries a primary backend with bounded exponential-backoff
// retries, then a single attempt on the fallback backend.
type FallbackEngine struct {
	primary  Backend
	fallback Backend
	policy   RetryPolicy
	timeout  time.Duration
	minText  int
	logger   *slog.Logger
}

type EngineOption func(*FallbackEngine)

func WithRetryPolicy(p RetryPolicy) EngineOption {
	return func(e *FallbackEngine) { e.policy = p }
}

// WithAttemptTimeout bounds every single backend call.
func WithAttemptTimeout(d time.Duration) EngineOption {
	return func(e *FallbackEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMinTextLength sets the length under which extracted text counts as insufficient.
func WithMinTextLength(n int) EngineOption {
	return func(e *FallbackEngine) {
		if n > 0 {
			e.minText = n
		}
	}
}

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *FallbackEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewFallbackEngine wires primary and an optional fallback (may be nil).
func NewFallbackEngine(primary, fallback Backend, opts ...EngineOption) *FallbackEngine {
	e := &FallbackEngine{
		primary:  primary,
		fallback: fallback,
		policy:   DefaultRetryPolicy(),
		timeout:  defaultTimeout,
		minText:  defaultMinTextLength,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns text from the primary backend, or from the fallback if the
// primary failed, timed out, or produced insufficient text. When both fail the
// error carries code ENGINE_UNAVAILABLE and wraps common.ErrEngineUnavailable.
func (e *FallbackEngine) Extract(ctx context.Context, img receipt.Image, hints Hints) (receipt.ExtractedText, error) {
	logger := common.LoggerFromContext(ctx, e.logger)

	res, attempts, primaryErr := e.extractPrimary(ctx, img, hints)
	if primaryErr == nil {
		res.Attempts = attempts
		return res, nil
	}
	logger.Warn("ocr.primary.failed",
		"backend", e.primary.Name(),
		"attempts", attempts,
		"error", primaryErr,
	)

	if e.fallback == nil {
		return receipt.ExtractedText{}, common.EngineUnavailableError(primaryErr, nil)
	}

	res, fallbackErr := e.attempt(ctx, e.fallback, img, hints)
	if fallbackErr != nil {
		logger.Error("ocr.fallback.failed", "backend", e.fallback.Name(), "error", fallbackErr)
		return receipt.ExtractedText{}, common.EngineUnavailableError(primaryErr, fallbackErr)
	}
	res.Attempts = attempts + 1
	logger.Info("ocr.fallback.ok", "backend", e.fallback.Name(), "chars", len(res.Content))
	return res, nil
}

func (e *FallbackEngine) extractPrimary(ctx context.Context, img receipt.Image, hints Hints) (receipt.ExtractedText, int, error) {
	var (
		res      receipt.ExtractedText
		attempts int
	)
	op := func() error {
		attempts++
		r, err := e.attempt(ctx, e.primary, img, hints)
		if err != nil {
			if IsTransient(err) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		res = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		e.logger.Warn("ocr.primary.retry",
			"backend", e.primary.Name(),
			"attempt", attempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}
	err := backoff.RetryNotify(op, e.policy.backOff(ctx), notify)
	return res, attempts, err
}

// attempt makes one bounded call and rejects near-empty output.
func (e *FallbackEngine) attempt(ctx context.Context, b Backend, img receipt.Image, hints Hints) (receipt.ExtractedText, error) {
	actx, cancel := common.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := recognize(actx, b, img, hints)
	if err != nil {
		return receipt.ExtractedText{}, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if n := len(strings.TrimSpace(res.Content)); n < e.minText {
		return receipt.ExtractedText{}, fmt.Errorf("%s returned %d characters: %w", b.Name(), n, common.ErrInsufficientText)
	}
	if res.Backend == "" {
		res.Backend = b.Name()
	}
	return res, nil
}

// recognize calls the backend, converting a panic into a permanent error.
func recognize(ctx context.Context, b Backend, img receipt.Image, hints Hints) (res receipt.ExtractedText, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = receipt.ExtractedText{}, fmt.Errorf("panic: %v", rec)
		}
	}()
	return b.Recognize(ctx, img, hints)
}
