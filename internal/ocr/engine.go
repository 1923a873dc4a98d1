package ocr

import (
	"context"
	"errors"
	"net"

	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// Backend names.
const (
	BackendTesseract    = "tesseract"
	BackendTesseractLib = "tesseract-lib"
	BackendVision       = "vision"
)

// Hints adjust how a backend processes an image.
type Hints struct {
	// Aggressive requests a second, more exhaustive pass: sparse-text page
	// segmentation on tesseract, plain TEXT_DETECTION on Vision.
	Aggressive bool
	// Language overrides the backend's configured recognition language.
	Language string
}

// Backend recognizes text in a normalized image.
type Backend interface {
	Name() string
	Recognize(ctx context.Context, img receipt.Image, hints Hints) (receipt.ExtractedText, error)
}

// Engine is what the pipeline calls to turn an image into text.
type Engine interface {
	Extract(ctx context.Context, img receipt.Image, hints Hints) (receipt.ExtractedText, error)
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as worth retrying.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is a timeout, a connection failure, or was
// explicitly marked with Transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
