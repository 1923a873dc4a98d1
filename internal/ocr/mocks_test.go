package ocr

import (
	"context"
	"errors"
	"sync"

	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

type fakeResult struct {
	text  string
	err   error
	crash string // panics with this message when set
}

// fakeBackend replays results in order; the last one repeats. With no results
// every call fails.
type fakeBackend struct {
	name    string
	results []fakeResult

	mu    sync.Mutex
	calls int
	hints []Hints
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Recognize(ctx context.Context, _ receipt.Image, hints Hints) (receipt.ExtractedText, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.hints = append(f.hints, hints)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return receipt.ExtractedText{}, err
	}
	if len(f.results) == 0 {
		return receipt.ExtractedText{}, errors.New(f.name + ": no result configured")
	}
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	r := f.results[idx]
	if r.crash != "" {
		panic(r.crash)
	}
	if r.err != nil {
		return receipt.ExtractedText{}, r.err
	}
	return receipt.ExtractedText{
		Content: r.text,
		Blocks:  []receipt.TextBlock{{Text: r.text, Confidence: 0.9}},
	}, nil
}

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRunner struct {
	stdout []byte
	err    error
	name   string
	args   []string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.name = name
	r.args = args
	return r.stdout, nil, r.err
}

type countingEngine struct {
	calls int
	text  string
}

func (c *countingEngine) Extract(context.Context, receipt.Image, Hints) (receipt.ExtractedText, error) {
	c.calls++
	return receipt.ExtractedText{Content: c.text}, nil
}
