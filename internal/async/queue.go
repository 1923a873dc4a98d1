// Package async processes receipt images on a bounded pool of workers.
package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
)

// Job is one image to process.
type Job struct {
	ID          uuid.UUID
	Path        string
	StoreHint   string
	SubmittedAt time.Time
}

// Result is the outcome of one Job. Receipt is nil only when the job never ran.
type Result struct {
	Job      Job
	Receipt  *receipt.Receipt
	Err      error
	Duration time.Duration
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context) error
}

// ImageProcessor is the part of the pipeline a worker calls.
type ImageProcessor interface {
	ProcessImage(ctx context.Context, path, storeNameHint string) (*receipt.Receipt, error)
}

// NewJob returns a job for path with a fresh ID.
func NewJob(path, storeHint string) Job {
	return Job{ID: uuid.New(), Path: path, StoreHint: storeHint, SubmittedAt: time.Now().UTC()}
}
