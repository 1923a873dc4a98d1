package async

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
)

// ProcessBatch runs jobs with at most limit in flight and returns one result
// per job, in job order. A failed job does not stop the others; jobs not yet
// started when ctx ends are reported with ctx's error.
func ProcessBatch(ctx context.Context, proc ImageProcessor, jobs []Job, limit int, logger *slog.Logger) []Result {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 1
	}
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Job: job, Err: err}
				return nil
			}
			start := time.Now()
			r, err := proc.ProcessImage(common.WithRequestID(ctx, job.ID.String()), job.Path, job.StoreHint)
			results[i] = Result{Job: job, Receipt: r, Err: err, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info("batch.done", "jobs", len(jobs), "failed", failed, "limit", limit)
	return results
}
