package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/async"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/core"
	"github.com/joseph-ayodele/receipt-extractor/internal/export"
	"github.com/joseph-ayodele/receipt-extractor/internal/ingest"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr/tesseractlib"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
	"github.com/joseph-ayodele/receipt-extractor/internal/validation"
)

// line is one JSON-lines record of the batch output.
type line struct {
	Path     string                  `json:"path"`
	JobID    string                  `json:"job_id"`
	Receipt  *receipt.Receipt        `json:"receipt,omitempty"`
	Error    string                  `json:"error,omitempty"`
	Check    *validation.CheckResult `json:"check,omitempty"`
	Duration int64                   `json:"duration_ms"`
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	if code := run(); code != 0 {
		os.Exit(code)
	}
}

func run() int {
	_ = godotenv.Load()

	fs := ff.NewFlagSet("receipt-batch")
	var (
		dir        = fs.StringLong("dir", "", "directory to process receipts from (required)")
		out        = fs.StringLong("out", "", "JSON-lines output file (default stdout)")
		xlsx       = fs.StringLong("xlsx", "", "also write an XLSX report of every receipt to this file")
		watch      = fs.BoolLong("watch", "keep running and process new images as they appear")
		store      = fs.StringLong("store", "", "store name hint applied to every image")
		goldenDir  = fs.StringLong("golden-dir", "", "check each receipt against expected-result files")
		workers    = fs.IntLong("workers", 0, "parallel workers (default from QUEUE_WORKERS)")
		showHidden = fs.BoolLong("hidden", "include hidden files and directories")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPTS")); err != nil {
		printError("%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			return 0
		}
		printError("error: %v\n", err)
		return 2
	}
	if *dir == "" {
		printError("Error: --dir is required\n")
		return 2
	}

	cfg, err := common.LoadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		printError("config: %v\n", err)
		return 1
	}
	if *workers > 0 {
		cfg.Queue.Workers = *workers
	}

	logger := common.NewLogger(os.Stderr, cfg.Log.Level)
	slog.SetDefault(logger)

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Error("batch.output.failed", "path", *out, "error", err)
			return 1
		}
		defer f.Close()
		w = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := core.NewProcessor(ctx, cfg, logger,
		core.WithBackend(ocr.BackendTesseractLib, tesseractlib.FromConfig),
	)
	if err != nil {
		logger.Error("batch.init.failed", "error", err)
		return 1
	}
	defer func() {
		if cerr := proc.Close(); cerr != nil {
			logger.Error("batch.close.failed", "error", cerr)
		}
	}()

	var golden *validation.GoldenChecker
	if *goldenDir != "" {
		golden = validation.NewGoldenChecker(*goldenDir, logger)
	}
	sink := &writer{enc: json.NewEncoder(w), golden: golden, logger: logger}

	process := runOnce
	if *watch {
		process = runWatch
	}
	if err := process(ctx, proc, cfg.Queue, *dir, *store, !*showHidden, sink, logger); err != nil {
		logger.Error("batch.run.failed", "dir", *dir, "error", err)
		sink.errors++
	}

	logger.Info("batch.summary",
		"processed", sink.total,
		"success", sink.byStatus[constants.StatusSuccess],
		"partial", sink.byStatus[constants.StatusPartialSuccess],
		"failed", sink.byStatus[constants.StatusFailed],
		"errors", sink.errors,
	)

	if *xlsx != "" {
		if err := writeReport(*xlsx, sink.rows, logger); err != nil {
			logger.Error("batch.report.failed", "path", *xlsx, "error", err)
			return 1
		}
	}
	if sink.errors > 0 {
		return 1
	}
	return 0
}

func writeReport(path string, rows []export.Row, logger *slog.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return common.WrapError(err, "create report")
	}
	if err := export.NewWriter(logger).WriteXLSX(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	return common.WrapError(f.Close(), "close report")
}

func runOnce(ctx context.Context, proc async.ImageProcessor, qcfg common.QueueConfig, dir, store string, skipHidden bool, sink *writer, logger *slog.Logger) error {
	paths, stats, err := ingest.ScanDirectory(ctx, dir, skipHidden)
	if err != nil {
		return common.WrapError(err, "scan")
	}
	logger.Info("batch.scan.done", "dir", dir, "scanned", stats.Scanned, "matched", stats.Matched, "skipped", stats.Skipped)

	jobs := make([]async.Job, 0, len(paths))
	for _, p := range paths {
		jobs = append(jobs, async.NewJob(p, store))
	}
	for _, res := range async.ProcessBatch(ctx, proc, jobs, qcfg.Workers, logger) {
		sink.write(res)
	}
	return nil
}

func runWatch(ctx context.Context, proc async.ImageProcessor, qcfg common.QueueConfig, dir, store string, skipHidden bool, sink *writer, logger *slog.Logger) error {
	opts := append(async.FromConfig(qcfg), async.WithResultHandler(sink.write))
	q := async.NewProcessorQueue(proc, logger, opts...)

	events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
		SkipHidden:  skipHidden,
		Logger:      logger,
	})
	if err != nil {
		_ = q.Shutdown(context.Background())
		return common.WrapError(err, "watch")
	}
	logger.Info("batch.watch.started", "dir", dir, "workers", qcfg.Workers)

	for events != nil || errs != nil {
		select {
		case path, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := q.Enqueue(ctx, async.NewJob(path, store)); err != nil {
				logger.Warn("batch.enqueue.failed", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("batch.watch.error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), qcfg.ProcessTimeout)
	defer cancel()
	if err := q.Shutdown(shutdownCtx); err != nil {
		logger.Warn("batch.shutdown.incomplete", "error", err)
	}
	return nil
}

// writer serializes results from concurrent workers.
type writer struct {
	mu       sync.Mutex
	enc      *json.Encoder
	golden   *validation.GoldenChecker
	logger   *slog.Logger
	total    int
	errors   int
	byStatus map[constants.ProcessingStatus]int
	rows     []export.Row
}

func (s *writer) write(res async.Result) {
	l := line{
		Path:     res.Job.Path,
		JobID:    res.Job.ID.String(),
		Receipt:  res.Receipt,
		Duration: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		l.Error = res.Err.Error()
	}
	if s.golden != nil && res.Receipt != nil {
		check, err := s.golden.Check(validation.ReceiptKey(res.Job.Path), res.Receipt)
		if err != nil {
			s.logger.Warn("batch.golden.failed", "path", res.Job.Path, "error", err)
		} else {
			l.Check = &check
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byStatus == nil {
		s.byStatus = make(map[constants.ProcessingStatus]int)
	}
	s.total++
	if res.Err != nil {
		s.errors++
	}
	if res.Receipt != nil {
		s.byStatus[res.Receipt.Status]++
		s.rows = append(s.rows, export.Row{Source: res.Job.Path, Receipt: res.Receipt})
	}
	if err := s.enc.Encode(l); err != nil {
		s.logger.Error("batch.output.write_failed", "error", err)
	}
}
