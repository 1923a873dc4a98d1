package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/core"
	"github.com/joseph-ayodele/receipt-extractor/internal/imagenorm"
	"github.com/joseph-ayodele/receipt-extractor/internal/imagenorm/fitzpdf"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr/tesseractlib"
)

func main() {
	_ = godotenv.Load()

	fs := ff.NewFlagSet("runocr")
	var (
		aggressive = fs.BoolLong("aggressive", "use the aggressive re-extraction settings")
		blocks     = fs.BoolLong("blocks", "include recognized blocks in the output")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPTS")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	args := fs.GetArgs()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: runocr [--aggressive] [--blocks] <image>")
		os.Exit(2)
	}
	path := args[0]

	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLogger(os.Stderr, cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backends := core.DefaultBackends()
	backends[ocr.BackendTesseractLib] = tesseractlib.FromConfig
	engine, err := core.NewEngine(ctx, cfg.OCR, backends, logger)
	if err != nil {
		logger.Error("runocr.engine.failed", "error", err)
		os.Exit(1)
	}

	norm := imagenorm.New(
		imagenorm.WithPDFRenderer(fitzpdf.Renderer{}),
		imagenorm.WithArtifactCacheDir(cfg.OCR.ArtifactCacheDir),
		imagenorm.WithGrayscale(cfg.OCR.Grayscale),
		imagenorm.WithLogger(logger),
	)
	img, err := norm.Normalize(ctx, path)
	if err != nil {
		logger.Error("runocr.normalize.failed", "path", path, "error", err)
		os.Exit(1)
	}

	start := time.Now()
	res, err := engine.Extract(ctx, img, ocr.Hints{Aggressive: *aggressive})
	if err != nil {
		logger.Error("runocr.extract.failed", "path", path, "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}
	conf := ocr.TextConfidence(res.Confidence(), len(res.Blocks), res.Content)

	out := map[string]any{
		"path":        path,
		"backend":     res.Backend,
		"attempts":    res.Attempts,
		"confidence":  conf,
		"duration_ms": time.Since(start).Milliseconds(),
		"text":        ocr.Normalize(res.Content),
	}
	if *blocks {
		out["blocks"] = res.Blocks
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("runocr.encode.failed", "error", err)
		os.Exit(1)
	}
}
