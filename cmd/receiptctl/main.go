package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/core"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr/tesseractlib"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
	"github.com/joseph-ayodele/receipt-extractor/internal/validation"
)

type output struct {
	Receipt *receipt.Receipt        `json:"receipt"`
	Check   *validation.CheckResult `json:"check,omitempty"`
	Golden  string                  `json:"golden_file,omitempty"`
}

func main() {
	_ = godotenv.Load()

	fs := ff.NewFlagSet("receiptctl")
	var (
		textPath   = fs.StringLong("text", "", "file holding already-extracted receipt text")
		imagePath  = fs.StringLong("image", "", "receipt image (jpg, png, heic, pdf)")
		storeHint  = fs.StringLong("store", "", "store name hint")
		configFile = fs.StringLong("config", "", "YAML config file (overrides EXTRACTOR_CONFIG_FILE)")
		goldenDir  = fs.StringLong("golden-dir", "", "directory of expected-result files to check against")
		saveGolden = fs.BoolLong("save-golden", "write the result as the expected file instead of checking it")
		learn      = fs.BoolLong("learn", "learn a template from a successful text receipt")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPTS")); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if (*textPath == "") == (*imagePath == "") {
		fmt.Fprintln(os.Stderr, "error: exactly one of --text or --image is required")
		os.Exit(2)
	}
	if *configFile != "" {
		_ = os.Setenv("EXTRACTOR_CONFIG_FILE", *configFile)
	}

	cfg, err := common.LoadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the receipt JSON
	logger := common.NewLogger(os.Stderr, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := core.NewProcessor(ctx, cfg, logger,
		core.WithBackend(ocr.BackendTesseractLib, tesseractlib.FromConfig),
	)
	if err != nil {
		logger.Error("receiptctl.init.failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := proc.Close(); cerr != nil {
			logger.Error("receiptctl.close.failed", "error", cerr)
		}
	}()

	var (
		r      *receipt.Receipt
		source string
	)
	if *textPath != "" {
		source = *textPath
		data, err := os.ReadFile(*textPath)
		if err != nil {
			logger.Error("receiptctl.read.failed", "path", *textPath, "error", err)
			os.Exit(1)
		}
		r = proc.ProcessReceiptText(string(data), "", *storeHint)
		if *learn {
			if err := proc.Learn(ctx, r, string(data)); err != nil {
				logger.Warn("receiptctl.learn.failed", "error", err)
			}
		}
	} else {
		source = *imagePath
		r, err = proc.ProcessImage(ctx, *imagePath, *storeHint)
		if err != nil {
			logger.Error("receiptctl.process.failed", "path", *imagePath, "error", err)
		}
	}

	out := output{Receipt: r}
	if *goldenDir != "" {
		golden := validation.NewGoldenChecker(*goldenDir, logger)
		key := validation.ReceiptKey(source)
		if *saveGolden {
			path, err := golden.SaveExpected(key, r)
			if err != nil {
				logger.Error("receiptctl.golden.save_failed", "error", err)
				os.Exit(1)
			}
			out.Golden = path
		} else {
			res, err := golden.Check(key, r)
			if err != nil {
				logger.Error("receiptctl.golden.check_failed", "error", err)
				os.Exit(1)
			}
			out.Check = &res
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("receiptctl.encode.failed", "error", err)
		os.Exit(1)
	}
	if out.Check != nil && out.Check.Status == validation.CheckFailed {
		os.Exit(3)
	}
}
