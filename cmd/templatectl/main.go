package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/template"
)

type summary struct {
	ID          string    `json:"id"`
	Store       string    `json:"store_name"`
	Builtin     bool      `json:"builtin"`
	Learned     bool      `json:"has_signature"`
	Version     int       `json:"version"`
	UsageCount  int       `json:"usage_count"`
	SuccessRate float64   `json:"success_rate"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func main() {
	_ = godotenv.Load()

	fs := ff.NewFlagSet("templatectl")
	var (
		del     = fs.StringLong("delete", "", "remove the template with this ID")
		learned = fs.BoolLong("learned", "list only templates with a learned layout signature")
		timeout = fs.DurationLong("timeout", time.Second, "store health check timeout")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPTS")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := common.LoadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLogger(os.Stderr, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := template.OpenStore(ctx, cfg.Templates, logger)
	if err != nil {
		logger.Error("templatectl.open.failed", "store", cfg.Templates.Store, "error", err)
		os.Exit(1)
	}
	if err := template.HealthCheck(ctx, store, *timeout); err != nil {
		_ = store.Close()
		logger.Error("templatectl.health.failed", "store", cfg.Templates.Store, "error", err)
		os.Exit(1)
	}
	logger.Info("templatectl.health.ok", "store", cfg.Templates.Store)

	reg, err := template.NewRegistry(ctx,
		template.WithStore(store),
		template.WithMatchThreshold(cfg.Pipeline.TemplateThreshold),
		template.WithLogger(logger),
	)
	if err != nil {
		_ = store.Close()
		logger.Error("templatectl.registry.failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := reg.Close(); cerr != nil {
			logger.Error("templatectl.close.failed", "error", cerr)
		}
	}()

	if *del != "" {
		if err := reg.Delete(ctx, *del); err != nil {
			logger.Error("templatectl.delete.failed", "id", *del, "error", err)
			os.Exit(1)
		}
		logger.Info("templatectl.deleted", "id", *del)
	}

	out := make([]summary, 0, reg.Len())
	for _, t := range reg.All() {
		if *learned && t.Signature == nil {
			continue
		}
		out = append(out, summary{
			ID:          t.ID,
			Store:       t.StoreName,
			Builtin:     t.Builtin,
			Learned:     t.Signature != nil,
			Version:     t.Version,
			UsageCount:  t.UsageCount,
			SuccessRate: t.SuccessRate,
			UpdatedAt:   t.UpdatedAt,
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("templatectl.encode.failed", "error", err)
		os.Exit(1)
	}
}
