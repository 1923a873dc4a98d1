package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/ocr"
	"github.com/joseph-ayodele/receipt-extractor/internal/receipt"
	"github.com/joseph-ayodele/receipt-extractor/internal/registry"
	"github.com/joseph-ayodele/receipt-extractor/internal/strategy"
	"github.com/joseph-ayodele/receipt-extractor/internal/template"
	"github.com/joseph-ayodele/receipt-extractor/internal/validation"
)

// ParseRequest is one piece of receipt text with its optional hints.
type ParseRequest struct {
	Text          string
	ImagePathHint string
	StoreNameHint string
	// Strategy forces a registered strategy by name, skipping dispatch.
	Strategy string
	// Template forces the learned template with this ID when Strategy does
	// not name a registered handler.
	Template string
}

// ParseStage turns receipt text into a scored Receipt. It reads the handler
// and template registries but never modifies them.
type ParseStage struct {
	Logger          *slog.Logger
	Handlers        *registry.Registry
	Templates       *template.Registry
	Scorer          *validation.Scorer
	DefaultCurrency string
}

func NewParseStage(logger *slog.Logger, handlers *registry.Registry, templates *template.Registry, scorer *validation.Scorer, defaultCurrency string) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	if handlers == nil {
		handlers = registry.NewDefault(registry.WithLogger(logger))
	}
	if scorer == nil {
		scorer = validation.NewScorer(validation.DefaultConfig(), logger)
	}
	if defaultCurrency == "" {
		defaultCurrency = constants.DefaultCurrency
	}
	return &ParseStage{
		Logger:          logger,
		Handlers:        handlers,
		Templates:       templates,
		Scorer:          scorer,
		DefaultCurrency: defaultCurrency,
	}
}

// Run parses req. It never panics: a failure in any strategy yields a FAILED
// receipt with a note explaining what broke.
func (p *ParseStage) Run(req ParseRequest) (r *receipt.Receipt) {
	text := ocr.Normalize(req.Text)
	r = receipt.New(text, p.DefaultCurrency)

	defer func() {
		if rec := recover(); rec != nil {
			p.Logger.Error("pipeline.parse.panic", "handler", r.HandlerUsed, "panic", rec)
			failed := receipt.New(text, p.DefaultCurrency)
			failed.HandlerUsed = r.HandlerUsed
			if failed.HandlerUsed == "" {
				failed.HandlerUsed = constants.VendorGeneric
			}
			failed.AddNote(fmt.Sprintf("processing failed: %v", rec))
			r = failed
		}
	}()

	if strings.TrimSpace(text) == "" {
		r.HandlerUsed = constants.VendorGeneric
		r.AddNote("no text to parse")
		_, notes := validation.Status(false, false)
		for _, n := range notes {
			r.AddNote(n)
		}
		return r
	}

	strat, dispatchConf := p.choose(text, req)
	r.HandlerUsed = strat.Name()
	r.ConfidenceScores["dispatch"] = receipt.Round2(dispatchConf)
	if t, ok := strat.(*templated); ok {
		r.TemplateUsed = t.id
		r.ConfidenceScores["template"] = receipt.Round2(t.conf)
	}

	items := strat.ExtractItems(text)
	totals := strat.ExtractTotals(text)
	md := strat.ExtractMetadata(text)
	if md.StoreName == "" && req.StoreNameHint != "" {
		md.StoreName = req.StoreNameHint
	}
	if derived := totals.Derive(); derived != "" {
		r.AddNote(derived + " derived from the other totals")
	}

	res := p.Scorer.Score(validation.Input{
		Text:     text,
		Items:    items,
		Totals:   totals,
		Metadata: md,
		Ceiling:  strat.PriceCeiling(),
	})
	res.ApplyTo(r)

	r.Totals = totals
	r.Metadata = md
	r.StoreName = md.StoreName
	r.Date = md.Date
	r.PaymentMethod = md.PaymentMethod
	if cat, ok := constants.CanonicalizePayment(md.PaymentMethod); ok {
		r.PaymentCategory = cat
	}
	if md.Currency != "" {
		r.Currency = md.Currency
	}
	if r.TemplateUsed == "" {
		p.matchTemplate(r, text, md.StoreName)
	}

	p.Logger.Info("pipeline.parse.ok",
		"receipt_id", r.ID,
		"handler", r.HandlerUsed,
		"template", r.TemplateUsed,
		"items", len(r.Items),
		"confidence", r.OverallConfidence,
		"status", r.Status,
		"image", req.ImagePathHint)
	return r
}

// choose picks the strategy for text: a forced name or template, then the
// store hint, then dispatch. When dispatch falls back to generic and a learned
// template matches, the template's patterns seed the strategy.
func (p *ParseStage) choose(text string, req ParseRequest) (strategy.Strategy, float64) {
	if req.Strategy != "" {
		if s, ok := p.Handlers.Get(req.Strategy); ok {
			return s, 1
		}
	}
	if req.Template != "" && p.Templates != nil {
		if tpl, ok := p.Templates.Get(req.Template); ok {
			lines := receipt.SplitLines(text)
			conf := tpl.MatchConfidence(lines, template.ComputeSignature(lines), req.StoreNameHint)
			if s, ok := p.seeded(tpl, conf); ok {
				return s, 1
			}
		}
	}
	if req.Strategy != "" || req.Template != "" {
		p.Logger.Warn("pipeline.strategy.unknown", "handler", req.Strategy, "template", req.Template)
	}
	if s, ok := p.Handlers.GetByStoreName(req.StoreNameHint); ok {
		return s, 1
	}

	sel := p.Handlers.Select(text)
	if !sel.Fallback || p.Templates == nil {
		return sel.Strategy, sel.Confidence
	}
	tpl, conf := p.Templates.FindMatchingTemplate(receipt.SplitLines(text), req.StoreNameHint)
	if tpl == nil {
		return sel.Strategy, sel.Confidence
	}
	if s, ok := p.seeded(tpl, conf); ok {
		return s, conf
	}
	return sel.Strategy, sel.Confidence
}

func (p *ParseStage) seeded(tpl *template.Template, conf float64) (*templated, bool) {
	seed, err := tpl.Seed()
	if err != nil {
		p.Logger.Warn("pipeline.template.seed_failed", "template", tpl.ID, "error", err)
		return nil, false
	}
	p.Logger.Debug("pipeline.template.seeded", "template", tpl.Name, "confidence", conf)
	return &templated{Strategy: strategy.NewSeeded(seed, p.Logger), id: tpl.ID, conf: conf}, true
}

// matchTemplate records which template, if any, fits the parsed receipt.
func (p *ParseStage) matchTemplate(r *receipt.Receipt, text, store string) {
	if p.Templates == nil {
		return
	}
	tpl, conf := p.Templates.FindMatchingTemplate(receipt.SplitLines(text), store)
	if tpl == nil {
		return
	}
	r.TemplateUsed = tpl.ID
	r.ConfidenceScores["template"] = receipt.Round2(conf)
}

// templated is a seeded strategy that remembers its template.
type templated struct {
	strategy.Strategy
	id   string
	conf float64
}
