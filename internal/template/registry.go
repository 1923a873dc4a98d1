package template

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/strategy"
)

// DefaultMatchThreshold is the lowest confidence FindMatchingTemplate reports.
const DefaultMatchThreshold = 0.6

// Registry holds the known templates in memory and writes changes through to
// its Store.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	order     []string
	store     Store
	threshold float64
	builtins  bool
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Registry)

func WithStore(s Store) Option {
	return func(r *Registry) {
		if s != nil {
			r.store = s
		}
	}
}

func WithMatchThreshold(t float64) Option {
	return func(r *Registry) {
		if t > 0 && t <= 1 {
			r.threshold = t
		}
	}
}

// WithBuiltins controls whether an empty store is seeded with the built-in
// templates. It defaults to true.
func WithBuiltins(enabled bool) Option {
	return func(r *Registry) { r.builtins = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry loads every template from the store. When the store is empty
// and built-ins are enabled, the built-in templates are saved to it first.
func NewRegistry(ctx context.Context, opts ...Option) (*Registry, error) {
	r := &Registry{
		templates: make(map[string]*Template),
		store:     NewMemoryStore(),
		threshold: DefaultMatchThreshold,
		builtins:  true,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	loaded, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(loaded) == 0 && r.builtins {
		loaded = Builtins(r.now().UTC())
		for _, t := range loaded {
			if err := r.store.Save(ctx, t); err != nil {
				return nil, err
			}
		}
		r.logger.Info("template.builtins.created", "count", len(loaded))
	}
	for _, t := range loaded {
		r.put(t)
	}
	r.logger.Debug("template.registry.loaded", "count", len(r.order))
	return r, nil
}

func (r *Registry) put(t *Template) {
	if _, ok := r.templates[t.ID]; !ok {
		r.order = append(r.order, t.ID)
	}
	r.templates[t.ID] = t
}

// Get returns a copy of the template with id.
func (r *Registry) Get(id string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// All returns copies of every template in load order.
func (r *Registry) All() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.templates[id].Clone())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// FindMatchingTemplate returns the best-scoring template for lines and its
// confidence, or nil when nothing reaches the match threshold. The first
// loaded template wins ties.
func (r *Registry) FindMatchingTemplate(lines []string, storeHint string) (*Template, float64) {
	sig := ComputeSignature(lines)

	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Template
	bestConf := 0.0
	for _, id := range r.order {
		t := r.templates[id]
		if conf := t.MatchConfidence(lines, sig, storeHint); conf > bestConf {
			best, bestConf = t, conf
		}
	}
	if best == nil || bestConf < r.threshold {
		r.logger.Debug("template.match.none", "best", bestConf)
		return nil, 0
	}
	r.logger.Debug("template.match", "template", best.Name, "confidence", bestConf)
	return best.Clone(), bestConf
}

// Seed returns the strategy seed of the template with id.
func (r *Registry) Seed(id string) (strategy.Seed, error) {
	t, ok := r.Get(id)
	if !ok {
		return strategy.Seed{}, fmt.Errorf("template %s: %w", id, common.ErrNotFound)
	}
	return t.Seed()
}

// CreateOrUpdate learns the layout of lines for storeName. The most used
// template matching the store gets a fresh signature and counts a successful
// use; without one a new template is created from the generic line grammars.
func (r *Registry) CreateOrUpdate(ctx context.Context, storeName string, lines []string) (*Template, error) {
	storeName = strings.TrimSpace(storeName)
	if storeName == "" {
		return nil, fmt.Errorf("learn template: store name: %w", common.ErrInvalidInput)
	}
	sig := ComputeSignature(lines)
	now := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	var existing *Template
	for _, id := range r.order {
		t := r.templates[id]
		if t.MatchesStore(storeName) && (existing == nil || t.UsageCount > existing.UsageCount) {
			existing = t
		}
	}

	var next *Template
	if existing != nil {
		next = existing.Clone()
		next.relearn(sig, now)
		if !hasStorePattern(next, storeName) {
			next.StorePatterns = append(next.StorePatterns, storePattern(storeName))
		}
	} else {
		next = &Template{
			ID:              uuid.NewString(),
			Name:            storeName,
			StoreName:       storeName,
			StorePatterns:   []string{storePattern(storeName)},
			Keywords:        []string{strings.ToUpper(storeName)},
			ItemPattern:     itemPlain,
			SubtotalPattern: subtotalCommon,
			TaxPattern:      taxCommon,
			TotalPattern:    totalCommon,
			Currency:        strategy.DetectCurrency(strings.Join(lines, "\n")),
			Signature:       &sig,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}

	if err := r.store.Save(ctx, next); err != nil {
		return nil, err
	}
	r.put(next)
	if existing != nil {
		r.logger.Info("template.updated", "template", next.Name, "id", next.ID, "version", next.Version)
	} else {
		r.logger.Info("template.learned", "template", next.Name, "id", next.ID)
	}
	return next.Clone(), nil
}

// RecordUsage updates the usage count and running success rate of id.
func (r *Registry) RecordUsage(ctx context.Context, id string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return fmt.Errorf("template %s: %w", id, common.ErrNotFound)
	}
	next := t.Clone()
	next.RecordUsage(success, r.now().UTC())
	if err := r.store.Save(ctx, next); err != nil {
		return err
	}
	r.templates[id] = next
	r.logger.Debug("template.usage", "template", next.Name, "usage", next.UsageCount, "success_rate", next.SuccessRate)
	return nil
}

// Reinforce records a successful parse through id and replaces its signature
// with the layout of lines, so the template follows a drifting layout.
func (r *Registry) Reinforce(ctx context.Context, id string, lines []string) error {
	sig := ComputeSignature(lines)

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return fmt.Errorf("template %s: %w", id, common.ErrNotFound)
	}
	next := t.Clone()
	next.relearn(sig, r.now().UTC())
	if err := r.store.Save(ctx, next); err != nil {
		return err
	}
	r.templates[id] = next
	r.logger.Debug("template.reinforced", "template", next.Name, "version", next.Version, "usage", next.UsageCount)
	return nil
}

// Delete removes id from the registry and the store.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[id]; !ok {
		return fmt.Errorf("template %s: %w", id, common.ErrNotFound)
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	delete(r.templates, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close closes the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}

func storePattern(name string) string {
	return "^" + regexp.QuoteMeta(name) + "$"
}

func hasStorePattern(t *Template, name string) bool {
	p := storePattern(name)
	for _, sp := range t.StorePatterns {
		if strings.EqualFold(sp, p) {
			return true
		}
	}
	return false
}
