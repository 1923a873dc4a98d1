// Package registry dispatches receipt text to the best-fitting vendor strategy.
package registry

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/joseph-ayodele/receipt-extractor/constants"
	"github.com/joseph-ayodele/receipt-extractor/internal/common"
	"github.com/joseph-ayodele/receipt-extractor/internal/strategy"
)

// DefaultThreshold is the minimum detection confidence a vendor strategy
// needs to win dispatch over the generic strategy.
const DefaultThreshold = 0.7

// Selection is the outcome of one dispatch.
type Selection struct {
	Strategy   strategy.Strategy
	Confidence float64
	// Fallback is true when no vendor strategy reached the threshold.
	Fallback bool
	// Scores holds every strategy's detection result by name.
	Scores map[string]float64
}

// Registry holds strategies in registration order. Reads run concurrently;
// registration takes the write lock.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	byName    map[string]strategy.Strategy
	fallback  strategy.Strategy
	threshold float64
	logger    *slog.Logger
}

type Option func(*Registry)

func WithThreshold(t float64) Option {
	return func(r *Registry) {
		if t > 0 && t <= 1 {
			r.threshold = t
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

// New returns an empty registry whose terminal fallback is the generic strategy.
func New(opts ...Option) *Registry {
	r := &Registry{
		byName:    make(map[string]strategy.Strategy),
		threshold: DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.fallback = strategy.NewGeneric(r.logger)
	return r
}

// NewDefault returns a registry populated with the built-in vendor strategies.
func NewDefault(opts ...Option) *Registry {
	r := New(opts...)
	for _, s := range strategy.Builtins(r.logger) {
		r.Register(s)
	}
	return r
}

// Register adds s under s.Name(). Re-registering a name replaces the earlier
// strategy in place, keeping its position, and logs a warning. Registering
// the generic strategy also replaces the terminal fallback.
func (r *Registry) Register(s strategy.Strategy) {
	if s == nil {
		return
	}
	name := s.Name()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		r.logger.Warn("registry.register.overwrite", "handler", name)
	} else {
		r.order = append(r.order, name)
	}
	r.byName[name] = s
	if name == constants.VendorGeneric {
		r.fallback = s
	}
}

// Unregister removes the strategy registered under name. The generic fallback
// cannot be removed from dispatch.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return false
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Get(name string) (strategy.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// GetByStoreName finds a registered vendor strategy by its display name.
func (r *Registry) GetByStoreName(store string) (strategy.Strategy, bool) {
	if store == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		s := r.byName[name]
		if s.StoreName() != "" && strings.EqualFold(s.StoreName(), store) {
			return s, true
		}
	}
	return nil, false
}

// Names lists registered strategies in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Generic() strategy.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Select asks every strategy to detect text and returns the highest score at
// or above the threshold, the first registered winning ties. Otherwise the
// generic strategy is returned. Select never fails and never returns nil.
func (r *Registry) Select(text string) Selection {
	r.mu.RLock()
	candidates := make([]strategy.Strategy, 0, len(r.order))
	for _, name := range r.order {
		candidates = append(candidates, r.byName[name])
	}
	fallback := r.fallback
	threshold := r.threshold
	r.mu.RUnlock()

	sel := Selection{Scores: make(map[string]float64, len(candidates))}
	var best strategy.Strategy
	bestScore := -1.0
	for _, s := range candidates {
		score := r.detect(s, text)
		sel.Scores[s.Name()] = score
		if s.Name() == constants.VendorGeneric {
			continue
		}
		if score > bestScore {
			best, bestScore = s, score
		}
	}

	if best != nil && bestScore >= threshold {
		sel.Strategy, sel.Confidence = best, bestScore
		r.logger.Debug("registry.select", "handler", best.Name(), "confidence", bestScore)
		return sel
	}
	sel.Strategy = fallback
	sel.Confidence = strategy.GenericDetectScore
	sel.Fallback = true
	r.logger.Debug("registry.select.fallback", "best_score", bestScore)
	return sel
}

// detect runs one strategy's self-assessment. Errors and panics count as
// confidence 0 and are logged.
func (r *Registry) detect(s strategy.Strategy, text string) (score float64) {
	defer func() {
		if rec := recover(); rec != nil {
			err := common.StrategyDetectionError(s.Name(), fmt.Errorf("panic: %v", rec))
			r.logger.Error("registry.detect.failed", "handler", s.Name(), "error", err)
			score = 0
		}
	}()
	score, err := s.Detect(text)
	if err != nil {
		r.logger.Warn("registry.detect.failed", "handler", s.Name(), "error", common.StrategyDetectionError(s.Name(), err))
		return 0
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		r.logger.Warn("registry.detect.out_of_range", "handler", s.Name(), "confidence", score)
		return 0
	}
	return score
}
