package template

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
)

// Store persists templates. Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context) ([]*Template, error)
	Save(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Pinger is implemented by stores that hold a network connection.
type Pinger interface {
	Ping(ctx context.Context, timeout time.Duration) error
}

// HealthCheck pings s when it supports it and otherwise loads from it.
func HealthCheck(ctx context.Context, s Store, timeout time.Duration) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx, timeout)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	_, err := s.Load(ctx)
	return err
}

// MemoryStore keeps templates for the life of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Template
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Template)}
}

func (m *MemoryStore) Load(_ context.Context) ([]*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Template, 0, len(m.data))
	for _, t := range m.data {
		out = append(out, t.Clone())
	}
	sortTemplates(out)
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, t *Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[t.ID] = t.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// sortTemplates orders by creation time then ID so loads are deterministic.
func sortTemplates(ts []*Template) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID < ts[j].ID
	})
}

// OpenStore opens the store selected by cfg.
func OpenStore(ctx context.Context, cfg common.TemplateConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(), nil
	case "bolt":
		return OpenBoltStore(cfg.Path)
	case "sqlite":
		return OpenSQLiteStore(ctx, cfg.Path)
	case "postgres":
		return OpenPostgresStore(ctx, PostgresConfig{DSN: cfg.DSN}, logger)
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown template store %q", cfg.Store), common.ErrInvalidInput)
	}
}
