package template

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
)

type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

const postgresSchema = `CREATE TABLE IF NOT EXISTS receipt_templates (
	id         TEXT PRIMARY KEY,
	store_name TEXT NOT NULL,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps templates in a receipt_templates table through a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgresStore connects a pgx pool and creates the table when missing.
func OpenPostgresStore(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to template database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse template database dsn", "error", err)
		return nil, common.TemplateStoreError("parse dsn", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "receipt-extractor"

	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dctx, pc)
	if err != nil {
		logger.Error("failed to connect to template database", "error", err)
		return nil, common.TemplateStoreError("connect", err)
	}
	if _, err := pool.Exec(dctx, postgresSchema); err != nil {
		pool.Close()
		return nil, common.TemplateStoreError("create table", err)
	}
	logger.Info("connected to template database")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (p *PostgresStore) Load(ctx context.Context) ([]*Template, error) {
	rows, err := p.pool.Query(ctx, `SELECT body FROM receipt_templates`)
	if err != nil {
		return nil, common.TemplateStoreError("load", err)
	}
	defer rows.Close()

	out := make([]*Template, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, common.TemplateStoreError("scan", err)
		}
		var t Template
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, common.TemplateStoreError("unmarshal", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, common.TemplateStoreError("load", err)
	}
	sortTemplates(out)
	return out, nil
}

func (p *PostgresStore) Save(ctx context.Context, t *Template) error {
	body, err := json.Marshal(t)
	if err != nil {
		return common.TemplateStoreError("marshal", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO receipt_templates (id, store_name, body, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET store_name = EXCLUDED.store_name, body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		t.ID, t.StoreName, body, t.UpdatedAt)
	if err != nil {
		return common.TemplateStoreError("save", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM receipt_templates WHERE id = $1`, id); err != nil {
		return common.TemplateStoreError("delete", err)
	}
	return nil
}

// Ping checks the pool within timeout.
func (p *PostgresStore) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	p.logger.Info("closing template database")
	p.pool.Close()
	return nil
}
