package template

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS templates (
	id         TEXT PRIMARY KEY,
	store_name TEXT NOT NULL,
	body       TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteStore keeps one row per template with the JSON body in a text column.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens path; ":memory:" gives a private in-memory database.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.TemplateStoreError("open sqlite", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, common.TemplateStoreError("create table", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]*Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM templates`)
	if err != nil {
		return nil, common.TemplateStoreError("load", err)
	}
	defer rows.Close()

	out := make([]*Template, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, common.TemplateStoreError("scan", err)
		}
		var t Template
		if err := json.Unmarshal([]byte(body), &t); err != nil {
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

func (s *SQLiteStore) Save(ctx context.Context, t *Template) error {
	body, err := json.Marshal(t)
	if err != nil {
		return common.TemplateStoreError("marshal", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (id, store_name, body, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET store_name = excluded.store_name, body = excluded.body, updated_at = excluded.updated_at`,
		t.ID, t.StoreName, string(body), t.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	if err != nil {
		return common.TemplateStoreError("save", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id); err != nil {
		return common.TemplateStoreError("delete", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
