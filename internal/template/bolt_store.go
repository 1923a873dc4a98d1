package template

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/joseph-ayodele/receipt-extractor/internal/common"
)

const bucketTemplates = "templates"

// BoltStore keeps templates as JSON values in a single bbolt bucket keyed by ID.
type BoltStore struct {
	db *bbolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, common.NewAppError(common.CodeConfig, "bolt template store needs a path", common.ErrInvalidInput)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, common.TemplateStoreError("open bolt", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketTemplates))
		return err
	})
	if err != nil {
		db.Close()
		return nil, common.TemplateStoreError("create bucket", err)
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Load(_ context.Context) ([]*Template, error) {
	out := make([]*Template, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketTemplates)).ForEach(func(k, v []byte) error {
			var t Template
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("unmarshal template %s: %w", k, err)
			}
			out = append(out, &t)
			return nil
		})
	})
	if err != nil {
		return nil, common.TemplateStoreError("load", err)
	}
	sortTemplates(out)
	return out, nil
}

func (b *BoltStore) Save(_ context.Context, t *Template) error {
	data, err := json.Marshal(t)
	if err != nil {
		return common.TemplateStoreError("marshal", err)
	}
	err = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketTemplates)).Put([]byte(t.ID), data)
	})
	if err != nil {
		return common.TemplateStoreError("save", err)
	}
	return nil
}

func (b *BoltStore) Delete(_ context.Context, id string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketTemplates)).Delete([]byte(id))
	})
	if err != nil {
		return common.TemplateStoreError("delete", err)
	}
	return nil
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}
