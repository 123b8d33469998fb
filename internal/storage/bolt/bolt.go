package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goodtune/pillbox/internal/storage"
	"go.etcd.io/bbolt"
)

// Store implements the storage.Store interface using bbolt.
// Each namespace maps to one top-level bucket.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	return &Store{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// View runs fn in a read-only transaction. A namespace that was never
// written behaves as an empty bucket.
func (s *Store) View(ctx context.Context, namespace string, fn func(storage.Bucket) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fn(&bucket{ctx: ctx, b: tx.Bucket([]byte(namespace)), readOnly: true})
	})
}

// Update runs fn in a read-write transaction, creating the namespace bucket
// on first use. Returning an error from fn rolls back every write.
func (s *Store) Update(ctx context.Context, namespace string, fn func(storage.Bucket) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", namespace, err)
		}
		return fn(&bucket{ctx: ctx, b: b})
	})
}

type bucket struct {
	ctx      context.Context
	b        *bbolt.Bucket
	readOnly bool
}

func (b *bucket) Get(key string) ([]byte, error) {
	if b.ctx.Err() != nil {
		return nil, b.ctx.Err()
	}
	if b.b == nil {
		return nil, storage.ErrNotFound
	}
	value := b.b.Get([]byte(key))
	if value == nil {
		return nil, storage.ErrNotFound
	}
	// bbolt values are only valid for the life of the transaction.
	return append([]byte(nil), value...), nil
}

func (b *bucket) Put(key string, value []byte) error {
	if b.readOnly {
		return storage.ErrReadOnly
	}
	if b.ctx.Err() != nil {
		return b.ctx.Err()
	}
	return b.b.Put([]byte(key), value)
}

func (b *bucket) Delete(key string) error {
	if b.readOnly {
		return storage.ErrReadOnly
	}
	if b.b.Get([]byte(key)) == nil {
		return storage.ErrNotFound
	}
	return b.b.Delete([]byte(key))
}
