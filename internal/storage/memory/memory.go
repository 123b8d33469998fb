package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/goodtune/pillbox/internal/storage"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("memory store closed")

// Store is a volatile storage.Store. Update callbacks work on a copy that is
// only committed when the callback returns nil.
type Store struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

// View runs fn against a read-only view of namespace.
func (s *Store) View(ctx context.Context, namespace string, fn func(storage.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn(&bucket{values: s.data[namespace], readOnly: true})
}

// Update runs fn against a writable copy of namespace and commits it on success.
func (s *Store) Update(ctx context.Context, namespace string, fn func(storage.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	working := make(map[string][]byte, len(s.data[namespace]))
	for k, v := range s.data[namespace] {
		working[k] = v
	}
	if err := fn(&bucket{values: working}); err != nil {
		return err
	}
	s.data[namespace] = working
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type bucket struct {
	values   map[string][]byte
	readOnly bool
}

func (b *bucket) Get(key string) ([]byte, error) {
	v, ok := b.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (b *bucket) Put(key string, value []byte) error {
	if b.readOnly {
		return storage.ErrReadOnly
	}
	b.values[key] = append([]byte(nil), value...)
	return nil
}

func (b *bucket) Delete(key string) error {
	if b.readOnly {
		return storage.ErrReadOnly
	}
	if _, ok := b.values[key]; !ok {
		return storage.ErrNotFound
	}
	delete(b.values, key)
	return nil
}
