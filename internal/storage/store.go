package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrMalformed is returned when a stored value cannot be decoded as the requested type.
var ErrMalformed = errors.New("storage: malformed value")

// Store represents the root storage interface.
// Values live in namespaces; every access happens inside a bracket, View for
// reads and Update for a batch of writes committed together.
type Store interface {
	View(ctx context.Context, namespace string, fn func(Bucket) error) error
	Update(ctx context.Context, namespace string, fn func(Bucket) error) error
	Close() error
}

// Bucket is the key/value view of one namespace inside a bracket.
// Get returns ErrNotFound for absent keys. Buckets handed to View callbacks
// reject writes.
type Bucket interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// ErrReadOnly is returned when writing through a bucket opened by View.
var ErrReadOnly = errors.New("storage: bucket is read-only")
