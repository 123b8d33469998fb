// Package history remembers recently resolved confirmation sessions.
package history

import (
	"fmt"

	"github.com/goodtune/pillbox/internal/dispense"
	"github.com/goodtune/pillbox/internal/engine"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the number of sessions kept.
const DefaultSize = 64

// Recorder keeps the last N resolved sessions, keyed by session ID. It is
// safe for concurrent use.
type Recorder struct {
	engine.NopHooks
	cache *lru.Cache[string, dispense.Result]
}

// New creates a recorder holding up to size sessions.
func New(size int) (*Recorder, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, dispense.Result](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create history cache: %w", err)
	}
	return &Recorder{cache: cache}, nil
}

// OnConfirmResolved records r.
func (r *Recorder) OnConfirmResolved(res dispense.Result) {
	r.cache.Add(res.Session.ID, res)
}

// Get returns the result for a session ID.
func (r *Recorder) Get(id string) (dispense.Result, bool) {
	return r.cache.Peek(id)
}

// Recent returns up to limit results, newest first. A limit of zero or
// less returns everything held.
func (r *Recorder) Recent(limit int) []dispense.Result {
	keys := r.cache.Keys()
	if limit <= 0 || limit > len(keys) {
		limit = len(keys)
	}

	out := make([]dispense.Result, 0, limit)
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		if res, ok := r.cache.Peek(keys[i]); ok {
			out = append(out, res)
		}
	}
	return out
}

// Len returns the number of stored sessions.
func (r *Recorder) Len() int {
	return r.cache.Len()
}
