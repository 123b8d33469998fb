package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/goodtune/pillbox/internal/storage"
)

func TestUpdateCommitsOnSuccess(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.Update(ctx, "sched2", func(b storage.Bucket) error {
		return storage.PutBool(b, "masterEn", false)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, "sched2", func(b storage.Bucket) error {
		enabled, err := storage.GetBool(b, "masterEn", true)
		if err != nil {
			return err
		}
		if enabled {
			t.Errorf("expected masterEn=false after commit")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpdateDiscardsOnError(t *testing.T) {
	store := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, "sched2", func(b storage.Bucket) error {
		if err := storage.PutUint8(b, "mq0", 12); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	err = store.View(ctx, "sched2", func(b storage.Bucket) error {
		if _, err := b.Get("mq0"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected rolled back key to be absent, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestViewIsReadOnly(t *testing.T) {
	store := New()

	err := store.View(context.Background(), "sched2", func(b storage.Bucket) error {
		if err := b.Put("mn0", []byte("x")); !errors.Is(err, storage.ErrReadOnly) {
			t.Errorf("Put: expected ErrReadOnly, got %v", err)
		}
		if err := b.Delete("mn0"); !errors.Is(err, storage.ErrReadOnly) {
			t.Errorf("Delete: expected ErrReadOnly, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	store := New()
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	err := store.View(context.Background(), "sched2", func(storage.Bucket) error { return nil })
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.Update(ctx, "sched2", func(storage.Bucket) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Errorf("callback must not run with a cancelled context")
	}
}
