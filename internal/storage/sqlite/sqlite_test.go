package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/goodtune/pillbox/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "pillbox.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, "sched2", func(b storage.Bucket) error {
		if err := storage.PutUint8(b, "ms2", 0x05); err != nil {
			return err
		}
		// overwrite goes through the upsert path
		return storage.PutUint8(b, "ms2", 0x41)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, "sched2", func(b storage.Bucket) error {
		mask, err := storage.GetUint8(b, "ms2", 0)
		if err != nil {
			return err
		}
		if mask != 0x41 {
			t.Errorf("expected mask 0x41, got %#x", mask)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStoreNamespacesAreIsolated(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Update(ctx, "a", func(b storage.Bucket) error {
		return storage.PutString(b, "mn0", "only in a")
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	err := store.View(ctx, "b", func(b storage.Bucket) error {
		if _, err := b.Get("mn0"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound in namespace b, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStoreUpdateRollback(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Update(ctx, "sched2", func(b storage.Bucket) error {
		_ = storage.PutBool(b, "masterEn", false)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = store.View(ctx, "sched2", func(b storage.Bucket) error {
		enabled, err := storage.GetBool(b, "masterEn", true)
		if err != nil {
			return err
		}
		if !enabled {
			t.Error("rolled back write must not be visible")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, "sched2", func(b storage.Bucket) error {
		if err := b.Delete("ts0"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting missing key, got %v", err)
		}
		if err := storage.PutUint32(b, "ts0", 1); err != nil {
			return err
		}
		return b.Delete("ts0")
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pillbox.db")
	for i := 0; i < 2; i++ {
		store, err := Open(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		_ = store.Close()
	}
}
