package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goodtune/pillbox/internal/storage"
	"github.com/goodtune/pillbox/internal/storage/memory"
)

func TestValueHelpersDefaults(t *testing.T) {
	store := memory.New()
	err := store.View(context.Background(), "empty", func(b storage.Bucket) error {
		if v, err := storage.GetBool(b, "masterEn", true); err != nil || !v {
			t.Errorf("GetBool default = %v, %v", v, err)
		}
		if v, err := storage.GetUint32(b, "ts0", 0xFFFFFFFF); err != nil || v != 0xFFFFFFFF {
			t.Errorf("GetUint32 default = %#x, %v", v, err)
		}
		if v, err := storage.GetUint8(b, "mq0", 7); err != nil || v != 7 {
			t.Errorf("GetUint8 default = %d, %v", v, err)
		}
		if v, err := storage.GetString(b, "mn0", "Cartridge 1"); err != nil || v != "Cartridge 1" {
			t.Errorf("GetString default = %q, %v", v, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestValueHelpersMalformed(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	if err := store.Update(ctx, "sched2", func(b storage.Bucket) error {
		return b.Put("ts0", []byte{1, 2})
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	err := store.View(ctx, "sched2", func(b storage.Bucket) error {
		v, err := storage.GetUint32(b, "ts0", 0xFFFFFFFF)
		if !errors.Is(err, storage.ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
		if v != 0xFFFFFFFF {
			t.Errorf("expected default on malformed value, got %#x", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
