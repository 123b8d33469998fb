package codec

import (
	"context"
	"errors"
	"testing"

	"github.com/goodtune/pillbox/internal/schedule"
	"github.com/goodtune/pillbox/internal/storage"
	"github.com/goodtune/pillbox/internal/storage/memory"
)

func TestPackSlot(t *testing.T) {
	tests := []struct {
		slot schedule.TimeSlot
		word uint32
	}{
		{schedule.TimeSlot{Hour: 8, Minute: 0, Enabled: true}, 0x00080001},
		{schedule.TimeSlot{Hour: 12, Minute: 30, Enabled: false}, 0x000C1E00},
		{schedule.TimeSlot{Hour: 23, Minute: 59, Enabled: true}, 0x00173B01},
		{schedule.TimeSlot{Hour: 0, Minute: 0, Enabled: false}, 0},
	}

	for _, tt := range tests {
		if got := PackSlot(tt.slot); got != tt.word {
			t.Errorf("PackSlot(%+v) = %#08x, want %#08x", tt.slot, got, tt.word)
		}
		if got := UnpackSlot(tt.word); got != tt.slot {
			t.Errorf("UnpackSlot(%#08x) = %+v, want %+v", tt.word, got, tt.slot)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	m := schedule.NewModel()
	m.SetMasterEnabled(false)
	for i := 0; i < schedule.SlotCount; i++ {
		if err := m.SetSlot(i, 6+i*2, i*7, i%3 != 0); err != nil {
			t.Fatalf("SetSlot: %v", err)
		}
	}
	_ = m.SetName(0, "Metformin")
	_ = m.SetQuantity(0, 30)
	_ = m.SetSlotMask(0, 0b0010101)
	_ = m.SetName(5, "Vitamin D")
	_ = m.SetQuantity(5, 99)
	_ = m.SetSlotMask(5, 0b1000000)

	if err := Save(ctx, store, m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(ctx, store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.MasterEnabled() {
		t.Error("master enable did not survive the round trip")
	}
	if loaded.Slots() != m.Slots() {
		t.Errorf("slots = %+v, want %+v", loaded.Slots(), m.Slots())
	}
	if loaded.Modules() != m.Modules() {
		t.Errorf("modules = %+v, want %+v", loaded.Modules(), m.Modules())
	}
}

func TestLoadEmptyStoreGivesDefaults(t *testing.T) {
	loaded, err := Load(context.Background(), memory.New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Slots() != schedule.DefaultSlots() {
		t.Errorf("slots = %+v, want defaults", loaded.Slots())
	}
	if !loaded.MasterEnabled() {
		t.Error("master enable should default to true")
	}
	mod, _ := loaded.Module(2)
	if mod.Name != "Cartridge 3" {
		t.Errorf("module 2 name = %q, want placeholder", mod.Name)
	}
}

func TestLoadCorrectsStoredValues(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	err := store.Update(ctx, Namespace, func(b storage.Bucket) error {
		puts := []struct {
			key string
			put func() error
		}{
			{"sentinel", func() error { return storage.PutUint32(b, "ts0", Sentinel) }},
			// hour 30 is corrected, minute 15 kept
			{"bad hour", func() error { return storage.PutUint32(b, "ts1", 30<<16|15<<8) }},
			// minute 75 is corrected, hour 10 kept
			{"bad minute", func() error { return storage.PutUint32(b, "ts2", 10<<16|75<<8|1) }},
			{"empty name", func() error { return storage.PutString(b, "mn1", "") }},
			{"big quantity", func() error { return storage.PutUint8(b, "mq1", 200) }},
			{"high mask bit", func() error { return storage.PutUint8(b, "ms1", 0xFF) }},
			{"long name", func() error { return storage.PutString(b, "mn2", "Extended Release Capsules") }},
		}
		for _, p := range puts {
			if err := p.put(); err != nil {
				t.Fatalf("%s: %v", p.key, err)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	loaded, err := Load(ctx, store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	slots := loaded.Slots()
	if want := (schedule.TimeSlot{Hour: 8, Minute: 0, Enabled: true}); slots[0] != want {
		t.Errorf("slot 0 = %+v, want %+v", slots[0], want)
	}
	if want := (schedule.TimeSlot{Hour: 8, Minute: 15, Enabled: false}); slots[1] != want {
		t.Errorf("slot 1 = %+v, want %+v", slots[1], want)
	}
	if want := (schedule.TimeSlot{Hour: 10, Minute: 0, Enabled: true}); slots[2] != want {
		t.Errorf("slot 2 = %+v, want %+v", slots[2], want)
	}

	mod1, _ := loaded.Module(1)
	if mod1.Name != "Cartridge 2" || mod1.Quantity != 99 || mod1.SlotMask != schedule.SlotMaskAll {
		t.Errorf("module 1 = %+v, want corrected values", mod1)
	}
	mod2, _ := loaded.Module(2)
	if mod2.Name != "Extended Releas" {
		t.Errorf("module 2 name = %q, want truncated", mod2.Name)
	}
}

func TestLoadMalformedEntry(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	if err := store.Update(ctx, Namespace, func(b storage.Bucket) error {
		if err := b.Put("ts4", []byte{0x11}); err != nil {
			return err
		}
		return storage.PutUint8(b, "mq4", 12)
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	loaded, err := Load(ctx, store)
	if !errors.Is(err, storage.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if s, _ := loaded.Slot(4); s != schedule.DefaultSlots()[4] {
		t.Errorf("slot 4 = %+v, want default", s)
	}
	if mod, _ := loaded.Module(4); mod.Quantity != 12 {
		t.Errorf("module 4 quantity = %d, want 12", mod.Quantity)
	}
}

type brokenStore struct{ err error }

func (s brokenStore) View(context.Context, string, func(storage.Bucket) error) error { return s.err }
func (s brokenStore) Update(context.Context, string, func(storage.Bucket) error) error { return s.err }
func (s brokenStore) Close() error { return nil }

func TestUnavailableStore(t *testing.T) {
	offline := errors.New("flash offline")
	store := brokenStore{err: offline}

	loaded, err := Load(context.Background(), store)
	if !errors.Is(err, offline) {
		t.Fatalf("Load error = %v, want %v", err, offline)
	}
	if loaded == nil || loaded.Slots() != schedule.DefaultSlots() {
		t.Fatal("Load must still return the default model")
	}

	if err := Save(context.Background(), store, loaded); !errors.Is(err, offline) {
		t.Fatalf("Save error = %v, want %v", err, offline)
	}
}
