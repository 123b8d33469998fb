package schedule

import (
	"errors"
	"testing"
)

func TestSetSlotGetSlot(t *testing.T) {
	m := NewModel()
	for i := 0; i < SlotCount; i++ {
		hour, minute, enabled := (i*3)%24, (i*11)%60, i%2 == 0
		if err := m.SetSlot(i, hour, minute, enabled); err != nil {
			t.Fatalf("SetSlot(%d): %v", i, err)
		}
		got, err := m.Slot(i)
		if err != nil {
			t.Fatalf("Slot(%d): %v", i, err)
		}
		want := TimeSlot{Hour: hour, Minute: minute, Enabled: enabled}
		if got != want {
			t.Errorf("Slot(%d) = %+v, want %+v", i, got, want)
		}
	}
}

func TestIndexBounds(t *testing.T) {
	m := NewModel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"slot negative", m.SetSlot(-1, 8, 0, true), ErrSlotIndex},
		{"slot too large", m.SetSlot(SlotCount, 8, 0, true), ErrSlotIndex},
		{"hour too large", m.SetSlot(0, 24, 0, true), ErrInvalidTime},
		{"minute too large", m.SetSlot(0, 8, 60, true), ErrInvalidTime},
		{"module too large", m.SetQuantity(ModuleCount, 1), ErrModuleIndex},
		{"toggle bad slot", m.ToggleSlot(0, SlotCount), ErrSlotIndex},
		{"rename negative", m.SetName(-1, "x"), ErrModuleIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("got %v, want %v", tt.err, tt.want)
			}
		})
	}

	// A rejected edit leaves the slot untouched.
	if s, _ := m.Slot(0); s != defaultSlots[0] {
		t.Errorf("slot 0 changed by rejected edit: %+v", s)
	}
}

func TestToggleSlotIsInvolution(t *testing.T) {
	m := NewModel()
	for mod := 0; mod < ModuleCount; mod++ {
		if err := m.SetSlotMask(mod, uint8(mod*13)); err != nil {
			t.Fatalf("SetSlotMask: %v", err)
		}
		for bit := 0; bit < SlotCount; bit++ {
			before, _ := m.Module(mod)
			_ = m.ToggleSlot(mod, bit)
			mid, _ := m.Module(mod)
			if mid.SlotMask == before.SlotMask {
				t.Fatalf("module %d bit %d: toggle did not change mask", mod, bit)
			}
			_ = m.ToggleSlot(mod, bit)
			after, _ := m.Module(mod)
			if after.SlotMask != before.SlotMask {
				t.Errorf("module %d bit %d: mask %#x after double toggle, want %#x", mod, bit, after.SlotMask, before.SlotMask)
			}
		}
	}
}

func TestSetQuantityClamps(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, 0},
		{0, 0},
		{42, 42},
		{99, 99},
		{100, 99},
		{1000, 99},
	}

	m := NewModel()
	for _, tt := range tests {
		if err := m.SetQuantity(0, tt.in); err != nil {
			t.Fatalf("SetQuantity(%d): %v", tt.in, err)
		}
		got, _ := m.Module(0)
		if got.Quantity != tt.want {
			t.Errorf("SetQuantity(%d) stored %d, want %d", tt.in, got.Quantity, tt.want)
		}
	}
}

func TestDecrementSaturates(t *testing.T) {
	m := NewModel()
	_ = m.SetQuantity(2, 2)

	want := []int{1, 0, 0, 0}
	for i, w := range want {
		got, err := m.Decrement(2)
		if err != nil {
			t.Fatalf("Decrement: %v", err)
		}
		if got != w {
			t.Errorf("call %d: got %d, want %d", i+1, got, w)
		}
	}
}

func TestSetName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "Aspirin", "Aspirin"},
		{"exact", "ABCDEFGHIJKLMNO", "ABCDEFGHIJKLMNO"},
		{"truncated", "Acetaminophen 500mg", "Acetaminophen 5"},
		// "é" occupies bytes 14 and 15.
		{"rune boundary", "Ibuprofen Extré", "Ibuprofen Extr"},
		{"empty restores placeholder", "", "Cartridge 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel()
			if err := m.SetName(3, tt.in); err != nil {
				t.Fatalf("SetName: %v", err)
			}
			got, _ := m.Module(3)
			if got.Name != tt.want {
				t.Errorf("name = %q, want %q", got.Name, tt.want)
			}
			if len(got.Name) > MaxNameLength {
				t.Errorf("name %q exceeds %d bytes", got.Name, MaxNameLength)
			}
		})
	}
}

func TestSlotMaskDropsHighBit(t *testing.T) {
	m := NewModel()
	_ = m.SetSlotMask(1, 0xFF)
	got, _ := m.Module(1)
	if got.SlotMask != SlotMaskAll {
		t.Errorf("mask = %#x, want %#x", got.SlotMask, SlotMaskAll)
	}
}

func TestAssignedModules(t *testing.T) {
	m := NewModel()
	_ = m.SetSlotMask(0, 0b0000001)
	_ = m.SetSlotMask(3, 0b0000011)
	_ = m.SetSlotMask(5, 0b1000000)

	if got := m.AssignedModules(0); len(got) != 2 || got[0] != 0 || got[1] != 3 {
		t.Errorf("AssignedModules(0) = %v, want [0 3]", got)
	}
	if got := m.AssignedModules(6); len(got) != 1 || got[0] != 5 {
		t.Errorf("AssignedModules(6) = %v, want [5]", got)
	}
	if got := m.AssignedModules(2); len(got) != 0 {
		t.Errorf("AssignedModules(2) = %v, want none", got)
	}
}

func TestNewModelDefaults(t *testing.T) {
	m := NewModel()
	if !m.MasterEnabled() {
		t.Error("master enable should default to true")
	}
	if m.Slots() != DefaultSlots() {
		t.Error("slots should start at the built-in table")
	}
	for i, mod := range m.Modules() {
		if mod.Name != DefaultName(i) || mod.Quantity != 0 || mod.SlotMask != 0 {
			t.Errorf("module %d = %+v, want empty placeholder", i, mod)
		}
	}
}
