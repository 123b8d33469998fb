package dispense

import (
	"context"
	"errors"
	"testing"

	"github.com/goodtune/pillbox/internal/actuator"
	"github.com/goodtune/pillbox/internal/schedule"
	"github.com/rs/zerolog"
)

func TestToggle(t *testing.T) {
	act := &fakeActuator{}
	m := NewManual(act, zerolog.Nop())
	ctx := context.Background()

	on, err := m.Toggle(ctx, 3)
	if err != nil || !on {
		t.Fatalf("first toggle = %v, %v; want true", on, err)
	}
	if !m.Active(3) {
		t.Error("module 3 should be held open")
	}

	off, err := m.Toggle(ctx, 3)
	if err != nil || off {
		t.Fatalf("second toggle = %v, %v; want false", off, err)
	}

	want := []call{
		{op: "drive", module: 3, pos: actuator.PositionDispense},
		{op: "drive", module: 3, pos: actuator.PositionHome},
	}
	if len(act.calls) != len(want) {
		t.Fatalf("calls = %+v", act.calls)
	}
	for i := range want {
		if act.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, act.calls[i], want[i])
		}
	}
}

func TestToggleUnavailable(t *testing.T) {
	act := &fakeActuator{missing: true}
	m := NewManual(act, zerolog.Nop())

	on, err := m.Toggle(context.Background(), 0)
	if err != nil || on {
		t.Fatalf("toggle = %v, %v; want false, nil", on, err)
	}
	if len(act.calls) != 0 {
		t.Errorf("unexpected calls: %+v", act.calls)
	}
}

func TestToggleActuatorError(t *testing.T) {
	act := &fakeActuator{fail: map[int]bool{1: true}}
	m := NewManual(act, zerolog.Nop())

	if _, err := m.Toggle(context.Background(), 1); err == nil {
		t.Fatal("expected actuator error")
	}
	if m.Active(1) {
		t.Error("state must not change when the drive fails")
	}
}

func TestToggleBadIndex(t *testing.T) {
	m := NewManual(&fakeActuator{}, zerolog.Nop())
	if _, err := m.Toggle(context.Background(), schedule.ModuleCount); !errors.Is(err, schedule.ErrModuleIndex) {
		t.Fatalf("expected ErrModuleIndex, got %v", err)
	}
}

func TestHomeAll(t *testing.T) {
	act := &fakeActuator{}
	m := NewManual(act, zerolog.Nop())
	ctx := context.Background()
	_, _ = m.Toggle(ctx, 0)
	_, _ = m.Toggle(ctx, 5)

	if err := m.HomeAll(ctx); err != nil {
		t.Fatalf("HomeAll: %v", err)
	}
	if m.ActiveAll() != [schedule.ModuleCount]bool{} {
		t.Errorf("active = %v, want none", m.ActiveAll())
	}
	homes := 0
	for _, c := range act.calls {
		if c.op == "home" {
			homes++
		}
	}
	if homes != schedule.ModuleCount {
		t.Errorf("home calls = %d, want %d", homes, schedule.ModuleCount)
	}
}
