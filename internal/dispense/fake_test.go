package dispense

import (
	"context"
	"fmt"

	"github.com/goodtune/pillbox/internal/actuator"
)

type call struct {
	op     string
	module int
	pos    actuator.Position
}

// fakeActuator records calls and can fail selected modules.
type fakeActuator struct {
	missing      bool
	fail         map[int]bool
	failDispense map[int]bool
	calls        []call
}

func (f *fakeActuator) Dispense(_ context.Context, module int) error {
	f.calls = append(f.calls, call{op: "dispense", module: module})
	if f.fail[module] || f.failDispense[module] {
		return fmt.Errorf("servo %d jammed", module)
	}
	return nil
}

func (f *fakeActuator) SetHome(_ context.Context, module int) error {
	f.calls = append(f.calls, call{op: "home", module: module})
	return nil
}

func (f *fakeActuator) DriveTo(_ context.Context, module int, p actuator.Position) error {
	f.calls = append(f.calls, call{op: "drive", module: module, pos: p})
	if f.fail[module] {
		return fmt.Errorf("servo %d jammed", module)
	}
	return nil
}

func (f *fakeActuator) Available() bool { return !f.missing }

type countingPersister struct {
	calls int
	err   error
}

func (p *countingPersister) Persist(context.Context) error {
	p.calls++
	return p.err
}
