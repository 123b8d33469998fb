package engine

import "github.com/goodtune/pillbox/internal/dispense"

// Hooks receives workflow notifications for the presentation layer. Calls
// are made from the engine's goroutine and must not block for long.
type Hooks interface {
	// OnTrigger is called when a slot opens a confirmation session.
	OnTrigger(session dispense.Session)
	// OnTriggerSkipped is called when a due slot could not open a session.
	OnTriggerSkipped(slot int, reason error)
	// OnManualRequest is called after a manual toggle changed a module.
	OnManualRequest(module int, active bool)
	// OnConfirmResolved is called when a session ends by any path.
	OnConfirmResolved(result dispense.Result)
}

// NopHooks ignores every notification. Embed it to implement a subset.
type NopHooks struct{}

func (NopHooks) OnTrigger(dispense.Session) {}
func (NopHooks) OnTriggerSkipped(int, error) {}
func (NopHooks) OnManualRequest(int, bool) {}
func (NopHooks) OnConfirmResolved(dispense.Result) {}

// MultiHooks fans notifications out in order.
type MultiHooks []Hooks

func (m MultiHooks) OnTrigger(s dispense.Session) {
	for _, h := range m {
		h.OnTrigger(s)
	}
}

func (m MultiHooks) OnTriggerSkipped(slot int, reason error) {
	for _, h := range m {
		h.OnTriggerSkipped(slot, reason)
	}
}

func (m MultiHooks) OnManualRequest(module int, active bool) {
	for _, h := range m {
		h.OnManualRequest(module, active)
	}
}

func (m MultiHooks) OnConfirmResolved(r dispense.Result) {
	for _, h := range m {
		h.OnConfirmResolved(r)
	}
}
