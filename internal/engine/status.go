package engine

import (
	"fmt"
	"time"

	"github.com/goodtune/pillbox/internal/dispense"
	"github.com/goodtune/pillbox/internal/schedule"
)

// NextSlot is the upcoming dispense moment.
type NextSlot struct {
	Slot    int    `json:"slot"`
	Label   string `json:"label"`
	Time    string `json:"time"`
	Minutes int    `json:"minutes"`
}

// Status is a point-in-time view of the engine for display.
type Status struct {
	Time              string                     `json:"time"`
	Date              string                     `json:"date"`
	Weekday           int                        `json:"weekday"`
	ReliableClock     bool                       `json:"reliable_clock"`
	MasterEnabled     bool                       `json:"master_enabled"`
	State             string                     `json:"state"`
	Session           *dispense.Session          `json:"session,omitempty"`
	RemainingSeconds  int                        `json:"remaining_seconds"`
	NextSlot          *NextSlot                  `json:"next_slot,omitempty"`
	Fired             [schedule.SlotCount]bool   `json:"fired"`
	ManualActive      [schedule.ModuleCount]bool `json:"manual_active"`
	ActuatorAvailable bool                       `json:"actuator_available"`
}

// Status snapshots the engine.
func (e *Engine) Status() Status {
	hour, minute, second := e.clock.Time()
	year, month, day, weekday := e.clock.Date()
	now := e.clock.Now()

	st := Status{
		Time:              fmt.Sprintf("%02d:%02d:%02d", hour, minute, second),
		Date:              fmt.Sprintf("%04d-%02d-%02d", year, month, day),
		Weekday:           weekday,
		ReliableClock:     e.clock.HasReliableClock(),
		MasterEnabled:     e.model.MasterEnabled(),
		State:             e.machine.State().String(),
		RemainingSeconds:  int(e.machine.Remaining(now) / time.Second),
		Fired:             e.loop.Fired(),
		ManualActive:      e.manual.ActiveAll(),
		ActuatorAvailable: e.act.Available(),
	}

	if s, ok := e.machine.Session(); ok {
		st.Session = &s
	}

	if slot, dist, ok := e.model.NextUpcomingSlot(hour, minute, st.Fired); ok {
		ts, _ := e.model.Slot(slot)
		st.NextSlot = &NextSlot{
			Slot:    slot,
			Label:   schedule.Label(slot),
			Time:    ts.String(),
			Minutes: dist,
		}
	}

	return st
}
