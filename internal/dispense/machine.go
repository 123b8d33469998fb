// Package dispense runs the confirm-before-dispense workflow and the manual
// hold toggle for individual modules.
package dispense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/pillbox/internal/actuator"
	"github.com/goodtune/pillbox/internal/schedule"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// DefaultTimeout is how long a session waits for the user.
const DefaultTimeout = 10 * time.Minute

var (
	ErrNoModulesAssigned = errors.New("no modules assigned to slot")
	ErrSessionActive     = errors.New("confirmation session already open")
	ErrNoSession         = errors.New("no confirmation session open")
)

// State of the confirmation workflow.
type State int

const (
	StateIdle State = iota
	StateAwaitingConfirmation
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return "unknown"
	}
}

// Outcome is how a session ended.
type Outcome int

const (
	OutcomeDispensed Outcome = iota
	OutcomeNoModules
	OutcomeCancelled
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDispensed:
		return "dispensed"
	case OutcomeNoModules:
		return "no_modules"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Abandoned reports whether the session ended without pills leaving.
func (o Outcome) Abandoned() bool {
	return o != OutcomeDispensed
}

// Session is an open confirmation window.
type Session struct {
	ID      string    `json:"id"`
	Slot    int       `json:"slot"`
	Started time.Time `json:"started"`
	Modules []int     `json:"modules"`
}

// ModuleResult records what happened to one module on confirmation.
type ModuleResult struct {
	Module    int    `json:"module"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error,omitempty"`
}

// Result describes a resolved session.
type Result struct {
	Session   Session        `json:"session"`
	Outcome   Outcome        `json:"outcome"`
	Resolved  time.Time      `json:"resolved"`
	Dispensed int            `json:"dispensed"`
	Modules   []ModuleResult `json:"modules,omitempty"`
	Persisted bool           `json:"persisted"`
}

// Persister writes the model after a dispense changed it. Implementations
// report failures themselves; the machine only records whether it worked.
type Persister interface {
	Persist(ctx context.Context) error
}

// Machine is the confirmation state machine. It is not safe for concurrent
// use.
type Machine struct {
	model     *schedule.Model
	act       actuator.Actuator
	manual    *Manual
	persister Persister
	timeout   time.Duration
	logger    zerolog.Logger

	state   State
	session Session
}

// NewMachine creates an idle machine operating on model.
func NewMachine(model *schedule.Model, act actuator.Actuator, manual *Manual, persister Persister, timeout time.Duration, logger zerolog.Logger) *Machine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Machine{
		model:     model,
		act:       act,
		manual:    manual,
		persister: persister,
		timeout:   timeout,
		logger:    logger.With().Str("component", "dispense").Logger(),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Session returns the open session, if any.
func (m *Machine) Session() (Session, bool) {
	if m.state != StateAwaitingConfirmation {
		return Session{}, false
	}
	return m.session, true
}

// Timeout is the confirmation window.
func (m *Machine) Timeout() time.Duration {
	return m.timeout
}

// Open starts a confirmation session for slot. Slots without assigned
// modules never open a session, and only one session may be open.
func (m *Machine) Open(slot int, now time.Time) (Session, error) {
	if _, err := m.model.Slot(slot); err != nil {
		return Session{}, err
	}
	if m.state != StateIdle {
		return Session{}, fmt.Errorf("%w: slot %d waiting since %s", ErrSessionActive, m.session.Slot, m.session.Started.Format(time.TimeOnly))
	}

	modules := m.model.AssignedModules(slot)
	if len(modules) == 0 {
		return Session{}, fmt.Errorf("%w: %d", ErrNoModulesAssigned, slot)
	}

	m.session = Session{
		ID:      xid.New().String(),
		Slot:    slot,
		Started: now,
		Modules: modules,
	}
	m.state = StateAwaitingConfirmation

	m.logger.Info().
		Str("session", m.session.ID).
		Int("slot", slot).
		Ints("modules", modules).
		Msg("Awaiting confirmation")

	return m.session, nil
}

// Confirm dispenses every module currently assigned to the session's slot,
// in index order. Each module is decremented whether or not its actuator
// reported success; a manual hold is cleared only after a completed sequence. The model is persisted when at least one module was
// handled.
func (m *Machine) Confirm(ctx context.Context, now time.Time) (Result, error) {
	if m.state != StateAwaitingConfirmation {
		return Result{}, ErrNoSession
	}

	res := Result{Session: m.session, Resolved: now}
	for _, i := range m.model.AssignedModules(m.session.Slot) {
		mr := ModuleResult{Module: i}
		dispenseErr := m.act.Dispense(ctx, i)
		if dispenseErr != nil {
			m.logger.Error().Err(dispenseErr).Int("module", i).Msg("Actuator failed during dispense")
			mr.Error = dispenseErr.Error()
		}
		remaining, err := m.model.Decrement(i)
		if err != nil {
			return Result{}, err
		}
		mr.Remaining = remaining
		// A failed sequence may have left the gate open, so a manual hold stays recorded.
		if m.manual != nil && dispenseErr == nil {
			m.manual.Clear(i)
		}
		res.Modules = append(res.Modules, mr)
		res.Dispensed++
	}

	if res.Dispensed > 0 {
		res.Outcome = OutcomeDispensed
		res.Persisted = m.persist(ctx)
	} else {
		res.Outcome = OutcomeNoModules
	}

	m.logger.Info().
		Str("session", res.Session.ID).
		Int("slot", res.Session.Slot).
		Int("dispensed", res.Dispensed).
		Stringer("outcome", res.Outcome).
		Msg("Confirmation resolved")

	m.reset()
	return res, nil
}

// Cancel abandons the open session without actuation or persistence.
func (m *Machine) Cancel(now time.Time) (Result, error) {
	if m.state != StateAwaitingConfirmation {
		return Result{}, ErrNoSession
	}
	res := Result{Session: m.session, Outcome: OutcomeCancelled, Resolved: now}
	m.logger.Info().Str("session", res.Session.ID).Int("slot", res.Session.Slot).Msg("Confirmation cancelled")
	m.reset()
	return res, nil
}

// CheckTimeout abandons the session once it has been open longer than the
// timeout. It reports whether that happened.
func (m *Machine) CheckTimeout(now time.Time) (Result, bool) {
	if m.state != StateAwaitingConfirmation || now.Sub(m.session.Started) <= m.timeout {
		return Result{}, false
	}
	res := Result{Session: m.session, Outcome: OutcomeTimedOut, Resolved: now}
	m.logger.Warn().
		Str("session", res.Session.ID).
		Int("slot", res.Session.Slot).
		Dur("timeout", m.timeout).
		Msg("Confirmation timed out")
	m.reset()
	return res, true
}

// Remaining is the countdown shown while waiting; zero when idle.
func (m *Machine) Remaining(now time.Time) time.Duration {
	if m.state != StateAwaitingConfirmation {
		return 0
	}
	left := m.timeout - now.Sub(m.session.Started)
	if left < 0 {
		return 0
	}
	return left
}

func (m *Machine) persist(ctx context.Context) bool {
	if m.persister == nil {
		return false
	}
	return m.persister.Persist(ctx) == nil
}

func (m *Machine) reset() {
	m.state = StateIdle
	m.session = Session{}
}
