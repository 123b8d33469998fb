// Package engine owns the schedule model, the trigger loop and the
// confirmation workflow, and drives them from a single goroutine.
package engine

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/goodtune/pillbox/internal/actuator"
	"github.com/goodtune/pillbox/internal/clock"
	"github.com/goodtune/pillbox/internal/codec"
	"github.com/goodtune/pillbox/internal/dispense"
	"github.com/goodtune/pillbox/internal/metrics"
	"github.com/goodtune/pillbox/internal/schedule"
	"github.com/goodtune/pillbox/internal/storage"
	"github.com/goodtune/pillbox/internal/trigger"
	"github.com/rs/zerolog"
)

// Options tunes the engine's timings.
type Options struct {
	ConfirmTimeout time.Duration
	StartupGrace   time.Duration
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		ConfirmTimeout: dispense.DefaultTimeout,
		StartupGrace:   trigger.DefaultGrace,
	}
}

// Engine is the single owner of all scheduling state. It is not safe for
// concurrent use; wrap it in a Runner.
type Engine struct {
	clock   clock.Source
	store   storage.Store
	act     actuator.Actuator
	hooks   Hooks
	logger  zerolog.Logger
	model   *schedule.Model
	loop    *trigger.Loop
	machine *dispense.Machine
	manual  *dispense.Manual
}

// New loads the model from store and assembles the engine. A store that
// cannot be read leaves the engine on built-in defaults.
func New(ctx context.Context, src clock.Source, store storage.Store, act actuator.Actuator, hooks Hooks, opts Options, logger zerolog.Logger) *Engine {
	if hooks == nil {
		hooks = NopHooks{}
	}

	e := &Engine{
		clock:  src,
		store:  store,
		act:    act,
		hooks:  hooks,
		logger: logger.With().Str("component", "engine").Logger(),
	}

	model, err := codec.Load(ctx, store)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("load").Inc()
		e.logger.Warn().Err(err).Msg("Failed to load schedule, using defaults where needed")
	}
	e.model = model

	e.manual = dispense.NewManual(act, logger)
	e.machine = dispense.NewMachine(e.model, act, e.manual, e, opts.ConfirmTimeout, logger)
	e.loop = trigger.NewLoop(src.Now(), opts.StartupGrace)

	metrics.ReliableClock.Set(metrics.Bool(src.HasReliableClock()))
	metrics.ActuatorAvailable.Set(metrics.Bool(act.Available()))
	e.observe()

	e.logger.Info().
		Bool("master_enabled", e.model.MasterEnabled()).
		Bool("reliable_clock", src.HasReliableClock()).
		Bool("actuator", act.Available()).
		Msg("Engine ready")

	return e
}

// Tick runs one iteration: expire a stale session, then evaluate the
// trigger loop and open sessions for due slots.
func (e *Engine) Tick(ctx context.Context) {
	now := e.clock.Now()

	if res, expired := e.machine.CheckTimeout(now); expired {
		e.resolved(res)
	}

	due := e.loop.Evaluate(now, e.model.MasterEnabled(), e.model.Slots())
	if e.loop.ResetAtMidnight() {
		e.logger.Info().Msg("Midnight reset, all slots eligible again")
	}
	for _, slot := range due {
		e.trigger(slot, now)
	}
}

func (e *Engine) trigger(slot int, now time.Time) {
	metrics.TriggersTotal.WithLabelValues(strconv.Itoa(slot)).Inc()

	session, err := e.machine.Open(slot, now)
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, dispense.ErrNoModulesAssigned):
			reason = "no_modules"
			e.logger.Debug().Int("slot", slot).Msg("Slot due with nothing assigned")
		case errors.Is(err, dispense.ErrSessionActive):
			reason = "session_active"
			e.logger.Warn().Err(err).Int("slot", slot).Msg("Dropping trigger while a session is open")
		default:
			e.logger.Error().Err(err).Int("slot", slot).Msg("Failed to open session")
		}
		metrics.TriggersSkipped.WithLabelValues(reason).Inc()
		e.hooks.OnTriggerSkipped(slot, err)
		return
	}

	metrics.SessionOpen.Set(1)
	e.hooks.OnTrigger(session)
}

// Confirm dispenses the open session.
func (e *Engine) Confirm(ctx context.Context) (dispense.Result, error) {
	res, err := e.machine.Confirm(ctx, e.clock.Now())
	if err != nil {
		return res, err
	}
	for _, m := range res.Modules {
		result := "ok"
		if m.Error != "" {
			result = "error"
		}
		metrics.DispensesTotal.WithLabelValues(strconv.Itoa(m.Module), result).Inc()
	}
	e.resolved(res)
	return res, nil
}

// Cancel abandons the open session.
func (e *Engine) Cancel() (dispense.Result, error) {
	res, err := e.machine.Cancel(e.clock.Now())
	if err != nil {
		return res, err
	}
	e.resolved(res)
	return res, nil
}

func (e *Engine) resolved(res dispense.Result) {
	metrics.SessionsResolved.WithLabelValues(res.Outcome.String()).Inc()
	e.observe()
	e.hooks.OnConfirmResolved(res)
}

// ToggleManual flips the held-open state of module.
func (e *Engine) ToggleManual(ctx context.Context, module int) (bool, error) {
	active, err := e.manual.Toggle(ctx, module)
	if err != nil {
		return active, err
	}
	metrics.ManualToggles.WithLabelValues(strconv.Itoa(module)).Inc()
	e.hooks.OnManualRequest(module, active)
	return active, nil
}

// HomeAll returns every module to home.
func (e *Engine) HomeAll(ctx context.Context) error {
	return e.manual.HomeAll(ctx)
}

// Persist saves the model. Failures are logged and counted; the in-memory
// model stays authoritative.
func (e *Engine) Persist(ctx context.Context) error {
	if err := codec.Save(ctx, e.store, e.model); err != nil {
		metrics.StoreErrors.WithLabelValues("save").Inc()
		e.logger.Error().Err(err).Msg("Failed to persist schedule")
		return err
	}
	e.observe()
	return nil
}

// Reload replaces the in-memory model with the stored one. Malformed
// entries fall back to their defaults and are reported in the returned
// error. If the store cannot be read the current model is kept.
func (e *Engine) Reload(ctx context.Context) error {
	model, err := codec.Load(ctx, e.store)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("load").Inc()
		if !errors.Is(err, storage.ErrMalformed) {
			return err
		}
		e.logger.Warn().Err(err).Msg("Stored schedule has malformed entries, using defaults for them")
	}
	*e.model = *model
	e.observe()
	return err
}

// commit applies an edit and persists it when the edit succeeded.
func (e *Engine) commit(ctx context.Context, edit func(*schedule.Model) error) error {
	if err := edit(e.model); err != nil {
		return err
	}
	_ = e.Persist(ctx)
	return nil
}

// SetSlot changes one slot's time and enabled flag.
func (e *Engine) SetSlot(ctx context.Context, slot, hour, minute int, enabled bool) error {
	return e.commit(ctx, func(m *schedule.Model) error {
		return m.SetSlot(slot, hour, minute, enabled)
	})
}

// ModuleUpdate carries an edit of one module; nil fields are unchanged.
type ModuleUpdate struct {
	Name     *string
	Quantity *int
	SlotMask *uint8
}

// UpdateModule applies u to module as one committed edit.
func (e *Engine) UpdateModule(ctx context.Context, module int, u ModuleUpdate) error {
	return e.commit(ctx, func(m *schedule.Model) error {
		if _, err := m.Module(module); err != nil {
			return err
		}
		if u.Name != nil {
			if err := m.SetName(module, *u.Name); err != nil {
				return err
			}
		}
		if u.Quantity != nil {
			if err := m.SetQuantity(module, *u.Quantity); err != nil {
				return err
			}
		}
		if u.SlotMask != nil {
			if err := m.SetSlotMask(module, *u.SlotMask); err != nil {
				return err
			}
		}
		return nil
	})
}

// ToggleSlot flips module's assignment to slot.
func (e *Engine) ToggleSlot(ctx context.Context, module, slot int) error {
	return e.commit(ctx, func(m *schedule.Model) error {
		return m.ToggleSlot(module, slot)
	})
}

// SetMasterEnabled switches the whole schedule on or off.
func (e *Engine) SetMasterEnabled(ctx context.Context, enabled bool) error {
	return e.commit(ctx, func(m *schedule.Model) error {
		m.SetMasterEnabled(enabled)
		return nil
	})
}

// Slots returns a copy of every slot.
func (e *Engine) Slots() [schedule.SlotCount]schedule.TimeSlot {
	return e.model.Slots()
}

// Modules returns a copy of every module.
func (e *Engine) Modules() [schedule.ModuleCount]schedule.MedModule {
	return e.model.Modules()
}

// Model returns an independent copy of the model.
func (e *Engine) Model() *schedule.Model {
	return e.model.Clone()
}

// State returns the confirmation state.
func (e *Engine) State() dispense.State {
	return e.machine.State()
}

func (e *Engine) observe() {
	metrics.MasterEnabled.Set(metrics.Bool(e.model.MasterEnabled()))
	metrics.SessionOpen.Set(metrics.Bool(e.machine.State() == dispense.StateAwaitingConfirmation))
	for i, m := range e.model.Modules() {
		metrics.ModuleQuantity.WithLabelValues(strconv.Itoa(i)).Set(float64(m.Quantity))
	}
}
