package dispense

import (
	"context"
	"errors"
	"fmt"

	"github.com/goodtune/pillbox/internal/actuator"
	"github.com/goodtune/pillbox/internal/schedule"
	"github.com/rs/zerolog"
)

// Manual holds individual modules open for maintenance. It never touches
// quantities and bypasses confirmation.
type Manual struct {
	act    actuator.Actuator
	active [schedule.ModuleCount]bool
	logger zerolog.Logger
}

// NewManual creates a toggle with every module at home.
func NewManual(act actuator.Actuator, logger zerolog.Logger) *Manual {
	return &Manual{
		act:    act,
		logger: logger.With().Str("component", "manual").Logger(),
	}
}

// Toggle flips module between held-open and home and returns the new state.
// Without a controller the state does not change.
func (m *Manual) Toggle(ctx context.Context, module int) (bool, error) {
	if module < 0 || module >= schedule.ModuleCount {
		return false, fmt.Errorf("%w: %d", schedule.ErrModuleIndex, module)
	}
	if !m.act.Available() {
		m.logger.Warn().Int("module", module).Msg("Manual toggle ignored, servo controller not available")
		return m.active[module], nil
	}

	next := !m.active[module]
	pos := actuator.PositionHome
	if next {
		pos = actuator.PositionDispense
	}
	if err := m.act.DriveTo(ctx, module, pos); err != nil {
		return m.active[module], err
	}
	m.active[module] = next

	m.logger.Info().Int("module", module).Stringer("position", pos).Msg("Manual toggle")
	return next, nil
}

// Active reports whether module is held open.
func (m *Manual) Active(module int) bool {
	if module < 0 || module >= schedule.ModuleCount {
		return false
	}
	return m.active[module]
}

// ActiveAll returns the held-open state of every module.
func (m *Manual) ActiveAll() [schedule.ModuleCount]bool {
	return m.active
}

// Clear forgets the held state after a scheduled sequence moved the module.
func (m *Manual) Clear(module int) {
	if module >= 0 && module < schedule.ModuleCount {
		m.active[module] = false
	}
}

// HomeAll returns every module to home and clears all held state.
func (m *Manual) HomeAll(ctx context.Context) error {
	var errs []error
	for i := 0; i < schedule.ModuleCount; i++ {
		if err := m.act.SetHome(ctx, i); err != nil {
			errs = append(errs, err)
		}
		m.active[i] = false
	}
	return errors.Join(errs...)
}
