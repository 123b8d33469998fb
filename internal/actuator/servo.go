package actuator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Channels is the number of outputs on the servo controller.
const Channels = 16

// Options tunes the servo sequence.
type Options struct {
	HomeAngle     int
	DispenseAngle int
	Hold          time.Duration
	Settle        time.Duration
	ProbeAttempts int
	ProbeInterval time.Duration
}

// DefaultOptions matches the stock cartridge gates.
func DefaultOptions() Options {
	return Options{
		HomeAngle:     27,
		DispenseAngle: 0,
		Hold:          800 * time.Millisecond,
		Settle:        500 * time.Millisecond,
		ProbeAttempts: 3,
		ProbeInterval: 200 * time.Millisecond,
	}
}

// Servo implements Actuator on a Driver. If the driver never answers the
// start-up probe every call becomes a logged no-op.
type Servo struct {
	driver    Driver
	opts      Options
	logger    zerolog.Logger
	available bool
	channels  [Channels]sync.Mutex
	sleep     func(time.Duration)
}

// NewServo probes driver and returns a Servo ready for use.
func NewServo(ctx context.Context, driver Driver, opts Options, logger zerolog.Logger) *Servo {
	s := &Servo{
		driver: driver,
		opts:   opts,
		logger: logger.With().Str("component", "actuator").Logger(),
		sleep:  time.Sleep,
	}
	s.available = s.probe(ctx)
	return s
}

func (s *Servo) probe(ctx context.Context) bool {
	attempts := s.opts.ProbeAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		err := s.driver.Probe(ctx)
		s.logger.Debug().
			Int("attempt", attempt).
			Err(err).
			Msg("Probing servo controller")
		if err == nil {
			s.logger.Info().Msg("Servo controller ready")
			return true
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			s.logger.Warn().Err(ctx.Err()).Msg("Servo probe interrupted")
			return false
		case <-time.After(s.opts.ProbeInterval):
		}
	}

	s.logger.Warn().
		Int("attempts", attempts).
		Msg("Servo controller not found, actuation disabled")
	return false
}

// Available reports whether the controller answered the probe.
func (s *Servo) Available() bool {
	return s.available
}

// Dispense moves to the dispense angle, holds, returns home, settles and
// releases the channel.
func (s *Servo) Dispense(_ context.Context, module int) error {
	ch, ok, err := s.channel(module)
	if !ok || err != nil {
		return err
	}

	s.channels[ch].Lock()
	defer s.channels[ch].Unlock()

	s.logger.Info().Int("module", module).Int("channel", ch).Msg("Dispensing")

	if err := s.driver.SetAngle(ch, s.opts.DispenseAngle); err != nil {
		return fmt.Errorf("module %d: drive to dispense: %w", module, err)
	}
	s.sleep(s.opts.Hold)

	if err := s.driver.SetAngle(ch, s.opts.HomeAngle); err != nil {
		return fmt.Errorf("module %d: return home: %w", module, err)
	}
	s.sleep(s.opts.Settle)

	if err := s.driver.Release(ch); err != nil {
		return fmt.Errorf("module %d: release: %w", module, err)
	}
	return nil
}

// SetHome returns the channel to home and releases it after settling.
func (s *Servo) SetHome(_ context.Context, module int) error {
	ch, ok, err := s.channel(module)
	if !ok || err != nil {
		return err
	}

	s.channels[ch].Lock()
	defer s.channels[ch].Unlock()

	if err := s.driver.SetAngle(ch, s.opts.HomeAngle); err != nil {
		return fmt.Errorf("module %d: home: %w", module, err)
	}
	s.sleep(s.opts.Settle)

	if err := s.driver.Release(ch); err != nil {
		return fmt.Errorf("module %d: release: %w", module, err)
	}
	return nil
}

// DriveTo moves the channel to p and leaves it powered.
func (s *Servo) DriveTo(_ context.Context, module int, p Position) error {
	ch, ok, err := s.channel(module)
	if !ok || err != nil {
		return err
	}

	angle := s.opts.HomeAngle
	if p == PositionDispense {
		angle = s.opts.DispenseAngle
	}

	s.channels[ch].Lock()
	defer s.channels[ch].Unlock()

	s.logger.Info().
		Int("module", module).
		Int("channel", ch).
		Stringer("position", p).
		Msg("Driving servo")

	if err := s.driver.SetAngle(ch, angle); err != nil {
		return fmt.Errorf("module %d: drive to %s: %w", module, p, err)
	}
	return nil
}

// channel maps a module to its output. ok is false when the controller is
// missing, in which case the call is skipped.
func (s *Servo) channel(module int) (ch int, ok bool, err error) {
	if module < 0 || module >= Channels {
		return 0, false, fmt.Errorf("module %d has no servo channel", module)
	}
	if !s.available {
		s.logger.Warn().Int("module", module).Msg("Servo controller not available, skipping")
		return 0, false, nil
	}
	return module, true, nil
}
