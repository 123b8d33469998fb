package actuator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Command is one call recorded by SimDriver.
type Command struct {
	Op      string
	Channel int
	Angle   int
}

// SimDriver stands in for a servo controller. It logs and records every
// command and answers probes after FailProbes failures.
type SimDriver struct {
	FailProbes int

	logger   zerolog.Logger
	mu       sync.Mutex
	probes   int
	commands []Command
}

// NewSimDriver creates a simulated controller.
func NewSimDriver(logger zerolog.Logger) *SimDriver {
	return &SimDriver{logger: logger.With().Str("component", "sim-servo").Logger()}
}

func (d *SimDriver) Probe(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.probes++
	if d.probes <= d.FailProbes {
		return ErrNoDevice
	}
	return nil
}

func (d *SimDriver) SetAngle(channel, degrees int) error {
	d.record(Command{Op: "angle", Channel: channel, Angle: degrees})
	d.logger.Debug().Int("channel", channel).Int("degrees", degrees).Msg("Set angle")
	return nil
}

func (d *SimDriver) Release(channel int) error {
	d.record(Command{Op: "release", Channel: channel})
	d.logger.Debug().Int("channel", channel).Msg("Release")
	return nil
}

// Commands returns a copy of everything sent so far.
func (d *SimDriver) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.commands...)
}

// Probes returns how many times Probe was called.
func (d *SimDriver) Probes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.probes
}

func (d *SimDriver) record(c Command) {
	d.mu.Lock()
	d.commands = append(d.commands, c)
	d.mu.Unlock()
}

// None is a driver for builds without a controller; probing always fails.
type None struct{}

func (None) Probe(context.Context) error { return ErrNoDevice }
func (None) SetAngle(int, int) error { return ErrNoDevice }
func (None) Release(int) error { return ErrNoDevice }
