// Package actuator drives the per-module servo channels that release pills.
package actuator

import (
	"context"
	"errors"
	"fmt"
)

// Position is where a module's gate is held.
type Position int

const (
	PositionHome Position = iota
	PositionDispense
)

func (p Position) String() string {
	switch p {
	case PositionHome:
		return "home"
	case PositionDispense:
		return "dispense"
	default:
		return fmt.Sprintf("position(%d)", int(p))
	}
}

// ErrNoDevice is returned by a driver whose hardware does not answer.
var ErrNoDevice = errors.New("actuator device not found")

// Actuator is the contract the dispense workflow drives.
type Actuator interface {
	// Dispense runs the full move, hold, return and release sequence and
	// blocks until it completes.
	Dispense(ctx context.Context, module int) error
	// SetHome returns the module to its resting position and releases it.
	SetHome(ctx context.Context, module int) error
	// DriveTo moves the module to p and holds it there.
	DriveTo(ctx context.Context, module int, p Position) error
	// Available reports whether hardware was found at start-up.
	Available() bool
}

// Driver is the low-level channel interface of a servo controller.
type Driver interface {
	Probe(ctx context.Context) error
	SetAngle(channel, degrees int) error
	Release(channel int) error
}
