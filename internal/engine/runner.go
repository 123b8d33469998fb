package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTickInterval is how often the runner evaluates the engine.
const DefaultTickInterval = time.Second

// ErrStopped is returned by Do once the runner has exited.
var ErrStopped = errors.New("engine runner stopped")

type command struct {
	fn     func(*Engine) error
	result chan error
}

// Runner owns an Engine in one goroutine. Ticks and commands are
// serialized, so the engine never sees concurrent calls.
type Runner struct {
	engine   *Engine
	interval time.Duration
	commands chan command
	done     chan struct{}
	logger   zerolog.Logger
}

// NewRunner wraps e.
func NewRunner(e *Engine, interval time.Duration, logger zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Runner{
		engine:   e,
		interval: interval,
		commands: make(chan command),
		done:     make(chan struct{}),
		logger:   logger.With().Str("component", "runner").Logger(),
	}
}

// Run processes ticks and commands until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("Engine loop started")
	r.engine.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Engine loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.engine.Tick(ctx)
		case cmd := <-r.commands:
			cmd.result <- cmd.fn(r.engine)
		}
	}
}

// Do runs fn on the engine goroutine and returns its error. Once accepted a
// command always runs to completion, even if ctx ends while waiting.
func (r *Runner) Do(ctx context.Context, fn func(*Engine) error) error {
	cmd := command{fn: fn, result: make(chan error, 1)}

	select {
	case r.commands <- cmd:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
