package events

import (
	"context"
	"time"

	"github.com/goodtune/pillbox/internal/dispense"
	"github.com/goodtune/pillbox/internal/metrics"
	"github.com/goodtune/pillbox/internal/schedule"
	"github.com/rs/zerolog"
)

// Envelope is the wire form sent to external sinks.
type Envelope struct {
	Type    EventType `json:"type"`
	Time    time.Time `json:"time"`
	Node    string    `json:"node,omitempty"`
	Payload Payload   `json:"payload"`
}

// Publisher forwards envelopes to an external broker.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Hooks turns engine notifications into events. Bus delivery happens
// inline; external publishers are fed from a queue drained by Run so the
// engine never waits on the network.
type Hooks struct {
	bus        *Bus
	publishers []Publisher
	node       string
	now        func() time.Time
	queue      chan Envelope
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewHooks creates an adapter publishing to bus and the given publishers.
func NewHooks(bus *Bus, node string, logger zerolog.Logger, publishers ...Publisher) *Hooks {
	return &Hooks{
		bus:        bus,
		publishers: publishers,
		node:       node,
		now:        time.Now,
		queue:      make(chan Envelope, 64),
		timeout:    5 * time.Second,
		logger:     logger.With().Str("component", "events").Logger(),
	}
}

func (h *Hooks) OnTrigger(s dispense.Session) {
	h.emit(EventTrigger, Payload{
		"session_id": s.ID,
		"slot":       s.Slot,
		"label":      schedule.Label(s.Slot),
		"modules":    s.Modules,
		"started":    s.Started,
	})
}

func (h *Hooks) OnTriggerSkipped(slot int, reason error) {
	p := Payload{
		"slot":  slot,
		"label": schedule.Label(slot),
	}
	if reason != nil {
		p["reason"] = reason.Error()
	}
	h.emit(EventSkipped, p)
}

func (h *Hooks) OnManualRequest(module int, active bool) {
	h.emit(EventManual, Payload{
		"module": module,
		"active": active,
	})
}

func (h *Hooks) OnConfirmResolved(r dispense.Result) {
	h.emit(EventResolved, Payload{
		"session_id": r.Session.ID,
		"slot":       r.Session.Slot,
		"outcome":    r.Outcome.String(),
		"dispensed":  r.Dispensed,
		"modules":    r.Modules,
		"persisted":  r.Persisted,
		"resolved":   r.Resolved,
	})
}

func (h *Hooks) emit(t EventType, p Payload) {
	p["type"] = string(t)
	h.bus.Publish(t, p)

	if len(h.publishers) == 0 {
		return
	}
	env := Envelope{Type: t, Time: h.now(), Node: h.node, Payload: p}
	select {
	case h.queue <- env:
	default:
		h.logger.Warn().Str("event_type", string(t)).Msg("Event queue full, dropping external delivery")
	}
}

// Run forwards queued envelopes to the publishers until ctx is cancelled,
// then closes them.
func (h *Hooks) Run(ctx context.Context) {
	defer func() {
		for _, p := range h.publishers {
			if err := p.Close(); err != nil {
				h.logger.Warn().Err(err).Str("sink", p.Name()).Msg("Failed to close publisher")
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-h.queue:
			h.forward(ctx, env)
		}
	}
}

func (h *Hooks) forward(ctx context.Context, env Envelope) {
	for _, p := range h.publishers {
		pctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := p.Publish(pctx, env)
		cancel()

		if err != nil {
			metrics.EventsPublished.WithLabelValues(p.Name(), "error").Inc()
			h.logger.Error().Err(err).
				Str("sink", p.Name()).
				Str("event_type", string(env.Type)).
				Msg("Failed to publish event")
			continue
		}
		metrics.EventsPublished.WithLabelValues(p.Name(), "ok").Inc()
	}
}
