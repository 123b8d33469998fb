package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/pillbox/internal/dispense"
	"github.com/rs/zerolog"
)

type memPublisher struct {
	mu   sync.Mutex
	got  []Envelope
	fail bool
	seen chan struct{}
}

func (p *memPublisher) Name() string { return "mem" }

func (p *memPublisher) Publish(_ context.Context, env Envelope) error {
	p.mu.Lock()
	p.got = append(p.got, env)
	p.mu.Unlock()
	p.seen <- struct{}{}
	if p.fail {
		return errors.New("broker down")
	}
	return nil
}

func (p *memPublisher) Close() error { return nil }

func TestHooksPublishToBus(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventAll)
	h := NewHooks(bus, "test", zerolog.Nop())

	h.OnTrigger(dispense.Session{ID: "abc", Slot: 2, Modules: []int{1}})
	h.OnTriggerSkipped(3, dispense.ErrSessionActive)
	h.OnManualRequest(4, true)
	h.OnConfirmResolved(dispense.Result{Session: dispense.Session{ID: "abc", Slot: 2}, Outcome: dispense.OutcomeTimedOut})

	want := []EventType{EventTrigger, EventSkipped, EventManual, EventResolved}
	for _, w := range want {
		p := <-sub
		if p["type"] != string(w) {
			t.Errorf("got event %v, want %s", p["type"], w)
		}
	}
}

func TestHooksForwardToPublishers(t *testing.T) {
	ok := &memPublisher{seen: make(chan struct{}, 4)}
	broken := &memPublisher{fail: true, seen: make(chan struct{}, 4)}
	h := NewHooks(NewBus(), "node-1", zerolog.Nop(), broken, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	h.OnManualRequest(0, false)

	for _, p := range []*memPublisher{broken, ok} {
		select {
		case <-p.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("publisher never called")
		}
	}
	cancel()
	<-done

	ok.mu.Lock()
	defer ok.mu.Unlock()
	if len(ok.got) != 1 || ok.got[0].Type != EventManual || ok.got[0].Node != "node-1" {
		t.Errorf("forwarded = %+v", ok.got)
	}
}

func TestSubject(t *testing.T) {
	if got := Subject("pillbox.events", EventResolved); got != "pillbox.events.dispense.resolved" {
		t.Errorf("Subject = %q", got)
	}
}
