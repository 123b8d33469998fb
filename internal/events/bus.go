// Package events fans engine notifications out to in-process subscribers
// and optional external brokers.
package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventTrigger  EventType = "dispense.trigger"
	EventSkipped  EventType = "dispense.skipped"
	EventManual   EventType = "dispense.manual"
	EventResolved EventType = "dispense.resolved"

	// EventAll subscribes to every event type.
	EventAll EventType = "*"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub. Slow subscribers miss events
// rather than block the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type, or for everything with
// EventAll.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	// Sends never block, so holding the read lock keeps Unsubscribe from
	// closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		deliver(sub, payload)
	}
	if eventType != EventAll {
		for _, sub := range b.subs[EventAll] {
			deliver(sub, payload)
		}
	}
}

func deliver(sub Subscriber, payload Payload) {
	select {
	case sub <- payload:
	default:
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}
