// Package events provides a non-blocking publish/subscribe bus shared by the
// session, upload, listing and selection components.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/filedock/filedock/internal/constants"
)

// Subscription receives the events it was created for on C, in publish
// order. Events that arrive while C is full are dropped and counted.
type Subscription struct {
	C <-chan Event

	ch      chan Event
	types   map[EventType]bool // nil receives everything
	dropped atomic.Int64
	bus     *EventBus
}

// Dropped returns how many events this subscriber missed.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.bus.remove(s)
}

func (s *Subscription) wants(t EventType) bool {
	return s.types == nil || s.types[t]
}

// EventBus fans published events out to subscriptions. Publishing never
// blocks, so a slow subscriber loses events rather than stalling uploads.
type EventBus struct {
	mu         sync.RWMutex
	subs       []*Subscription
	bufferSize int
	closed     bool
}

// NewEventBus creates a bus whose subscriptions buffer bufferSize events.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{bufferSize: bufferSize}
}

// Subscribe returns a subscription to the given event types, or to every
// event when none are given. After Close the subscription's channel is
// already closed.
func (eb *EventBus) Subscribe(types ...EventType) *Subscription {
	ch := make(chan Event, eb.bufferSize)
	sub := &Subscription{C: ch, ch: ch, bus: eb}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		close(ch)
		return sub
	}
	eb.subs = append(eb.subs, sub)
	return sub
}

// Publish delivers event to every interested subscription without blocking.
// A nil bus is a valid no-op publisher.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return
	}

	for _, sub := range eb.subs {
		if !sub.wants(event.Type()) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Close closes every subscription. Later publishes are ignored.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	for _, sub := range eb.subs {
		close(sub.ch)
	}
	eb.subs = nil
}

func (eb *EventBus) remove(target *Subscription) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subs {
		if sub == target {
			eb.subs = append(eb.subs[:i], eb.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}
