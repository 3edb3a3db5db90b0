// Package events provides in-process pub/sub for booking lifecycle
// events. Dispatch side effects (notifications) hang off the bus so the
// request path never blocks on them.
package events

import (
	"sync"
	"time"

	"zapisly/internal/models"
)

// Type names a lifecycle event.
type Type string

const (
	BookingConfirmed   Type = "booking.confirmed"
	BookingCancelled   Type = "booking.cancelled"
	BookingRescheduled Type = "booking.rescheduled"
)

// Event carries the booking snapshot at publish time.
type Event struct {
	Type    Type
	Booking models.Booking
	At      time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub.
type Bus struct {
	subscribers map[Type][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[Type][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(t Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], handler)
}

// Publish notifies subscribers of the event type. Handlers run
// synchronously; a handler that must not block the publisher spawns its
// own goroutine.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.At.IsZero() {
		event.At = time.Now()
	}

	for _, handler := range handlers {
		handler(event)
	}
}
