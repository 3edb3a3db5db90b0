package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"zapisly/internal/events"
)

// Dispatcher bridges the event bus to a Notifier. Each event is
// delivered on its own goroutine so slow transports never block the
// booking path.
type Dispatcher struct {
	notifier Notifier
	logger   zerolog.Logger
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher and subscribes it to the bus.
func NewDispatcher(bus *events.Bus, notifier Notifier, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		logger:   logger.With().Str("component", "notify_dispatcher").Logger(),
		timeout:  30 * time.Second,
	}
	bus.Subscribe(events.BookingConfirmed, d.handle)
	bus.Subscribe(events.BookingRescheduled, d.handle)
	bus.Subscribe(events.BookingCancelled, d.handle)
	return d
}

func (d *Dispatcher) handle(ev events.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		b := ev.Booking
		var err error
		switch ev.Type {
		case events.BookingConfirmed, events.BookingRescheduled:
			err = d.notifier.NotifyConfirmed(ctx, &b)
		case events.BookingCancelled:
			err = d.notifier.NotifyCancelled(ctx, &b)
		default:
			return
		}
		if err != nil {
			d.logger.Error().Err(err).
				Str("event", string(ev.Type)).
				Int64("booking_id", b.ID).
				Msg("notification delivery failed")
		}
	}()
}
