// Package notify delivers booking notifications. Delivery is
// best-effort: the booking mutation has already committed by the time
// anything here runs, and failures are logged, never propagated back.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"zapisly/internal/models"
)

// Notifier sends booking notifications over some transport.
type Notifier interface {
	NotifyConfirmed(ctx context.Context, b *models.Booking) error
	NotifyCancelled(ctx context.Context, b *models.Booking) error
	SendReminder(ctx context.Context, b *models.Booking) error
}

// LogNotifier writes notifications to the log only. Used when no
// transport is configured and in tests.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) NotifyConfirmed(ctx context.Context, b *models.Booking) error {
	n.logger.Info().Int64("booking_id", b.ID).Time("start", b.StartTime).Msg("booking confirmed")
	return nil
}

func (n *LogNotifier) NotifyCancelled(ctx context.Context, b *models.Booking) error {
	n.logger.Info().Int64("booking_id", b.ID).Msg("booking cancelled")
	return nil
}

func (n *LogNotifier) SendReminder(ctx context.Context, b *models.Booking) error {
	n.logger.Info().Int64("booking_id", b.ID).Time("start", b.StartTime).Msg("booking reminder")
	return nil
}
