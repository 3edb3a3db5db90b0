// Package reminders runs the periodic loop that delivers booking
// reminders ahead of the appointment start.
package reminders

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"zapisly/internal/metrics"
	"zapisly/internal/models"
	"zapisly/internal/notify"
	"zapisly/internal/policy"
)

// Store provides access to bookings that may need a reminder.
type Store interface {
	DueForReminder(ctx context.Context, from, to time.Time) ([]models.Booking, error)
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
}

// Config holds configuration for the reminder service.
type Config struct {
	// CheckInterval is how often to check for upcoming bookings.
	// Default: 15 minutes.
	CheckInterval time.Duration

	// LeadTime is how far before the booking start a reminder is sent.
	// Default: 24 hours.
	LeadTime time.Duration

	// SendRate caps outgoing messages per second. Default: 20.
	SendRate float64

	// SendBurst is the burst allowance for SendRate. Default: 30.
	SendBurst int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 15 * time.Minute,
		LeadTime:      24 * time.Hour,
		SendRate:      20,
		SendBurst:     30,
	}
}

// Service periodically finds confirmed bookings whose reminder window
// has opened and delivers one reminder per booking. The sent mark is
// written after a successful delivery; if the mark itself fails the
// booking may receive a duplicate reminder on the next tick.
type Service struct {
	config   Config
	store    Store
	notifier notify.Notifier
	clock    policy.Clock
	limiter  *rate.Limiter
	logger   zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewService creates a reminder service.
func NewService(config Config, store Store, notifier notify.Notifier, clock policy.Clock, logger zerolog.Logger) *Service {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 15 * time.Minute
	}
	if config.LeadTime <= 0 {
		config.LeadTime = 24 * time.Hour
	}
	if config.SendRate <= 0 {
		config.SendRate = 20
	}
	if config.SendBurst <= 0 {
		config.SendBurst = 30
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		config:   config,
		store:    store,
		notifier: notifier,
		clock:    clock,
		limiter:  rate.NewLimiter(rate.Limit(config.SendRate), config.SendBurst),
		logger:   logger.With().Str("component", "reminders").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reminder check loop.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().
		Dur("check_interval", s.config.CheckInterval).
		Dur("lead_time", s.config.LeadTime).
		Msg("reminder service started")
}

// Stop gracefully stops the reminder service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("reminder service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	// Run immediately on start
	s.CheckNow()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.CheckNow()
		}
	}
}

// CheckNow runs a single reminder pass.
func (s *Service) CheckNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := s.clock()
	due, err := s.store.DueForReminder(ctx, now, now.Add(s.config.LeadTime))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load bookings due for reminder")
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.Debug().Int("count", len(due)).Msg("bookings due for reminder")

	for i := range due {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("reminder pass interrupted")
			return
		}
		s.sendOne(ctx, &due[i])
	}
}

func (s *Service) sendOne(ctx context.Context, b *models.Booking) {
	started := time.Now()
	if err := s.notifier.SendReminder(ctx, b); err != nil {
		metrics.IncReminderFailed()
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to send reminder")
		return
	}
	metrics.ObserveReminderSend(time.Since(started).Seconds())

	// Marking the reminder starts the cancellation grace window, so
	// the mark must reflect when the client actually received it.
	if err := s.store.MarkReminderSent(ctx, b.ID, s.clock()); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).
			Msg("reminder sent but could not be recorded")
		return
	}

	metrics.IncReminderSent()
	s.logger.Info().Int64("booking_id", b.ID).Time("start", b.StartTime).Msg("reminder sent")
}
