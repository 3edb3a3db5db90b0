// Package policy enforces the temporal rules of the booking lifecycle:
// minimum lead time on creation and the cancellation cutoff with its
// reminder-triggered grace window.
package policy

import (
	"fmt"
	"time"
)

// Clock supplies the current time. Injected so that decisions are
// deterministic under test.
type Clock func() time.Time

// Rule names the specific policy rule behind a violation.
type Rule string

const (
	RuleLeadTime           Rule = "lead_time"
	RuleCancellationCutoff Rule = "cancellation_cutoff"
	RuleReminderGrace      Rule = "reminder_grace"
)

// Violation is a policy rejection carrying the rule that fired and a
// human-readable reason for the caller to surface.
type Violation struct {
	Rule   Rule
	Reason string
}

func (v *Violation) Error() string {
	return v.Reason
}

// Config holds the policy durations. All of them are deployment
// configuration, not hardcoded business logic.
type Config struct {
	// MinLeadTime is the minimum delay between now and a new booking's start.
	MinLeadTime time.Duration
	// CancellationCutoff is the latest point before start at which a
	// booking may still be cancelled.
	CancellationCutoff time.Duration
	// ReminderGrace is how long after a reminder went out cancellation
	// remains possible.
	ReminderGrace time.Duration
}

// DefaultConfig returns the stock policy durations.
func DefaultConfig() Config {
	return Config{
		MinLeadTime:        2 * time.Hour,
		CancellationCutoff: 23 * time.Hour,
		ReminderGrace:      1 * time.Hour,
	}
}

// Decision is the outcome of a cancellation check. Never persisted;
// recomputed from the booking's timestamps at decision time.
type Decision struct {
	Allowed   bool
	Violation *Violation
}

// Policy is the stateless temporal rule set.
type Policy struct {
	cfg Config
	now Clock
}

// New creates a policy. A nil clock falls back to time.Now. Zero
// durations fall back to the defaults.
func New(cfg Config, now Clock) *Policy {
	def := DefaultConfig()
	if cfg.MinLeadTime <= 0 {
		cfg.MinLeadTime = def.MinLeadTime
	}
	if cfg.CancellationCutoff <= 0 {
		cfg.CancellationCutoff = def.CancellationCutoff
	}
	if cfg.ReminderGrace <= 0 {
		cfg.ReminderGrace = def.ReminderGrace
	}
	if now == nil {
		now = time.Now
	}
	return &Policy{cfg: cfg, now: now}
}

// CanCreate checks the minimum lead time for a requested start. The
// boundary is inclusive: a start exactly MinLeadTime away is allowed.
// The check runs once at creation (and again on reschedule against the
// new start); existing bookings are never re-validated.
func (p *Policy) CanCreate(requestedStart time.Time) *Violation {
	if requestedStart.Sub(p.now()) >= p.cfg.MinLeadTime {
		return nil
	}
	return &Violation{
		Rule:   RuleLeadTime,
		Reason: fmt.Sprintf("bookings require at least %s' notice", humanDuration(p.cfg.MinLeadTime)),
	}
}

// CanCancel decides whether a booking may still be cancelled. The
// reminder-grace rule is evaluated first: once the grace window after a
// sent reminder has expired, cancellation stays blocked no matter how
// far out the booking is.
func (p *Policy) CanCancel(bookingStart time.Time, reminderSentAt *time.Time) Decision {
	now := p.now()

	if reminderSentAt != nil && now.After(reminderSentAt.Add(p.cfg.ReminderGrace)) {
		return Decision{Violation: &Violation{
			Rule:   RuleReminderGrace,
			Reason: "cancellation window after reminder has expired",
		}}
	}

	if bookingStart.Sub(now) < p.cfg.CancellationCutoff {
		return Decision{Violation: &Violation{
			Rule:   RuleCancellationCutoff,
			Reason: "booking can no longer be cancelled; cutoff passed",
		}}
	}

	return Decision{Allowed: true}
}

// Now exposes the policy's clock so collaborators share one time source.
func (p *Policy) Now() time.Time {
	return p.now()
}

func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}
