package models

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	// StatusPendingConsent is the entry state used when a consent document
	// must be signed before the booking is confirmed.
	StatusPendingConsent BookingStatus = "pending_consent"
	StatusConfirmed      BookingStatus = "confirmed"
	// StatusCancelled is terminal; a cancelled booking is never resurrected.
	StatusCancelled BookingStatus = "cancelled"
)

// Booking represents a client's appointment with a business.
type Booking struct {
	ID              int64         `json:"id"`
	BusinessID      int64         `json:"business_id"`
	ServiceID       int64         `json:"service_id"`
	EmployeeID      *int64        `json:"employee_id,omitempty"` // optional metadata, not ownership
	ClientID        int64         `json:"client_id"`
	StartTime       time.Time     `json:"start_time"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          BookingStatus `json:"status"`
	// ReminderSentAt is written exactly once by the reminder dispatcher
	// and is read-only everywhere else.
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	Paid           bool       `json:"paid"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EndTime returns the exclusive end of the occupied interval.
func (b *Booking) EndTime() time.Time {
	return b.StartTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// Duration returns the booking length.
func (b *Booking) Duration() time.Duration {
	return time.Duration(b.DurationMinutes) * time.Minute
}

// IsCancelled reports whether the booking reached its terminal state.
func (b *Booking) IsCancelled() bool {
	return b.Status == StatusCancelled
}

// Overlaps checks the booking's occupied interval against [start, end).
// Half-open semantics: a booking ending at 10:00 does not conflict with
// one starting at 10:00.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime())
}

// OverlapsWith checks two bookings for interval overlap.
func (b *Booking) OverlapsWith(other *Booking) bool {
	return b.Overlaps(other.StartTime, other.EndTime())
}
