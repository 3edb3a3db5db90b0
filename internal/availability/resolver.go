// Package availability computes the bookable slot set for a business,
// service, optional employee and date.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"zapisly/internal/models"
	"zapisly/internal/schedule"
	"zapisly/internal/slots"
)

// Store is the data-store surface the resolver needs.
type Store interface {
	// GetBusinessSchedule returns the business's weekly template.
	GetBusinessSchedule(ctx context.Context, businessID int64) (schedule.WeeklySchedule, error)

	// GetEmployeeSchedule returns the employee's individual template, or
	// an empty schedule when the employee has none.
	GetEmployeeSchedule(ctx context.Context, employeeID int64) (schedule.WeeklySchedule, error)

	// ListBookings returns non-cancelled bookings for the business within
	// [from, to), narrowed to one employee when employeeID is non-nil.
	ListBookings(ctx context.Context, businessID int64, employeeID *int64, from, to time.Time) ([]models.Booking, error)
}

// Request identifies one availability query.
type Request struct {
	BusinessID      int64     `json:"business_id"`
	EmployeeID      *int64    `json:"employee_id,omitempty"`
	Date            time.Time `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Options tunes resolution behavior.
type Options struct {
	// ExcludeBreakRanges drops candidates classified as break from the
	// result. Off by default: break classification is a display signal,
	// only gaps between ranges structurally block booking.
	ExcludeBreakRanges bool
}

// Resolver combines the slot generator with existing bookings.
type Resolver struct {
	store  Store
	gen    *slots.Generator
	opts   Options
	logger zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(store Store, gen *slots.Generator, opts Options, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		gen:    gen,
		opts:   opts,
		logger: logger.With().Str("component", "availability").Logger(),
	}
}

// Resolve returns the available candidates for the request in ascending
// start-time order. An empty result means a fully booked (or closed)
// day, not an error.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]slots.Candidate, error) {
	sched, err := r.effectiveSchedule(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	day := sched.Day(req.Date.Weekday())
	cands := r.gen.Generate(day, req.Date, req.DurationMinutes)
	if len(cands) == 0 {
		return nil, nil
	}

	if r.opts.ExcludeBreakRanges {
		kept := cands[:0]
		for _, c := range cands {
			if !c.Break {
				kept = append(kept, c)
			}
		}
		cands = kept
	}

	dayStart := time.Date(req.Date.Year(), req.Date.Month(), req.Date.Day(), 0, 0, 0, 0, req.Date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	booked, err := r.store.ListBookings(ctx, req.BusinessID, req.EmployeeID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	var out []slots.Candidate
	for _, c := range cands {
		if conflicts(c, booked) {
			continue
		}
		out = append(out, c)
	}

	r.logger.Debug().
		Int64("business_id", req.BusinessID).
		Time("date", req.Date).
		Int("candidates", len(cands)).
		Int("available", len(out)).
		Msg("availability resolved")

	return out, nil
}

// effectiveSchedule prefers the employee's own template and falls back
// to the business one when the employee has none.
func (r *Resolver) effectiveSchedule(ctx context.Context, req Request) (schedule.WeeklySchedule, error) {
	if req.EmployeeID != nil {
		sched, err := r.store.GetEmployeeSchedule(ctx, *req.EmployeeID)
		if err != nil {
			return nil, err
		}
		if !sched.IsEmpty() {
			return sched, nil
		}
	}
	return r.store.GetBusinessSchedule(ctx, req.BusinessID)
}

func conflicts(c slots.Candidate, booked []models.Booking) bool {
	for i := range booked {
		if booked[i].Overlaps(c.Start, c.End) {
			return true
		}
	}
	return false
}
