// Package booking is the operation surface of the engine: create,
// cancel and reschedule, with policy checks applied before any mutation.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"zapisly/internal/availability"
	"zapisly/internal/events"
	"zapisly/internal/metrics"
	"zapisly/internal/models"
	"zapisly/internal/policy"
	"zapisly/internal/slots"
)

// Store is the data-store surface of the booking operations. The
// conditional insert is the concurrency authority: two overlapping
// creates racing past the resolver pre-check must not both commit.
type Store interface {
	GetBusiness(ctx context.Context, id int64) (*models.Business, error)
	ListServices(ctx context.Context, businessID int64) ([]models.Service, error)
	ListEmployees(ctx context.Context, businessID int64) ([]models.Employee, error)

	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, businessID int64, employeeID *int64, from, to time.Time) ([]models.Booking, error)

	// InsertBooking re-checks overlap transactionally and returns
	// *ConflictError when the slot is already taken.
	InsertBooking(ctx context.Context, b *models.Booking) error

	UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error

	// UpdateBookingFields re-checks overlap excluding the booking's own
	// row and returns *ConflictError on a clash.
	UpdateBookingFields(ctx context.Context, id int64, upd Update) error
}

// Update is the mutable field set of a reschedule.
type Update struct {
	StartTime       time.Time
	DurationMinutes int
	ServiceID       int64
	EmployeeID      *int64
}

// Availability lists bookable slots; satisfied by both the plain and
// the cached resolver.
type Availability interface {
	Resolve(ctx context.Context, req availability.Request) ([]slots.Candidate, error)
}

// Service orchestrates the booking lifecycle.
type Service struct {
	store    Store
	resolver Availability
	policy   *policy.Policy
	bus      *events.Bus
	logger   zerolog.Logger
}

// NewService creates a booking service.
func NewService(store Store, resolver Availability, pol *policy.Policy, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		policy:   pol,
		bus:      bus,
		logger:   logger.With().Str("component", "booking").Logger(),
	}
}

// CreateRequest identifies the target slot. Service and employee may be
// referenced by id or by name; name resolution is a best-effort,
// case-insensitive substring match taking the first hit in store order.
type CreateRequest struct {
	BusinessID      int64
	ServiceID       int64
	ServiceName     string
	EmployeeID      *int64
	EmployeeName    string
	ClientID        int64
	Start           time.Time
	DurationMinutes int // 0 means the service's own duration
	RequireConsent  bool
}

// Create books a slot. The lead-time rule is checked once, here; a
// booking created far in advance stays valid after the window elapses.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Booking, error) {
	business, err := s.store.GetBusiness(ctx, req.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("load business: %w", err)
	}
	if business == nil {
		return nil, &NotFoundError{Kind: "business", ID: req.BusinessID}
	}
	if business.Suspended {
		return nil, &SuspendedBusinessError{BusinessID: business.ID}
	}

	svc, err := s.resolveService(ctx, req.BusinessID, req.ServiceID, req.ServiceName)
	if err != nil {
		return nil, err
	}

	employeeID := req.EmployeeID
	if employeeID == nil && req.EmployeeName != "" {
		emp, err := s.resolveEmployee(ctx, req.BusinessID, 0, req.EmployeeName)
		if err != nil {
			return nil, err
		}
		employeeID = &emp.ID
	} else if employeeID != nil {
		if _, err := s.resolveEmployee(ctx, req.BusinessID, *employeeID, ""); err != nil {
			return nil, err
		}
	}

	if v := s.policy.CanCreate(req.Start); v != nil {
		metrics.IncPolicyRejection(string(v.Rule))
		return nil, v
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = svc.DurationMinutes
	}
	if duration <= 0 {
		return nil, &ValidationError{Field: "duration", Msg: "booking duration must be positive"}
	}

	// Best-effort pre-check for a friendly error; the insert below is
	// what actually guarantees exclusivity.
	if err := s.checkOverlap(ctx, req.BusinessID, employeeID, req.Start, duration, 0); err != nil {
		return nil, err
	}

	status := models.StatusConfirmed
	if req.RequireConsent {
		status = models.StatusPendingConsent
	}

	now := s.policy.Now()
	b := &models.Booking{
		BusinessID:      req.BusinessID,
		ServiceID:       svc.ID,
		EmployeeID:      employeeID,
		ClientID:        req.ClientID,
		StartTime:       req.Start,
		DurationMinutes: duration,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.InsertBooking(ctx, b); err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			metrics.IncBookingConflict()
		}
		return nil, err
	}

	metrics.IncBookingCreated(string(status))
	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("business_id", b.BusinessID).
		Int64("client_id", b.ClientID).
		Time("start", b.StartTime).
		Str("status", string(status)).
		Msg("booking created")

	if status == models.StatusConfirmed {
		s.bus.Publish(events.Event{Type: events.BookingConfirmed, Booking: *b, At: now})
	}
	return b, nil
}

// Get returns a booking the actor is allowed to see.
func (s *Service) Get(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b == nil {
		return nil, &NotFoundError{Kind: "booking", ID: bookingID}
	}
	if !ownershipAllows(actor, b) {
		return nil, &ForbiddenError{Actor: actor, BookingID: bookingID}
	}
	return b, nil
}

// CancelResult reports a cancellation outcome. Cancelling an already
// cancelled booking is a no-op that returns the same outcome again.
type CancelResult struct {
	Booking          *models.Booking
	AlreadyCancelled bool
}

// Cancel marks a booking cancelled after the actor and policy checks
// pass. Cancelled is terminal.
func (s *Service) Cancel(ctx context.Context, bookingID int64, actor models.Actor) (*CancelResult, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b == nil {
		return nil, &NotFoundError{Kind: "booking", ID: bookingID}
	}
	if !ownershipAllows(actor, b) {
		return nil, &ForbiddenError{Actor: actor, BookingID: bookingID}
	}

	if b.IsCancelled() {
		return &CancelResult{Booking: b, AlreadyCancelled: true}, nil
	}

	decision := s.policy.CanCancel(b.StartTime, b.ReminderSentAt)
	if !decision.Allowed {
		metrics.IncPolicyRejection(string(decision.Violation.Rule))
		return nil, decision.Violation
	}

	if err := s.store.UpdateBookingStatus(ctx, bookingID, models.StatusCancelled); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	b.Status = models.StatusCancelled
	b.UpdatedAt = s.policy.Now()

	metrics.IncBookingCancelled()
	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("actor_role", string(actor.Role)).
		Msg("booking cancelled")

	s.bus.Publish(events.Event{Type: events.BookingCancelled, Booking: *b, At: b.UpdatedAt})
	return &CancelResult{Booking: b}, nil
}

// RescheduleRequest carries the new slot, and optionally a new service
// or employee.
type RescheduleRequest struct {
	NewStart        time.Time
	ServiceID       int64
	ServiceName     string
	EmployeeID      *int64
	EmployeeName    string
	DurationMinutes int
}

// Reschedule moves a booking to a new start. Status never changes here;
// the new start must itself pass the lead-time rule, and the overlap
// check excludes the booking's current slot.
func (s *Service) Reschedule(ctx context.Context, bookingID int64, actor models.Actor, req RescheduleRequest) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b == nil {
		return nil, &NotFoundError{Kind: "booking", ID: bookingID}
	}
	if !ownershipAllows(actor, b) {
		return nil, &ForbiddenError{Actor: actor, BookingID: bookingID}
	}
	if b.IsCancelled() {
		return nil, &ValidationError{Field: "status", Msg: "cancelled bookings cannot be rescheduled"}
	}

	if v := s.policy.CanCreate(req.NewStart); v != nil {
		metrics.IncPolicyRejection(string(v.Rule))
		return nil, v
	}

	serviceID := b.ServiceID
	duration := b.DurationMinutes
	if req.ServiceID != 0 || req.ServiceName != "" {
		svc, err := s.resolveService(ctx, b.BusinessID, req.ServiceID, req.ServiceName)
		if err != nil {
			return nil, err
		}
		serviceID = svc.ID
		duration = svc.DurationMinutes
	}
	if req.DurationMinutes > 0 {
		duration = req.DurationMinutes
	}

	employeeID := b.EmployeeID
	if req.EmployeeID != nil {
		if _, err := s.resolveEmployee(ctx, b.BusinessID, *req.EmployeeID, ""); err != nil {
			return nil, err
		}
		employeeID = req.EmployeeID
	} else if req.EmployeeName != "" {
		emp, err := s.resolveEmployee(ctx, b.BusinessID, 0, req.EmployeeName)
		if err != nil {
			return nil, err
		}
		employeeID = &emp.ID
	}

	if err := s.checkOverlap(ctx, b.BusinessID, employeeID, req.NewStart, duration, b.ID); err != nil {
		return nil, err
	}

	upd := Update{
		StartTime:       req.NewStart,
		DurationMinutes: duration,
		ServiceID:       serviceID,
		EmployeeID:      employeeID,
	}
	if err := s.store.UpdateBookingFields(ctx, bookingID, upd); err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			metrics.IncBookingConflict()
		}
		return nil, err
	}

	b.StartTime = req.NewStart
	b.DurationMinutes = duration
	b.ServiceID = serviceID
	b.EmployeeID = employeeID
	b.UpdatedAt = s.policy.Now()

	s.logger.Info().
		Int64("booking_id", b.ID).
		Time("new_start", b.StartTime).
		Msg("booking rescheduled")

	s.bus.Publish(events.Event{Type: events.BookingRescheduled, Booking: *b, At: b.UpdatedAt})
	return b, nil
}

// Availability proxies slot listing so callers (tools, HTTP) go through
// one surface.
func (s *Service) Availability(ctx context.Context, req availability.Request) ([]slots.Candidate, error) {
	metrics.IncAvailabilityRequest()
	return s.resolver.Resolve(ctx, req)
}

// resolveService finds a service by id, or by case-insensitive
// substring name match: first match in store order wins. Duplicate
// names are inherently ambiguous; this is documented best-effort.
func (s *Service) resolveService(ctx context.Context, businessID, serviceID int64, name string) (*models.Service, error) {
	services, err := s.store.ListServices(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	if serviceID != 0 {
		for i := range services {
			if services[i].ID == serviceID && services[i].Active {
				return &services[i], nil
			}
		}
		return nil, &NotFoundError{Kind: "service", ID: serviceID}
	}

	if name == "" {
		return nil, &ValidationError{Field: "service", Msg: "service id or name required"}
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	for i := range services {
		if services[i].Active && strings.Contains(strings.ToLower(services[i].Name), needle) {
			return &services[i], nil
		}
	}
	return nil, &ValidationError{Field: "service", Msg: fmt.Sprintf("no service matching %q", name)}
}

func (s *Service) resolveEmployee(ctx context.Context, businessID, employeeID int64, name string) (*models.Employee, error) {
	employees, err := s.store.ListEmployees(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	if employeeID != 0 {
		for i := range employees {
			if employees[i].ID == employeeID && employees[i].Active {
				return &employees[i], nil
			}
		}
		return nil, &NotFoundError{Kind: "employee", ID: employeeID}
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	for i := range employees {
		if employees[i].Active && strings.Contains(strings.ToLower(employees[i].Name), needle) {
			return &employees[i], nil
		}
	}
	return nil, &ValidationError{Field: "employee", Msg: fmt.Sprintf("no employee matching %q", name)}
}

// checkOverlap is the UX pre-check against existing bookings for the
// same business (or same employee when one is targeted). excludeID
// skips the booking's own row on reschedule.
func (s *Service) checkOverlap(ctx context.Context, businessID int64, employeeID *int64, start time.Time, durationMinutes int, excludeID int64) error {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	existing, err := s.store.ListBookings(ctx, businessID, employeeID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	for i := range existing {
		if existing[i].ID == excludeID {
			continue
		}
		if existing[i].Overlaps(start, end) {
			metrics.IncBookingConflict()
			return &ConflictError{}
		}
	}
	return nil
}

// ownershipAllows is the ownership predicate: clients own their own
// bookings, business and employee actors own their tenant's, admins
// are unrestricted.
func ownershipAllows(actor models.Actor, b *models.Booking) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleClient:
		return actor.ClientID == b.ClientID
	case models.RoleBusiness, models.RoleEmployee:
		return actor.BusinessID == b.BusinessID
	default:
		return false
	}
}
