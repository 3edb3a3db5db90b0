package booking

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"zapisly/internal/availability"
	"zapisly/internal/events"
	"zapisly/internal/models"
	"zapisly/internal/policy"
	"zapisly/internal/slots"
)

var now = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetBusiness(ctx context.Context, id int64) (*models.Business, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Business), args.Error(1)
}

func (m *mockStore) ListServices(ctx context.Context, businessID int64) ([]models.Service, error) {
	args := m.Called(ctx, businessID)
	return args.Get(0).([]models.Service), args.Error(1)
}

func (m *mockStore) ListEmployees(ctx context.Context, businessID int64) ([]models.Employee, error) {
	args := m.Called(ctx, businessID)
	return args.Get(0).([]models.Employee), args.Error(1)
}

func (m *mockStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) ListBookings(ctx context.Context, businessID int64, employeeID *int64, from, to time.Time) ([]models.Booking, error) {
	args := m.Called(ctx, businessID, employeeID, from, to)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockStore) InsertBooking(ctx context.Context, b *models.Booking) error {
	args := m.Called(ctx, b)
	if args.Error(0) == nil {
		b.ID = 101
	}
	return args.Error(0)
}

func (m *mockStore) UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockStore) UpdateBookingFields(ctx context.Context, id int64, upd Update) error {
	return m.Called(ctx, id, upd).Error(0)
}

type stubResolver struct {
	result []slots.Candidate
}

func (s *stubResolver) Resolve(ctx context.Context, req availability.Request) ([]slots.Candidate, error) {
	return s.result, nil
}

type eventRecorder struct {
	seen []events.Event
}

func (r *eventRecorder) record(e events.Event) {
	r.seen = append(r.seen, e)
}

func newTestService(store *mockStore) (*Service, *eventRecorder) {
	bus := events.NewBus()
	rec := &eventRecorder{}
	bus.Subscribe(events.BookingConfirmed, rec.record)
	bus.Subscribe(events.BookingCancelled, rec.record)
	bus.Subscribe(events.BookingRescheduled, rec.record)

	pol := policy.New(policy.DefaultConfig(), func() time.Time { return now })
	svc := NewService(store, &stubResolver{}, pol, bus, zerolog.Nop())
	return svc, rec
}

func activeBusiness() *models.Business {
	return &models.Business{ID: 1, Name: "Glow Studio"}
}

func testServices() []models.Service {
	return []models.Service{
		{ID: 10, BusinessID: 1, Name: "Classic Manicure", DurationMinutes: 30, Active: true},
		{ID: 11, BusinessID: 1, Name: "Deluxe Manicure", DurationMinutes: 60, Active: true},
		{ID: 12, BusinessID: 1, Name: "Haircut", DurationMinutes: 45, Active: true},
	}
}

func TestCreate_ConfirmedAndNotified(t *testing.T) {
	store := &mockStore{}
	svc, rec := newTestService(store)

	store.On("GetBusiness", mock.Anything, int64(1)).Return(activeBusiness(), nil)
	store.On("ListServices", mock.Anything, int64(1)).Return(testServices(), nil)
	store.On("ListBookings", mock.Anything, int64(1), (*int64)(nil), mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	store.On("InsertBooking", mock.Anything, mock.Anything).Return(nil)

	b, err := svc.Create(context.Background(), CreateRequest{
		BusinessID: 1,
		ServiceID:  10,
		ClientID:   3,
		Start:      now.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(101), b.ID)
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Equal(t, 30, b.DurationMinutes)

	require.Len(t, rec.seen, 1)
	assert.Equal(t, events.BookingConfirmed, rec.seen[0].Type)
	assert.Equal(t, int64(101), rec.seen[0].Booking.ID)
}

func TestCreate_FuzzyServiceName(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(store)

	store.On("GetBusiness", mock.Anything, int64(1)).Return(activeBusiness(), nil)
	store.On("ListServices", mock.Anything, int64(1)).Return(testServices(), nil)
	store.On("ListBookings", mock.Anything, int64(1), (*int64)(nil), mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	store.On("InsertBooking", mock.Anything, mock.Anything).Return(nil)

	// "manicure" matches two services; the first in store order wins.
	b, err := svc.Create(context.Background(), CreateRequest{
		BusinessID:  1,
		ServiceName: "MANICURE",
		ClientID:    3,
		Start:       now.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), b.ServiceID)

	_, err = svc.Create(context.Background(), CreateRequest{
		BusinessID:  1,
		ServiceName: "massage",
		ClientID:    3,
		Start:       now.Add(24 * time.Hour),
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestCreate_SuspendedBusiness(t *testing.T) {
	store := &mockStore{}
	svc, rec := newTestService(store)

	store.On("GetBusiness", mock.Anything, int64(1)).Return(&models.Business{ID: 1, Suspended: true}, nil)

	_, err := svc.Create(context.Background(), CreateRequest{
		BusinessID: 1, ServiceID: 10, ClientID: 3, Start: now.Add(24 * time.Hour),
	})
	var se *SuspendedBusinessError
	require.ErrorAs(t, err, &se)
	assert.Empty(t, rec.seen)
}

func TestCreate_LeadTimeViolation(t *testing.T) {
	store := &mockStore{}
	svc, rec := newTestService(store)

	store.On("GetBusiness", mock.Anything, int64(1)).Return(activeBusiness(), nil)
	store.On("ListServices", mock.Anything, int64(1)).Return(testServices(), nil)

	_, err := svc.Create(context.Background(), CreateRequest{
		BusinessID: 1, ServiceID: 10, ClientID: 3,
		Start: now.Add(1*time.Hour + 59*time.Minute),
	})
	var v *policy.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, policy.RuleLeadTime, v.Rule)
	assert.Equal(t, "bookings require at least 2 hours' notice", v.Reason)

	store.AssertNotCalled(t, "InsertBooking", mock.Anything, mock.Anything)
	assert.Empty(t, rec.seen)
}

func TestCreate_OverlapPreCheck(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(store)

	start := now.Add(24 * time.Hour)
	store.On("GetBusiness", mock.Anything, int64(1)).Return(activeBusiness(), nil)
	store.On("ListServices", mock.Anything, int64(1)).Return(testServices(), nil)
	store.On("ListBookings", mock.Anything, int64(1), (*int64)(nil), mock.Anything, mock.Anything).Return([]models.Booking{{
		ID: 50, BusinessID: 1, StartTime: start.Add(-15 * time.Minute), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}}, nil)

	_, err := svc.Create(context.Background(), CreateRequest{
		BusinessID: 1, ServiceID: 10, ClientID: 3, Start: start,
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	store.AssertNotCalled(t, "InsertBooking", mock.Anything, mock.Anything)
}

func TestCreate_CommitConflictSurfaces(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(store)

	store.On("GetBusiness", mock.Anything, int64(1)).Return(activeBusiness(), nil)
	store.On("ListServices", mock.Anything, int64(1)).Return(testServices(), nil)
	store.On("ListBookings", mock.Anything, int64(1), (*int64)(nil), mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	store.On("InsertBooking", mock.Anything, mock.Anything).Return(&ConflictError{})

	_, err := svc.Create(context.Background(), CreateRequest{
		BusinessID: 1, ServiceID: 10, ClientID: 3, Start: now.Add(24 * time.Hour),
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
}

func TestCreate_PendingConsentSkipsConfirmation(t *testing.T) {
	store := &mockStore{}
	svc, rec := newTestService(store)

	store.On("GetBusiness", mock.Anything, int64(1)).Return(activeBusiness(), nil)
	store.On("ListServices", mock.Anything, int64(1)).Return(testServices(), nil)
	store.On("ListBookings", mock.Anything, int64(1), (*int64)(nil), mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	store.On("InsertBooking", mock.Anything, mock.Anything).Return(nil)

	b, err := svc.Create(context.Background(), CreateRequest{
		BusinessID: 1, ServiceID: 10, ClientID: 3,
		Start:          now.Add(24 * time.Hour),
		RequireConsent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingConsent, b.Status)
	assert.Empty(t, rec.seen)
}

func TestCancel_HappyPath(t *testing.T) {
	store := &mockStore{}
	svc, rec := newTestService(store)

	b := &models.Booking{
		ID: 7, BusinessID: 1, ClientID: 3,
		StartTime: now.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}
	store.On("GetBooking", mock.Anything, int64(7)).Return(b, nil)
	store.On("UpdateBookingStatus", mock.Anything, int64(7), models.StatusCancelled).Return(nil)

	res, err := svc.Cancel(context.Background(), 7, models.Actor{Role: models.RoleClient, ClientID: 3})
	require.NoError(t, err)
	assert.False(t, res.AlreadyCancelled)
	assert.Equal(t, models.StatusCancelled, res.Booking.Status)

	require.Len(t, rec.seen, 1)
	assert.Equal(t, events.BookingCancelled, rec.seen[0].Type)
}

func TestCancel_Idempotent(t *testing.T) {
	store := &mockStore{}
	svc, rec := newTestService(store)

	b := &models.Booking{
		ID: 7, BusinessID: 1, ClientID: 3,
		StartTime: now.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.StatusCancelled,
	}
	store.On("GetBooking", mock.Anything, int64(7)).Return(b, nil)

	first, err := svc.Cancel(context.Background(), 7, models.Actor{Role: models.RoleClient, ClientID: 3})
	require.NoError(t, err)
	second, err := svc.Cancel(context.Background(), 7, models.Actor{Role: models.RoleClient, ClientID: 3})
	require.NoError(t, err)

	assert.True(t, first.AlreadyCancelled)
	assert.Equal(t, first.AlreadyCancelled, second.AlreadyCancelled)
	assert.Equal(t, first.Booking.Status, second.Booking.Status)

	store.AssertNotCalled(t, "UpdateBookingStatus", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, rec.seen)
}

func TestCancel_Ownership(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(store)

	b := &models.Booking{
		ID: 7, BusinessID: 1, ClientID: 3,
		StartTime: now.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}
	store.On("GetBooking", mock.Anything, int64(7)).Return(b, nil)
	store.On("UpdateBookingStatus", mock.Anything, int64(7), models.StatusCancelled).Return(nil)

	// A different client may not cancel.
	_, err := svc.Cancel(context.Background(), 7, models.Actor{Role: models.RoleClient, ClientID: 99})
	var fe *ForbiddenError
	require.ErrorAs(t, err, &fe)

	// A different tenant's staff may not cancel.
	_, err = svc.Cancel(context.Background(), 7, models.Actor{Role: models.RoleBusiness, BusinessID: 2})
	require.ErrorAs(t, err, &fe)

	// The tenant's own staff may.
	_, err = svc.Cancel(context.Background(), 7, models.Actor{Role: models.RoleEmployee, BusinessID: 1})
	require.NoError(t, err)
}

func TestCancel_AdminUnrestricted(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(store)

	b := &models.Booking{
		ID: 7, BusinessID: 1, ClientID: 3,
		StartTime: now.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}
	store.On("GetBooking", mock.Anything, int64(7)).Return(b, nil)
	store.On("UpdateBookingStatus", mock.Anything, int64(7), models.StatusCancelled).Return(nil)

	_, err := svc.Cancel(context.Background(), 7, models.Actor{Role: models.RoleAdmin})
	require.NoError(t, err)
}

func TestCancel_CutoffBlocked(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(store)

	b := &models.Booking{
		ID: 7, BusinessID: 1, ClientID: 3,
		StartTime: now.Add(22 * time.Hour), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}
	store.On("GetBooking", mock.Anything, int64(7)).Return(b, nil)

	_, err := svc.Cancel(context.Background(), 7, models.Actor{Role: models.RoleClient, ClientID: 3})
	var v *policy.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, policy.RuleCancellationCutoff, v.Rule)
	store.AssertNotCalled(t, "UpdateBookingStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_ReminderGraceBlocked(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(store)

	sent := now.Add(-2 * time.Hour)
	b := &models.Booking{
		ID: 7, BusinessID: 1, ClientID: 3,
		StartTime: now.Add(30 * time.Hour), DurationMinutes: 30,
		Status:         models.StatusConfirmed,
		ReminderSentAt: &sent,
	}
	store.On("GetBooking", mock.Anything, int64(7)).Return(b, nil)

	_, err := svc.Cancel(context.Background(), 7, models.Actor{Role: models.RoleClient, ClientID: 3})
	var v *policy.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, policy.RuleReminderGrace, v.Rule)
}

func TestCancel_NotFound(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(store)

	store.On("GetBooking", mock.Anything, int64(404)).Return(nil, nil)

	_, err := svc.Cancel(context.Background(), 404, models.Actor{Role: models.RoleAdmin})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "booking", nf.Kind)
}

func TestReschedule_RepassesLeadTime(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(store)

	b := &models.Booking{
		ID: 7, BusinessID: 1, ServiceID: 10, ClientID: 3,
		StartTime: now.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}
	store.On("GetBooking", mock.Anything, int64(7)).Return(b, nil)

	_, err := svc.Reschedule(context.Background(), 7, models.Actor{Role: models.RoleClient, ClientID: 3}, RescheduleRequest{
		NewStart: now.Add(30 * time.Minute),
	})
	var v *policy.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, policy.RuleLeadTime, v.Rule)
	store.AssertNotCalled(t, "UpdateBookingFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestReschedule_ExcludesOwnSlot(t *testing.T) {
	store := &mockStore{}
	svc, rec := newTestService(store)

	b := &models.Booking{
		ID: 7, BusinessID: 1, ServiceID: 10, ClientID: 3,
		StartTime: now.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}
	newStart := b.StartTime.Add(15 * time.Minute) // overlaps only its own old slot
	store.On("GetBooking", mock.Anything, int64(7)).Return(b, nil)
	store.On("ListBookings", mock.Anything, int64(1), (*int64)(nil), mock.Anything, mock.Anything).Return([]models.Booking{*b}, nil)
	store.On("UpdateBookingFields", mock.Anything, int64(7), mock.Anything).Return(nil)

	got, err := svc.Reschedule(context.Background(), 7, models.Actor{Role: models.RoleClient, ClientID: 3}, RescheduleRequest{
		NewStart: newStart,
	})
	require.NoError(t, err)
	assert.Equal(t, newStart, got.StartTime)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	require.Len(t, rec.seen, 1)
	assert.Equal(t, events.BookingRescheduled, rec.seen[0].Type)
}

func TestReschedule_ConflictWithOtherBooking(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(store)

	b := &models.Booking{
		ID: 7, BusinessID: 1, ServiceID: 10, ClientID: 3,
		StartTime: now.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}
	other := models.Booking{
		ID: 8, BusinessID: 1, ServiceID: 10, ClientID: 4,
		StartTime: now.Add(50 * time.Hour), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}
	store.On("GetBooking", mock.Anything, int64(7)).Return(b, nil)
	store.On("ListBookings", mock.Anything, int64(1), (*int64)(nil), mock.Anything, mock.Anything).Return([]models.Booking{*b, other}, nil)

	_, err := svc.Reschedule(context.Background(), 7, models.Actor{Role: models.RoleClient, ClientID: 3}, RescheduleRequest{
		NewStart: other.StartTime,
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
}

func TestReschedule_CancelledRejected(t *testing.T) {
	store := &mockStore{}
	svc, _ := newTestService(store)

	b := &models.Booking{
		ID: 7, BusinessID: 1, ServiceID: 10, ClientID: 3,
		StartTime: now.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.StatusCancelled,
	}
	store.On("GetBooking", mock.Anything, int64(7)).Return(b, nil)

	_, err := svc.Reschedule(context.Background(), 7, models.Actor{Role: models.RoleClient, ClientID: 3}, RescheduleRequest{
		NewStart: now.Add(72 * time.Hour),
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}
