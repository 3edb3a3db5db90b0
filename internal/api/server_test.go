package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapisly/internal/availability"
	"zapisly/internal/booking"
	"zapisly/internal/events"
	"zapisly/internal/models"
	"zapisly/internal/policy"
	"zapisly/internal/slots"
)

const testAPIKey = "valid-key"

var testNow = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	business *models.Business
	services []models.Service
	bookings map[int64]*models.Booking
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		business: &models.Business{ID: 1, Name: "Barbershop"},
		services: []models.Service{{ID: 1, BusinessID: 1, Name: "Haircut", DurationMinutes: 30, Active: true}},
		bookings: make(map[int64]*models.Booking),
		nextID:   1,
	}
}

func (f *fakeStore) GetBusiness(ctx context.Context, id int64) (*models.Business, error) {
	if f.business != nil && f.business.ID == id {
		return f.business, nil
	}
	return nil, nil
}

func (f *fakeStore) ListServices(ctx context.Context, businessID int64) ([]models.Service, error) {
	return f.services, nil
}

func (f *fakeStore) ListEmployees(ctx context.Context, businessID int64) ([]models.Employee, error) {
	return nil, nil
}

func (f *fakeStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return f.bookings[id], nil
}

func (f *fakeStore) ListBookings(ctx context.Context, businessID int64, employeeID *int64, from, to time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range f.bookings {
		if b.BusinessID == businessID && !b.IsCancelled() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertBooking(ctx context.Context, b *models.Booking) error {
	b.ID = f.nextID
	f.nextID++
	stored := *b
	f.bookings[b.ID] = &stored
	return nil
}

func (f *fakeStore) UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error {
	f.bookings[id].Status = status
	return nil
}

func (f *fakeStore) UpdateBookingFields(ctx context.Context, id int64, upd booking.Update) error {
	b := f.bookings[id]
	b.StartTime = upd.StartTime
	b.DurationMinutes = upd.DurationMinutes
	b.ServiceID = upd.ServiceID
	b.EmployeeID = upd.EmployeeID
	return nil
}

type stubResolver struct {
	candidates []slots.Candidate
}

func (s *stubResolver) Resolve(ctx context.Context, req availability.Request) ([]slots.Candidate, error) {
	return s.candidates, nil
}

func setupTestServer(t *testing.T, store *fakeStore) *httptest.Server {
	t.Helper()
	pol := policy.New(policy.DefaultConfig(), func() time.Time { return testNow })
	resolver := &stubResolver{candidates: []slots.Candidate{
		{Start: testNow.Add(4 * time.Hour), End: testNow.Add(4*time.Hour + 30*time.Minute)},
	}}
	svc := booking.NewService(store, resolver, pol, events.NewBus(), zerolog.Nop())
	s := NewHTTPServer("127.0.0.1:0", testAPIKey, svc, zerolog.Nop())

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("X-Actor-Role", "client")
	req.Header.Set("X-Actor-Client-ID", "42")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestAuth_MissingKey(t *testing.T) {
	srv := setupTestServer(t, newFakeStore())

	resp, err := http.Post(srv.URL+"/api/availability", "application/json", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAvailability(t *testing.T) {
	srv := setupTestServer(t, newFakeStore())

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/availability", map[string]interface{}{
		"business_id": 1,
		"date":        "2026-03-09",
	}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Date  string         `json:"date"`
		Slots []SlotResponse `json:"slots"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "2026-03-09", body.Date)
	require.Len(t, body.Slots, 1)
	assert.Equal(t, testNow.Add(4*time.Hour), body.Slots[0].Start.UTC())
}

func TestAvailability_BadDate(t *testing.T) {
	srv := setupTestServer(t, newFakeStore())

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/availability", map[string]interface{}{
		"business_id": 1,
		"date":        "09-03-2026",
	}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateBooking(t *testing.T) {
	store := newFakeStore()
	srv := setupTestServer(t, store)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/bookings", map[string]interface{}{
		"business_id": 1,
		"service_id":  1,
		"start":       testNow.Add(4 * time.Hour).Format(time.RFC3339),
	}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var b models.Booking
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
	assert.Equal(t, int64(42), b.ClientID)
	assert.Equal(t, models.StatusConfirmed, b.Status)
}

func TestCreateBooking_LeadTimeViolation(t *testing.T) {
	srv := setupTestServer(t, newFakeStore())

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/bookings", map[string]interface{}{
		"business_id": 1,
		"service_id":  1,
		"start":       testNow.Add(30 * time.Minute).Format(time.RFC3339),
	}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCreateBooking_Conflict(t *testing.T) {
	store := newFakeStore()
	start := testNow.Add(4 * time.Hour)
	store.bookings[9] = &models.Booking{
		ID: 9, BusinessID: 1, ClientID: 7, StartTime: start,
		DurationMinutes: 30, Status: models.StatusConfirmed,
	}
	srv := setupTestServer(t, store)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/bookings", map[string]interface{}{
		"business_id": 1,
		"service_id":  1,
		"start":       start.Format(time.RFC3339),
	}, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancel_IdempotentResponse(t *testing.T) {
	store := newFakeStore()
	store.bookings[5] = &models.Booking{
		ID: 5, BusinessID: 1, ClientID: 42,
		StartTime: testNow.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}
	srv := setupTestServer(t, store)
	url := fmt.Sprintf("%s/api/bookings/%d", srv.URL, 5)

	resp := doJSON(t, http.MethodDelete, url, nil, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2 := doJSON(t, http.MethodDelete, url, nil, nil)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var body struct {
		AlreadyCancelled bool `json:"already_cancelled"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body))
	assert.True(t, body.AlreadyCancelled)
}

func TestCancel_NotFound(t *testing.T) {
	srv := setupTestServer(t, newFakeStore())

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/bookings/999", nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancel_ForeignBookingForbidden(t *testing.T) {
	store := newFakeStore()
	store.bookings[5] = &models.Booking{
		ID: 5, BusinessID: 1, ClientID: 7,
		StartTime: testNow.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}
	srv := setupTestServer(t, store)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/bookings/5", nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestReschedule(t *testing.T) {
	store := newFakeStore()
	store.bookings[5] = &models.Booking{
		ID: 5, BusinessID: 1, ClientID: 42, ServiceID: 1,
		StartTime: testNow.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.StatusConfirmed,
	}
	srv := setupTestServer(t, store)

	newStart := testNow.Add(72 * time.Hour)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/bookings/5/reschedule", map[string]interface{}{
		"new_start": newStart.Format(time.RFC3339),
	}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var b models.Booking
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
	assert.Equal(t, newStart, b.StartTime.UTC())
	assert.Equal(t, models.StatusConfirmed, b.Status)
}

func TestRequestID_Echoed(t *testing.T) {
	srv := setupTestServer(t, newFakeStore())

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/availability", map[string]interface{}{
		"business_id": 1,
		"date":        "2026-03-09",
	}, map[string]string{"X-Request-ID": "req-123"})
	defer resp.Body.Close()

	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))
}
