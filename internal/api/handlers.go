package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zapisly/internal/availability"
	"zapisly/internal/booking"
)

// AvailabilityRequest is the request body for POST /api/availability.
type AvailabilityRequest struct {
	BusinessID      int64  `json:"business_id"`
	EmployeeID      *int64 `json:"employee_id,omitempty"`
	Date            string `json:"date"` // Format: YYYY-MM-DD
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// SlotResponse is one bookable slot in an availability response.
type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Break bool      `json:"break,omitempty"`
}

// handleAvailability lists open slots for a business on a date.
// POST /api/availability
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req AvailabilityRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.BusinessID == 0 {
		writeError(w, http.StatusBadRequest, "business_id is required")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	candidates, err := s.svc.Availability(r.Context(), availability.Request{
		BusinessID:      req.BusinessID,
		EmployeeID:      req.EmployeeID,
		Date:            date,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	slots := make([]SlotResponse, 0, len(candidates))
	for _, c := range candidates {
		slots = append(slots, SlotResponse{Start: c.Start, End: c.End, Break: c.Break})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":  req.Date,
		"slots": slots,
	})
}

// CreateBookingRequest is the request body for POST /api/bookings.
type CreateBookingRequest struct {
	BusinessID      int64  `json:"business_id"`
	ServiceID       int64  `json:"service_id,omitempty"`
	ServiceName     string `json:"service_name,omitempty"`
	EmployeeID      *int64 `json:"employee_id,omitempty"`
	EmployeeName    string `json:"employee_name,omitempty"`
	ClientID        int64  `json:"client_id,omitempty"`
	Start           string `json:"start"` // RFC 3339
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	RequireConsent  bool   `json:"require_consent,omitempty"`
}

// handleCreateBooking books a slot.
// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req CreateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start format; expected RFC 3339")
		return
	}

	actor := actorFrom(r)
	clientID := req.ClientID
	if clientID == 0 {
		clientID = actor.ClientID
	}

	b, err := s.svc.Create(r.Context(), booking.CreateRequest{
		BusinessID:      req.BusinessID,
		ServiceID:       req.ServiceID,
		ServiceName:     req.ServiceName,
		EmployeeID:      req.EmployeeID,
		EmployeeName:    req.EmployeeName,
		ClientID:        clientID,
		Start:           start,
		DurationMinutes: req.DurationMinutes,
		RequireConsent:  req.RequireConsent,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.log.Info().
		Int64("booking_id", b.ID).
		Int64("business_id", b.BusinessID).
		Msg("booking created via api")
	writeJSON(w, http.StatusCreated, b)
}

// handleBookingByID routes /api/bookings/{id} and
// /api/bookings/{id}/reschedule.
func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/bookings/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	if tail, ok := strings.CutSuffix(rest, "/reschedule"); ok {
		s.handleReschedule(w, r, tail)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		s.handleCancel(w, r, rest)
	case http.MethodGet:
		s.handleGetBooking(w, r, rest)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	b, err := s.svc.Get(r.Context(), id, actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleCancel cancels a booking. Repeating the call returns the same
// outcome with already_cancelled set.
// DELETE /api/bookings/{id}
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	res, err := s.svc.Cancel(r.Context(), id, actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"booking":           res.Booking,
		"already_cancelled": res.AlreadyCancelled,
	})
}

// RescheduleRequest is the request body for POST
// /api/bookings/{id}/reschedule.
type RescheduleRequest struct {
	NewStart        string `json:"new_start"` // RFC 3339
	ServiceID       int64  `json:"service_id,omitempty"`
	ServiceName     string `json:"service_name,omitempty"`
	EmployeeID      *int64 `json:"employee_id,omitempty"`
	EmployeeName    string `json:"employee_name,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

func (s *HTTPServer) handleReschedule(w http.ResponseWriter, r *http.Request, idStr string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var req RescheduleRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	newStart, err := time.Parse(time.RFC3339, req.NewStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid new_start format; expected RFC 3339")
		return
	}

	b, err := s.svc.Reschedule(r.Context(), id, actorFrom(r), booking.RescheduleRequest{
		NewStart:        newStart,
		ServiceID:       req.ServiceID,
		ServiceName:     req.ServiceName,
		EmployeeID:      req.EmployeeID,
		EmployeeName:    req.EmployeeName,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
