// Package api exposes the booking engine over HTTP for external
// integrations. Authentication is a shared API key; the acting
// principal is declared in headers and trusted at this boundary.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"zapisly/internal/booking"
	"zapisly/internal/models"
	"zapisly/internal/policy"
)

// HTTPServer serves the booking API.
type HTTPServer struct {
	svc    *booking.Service
	log    zerolog.Logger
	apiKey string
	server *http.Server
}

// NewHTTPServer creates the API server listening on addr.
func NewHTTPServer(addr, apiKey string, svc *booking.Service, logger zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		svc:    svc,
		log:    logger.With().Str("component", "api").Logger(),
		apiKey: apiKey,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/availability", s.withAuth(s.handleAvailability))
	mux.HandleFunc("/api/bookings", s.withAuth(s.handleCreateBooking))
	mux.HandleFunc("/api/bookings/", s.withAuth(s.handleBookingByID))
	mux.HandleFunc("/healthz", s.handleHealth)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withRequestID(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withRequestID tags every request with an id for log correlation.
func (s *HTTPServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		logger := s.log.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func (s *HTTPServer) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.Header.Get("X-API-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}

// actorFrom reads the acting principal from headers. The upstream
// gateway has already authenticated the caller.
func actorFrom(r *http.Request) models.Actor {
	actor := models.Actor{Role: models.Role(r.Header.Get("X-Actor-Role"))}
	if id, err := strconv.ParseInt(r.Header.Get("X-Actor-Client-ID"), 10, 64); err == nil {
		actor.ClientID = id
	}
	if id, err := strconv.ParseInt(r.Header.Get("X-Actor-Business-ID"), 10, 64); err == nil {
		actor.BusinessID = id
	}
	if id, err := strconv.ParseInt(r.Header.Get("X-Actor-Employee-ID"), 10, 64); err == nil {
		actor.EmployeeID = id
	}
	return actor
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		ve *booking.ValidationError
		nf *booking.NotFoundError
		ce *booking.ConflictError
		se *booking.SuspendedBusinessError
		fe *booking.ForbiddenError
		pv *policy.Violation
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &ce):
		writeError(w, http.StatusConflict, ce.Error())
	case errors.As(err, &se):
		writeError(w, http.StatusForbidden, se.Error())
	case errors.As(err, &fe):
		writeError(w, http.StatusForbidden, fe.Error())
	case errors.As(err, &pv):
		writeError(w, http.StatusUnprocessableEntity, pv.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
