// Package tools exposes the booking operations as named, role-scoped
// tools with JSON arguments, the call surface used by conversational
// front ends.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"zapisly/internal/availability"
	"zapisly/internal/booking"
	"zapisly/internal/models"
)

// Handler executes a tool call. args is the raw JSON argument object.
type Handler func(ctx context.Context, actor models.Actor, args json.RawMessage) (interface{}, error)

// Tool is a registered operation.
type Tool struct {
	Name        string
	Description string
	Roles       []models.Role // empty means any role
	Handler     Handler
}

// Registry holds tools and dispatches calls with role checks applied.
type Registry struct {
	tools  map[string]Tool
	logger zerolog.Logger
}

// UnknownToolError is returned for a name with no registered tool.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// NewRegistry creates a registry pre-populated with the booking tools.
func NewRegistry(svc *booking.Service, logger zerolog.Logger) *Registry {
	r := &Registry{
		tools:  make(map[string]Tool),
		logger: logger.With().Str("component", "tools").Logger(),
	}
	registerBookingTools(r, svc)
	return r
}

// Register adds a tool. A second registration under the same name
// replaces the first.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name] = t
}

// List returns the tools available to the given actor.
func (r *Registry) List(actor models.Actor) []Tool {
	var out []Tool
	for _, t := range r.tools {
		if roleAllowed(t, actor.Role) {
			out = append(out, t)
		}
	}
	return out
}

// Invoke runs the named tool for the actor.
func (r *Registry) Invoke(ctx context.Context, actor models.Actor, name string, args json.RawMessage) (interface{}, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	if !roleAllowed(t, actor.Role) {
		return nil, &booking.ForbiddenError{Actor: actor}
	}

	r.logger.Debug().
		Str("tool", name).
		Str("role", string(actor.Role)).
		Msg("tool invoked")

	res, err := t.Handler(ctx, actor, args)
	if err != nil {
		r.logger.Warn().Err(err).Str("tool", name).Msg("tool call failed")
		return nil, err
	}
	return res, nil
}

func roleAllowed(t Tool, role models.Role) bool {
	if len(t.Roles) == 0 {
		return true
	}
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type listAvailabilityArgs struct {
	BusinessID      int64  `json:"business_id"`
	EmployeeID      *int64 `json:"employee_id,omitempty"`
	Date            string `json:"date"` // YYYY-MM-DD
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

type createBookingArgs struct {
	BusinessID      int64  `json:"business_id"`
	ServiceID       int64  `json:"service_id,omitempty"`
	ServiceName     string `json:"service_name,omitempty"`
	EmployeeID      *int64 `json:"employee_id,omitempty"`
	EmployeeName    string `json:"employee_name,omitempty"`
	Start           string `json:"start"` // RFC 3339
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	RequireConsent  bool   `json:"require_consent,omitempty"`
}

type cancelBookingArgs struct {
	BookingID int64 `json:"booking_id"`
}

type rescheduleBookingArgs struct {
	BookingID       int64  `json:"booking_id"`
	NewStart        string `json:"new_start"` // RFC 3339
	ServiceID       int64  `json:"service_id,omitempty"`
	ServiceName     string `json:"service_name,omitempty"`
	EmployeeID      *int64 `json:"employee_id,omitempty"`
	EmployeeName    string `json:"employee_name,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

func registerBookingTools(r *Registry, svc *booking.Service) {
	r.Register(Tool{
		Name:        "list_availability",
		Description: "List open slots for a business on a given date.",
		Handler: func(ctx context.Context, actor models.Actor, raw json.RawMessage) (interface{}, error) {
			var args listAvailabilityArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			date, err := time.Parse("2006-01-02", args.Date)
			if err != nil {
				return nil, &booking.ValidationError{Field: "date", Msg: "date must be YYYY-MM-DD"}
			}
			return svc.Availability(ctx, availability.Request{
				BusinessID:      args.BusinessID,
				EmployeeID:      args.EmployeeID,
				Date:            date,
				DurationMinutes: args.DurationMinutes,
			})
		},
	})

	r.Register(Tool{
		Name:        "create_booking",
		Description: "Book a slot for the current client.",
		Roles:       []models.Role{models.RoleClient, models.RoleBusiness, models.RoleAdmin},
		Handler: func(ctx context.Context, actor models.Actor, raw json.RawMessage) (interface{}, error) {
			var args createBookingArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			start, err := time.Parse(time.RFC3339, args.Start)
			if err != nil {
				return nil, &booking.ValidationError{Field: "start", Msg: "start must be RFC 3339"}
			}
			return svc.Create(ctx, booking.CreateRequest{
				BusinessID:      args.BusinessID,
				ServiceID:       args.ServiceID,
				ServiceName:     args.ServiceName,
				EmployeeID:      args.EmployeeID,
				EmployeeName:    args.EmployeeName,
				ClientID:        actor.ClientID,
				Start:           start,
				DurationMinutes: args.DurationMinutes,
				RequireConsent:  args.RequireConsent,
			})
		},
	})

	r.Register(Tool{
		Name:        "cancel_booking",
		Description: "Cancel a booking (idempotent).",
		Handler: func(ctx context.Context, actor models.Actor, raw json.RawMessage) (interface{}, error) {
			var args cancelBookingArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return svc.Cancel(ctx, args.BookingID, actor)
		},
	})

	r.Register(Tool{
		Name:        "reschedule_booking",
		Description: "Move a booking to a new start, keeping its status.",
		Handler: func(ctx context.Context, actor models.Actor, raw json.RawMessage) (interface{}, error) {
			var args rescheduleBookingArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			newStart, err := time.Parse(time.RFC3339, args.NewStart)
			if err != nil {
				return nil, &booking.ValidationError{Field: "new_start", Msg: "new_start must be RFC 3339"}
			}
			return svc.Reschedule(ctx, args.BookingID, actor, booking.RescheduleRequest{
				NewStart:        newStart,
				ServiceID:       args.ServiceID,
				ServiceName:     args.ServiceName,
				EmployeeID:      args.EmployeeID,
				EmployeeName:    args.EmployeeName,
				DurationMinutes: args.DurationMinutes,
			})
		},
	})
}

func decodeArgs(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return &booking.ValidationError{Field: "args", Msg: "arguments required"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &booking.ValidationError{Field: "args", Msg: "malformed arguments: " + err.Error()}
	}
	return nil
}
