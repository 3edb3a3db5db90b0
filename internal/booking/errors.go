package booking

import (
	"fmt"

	"zapisly/internal/models"
)

// ValidationError marks malformed or unresolvable input: a bad id, an
// unknown service or employee name, an unusable request.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// NotFoundError marks an absent entity.
type NotFoundError struct {
	Kind string // "booking", "business", "service", "employee"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// ConflictError means the slot was taken at commit time. It is a race,
// not a rule breach, and distinct from a policy violation.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string {
	if e.Msg == "" {
		return "slot is no longer available"
	}
	return e.Msg
}

// SuspendedBusinessError blocks booking creation for inactive tenants.
type SuspendedBusinessError struct {
	BusinessID int64
}

func (e *SuspendedBusinessError) Error() string {
	return fmt.Sprintf("business %d is suspended", e.BusinessID)
}

// ForbiddenError means the actor fails the ownership predicate for the
// booking it is trying to touch.
type ForbiddenError struct {
	Actor     models.Actor
	BookingID int64
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s actor may not modify booking %d", e.Actor.Role, e.BookingID)
}
