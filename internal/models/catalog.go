package models

import "time"

// Business is a tenant exposing services and staff for booking.
type Business struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Suspended      bool      `json:"suspended"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Service is a bookable offering of a business.
type Service struct {
	ID              int64     `json:"id"`
	BusinessID      int64     `json:"business_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Employee is a staff member of a business. An employee may carry an
// individual weekly schedule overriding the business one.
type Employee struct {
	ID         int64     `json:"id"`
	BusinessID int64     `json:"business_id"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Client books appointments with businesses.
type Client struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Role identifies the kind of actor performing a booking operation.
type Role string

const (
	RoleClient   Role = "client"
	RoleBusiness Role = "business"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated principal behind a request. Authentication
// itself happens outside the engine; the actor only feeds the ownership
// predicate on booking operations.
type Actor struct {
	Role       Role  `json:"role"`
	ClientID   int64 `json:"client_id,omitempty"`
	BusinessID int64 `json:"business_id,omitempty"`
	EmployeeID int64 `json:"employee_id,omitempty"`
}
