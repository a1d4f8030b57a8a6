// Package actions persists backend actions triggered by actionable
// intents: support tickets, quote requests, and appointment bookings.
package actions

import (
	"context"
	"time"
)

// Ticket is a support ticket opened on the user's behalf.
type Ticket struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Quote is a cost-estimation request queued for the sales pipeline.
type Quote struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Request   string    `json:"request"`
	CreatedAt time.Time `json:"created_at"`
}

// Appointment is a booking or demo request.
type Appointment struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Request   string    `json:"request"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the backend action contract. Each call returns the stored
// record with its assigned ID, which the response step surfaces to the
// user as a reference.
type Store interface {
	CreateTicket(ctx context.Context, t Ticket) (*Ticket, error)
	CreateQuote(ctx context.Context, q Quote) (*Quote, error)
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	Close() error
}
