package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus values. A registration starts as registered and moves to
// deposited once an organizer confirms the attendee's deposit.
const (
	RegistrationStatusRegistered = "registered"
	RegistrationStatusDeposited  = "deposited"
)

// Registration is an attendee registration for an event, unique per
// (event, user) pair. Cancellation deletes the row outright, so a user may
// register again after cancelling.
type Registration struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	UserID    uuid.UUID `json:"user_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegistrationStatusView is the read shape for a user's registration state.
// Absence of a registration is not an error; IsRegistered is simply false.
type RegistrationStatusView struct {
	IsRegistered bool       `json:"is_registered"`
	Status       string     `json:"status,omitempty"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
}
