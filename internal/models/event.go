package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus for the event lifecycle. Only published events accept registrations.
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusClosed    = "closed"
	EventStatusCancelled = "cancelled"
)

// Event is a bookable community event.
//
// Capacity is nil for unlimited events. RegisteredCount is a denormalized
// counter maintained exclusively by the registration manager; it never exceeds
// Capacity when Capacity is set.
type Event struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Status          string    `json:"status"`
	Capacity        *int      `json:"capacity,omitempty"`
	RegisteredCount int       `json:"registered_count"`
	CreatedBy       uuid.UUID `json:"created_by"`
	StartsAt        time.Time `json:"starts_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasFreeCapacity reports whether one more registration fits.
func (e *Event) HasFreeCapacity() bool {
	return e.Capacity == nil || e.RegisteredCount < *e.Capacity
}
