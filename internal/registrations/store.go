package registrations

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatherhub/backend/internal/models"
)

// Store is the persistence surface the registration manager drives. WithTx
// opens one atomic unit of work; every mutation the manager performs goes
// through the Tx handle it receives, never through ambient state.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// GetRegistration is the plain read used outside any transaction.
	// Returns (nil, nil) when no registration exists.
	GetRegistration(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error)
}

// Tx is the transactional handle passed into the manager's unit of work.
//
// EventForUpdate must lock the event row (or an equivalent serialization
// point) for the remainder of the transaction, so that the capacity check and
// the counter adjustment are observed as a single atomic step by any
// concurrent unit of work on the same event.
type Tx interface {
	EventForUpdate(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	RegistrationExists(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
	GetRegistration(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error)
	InsertRegistration(ctx context.Context, reg *models.Registration) error
	UpdateRegistrationStatus(ctx context.Context, id uuid.UUID, status string) error
	DeleteRegistration(ctx context.Context, id uuid.UUID) error

	// AdjustRegisteredCount adds delta to the event's counter, clamped at
	// zero, and returns the resulting value.
	AdjustRegisteredCount(ctx context.Context, eventID uuid.UUID, delta int) (int, error)
}
