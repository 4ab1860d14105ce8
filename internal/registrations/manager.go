package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherhub/backend/internal/models"
)

// Manager owns the lifecycle of a user's registration to an event. It admits
// a user only while the event's capacity allows it and keeps the denormalized
// registered_count in lockstep with the live rows, under one atomic unit of
// work per operation.
type Manager struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a registration manager.
func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger, now: time.Now}
}

// Create registers a user for an event. Inside a single transaction it locks
// the event row, then checks in order: event exists, event is published,
// capacity remains, user not already registered. Two concurrent calls for the
// last remaining slot therefore serialize on the row lock and exactly one
// succeeds.
func (m *Manager) Create(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	var reg *models.Registration
	err := m.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		event, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if event.Status != models.EventStatusPublished {
			return ErrEventNotOpen
		}
		if !event.HasFreeCapacity() {
			return ErrCapacityExceeded
		}
		exists, err := tx.RegistrationExists(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyRegistered
		}

		now := m.now().UTC()
		reg = &models.Registration{
			ID:        uuid.New(),
			EventID:   eventID,
			UserID:    userID,
			Status:    models.RegistrationStatusRegistered,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertRegistration(ctx, reg); err != nil {
			return err
		}
		if _, err := tx.AdjustRegisteredCount(ctx, eventID, 1); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// ConfirmDeposit marks a registration as deposited. Repeat confirmation is a
// conflict rather than a no-op; callers are expected to check status first.
func (m *Manager) ConfirmDeposit(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	var reg *models.Registration
	err := m.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		reg, err = tx.GetRegistration(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if reg == nil {
			return ErrRegistrationNotFound
		}
		if reg.Status == models.RegistrationStatusDeposited {
			return ErrDepositAlreadyConfirmed
		}
		if err := tx.UpdateRegistrationStatus(ctx, reg.ID, models.RegistrationStatusDeposited); err != nil {
			return err
		}
		reg.Status = models.RegistrationStatusDeposited
		reg.UpdatedAt = m.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Remove cancels a registration: the row is deleted and the event counter
// decremented in the same transaction. Cancellation is permitted from either
// status. A counter already at zero indicates drift between the counter and
// the live rows; it is clamped and logged, not treated as fatal.
func (m *Manager) Remove(ctx context.Context, eventID, userID uuid.UUID) error {
	return m.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		event, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			if errors.Is(err, ErrEventNotFound) {
				return ErrRegistrationNotFound
			}
			return err
		}
		reg, err := tx.GetRegistration(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if reg == nil {
			return ErrRegistrationNotFound
		}
		if err := tx.DeleteRegistration(ctx, reg.ID); err != nil {
			return err
		}
		if event.RegisteredCount <= 0 {
			m.logger.Warn("registered_count drift: counter already zero on remove",
				zap.String("event_id", eventID.String()))
		}
		if _, err := tx.AdjustRegisteredCount(ctx, eventID, -1); err != nil {
			return err
		}
		return nil
	})
}

// GetStatus reports a user's registration state for an event. A missing
// registration is not an error.
func (m *Manager) GetStatus(ctx context.Context, eventID, userID uuid.UUID) (*models.RegistrationStatusView, error) {
	reg, err := m.store.GetRegistration(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return &models.RegistrationStatusView{IsRegistered: false}, nil
	}
	registeredAt := reg.CreatedAt
	return &models.RegistrationStatusView{
		IsRegistered: true,
		Status:       reg.Status,
		RegisteredAt: &registeredAt,
	}, nil
}
