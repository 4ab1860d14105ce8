package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/gatherhub/backend/internal/models"
	"github.com/gatherhub/backend/pkg/database"
)

// ErrNotPending is returned by Complete when the transaction has already left
// the pending state, e.g. because a concurrent delivery won the race.
var ErrNotPending = errors.New("transaction is not pending")

// CompletionEffectError wraps a failure raised by the completion effect, so
// the reconciler can tell it apart from infrastructure errors: an effect
// failure marks the order failed (terminal), anything else leaves it pending
// for the next delivery.
type CompletionEffectError struct {
	Err error
}

func (e *CompletionEffectError) Error() string { return "completion effect: " + e.Err.Error() }
func (e *CompletionEffectError) Unwrap() error { return e.Err }

// Store is the pending-order persistence surface the reconciler drives.
type Store interface {
	// CreatePending inserts a new pending order.
	CreatePending(ctx context.Context, tx *models.Transaction) error

	// PendingByOrderCode returns the pending order carrying the code, or nil
	// when no such pending order exists. This lookup is the idempotency
	// boundary for the whole reconciliation path.
	PendingByOrderCode(ctx context.Context, code string) (*models.Transaction, error)

	// PendingByUser returns the user's open pending order, or nil.
	PendingByUser(ctx context.Context, userID uuid.UUID) (*models.Transaction, error)

	// LatestByUser returns the user's most recent order of any status, or nil.
	LatestByUser(ctx context.Context, userID uuid.UUID) (*models.Transaction, error)

	// Complete atomically runs effect and marks the order completed, in one
	// unit of work. The effect receives the transactional handle so its
	// writes commit or roll back together with the status change. Returns
	// ErrNotPending if the order already left the pending state, and a
	// *CompletionEffectError if the effect itself fails.
	Complete(ctx context.Context, id uuid.UUID, effect func(ctx context.Context, uow database.DBTX) error) error

	// MarkFailed records a terminal failure for operator follow-up.
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
