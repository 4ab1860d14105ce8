package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherhub/backend/internal/models"
	"github.com/gatherhub/backend/internal/sepay"
	"github.com/gatherhub/backend/pkg/database"
)

// CompletionEffect is the side effect of a matched, sufficient payment. It
// runs inside the same unit of work that marks the order completed; the uow
// handle must be used for any writes so they commit atomically with the
// status change. The current wiring promotes the paying user to organizer.
type CompletionEffect func(ctx context.Context, uow database.DBTX, userID uuid.UUID) error

// Notifier is called after an order completes, outside the database
// transaction. Failures are the notifier's own concern.
type Notifier func(ctx context.Context, order *models.Transaction)

// Reconciler matches externally observed bank transactions against internal
// pending orders. Webhook pushes and poll cycles both funnel into ProcessOne;
// repeated delivery of the same external transaction is safe because only a
// still-pending order can match.
type Reconciler struct {
	store  Store
	effect CompletionEffect
	notify Notifier
	logger *zap.Logger
}

// NewReconciler creates a payment reconciler. notify may be nil.
func NewReconciler(store Store, effect CompletionEffect, notify Notifier, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, effect: effect, notify: notify, logger: logger}
}

// ProcessOne reconciles a single external bank transaction.
//
// Irrelevant transactions (no order code, or no pending order for the code)
// are silently skipped; that is the common case for unrelated bank traffic
// and for redelivered transactions whose order has already completed or
// failed. An insufficient amount leaves the order pending for a later
// corrected transfer. A sufficient match completes the order and runs the
// completion effect exactly once; if the effect fails, the order is marked
// failed and stays terminal for operator review.
func (r *Reconciler) ProcessOne(ctx context.Context, ext sepay.Transaction) error {
	code := ExtractOrderCode(ext.Description)
	if code == "" {
		return nil
	}

	order, err := r.store.PendingByOrderCode(ctx, code)
	if err != nil {
		return fmt.Errorf("lookup order %s: %w", code, err)
	}
	if order == nil {
		return nil
	}

	if ext.Amount < float64(order.Amount) {
		r.logger.Info("insufficient payment, order left pending",
			zap.String("order_code", code),
			zap.Float64("received", ext.Amount),
			zap.Int64("expected", order.Amount))
		return nil
	}

	err = r.store.Complete(ctx, order.ID, func(ctx context.Context, uow database.DBTX) error {
		return r.effect(ctx, uow, order.UserID)
	})
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			return nil
		}
		var effectErr *CompletionEffectError
		if errors.As(err, &effectErr) {
			r.logger.Error("completion effect failed, marking order failed",
				zap.String("order_code", code),
				zap.String("user_id", order.UserID.String()),
				zap.Error(effectErr.Err))
			if failErr := r.store.MarkFailed(ctx, order.ID); failErr != nil {
				return fmt.Errorf("mark order %s failed: %w", code, failErr)
			}
			return err
		}
		return fmt.Errorf("complete order %s: %w", code, err)
	}

	r.logger.Info("payment order completed",
		zap.String("order_code", code),
		zap.String("user_id", order.UserID.String()),
		zap.Float64("amount", ext.Amount))

	if r.notify != nil {
		order.Status = models.TransactionStatusCompleted
		r.notify(ctx, order)
	}
	return nil
}

// ProcessBatch reconciles a list of external transactions independently; one
// entry's failure never aborts the rest.
func (r *Reconciler) ProcessBatch(ctx context.Context, list []sepay.Transaction) {
	for _, ext := range list {
		if err := r.ProcessOne(ctx, ext); err != nil {
			r.logger.Error("reconcile transaction failed",
				zap.String("reference", ext.ReferenceNumber),
				zap.Error(err))
		}
	}
}
