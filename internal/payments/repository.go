package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherhub/backend/internal/models"
	"github.com/gatherhub/backend/pkg/database"
)

// Repository is the pgx-backed Store for pending payment orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreatePending inserts a new pending order.
func (r *Repository) CreatePending(ctx context.Context, t *models.Transaction) error {
	const q = `INSERT INTO transactions (order_code, user_id, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	t.Status = models.TransactionStatusPending
	err := r.pool.QueryRow(ctx, q, t.OrderCode, t.UserID, t.Amount, t.Status).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// PendingByOrderCode returns the pending order for a code, or nil.
func (r *Repository) PendingByOrderCode(ctx context.Context, code string) (*models.Transaction, error) {
	const q = `SELECT id, order_code, user_id, amount, status, created_at, updated_at
		FROM transactions WHERE order_code = $1 AND status = $2`
	return r.scanOne(ctx, q, code, models.TransactionStatusPending)
}

// PendingByUser returns the user's open pending order, or nil.
func (r *Repository) PendingByUser(ctx context.Context, userID uuid.UUID) (*models.Transaction, error) {
	const q = `SELECT id, order_code, user_id, amount, status, created_at, updated_at
		FROM transactions WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(ctx, q, userID, models.TransactionStatusPending)
}

// LatestByUser returns the user's most recent order of any status, or nil.
func (r *Repository) LatestByUser(ctx context.Context, userID uuid.UUID) (*models.Transaction, error) {
	const q = `SELECT id, order_code, user_id, amount, status, created_at, updated_at
		FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(ctx, q, userID)
}

// Complete flips the order from pending to completed and runs the completion
// effect inside the same database transaction. The status UPDATE is filtered
// on the pending state, so a concurrent completion makes this a clean
// ErrNotPending instead of a double effect.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, effect func(ctx context.Context, uow database.DBTX) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `UPDATE transactions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`
	tag, err := tx.Exec(ctx, q, id, models.TransactionStatusCompleted, models.TransactionStatusPending)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}

	if err := effect(ctx, tx); err != nil {
		return &CompletionEffectError{Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure. Only a pending order can fail.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE transactions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`
	if _, err := r.pool.Exec(ctx, q, id, models.TransactionStatusFailed, models.TransactionStatusPending); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (r *Repository) scanOne(ctx context.Context, q string, args ...any) (*models.Transaction, error) {
	var t models.Transaction
	err := r.pool.QueryRow(ctx, q, args...).
		Scan(&t.ID, &t.OrderCode, &t.UserID, &t.Amount, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}
