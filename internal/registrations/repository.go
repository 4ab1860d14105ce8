package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherhub/backend/internal/models"
)

// Repository is the pgx-backed Store. Atomicity comes from a database
// transaction plus a SELECT ... FOR UPDATE lock on the event row, so
// concurrent registration attempts for the same event serialize instead of
// both reading the same counter snapshot.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a single database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	dbtx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(ctx, &pgxTx{tx: dbtx}); err != nil {
		_ = dbtx.Rollback(ctx)
		return err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetRegistration returns the registration for (event, user), or nil when absent.
func (r *Repository) GetRegistration(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	return scanRegistration(ctx, r.pool, eventID, userID)
}

// pgxTx adapts a pgx transaction to the Tx interface.
type pgxTx struct {
	tx pgx.Tx
}

// EventForUpdate loads the event row under an exclusive row-level lock held
// until the transaction resolves.
func (t *pgxTx) EventForUpdate(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	const q = `SELECT id, title, COALESCE(description,''), status, capacity, registered_count, created_by, starts_at, created_at, updated_at
		FROM events WHERE id = $1 FOR UPDATE`
	var e models.Event
	err := t.tx.QueryRow(ctx, q, eventID).Scan(&e.ID, &e.Title, &e.Description, &e.Status, &e.Capacity,
		&e.RegisteredCount, &e.CreatedBy, &e.StartsAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return &e, nil
}

func (t *pgxTx) RegistrationExists(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND user_id = $2)`
	var exists bool
	if err := t.tx.QueryRow(ctx, q, eventID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check existing registration: %w", err)
	}
	return exists, nil
}

func (t *pgxTx) GetRegistration(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	return scanRegistration(ctx, t.tx, eventID, userID)
}

func (t *pgxTx) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (id, event_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`
	if _, err := t.tx.Exec(ctx, q, reg.ID, reg.EventID, reg.UserID, reg.Status, reg.CreatedAt); err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (t *pgxTx) UpdateRegistrationStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE registrations SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := t.tx.Exec(ctx, q, id, status); err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	return nil
}

func (t *pgxTx) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return nil
}

func (t *pgxTx) AdjustRegisteredCount(ctx context.Context, eventID uuid.UUID, delta int) (int, error) {
	const q = `UPDATE events SET registered_count = GREATEST(registered_count + $2, 0), updated_at = NOW()
		WHERE id = $1 RETURNING registered_count`
	var count int
	if err := t.tx.QueryRow(ctx, q, eventID, delta).Scan(&count); err != nil {
		return 0, fmt.Errorf("adjust registered_count: %w", err)
	}
	return count, nil
}

// queryRower is satisfied by both the pool and a transaction.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanRegistration(ctx context.Context, db queryRower, eventID, userID uuid.UUID) (*models.Registration, error) {
	const q = `SELECT id, event_id, user_id, status, created_at, updated_at
		FROM registrations WHERE event_id = $1 AND user_id = $2`
	var reg models.Registration
	err := db.QueryRow(ctx, q, eventID, userID).Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}
