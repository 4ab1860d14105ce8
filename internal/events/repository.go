package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherhub/backend/internal/models"
)

// ErrNotFound is returned when a requested event does not exist.
var ErrNotFound = errors.New("event not found")

// Repository handles event persistence. Note that registered_count is never
// written here; only the registration manager mutates it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new event in draft status.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, status, capacity, created_by, starts_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, registered_count, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Status, e.Capacity, e.CreatedBy, e.StartsAt).
		Scan(&e.ID, &e.RegisteredCount, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	const q = `SELECT id, title, COALESCE(description,''), status, capacity, registered_count, created_by, starts_at, created_at, updated_at
		FROM events WHERE id = $1`
	var e models.Event
	err := r.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.Title, &e.Description, &e.Status, &e.Capacity,
		&e.RegisteredCount, &e.CreatedBy, &e.StartsAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// List returns events, optionally filtered by status, newest start first.
func (r *Repository) List(ctx context.Context, status string) ([]models.Event, error) {
	base := `SELECT id, title, COALESCE(description,''), status, capacity, registered_count, created_by, starts_at, created_at, updated_at FROM events`
	var rows pgx.Rows
	var err error
	if status != "" {
		rows, err = r.pool.Query(ctx, base+` WHERE status = $1 ORDER BY starts_at DESC`, status)
	} else {
		rows, err = r.pool.Query(ctx, base+` ORDER BY starts_at DESC`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Status, &e.Capacity,
			&e.RegisteredCount, &e.CreatedBy, &e.StartsAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// UpdateStatus transitions an event's lifecycle status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
