package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brickrace/race-server/models"
)

var ErrEventNotFound = errors.New("event not found")

type EventRepository interface {
	GetByID(ctx context.Context, id int) (*models.Event, error)
	GetBySlug(ctx context.Context, slug string) (*models.Event, error)
	GetActive(ctx context.Context) (*models.Event, error)
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

const eventColumns = `id, name, slug, event_date, location, active, created_at`

func (r *postgresEventRepository) scanEvent(row *sql.Row) (*models.Event, error) {
	event := &models.Event{}
	err := row.Scan(
		&event.ID,
		&event.Name,
		&event.Slug,
		&event.EventDate,
		&event.Location,
		&event.Active,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	return event, nil
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return r.scanEvent(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresEventRepository) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE slug = $1`
	return r.scanEvent(r.db.QueryRowContext(ctx, query, slug))
}

func (r *postgresEventRepository) GetActive(ctx context.Context) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE active = TRUE LIMIT 1`
	return r.scanEvent(r.db.QueryRowContext(ctx, query))
}
