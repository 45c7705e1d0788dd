package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brickrace/race-server/models"
)

var ErrQualifierNotFound = errors.New("qualifier not found")

type QualifierRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, qualifiers []models.Qualifier) error
	ListByEvent(ctx context.Context, eventID int) ([]models.Qualifier, error)
	GetHeat(ctx context.Context, eventID, heatNumber int) ([]models.Qualifier, error)
	// NextScheduledHeatNumber returns the lowest heat number that still has
	// a scheduled slot, or ErrQualifierNotFound when qualifying is drained.
	NextScheduledHeatNumber(ctx context.Context, eventID int) (int, error)
	MaxHeatNumber(ctx context.Context, eventID int) (int, error)
	RecordTime(ctx context.Context, exec SQLExecutor, id int, time float64) error
	SetHeatStatus(ctx context.Context, exec SQLExecutor, eventID, heatNumber int, status models.HeatStatus) error
	CountByEvent(ctx context.Context, eventID int) (int, error)
	CountIncompleteByEvent(ctx context.Context, eventID int) (int, error)
	CountScheduledByCompetitor(ctx context.Context, eventID, competitorID int) (int, error)
	DeleteScheduledByCompetitor(ctx context.Context, exec SQLExecutor, eventID, competitorID int) (int, error)
}

type postgresQualifierRepository struct {
	db *sql.DB
}

func NewPostgresQualifierRepository(db *sql.DB) QualifierRepository {
	return &postgresQualifierRepository{db: db}
}

func (r *postgresQualifierRepository) CreateBatch(ctx context.Context, exec SQLExecutor, qualifiers []models.Qualifier) error {
	query := `
		INSERT INTO qualifiers (event_id, competitor_id, heat_number, track_number, scheduled_order, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	for i := range qualifiers {
		q := &qualifiers[i]
		err := exec.QueryRowContext(ctx, query,
			q.EventID,
			q.CompetitorID,
			q.HeatNumber,
			q.TrackNumber,
			q.ScheduledOrder,
			q.Status,
		).Scan(&q.ID, &q.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create qualifier slot (heat %d track %d): %w", q.HeatNumber, q.TrackNumber, err)
		}
	}
	return nil
}

func (r *postgresQualifierRepository) scanRows(rows *sql.Rows) ([]models.Qualifier, error) {
	var qualifiers []models.Qualifier
	for rows.Next() {
		var q models.Qualifier
		err := rows.Scan(
			&q.ID,
			&q.EventID,
			&q.CompetitorID,
			&q.HeatNumber,
			&q.TrackNumber,
			&q.ScheduledOrder,
			&q.Status,
			&q.Time,
			&q.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan qualifier: %w", err)
		}
		qualifiers = append(qualifiers, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating qualifiers: %w", err)
	}
	return qualifiers, nil
}

func (r *postgresQualifierRepository) ListByEvent(ctx context.Context, eventID int) ([]models.Qualifier, error) {
	query := `
		SELECT id, event_id, competitor_id, heat_number, track_number, scheduled_order, status, time, created_at
		FROM qualifiers
		WHERE event_id = $1
		ORDER BY scheduled_order, track_number`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list qualifiers: %w", err)
	}
	defer rows.Close()
	return r.scanRows(rows)
}

func (r *postgresQualifierRepository) GetHeat(ctx context.Context, eventID, heatNumber int) ([]models.Qualifier, error) {
	query := `
		SELECT id, event_id, competitor_id, heat_number, track_number, scheduled_order, status, time, created_at
		FROM qualifiers
		WHERE event_id = $1 AND heat_number = $2
		ORDER BY track_number`

	rows, err := r.db.QueryContext(ctx, query, eventID, heatNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get qualifying heat %d: %w", heatNumber, err)
	}
	defer rows.Close()

	qualifiers, err := r.scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(qualifiers) == 0 {
		return nil, ErrQualifierNotFound
	}
	return qualifiers, nil
}

func (r *postgresQualifierRepository) NextScheduledHeatNumber(ctx context.Context, eventID int) (int, error) {
	query := `
		SELECT heat_number
		FROM qualifiers
		WHERE event_id = $1 AND status = 'scheduled'
		ORDER BY scheduled_order
		LIMIT 1`

	var heatNumber int
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(&heatNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrQualifierNotFound
		}
		return 0, fmt.Errorf("failed to find next scheduled heat: %w", err)
	}
	return heatNumber, nil
}

func (r *postgresQualifierRepository) MaxHeatNumber(ctx context.Context, eventID int) (int, error) {
	query := `SELECT COALESCE(MAX(heat_number), 0) FROM qualifiers WHERE event_id = $1`

	var max int
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to get max heat number: %w", err)
	}
	return max, nil
}

func (r *postgresQualifierRepository) RecordTime(ctx context.Context, exec SQLExecutor, id int, time float64) error {
	query := `UPDATE qualifiers SET time = $1, status = 'completed' WHERE id = $2`

	result, err := exec.ExecContext(ctx, query, time, id)
	if err != nil {
		return fmt.Errorf("failed to record time for qualifier %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrQualifierNotFound)
}

func (r *postgresQualifierRepository) SetHeatStatus(ctx context.Context, exec SQLExecutor, eventID, heatNumber int, status models.HeatStatus) error {
	query := `UPDATE qualifiers SET status = $1 WHERE event_id = $2 AND heat_number = $3`

	result, err := exec.ExecContext(ctx, query, status, eventID, heatNumber)
	if err != nil {
		return fmt.Errorf("failed to update heat %d status: %w", heatNumber, err)
	}
	return checkAffectedRows(result, ErrQualifierNotFound)
}

func (r *postgresQualifierRepository) CountByEvent(ctx context.Context, eventID int) (int, error) {
	query := `SELECT COUNT(*) FROM qualifiers WHERE event_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count qualifiers: %w", err)
	}
	return count, nil
}

func (r *postgresQualifierRepository) CountIncompleteByEvent(ctx context.Context, eventID int) (int, error) {
	query := `SELECT COUNT(*) FROM qualifiers WHERE event_id = $1 AND status <> 'completed'`

	var count int
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count incomplete qualifiers: %w", err)
	}
	return count, nil
}

func (r *postgresQualifierRepository) CountScheduledByCompetitor(ctx context.Context, eventID, competitorID int) (int, error) {
	query := `SELECT COUNT(*) FROM qualifiers WHERE event_id = $1 AND competitor_id = $2 AND status = 'scheduled'`

	var count int
	if err := r.db.QueryRowContext(ctx, query, eventID, competitorID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scheduled qualifiers: %w", err)
	}
	return count, nil
}

func (r *postgresQualifierRepository) DeleteScheduledByCompetitor(ctx context.Context, exec SQLExecutor, eventID, competitorID int) (int, error) {
	query := `DELETE FROM qualifiers WHERE event_id = $1 AND competitor_id = $2 AND status = 'scheduled'`

	result, err := exec.ExecContext(ctx, query, eventID, competitorID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scheduled qualifiers for competitor %d: %w", competitorID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return int(affected), nil
}
