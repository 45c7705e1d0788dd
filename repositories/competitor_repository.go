package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/brickrace/race-server/models"
)

var (
	ErrCompetitorNotFound   = errors.New("competitor not found")
	ErrDuplicateRacerNumber = errors.New("racer number already in use")
)

type CompetitorRepository interface {
	Create(ctx context.Context, competitor *models.Competitor) (int, error)
	GetByID(ctx context.Context, id int) (*models.Competitor, error)
	GetByIDs(ctx context.Context, ids []int) (map[int]*models.Competitor, error)
	List(ctx context.Context) ([]models.Competitor, error)
	Update(ctx context.Context, competitor *models.Competitor) error
	SetCheckedIn(ctx context.Context, id int, checkedIn bool) error
	SetPhotoKey(ctx context.Context, id int, photoKey string) error
	// ListEligible returns checked-in competitors without a withdrawal for
	// the event, each carrying their best completed qualifying time.
	// Ordered fastest first, untimed competitors last.
	ListEligible(ctx context.Context, eventID int) ([]models.Competitor, error)
}

type postgresCompetitorRepository struct {
	db *sql.DB
}

func NewPostgresCompetitorRepository(db *sql.DB) CompetitorRepository {
	return &postgresCompetitorRepository{db: db}
}

func (r *postgresCompetitorRepository) Create(ctx context.Context, competitor *models.Competitor) (int, error) {
	query := `
		INSERT INTO competitors (name, racer_number, builder_name, checked_in)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		competitor.Name,
		competitor.RacerNumber,
		competitor.BuilderName,
		competitor.CheckedIn,
	).Scan(&competitor.ID, &competitor.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrDuplicateRacerNumber
		}
		return 0, fmt.Errorf("failed to create competitor: %w", err)
	}
	return competitor.ID, nil
}

func (r *postgresCompetitorRepository) GetByID(ctx context.Context, id int) (*models.Competitor, error) {
	query := `
		SELECT id, name, racer_number, builder_name, photo_key, checked_in, created_at
		FROM competitors
		WHERE id = $1`

	competitor := &models.Competitor{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&competitor.ID,
		&competitor.Name,
		&competitor.RacerNumber,
		&competitor.BuilderName,
		&competitor.PhotoKey,
		&competitor.CheckedIn,
		&competitor.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitorNotFound
		}
		return nil, fmt.Errorf("failed to get competitor %d: %w", id, err)
	}
	return competitor, nil
}

func (r *postgresCompetitorRepository) GetByIDs(ctx context.Context, ids []int) (map[int]*models.Competitor, error) {
	result := make(map[int]*models.Competitor, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `
		SELECT id, name, racer_number, builder_name, photo_key, checked_in, created_at
		FROM competitors
		WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query competitors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		competitor := &models.Competitor{}
		err := rows.Scan(
			&competitor.ID,
			&competitor.Name,
			&competitor.RacerNumber,
			&competitor.BuilderName,
			&competitor.PhotoKey,
			&competitor.CheckedIn,
			&competitor.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competitor: %w", err)
		}
		result[competitor.ID] = competitor
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating competitors: %w", err)
	}
	return result, nil
}

func (r *postgresCompetitorRepository) List(ctx context.Context) ([]models.Competitor, error) {
	query := `
		SELECT id, name, racer_number, builder_name, photo_key, checked_in, created_at
		FROM competitors
		ORDER BY racer_number`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	defer rows.Close()

	var competitors []models.Competitor
	for rows.Next() {
		var competitor models.Competitor
		err := rows.Scan(
			&competitor.ID,
			&competitor.Name,
			&competitor.RacerNumber,
			&competitor.BuilderName,
			&competitor.PhotoKey,
			&competitor.CheckedIn,
			&competitor.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competitor: %w", err)
		}
		competitors = append(competitors, competitor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating competitors: %w", err)
	}
	return competitors, nil
}

func (r *postgresCompetitorRepository) Update(ctx context.Context, competitor *models.Competitor) error {
	query := `
		UPDATE competitors
		SET name = $1, racer_number = $2, builder_name = $3
		WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query,
		competitor.Name,
		competitor.RacerNumber,
		competitor.BuilderName,
		competitor.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateRacerNumber
		}
		return fmt.Errorf("failed to update competitor %d: %w", competitor.ID, err)
	}
	return checkAffectedRows(result, ErrCompetitorNotFound)
}

func (r *postgresCompetitorRepository) SetCheckedIn(ctx context.Context, id int, checkedIn bool) error {
	query := `UPDATE competitors SET checked_in = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, checkedIn, id)
	if err != nil {
		return fmt.Errorf("failed to update check-in for competitor %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrCompetitorNotFound)
}

func (r *postgresCompetitorRepository) SetPhotoKey(ctx context.Context, id int, photoKey string) error {
	query := `UPDATE competitors SET photo_key = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, photoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update photo for competitor %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrCompetitorNotFound)
}

func (r *postgresCompetitorRepository) ListEligible(ctx context.Context, eventID int) ([]models.Competitor, error) {
	query := `
		SELECT c.id, c.name, c.racer_number, c.builder_name, c.photo_key, c.checked_in, c.created_at,
		       MIN(q.time) AS best_time
		FROM competitors c
		LEFT JOIN qualifiers q
		       ON q.competitor_id = c.id AND q.event_id = $1 AND q.status = 'completed' AND q.time IS NOT NULL
		WHERE c.checked_in = TRUE
		  AND NOT EXISTS (
		      SELECT 1 FROM withdrawals w
		      WHERE w.event_id = $1 AND w.competitor_id = c.id
		  )
		GROUP BY c.id
		ORDER BY MIN(q.time) ASC NULLS LAST, c.racer_number`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible competitors: %w", err)
	}
	defer rows.Close()

	var competitors []models.Competitor
	for rows.Next() {
		var competitor models.Competitor
		err := rows.Scan(
			&competitor.ID,
			&competitor.Name,
			&competitor.RacerNumber,
			&competitor.BuilderName,
			&competitor.PhotoKey,
			&competitor.CheckedIn,
			&competitor.CreatedAt,
			&competitor.BestTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan eligible competitor: %w", err)
		}
		competitors = append(competitors, competitor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating eligible competitors: %w", err)
	}
	return competitors, nil
}
