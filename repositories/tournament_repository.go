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
	ErrTournamentNotFound = errors.New("tournament instance not found")
	ErrTournamentExists   = errors.New("tournament instance already exists for event")
	ErrSeedNotFound       = errors.New("seed entry not found")
	ErrSeedExists         = errors.New("competitor already registered in tournament")
)

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, instance *models.TournamentInstance) (int, error)
	GetByID(ctx context.Context, id int) (*models.TournamentInstance, error)
	GetByEventID(ctx context.Context, eventID int) (*models.TournamentInstance, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error

	CreateSeed(ctx context.Context, exec SQLExecutor, seed *models.SeedEntry) (int, error)
	ListSeeds(ctx context.Context, tournamentID int) ([]models.SeedEntry, error)
	GetSeedByCompetitor(ctx context.Context, tournamentID, competitorID int) (*models.SeedEntry, error)
	GetSeedByParticipantID(ctx context.Context, tournamentID int, participantID string) (*models.SeedEntry, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, instance *models.TournamentInstance) (int, error) {
	query := `
		INSERT INTO tournament_instances (event_id, challonge_tournament_id, challonge_url, tournament_type, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := exec.QueryRowContext(ctx, query,
		instance.EventID,
		instance.ChallongeTournamentID,
		instance.ChallongeURL,
		instance.TournamentType,
		instance.Status,
	).Scan(&instance.ID, &instance.CreatedAt, &instance.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrTournamentExists
		}
		return 0, fmt.Errorf("failed to create tournament instance: %w", err)
	}
	return instance.ID, nil
}

const tournamentColumns = `id, event_id, challonge_tournament_id, challonge_url, tournament_type, status, created_at, updated_at`

func (r *postgresTournamentRepository) scanInstance(row *sql.Row) (*models.TournamentInstance, error) {
	instance := &models.TournamentInstance{}
	err := row.Scan(
		&instance.ID,
		&instance.EventID,
		&instance.ChallongeTournamentID,
		&instance.ChallongeURL,
		&instance.TournamentType,
		&instance.Status,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament instance: %w", err)
	}
	return instance, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.TournamentInstance, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournament_instances WHERE id = $1`
	return r.scanInstance(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetByEventID(ctx context.Context, eventID int) (*models.TournamentInstance, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournament_instances WHERE event_id = $1`
	return r.scanInstance(r.db.QueryRowContext(ctx, query, eventID))
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	query := `UPDATE tournament_instances SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := exec.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) CreateSeed(ctx context.Context, exec SQLExecutor, seed *models.SeedEntry) (int, error) {
	query := `
		INSERT INTO seed_entries (tournament_id, competitor_id, challonge_participant_id, seed)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		seed.TournamentID,
		seed.CompetitorID,
		seed.ChallongeParticipantID,
		seed.Seed,
	).Scan(&seed.ID, &seed.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrSeedExists
		}
		return 0, fmt.Errorf("failed to create seed entry: %w", err)
	}
	return seed.ID, nil
}

const seedColumns = `id, tournament_id, competitor_id, challonge_participant_id, seed, created_at`

func (r *postgresTournamentRepository) ListSeeds(ctx context.Context, tournamentID int) ([]models.SeedEntry, error) {
	query := `SELECT ` + seedColumns + ` FROM seed_entries WHERE tournament_id = $1 ORDER BY seed ASC NULLS LAST, id`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seed entries: %w", err)
	}
	defer rows.Close()

	var seeds []models.SeedEntry
	for rows.Next() {
		var seed models.SeedEntry
		err := rows.Scan(
			&seed.ID,
			&seed.TournamentID,
			&seed.CompetitorID,
			&seed.ChallongeParticipantID,
			&seed.Seed,
			&seed.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seed entry: %w", err)
		}
		seeds = append(seeds, seed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating seed entries: %w", err)
	}
	return seeds, nil
}

func (r *postgresTournamentRepository) scanSeed(row *sql.Row) (*models.SeedEntry, error) {
	seed := &models.SeedEntry{}
	err := row.Scan(
		&seed.ID,
		&seed.TournamentID,
		&seed.CompetitorID,
		&seed.ChallongeParticipantID,
		&seed.Seed,
		&seed.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeedNotFound
		}
		return nil, fmt.Errorf("failed to scan seed entry: %w", err)
	}
	return seed, nil
}

func (r *postgresTournamentRepository) GetSeedByCompetitor(ctx context.Context, tournamentID, competitorID int) (*models.SeedEntry, error) {
	query := `SELECT ` + seedColumns + ` FROM seed_entries WHERE tournament_id = $1 AND competitor_id = $2`
	return r.scanSeed(r.db.QueryRowContext(ctx, query, tournamentID, competitorID))
}

func (r *postgresTournamentRepository) GetSeedByParticipantID(ctx context.Context, tournamentID int, participantID string) (*models.SeedEntry, error) {
	query := `SELECT ` + seedColumns + ` FROM seed_entries WHERE tournament_id = $1 AND challonge_participant_id = $2`
	return r.scanSeed(r.db.QueryRowContext(ctx, query, tournamentID, participantID))
}
