package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brickrace/race-server/models"
)

var ErrSubRoundNotFound = errors.New("sub-round not found")

type SubRoundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, subRound *models.SubRound) (int, error)
	ListByMatch(ctx context.Context, matchID int) ([]models.SubRound, error)
	GetByMatchRound(ctx context.Context, matchID, roundNumber int) (*models.SubRound, error)
	UpdateRacers(ctx context.Context, exec SQLExecutor, id int, racer1ID, racer2ID *int) error
	RecordResult(ctx context.Context, exec SQLExecutor, subRound *models.SubRound) error
	DeleteByMatch(ctx context.Context, exec SQLExecutor, matchID int) error
}

type postgresSubRoundRepository struct {
	db *sql.DB
}

func NewPostgresSubRoundRepository(db *sql.DB) SubRoundRepository {
	return &postgresSubRoundRepository{db: db}
}

const subRoundColumns = `id, match_id, round_number, racer1_id, racer2_id, racer1_track, racer2_track,
	racer1_time, racer2_time, winner_competitor_id, is_forfeit, created_at`

func (r *postgresSubRoundRepository) Create(ctx context.Context, exec SQLExecutor, subRound *models.SubRound) (int, error) {
	query := `
		INSERT INTO sub_rounds (match_id, round_number, racer1_id, racer2_id, racer1_track, racer2_track)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		subRound.MatchID,
		subRound.RoundNumber,
		subRound.Racer1ID,
		subRound.Racer2ID,
		subRound.Racer1Track,
		subRound.Racer2Track,
	).Scan(&subRound.ID, &subRound.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create sub-round %d for match %d: %w", subRound.RoundNumber, subRound.MatchID, err)
	}
	return subRound.ID, nil
}

func scanSubRound(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.SubRound, error) {
	subRound := &models.SubRound{}
	err := scanner.Scan(
		&subRound.ID,
		&subRound.MatchID,
		&subRound.RoundNumber,
		&subRound.Racer1ID,
		&subRound.Racer2ID,
		&subRound.Racer1Track,
		&subRound.Racer2Track,
		&subRound.Racer1Time,
		&subRound.Racer2Time,
		&subRound.WinnerCompetitorID,
		&subRound.IsForfeit,
		&subRound.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return subRound, nil
}

func (r *postgresSubRoundRepository) ListByMatch(ctx context.Context, matchID int) ([]models.SubRound, error) {
	query := `SELECT ` + subRoundColumns + ` FROM sub_rounds WHERE match_id = $1 ORDER BY round_number`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sub-rounds for match %d: %w", matchID, err)
	}
	defer rows.Close()

	var subRounds []models.SubRound
	for rows.Next() {
		subRound, err := scanSubRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sub-round: %w", err)
		}
		subRounds = append(subRounds, *subRound)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sub-rounds: %w", err)
	}
	return subRounds, nil
}

func (r *postgresSubRoundRepository) GetByMatchRound(ctx context.Context, matchID, roundNumber int) (*models.SubRound, error) {
	query := `SELECT ` + subRoundColumns + ` FROM sub_rounds WHERE match_id = $1 AND round_number = $2`

	subRound, err := scanSubRound(r.db.QueryRowContext(ctx, query, matchID, roundNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubRoundNotFound
		}
		return nil, fmt.Errorf("failed to get sub-round %d of match %d: %w", roundNumber, matchID, err)
	}
	return subRound, nil
}

func (r *postgresSubRoundRepository) UpdateRacers(ctx context.Context, exec SQLExecutor, id int, racer1ID, racer2ID *int) error {
	query := `UPDATE sub_rounds SET racer1_id = $1, racer2_id = $2 WHERE id = $3`

	result, err := exec.ExecContext(ctx, query, racer1ID, racer2ID, id)
	if err != nil {
		return fmt.Errorf("failed to update sub-round %d racers: %w", id, err)
	}
	return checkAffectedRows(result, ErrSubRoundNotFound)
}

func (r *postgresSubRoundRepository) RecordResult(ctx context.Context, exec SQLExecutor, subRound *models.SubRound) error {
	query := `
		UPDATE sub_rounds
		SET racer1_time = $1, racer2_time = $2, winner_competitor_id = $3, is_forfeit = $4
		WHERE id = $5`

	result, err := exec.ExecContext(ctx, query,
		subRound.Racer1Time,
		subRound.Racer2Time,
		subRound.WinnerCompetitorID,
		subRound.IsForfeit,
		subRound.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to record sub-round %d result: %w", subRound.ID, err)
	}
	return checkAffectedRows(result, ErrSubRoundNotFound)
}

func (r *postgresSubRoundRepository) DeleteByMatch(ctx context.Context, exec SQLExecutor, matchID int) error {
	query := `DELETE FROM sub_rounds WHERE match_id = $1`

	if _, err := exec.ExecContext(ctx, query, matchID); err != nil {
		return fmt.Errorf("failed to delete sub-rounds for match %d: %w", matchID, err)
	}
	return nil
}
