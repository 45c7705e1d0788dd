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
	ErrSyncRecordNotFound = errors.New("sync record not found")
	ErrSyncRecordExists   = errors.New("match already synced")
)

type SyncRepository interface {
	Create(ctx context.Context, exec SQLExecutor, record *models.SyncRecord) (int, error)
	GetByMatchID(ctx context.Context, matchID int) (*models.SyncRecord, error)
	DeleteByMatchID(ctx context.Context, exec SQLExecutor, matchID int) error
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.SyncRecord, error)
}

type postgresSyncRepository struct {
	db *sql.DB
}

func NewPostgresSyncRepository(db *sql.DB) SyncRepository {
	return &postgresSyncRepository{db: db}
}

func (r *postgresSyncRepository) Create(ctx context.Context, exec SQLExecutor, record *models.SyncRecord) (int, error) {
	query := `
		INSERT INTO sync_records (match_id, tournament_id, challonge_match_id, scores_csv, winner_participant_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, synced_at`

	err := exec.QueryRowContext(ctx, query,
		record.MatchID,
		record.TournamentID,
		record.ChallongeMatchID,
		record.ScoresCSV,
		record.WinnerParticipantID,
	).Scan(&record.ID, &record.SyncedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrSyncRecordExists
		}
		return 0, fmt.Errorf("failed to create sync record: %w", err)
	}
	return record.ID, nil
}

const syncColumns = `id, match_id, tournament_id, challonge_match_id, scores_csv, winner_participant_id, synced_at`

func (r *postgresSyncRepository) GetByMatchID(ctx context.Context, matchID int) (*models.SyncRecord, error) {
	query := `SELECT ` + syncColumns + ` FROM sync_records WHERE match_id = $1`

	record := &models.SyncRecord{}
	err := r.db.QueryRowContext(ctx, query, matchID).Scan(
		&record.ID,
		&record.MatchID,
		&record.TournamentID,
		&record.ChallongeMatchID,
		&record.ScoresCSV,
		&record.WinnerParticipantID,
		&record.SyncedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSyncRecordNotFound
		}
		return nil, fmt.Errorf("failed to get sync record for match %d: %w", matchID, err)
	}
	return record, nil
}

func (r *postgresSyncRepository) DeleteByMatchID(ctx context.Context, exec SQLExecutor, matchID int) error {
	query := `DELETE FROM sync_records WHERE match_id = $1`

	result, err := exec.ExecContext(ctx, query, matchID)
	if err != nil {
		return fmt.Errorf("failed to delete sync record for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrSyncRecordNotFound)
}

func (r *postgresSyncRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	query := `DELETE FROM sync_records WHERE tournament_id = $1`

	result, err := exec.ExecContext(ctx, query, tournamentID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear sync records for tournament %d: %w", tournamentID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared sync records: %w", err)
	}
	return int(affected), nil
}

func (r *postgresSyncRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.SyncRecord, error) {
	query := `SELECT ` + syncColumns + ` FROM sync_records WHERE tournament_id = $1 ORDER BY synced_at`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	defer rows.Close()

	var records []models.SyncRecord
	for rows.Next() {
		var record models.SyncRecord
		err := rows.Scan(
			&record.ID,
			&record.MatchID,
			&record.TournamentID,
			&record.ChallongeMatchID,
			&record.ScoresCSV,
			&record.WinnerParticipantID,
			&record.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync records: %w", err)
	}
	return records, nil
}
