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
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrAlreadyWithdrawn   = errors.New("competitor already withdrawn from event")
)

type WithdrawalRepository interface {
	Create(ctx context.Context, exec SQLExecutor, withdrawal *models.Withdrawal) (int, error)
	GetByEventAndCompetitor(ctx context.Context, eventID, competitorID int) (*models.Withdrawal, error)
	ListByEvent(ctx context.Context, eventID int) ([]models.Withdrawal, error)
	Delete(ctx context.Context, exec SQLExecutor, eventID, competitorID int) error
}

type postgresWithdrawalRepository struct {
	db *sql.DB
}

func NewPostgresWithdrawalRepository(db *sql.DB) WithdrawalRepository {
	return &postgresWithdrawalRepository{db: db}
}

func (r *postgresWithdrawalRepository) Create(ctx context.Context, exec SQLExecutor, withdrawal *models.Withdrawal) (int, error) {
	query := `
		INSERT INTO withdrawals (event_id, competitor_id, reason, withdrawn_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		withdrawal.EventID,
		withdrawal.CompetitorID,
		withdrawal.Reason,
		withdrawal.WithdrawnBy,
	).Scan(&withdrawal.ID, &withdrawal.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrAlreadyWithdrawn
		}
		return 0, fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return withdrawal.ID, nil
}

const withdrawalColumns = `id, event_id, competitor_id, reason, withdrawn_by, created_at`

func (r *postgresWithdrawalRepository) GetByEventAndCompetitor(ctx context.Context, eventID, competitorID int) (*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE event_id = $1 AND competitor_id = $2`

	withdrawal := &models.Withdrawal{}
	err := r.db.QueryRowContext(ctx, query, eventID, competitorID).Scan(
		&withdrawal.ID,
		&withdrawal.EventID,
		&withdrawal.CompetitorID,
		&withdrawal.Reason,
		&withdrawal.WithdrawnBy,
		&withdrawal.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return withdrawal, nil
}

func (r *postgresWithdrawalRepository) ListByEvent(ctx context.Context, eventID int) ([]models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE event_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []models.Withdrawal
	for rows.Next() {
		var withdrawal models.Withdrawal
		err := rows.Scan(
			&withdrawal.ID,
			&withdrawal.EventID,
			&withdrawal.CompetitorID,
			&withdrawal.Reason,
			&withdrawal.WithdrawnBy,
			&withdrawal.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, withdrawal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawals: %w", err)
	}
	return withdrawals, nil
}

func (r *postgresWithdrawalRepository) Delete(ctx context.Context, exec SQLExecutor, eventID, competitorID int) error {
	query := `DELETE FROM withdrawals WHERE event_id = $1 AND competitor_id = $2`

	result, err := exec.ExecContext(ctx, query, eventID, competitorID)
	if err != nil {
		return fmt.Errorf("failed to delete withdrawal: %w", err)
	}
	return checkAffectedRows(result, ErrWithdrawalNotFound)
}
