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
	ErrOperatorNotFound = errors.New("operator not found")
	ErrOperatorExists   = errors.New("operator username already taken")
)

type OperatorRepository interface {
	Create(ctx context.Context, operator *models.Operator) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
	GetByID(ctx context.Context, id int) (*models.Operator, error)
}

type postgresOperatorRepository struct {
	db *sql.DB
}

func NewPostgresOperatorRepository(db *sql.DB) OperatorRepository {
	return &postgresOperatorRepository{db: db}
}

func (r *postgresOperatorRepository) Create(ctx context.Context, operator *models.Operator) (int, error) {
	query := `
		INSERT INTO operators (username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		operator.Username,
		operator.PasswordHash,
		operator.Role,
	).Scan(&operator.ID, &operator.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrOperatorExists
		}
		return 0, fmt.Errorf("failed to create operator: %w", err)
	}
	return operator.ID, nil
}

const operatorColumns = `id, username, password_hash, role, created_at`

func (r *postgresOperatorRepository) scanOperator(row *sql.Row) (*models.Operator, error) {
	operator := &models.Operator{}
	err := row.Scan(
		&operator.ID,
		&operator.Username,
		&operator.PasswordHash,
		&operator.Role,
		&operator.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("failed to scan operator: %w", err)
	}
	return operator, nil
}

func (r *postgresOperatorRepository) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE username = $1`
	return r.scanOperator(r.db.QueryRowContext(ctx, query, username))
}

func (r *postgresOperatorRepository) GetByID(ctx context.Context, id int) (*models.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE id = $1`
	return r.scanOperator(r.db.QueryRowContext(ctx, query, id))
}
