package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/repositories"
)

const tokenTTL = 12 * time.Hour

// OperatorClaims is the JWT payload for operator sessions.
type OperatorClaims struct {
	OperatorID int                 `json:"operator_id"`
	Role       models.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*models.Operator, string, error)
	CreateOperator(ctx context.Context, username, password string, role models.OperatorRole) (*models.Operator, error)
}

type authService struct {
	operatorRepo repositories.OperatorRepository
	jwtSecret    []byte
	logger       *slog.Logger
}

func NewAuthService(operatorRepo repositories.OperatorRepository, jwtSecret string, logger *slog.Logger) AuthService {
	return &authService{
		operatorRepo: operatorRepo,
		jwtSecret:    []byte(jwtSecret),
		logger:       logger,
	}
}

func (s *authService) Login(ctx context.Context, username, password string) (*models.Operator, string, error) {
	operator, err := s.operatorRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrOperatorNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to look up operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to compare password hash: %w", err)
	}

	now := time.Now()
	claims := OperatorClaims{
		OperatorID: operator.ID,
		Role:       operator.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}

	operator.PasswordHash = ""
	s.logger.InfoContext(ctx, "operator logged in", slog.String("username", username))
	return operator, token, nil
}

func (s *authService) CreateOperator(ctx context.Context, username, password string, role models.OperatorRole) (*models.Operator, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidationFailed)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidationFailed)
	}
	if role != models.RoleAdmin && role != models.RoleViewer {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidationFailed, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	operator := &models.Operator{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if _, err := s.operatorRepo.Create(ctx, operator); err != nil {
		if errors.Is(err, repositories.ErrOperatorExists) {
			return nil, fmt.Errorf("%w: username taken", ErrValidationFailed)
		}
		return nil, err
	}

	operator.PasswordHash = ""
	s.logger.InfoContext(ctx, "operator created", slog.String("username", username), slog.String("role", string(role)))
	return operator, nil
}
