package services

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/repositories"
)

type fakeOperatorRepo struct {
	nextID    int
	operators map[string]*models.Operator
}

func newFakeOperatorRepo() *fakeOperatorRepo {
	return &fakeOperatorRepo{operators: make(map[string]*models.Operator)}
}

func (f *fakeOperatorRepo) Create(_ context.Context, operator *models.Operator) (int, error) {
	if _, taken := f.operators[operator.Username]; taken {
		return 0, repositories.ErrOperatorExists
	}
	f.nextID++
	operator.ID = f.nextID
	stored := *operator
	f.operators[operator.Username] = &stored
	return operator.ID, nil
}

func (f *fakeOperatorRepo) GetByUsername(_ context.Context, username string) (*models.Operator, error) {
	operator, ok := f.operators[username]
	if !ok {
		return nil, repositories.ErrOperatorNotFound
	}
	copied := *operator
	return &copied, nil
}

func (f *fakeOperatorRepo) GetByID(_ context.Context, id int) (*models.Operator, error) {
	for _, operator := range f.operators {
		if operator.ID == id {
			copied := *operator
			return &copied, nil
		}
	}
	return nil, repositories.ErrOperatorNotFound
}

var _ repositories.OperatorRepository = (*fakeOperatorRepo)(nil)

func TestLoginIssuesSignedToken(t *testing.T) {
	repo := newFakeOperatorRepo()
	service := NewAuthService(repo, "test-secret", testLogger())
	ctx := context.Background()

	created, err := service.CreateOperator(ctx, "race_director", "pinewood-rules", models.RoleAdmin)
	require.NoError(t, err)
	assert.Empty(t, created.PasswordHash)

	operator, token, err := service.Login(ctx, "race_director", "pinewood-rules")
	require.NoError(t, err)
	assert.Equal(t, "race_director", operator.Username)
	assert.Empty(t, operator.PasswordHash)

	claims := &OperatorClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	assert.Equal(t, created.ID, claims.OperatorID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "race_director", claims.Subject)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := newFakeOperatorRepo()
	service := NewAuthService(repo, "test-secret", testLogger())
	ctx := context.Background()

	_, err := service.CreateOperator(ctx, "race_director", "pinewood-rules", models.RoleAdmin)
	require.NoError(t, err)

	_, _, err = service.Login(ctx, "race_director", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown usernames get the same error as bad passwords.
	_, _, err = service.Login(ctx, "nobody", "pinewood-rules")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateOperatorValidation(t *testing.T) {
	repo := newFakeOperatorRepo()
	service := NewAuthService(repo, "test-secret", testLogger())
	ctx := context.Background()

	_, err := service.CreateOperator(ctx, "", "pinewood-rules", models.RoleViewer)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = service.CreateOperator(ctx, "timing_desk", "short", models.RoleViewer)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = service.CreateOperator(ctx, "timing_desk", "pinewood-rules", "superuser")
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = service.CreateOperator(ctx, "timing_desk", "pinewood-rules", models.RoleViewer)
	require.NoError(t, err)
	_, err = service.CreateOperator(ctx, "timing_desk", "pinewood-rules", models.RoleViewer)
	assert.ErrorIs(t, err, ErrValidationFailed)
}
