package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brickrace/race-server/models"
)

func TestPhaseResolution(t *testing.T) {
	qualifierRepo := newFakeQualifierRepo()
	bracketRepo := newFakeBracketRepo()
	service := NewPhaseService(qualifierRepo, bracketRepo)
	ctx := context.Background()

	resolve := func() models.Phase {
		phase, err := service.Resolve(ctx, 1)
		require.NoError(t, err)
		return phase
	}

	assert.Equal(t, models.PhaseNotStarted, resolve())

	qualifierRepo.add(models.Qualifier{EventID: 1, CompetitorID: 10, HeatNumber: 1, TrackNumber: 1, Status: models.HeatStatusScheduled})
	assert.Equal(t, models.PhaseQualifying, resolve())

	// Bracket state trumps qualifying state even with heats still open.
	match := bracketRepo.add(models.BracketMatch{EventID: 1, MatchFormat: models.FormatSingle})
	assert.Equal(t, models.PhaseBrackets, resolve())

	bracketRepo.matches[match.ID].IsCompleted = true
	bracketRepo.matches[match.ID].WinnerCompetitorID = intPtr(10)
	assert.Equal(t, models.PhaseComplete, resolve())
}

func TestPhaseIsScopedToEvent(t *testing.T) {
	qualifierRepo := newFakeQualifierRepo()
	bracketRepo := newFakeBracketRepo()
	service := NewPhaseService(qualifierRepo, bracketRepo)

	bracketRepo.add(models.BracketMatch{EventID: 2, MatchFormat: models.FormatSingle})

	phase, err := service.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseNotStarted, phase)
}
