package services

import (
	"context"
	"fmt"

	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/repositories"
)

// PhaseService derives the race-day phase from stored state. The phase is
// never stored: it is a pure function of what exists in the database, so
// it can only move forward as rows accumulate.
type PhaseService interface {
	Resolve(ctx context.Context, eventID int) (models.Phase, error)
}

type phaseService struct {
	qualifierRepo repositories.QualifierRepository
	bracketRepo   repositories.BracketRepository
}

func NewPhaseService(
	qualifierRepo repositories.QualifierRepository,
	bracketRepo repositories.BracketRepository,
) PhaseService {
	return &phaseService{
		qualifierRepo: qualifierRepo,
		bracketRepo:   bracketRepo,
	}
}

// Resolve checks bracket state before qualifying state: once bracket
// matches exist the event is past qualifying no matter how many heats
// remain untimed.
func (s *phaseService) Resolve(ctx context.Context, eventID int) (models.Phase, error) {
	bracketExists, err := s.bracketRepo.ExistsByEvent(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve phase for event %d: %w", eventID, err)
	}
	if bracketExists {
		undecided, err := s.bracketRepo.CountUndecidedByEvent(ctx, eventID)
		if err != nil {
			return "", fmt.Errorf("failed to resolve phase for event %d: %w", eventID, err)
		}
		if undecided == 0 {
			return models.PhaseComplete, nil
		}
		return models.PhaseBrackets, nil
	}

	qualifierCount, err := s.qualifierRepo.CountByEvent(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve phase for event %d: %w", eventID, err)
	}
	if qualifierCount > 0 {
		return models.PhaseQualifying, nil
	}
	return models.PhaseNotStarted, nil
}
