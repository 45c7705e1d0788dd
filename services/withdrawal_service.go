package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brickrace/race-server/challonge"
	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/realtime"
	"github.com/brickrace/race-server/repositories"
)

// WithdrawalService removes a competitor from race day: their scheduled
// qualifying slots disappear and their remaining bracket matches forfeit
// to the opponent. When the authority knows the competitor, it is told
// FIRST, so the external bracket can never end up ahead of the local one.
type WithdrawalService interface {
	Preview(ctx context.Context, eventID, competitorID int) (*models.WithdrawalImpact, error)
	Withdraw(ctx context.Context, eventID, competitorID int, reason string, withdrawnBy *string) (*models.Withdrawal, error)
	// Reinstate undoes a withdrawal. Once any bracket match exists the
	// withdrawal is terminal: forfeits have already propagated.
	Reinstate(ctx context.Context, eventID, competitorID int) error
	List(ctx context.Context, eventID int) ([]models.Withdrawal, error)
}

type withdrawalService struct {
	db             *sql.DB
	client         challonge.Client
	withdrawalRepo repositories.WithdrawalRepository
	qualifierRepo  repositories.QualifierRepository
	bracketRepo    repositories.BracketRepository
	tournamentRepo repositories.TournamentRepository
	competitorRepo repositories.CompetitorRepository
	sync           SyncService
	publisher      realtime.Publisher
	logger         *slog.Logger
}

func NewWithdrawalService(
	db *sql.DB,
	client challonge.Client,
	withdrawalRepo repositories.WithdrawalRepository,
	qualifierRepo repositories.QualifierRepository,
	bracketRepo repositories.BracketRepository,
	tournamentRepo repositories.TournamentRepository,
	competitorRepo repositories.CompetitorRepository,
	sync SyncService,
	publisher realtime.Publisher,
	logger *slog.Logger,
) WithdrawalService {
	return &withdrawalService{
		db:             db,
		client:         client,
		withdrawalRepo: withdrawalRepo,
		qualifierRepo:  qualifierRepo,
		bracketRepo:    bracketRepo,
		tournamentRepo: tournamentRepo,
		competitorRepo: competitorRepo,
		sync:           sync,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *withdrawalService) Preview(ctx context.Context, eventID, competitorID int) (*models.WithdrawalImpact, error) {
	if _, err := s.competitorRepo.GetByID(ctx, competitorID); err != nil {
		if errors.Is(err, repositories.ErrCompetitorNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	scheduled, err := s.qualifierRepo.CountScheduledByCompetitor(ctx, eventID, competitorID)
	if err != nil {
		return nil, err
	}
	incomplete, err := s.bracketRepo.ListIncompleteByCompetitor(ctx, eventID, competitorID)
	if err != nil {
		return nil, err
	}
	completed, err := s.bracketRepo.CountCompletedByCompetitor(ctx, eventID, competitorID)
	if err != nil {
		return nil, err
	}

	return &models.WithdrawalImpact{
		ScheduledHeats:    scheduled,
		IncompleteMatches: len(incomplete),
		CompletedMatches:  completed,
	}, nil
}

func (s *withdrawalService) Withdraw(ctx context.Context, eventID, competitorID int, reason string, withdrawnBy *string) (*models.Withdrawal, error) {
	if _, err := s.competitorRepo.GetByID(ctx, competitorID); err != nil {
		if errors.Is(err, repositories.ErrCompetitorNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := s.withdrawalRepo.GetByEventAndCompetitor(ctx, eventID, competitorID); err == nil {
		return nil, ErrCompetitorWithdrawn
	} else if !errors.Is(err, repositories.ErrWithdrawalNotFound) {
		return nil, err
	}

	// Tell the authority before touching local state. Challonge forfeits
	// the competitor's remaining matches on deactivation; if that call
	// fails nothing has changed on either side.
	if err := s.deactivateUpstream(ctx, eventID, competitorID); err != nil {
		return nil, err
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	withdrawal := &models.Withdrawal{
		EventID:      eventID,
		CompetitorID: competitorID,
		Reason:       reasonPtr,
		WithdrawnBy:  withdrawnBy,
	}

	forfeitReason := "withdrawal"
	if reason != "" {
		forfeitReason = "withdrawal: " + reason
	}

	var forfeited []int
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
			if errors.Is(err, repositories.ErrAlreadyWithdrawn) {
				return ErrCompetitorWithdrawn
			}
			return err
		}

		removed, err := s.qualifierRepo.DeleteScheduledByCompetitor(ctx, tx, eventID, competitorID)
		if err != nil {
			return err
		}
		if removed > 0 {
			s.logger.InfoContext(ctx, "scheduled qualifying slots removed",
				slog.Int("competitor_id", competitorID),
				slog.Int("slots", removed))
		}

		matches, err := s.bracketRepo.ListIncompleteByCompetitor(ctx, eventID, competitorID)
		if err != nil {
			return err
		}
		for i := range matches {
			match := &matches[i]
			var winnerID, winnerTrack *int
			if match.Track1CompetitorID != nil && *match.Track1CompetitorID != competitorID {
				winnerID = match.Track1CompetitorID
				track := 1
				winnerTrack = &track
			} else if match.Track2CompetitorID != nil && *match.Track2CompetitorID != competitorID {
				winnerID = match.Track2CompetitorID
				track := 2
				winnerTrack = &track
			}
			if err := s.bracketRepo.SetForfeit(ctx, tx, match.ID, winnerID, winnerTrack, forfeitReason); err != nil {
				return err
			}
			if winnerID != nil {
				forfeited = append(forfeited, match.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pushForfeits(ctx, forfeited)

	if s.publisher != nil {
		s.publisher.PublishToEvent(eventID, "COMPETITOR_WITHDRAWN", withdrawal)
	}
	s.logger.InfoContext(ctx, "competitor withdrawn",
		slog.Int("event_id", eventID),
		slog.Int("competitor_id", competitorID),
		slog.String("reason", reason))
	return withdrawal, nil
}

// pushForfeits mirrors the cascade's forfeit wins upstream. The
// withdrawal is already committed, so a failed push only means the
// result waits for the next bulk sync; failures are logged and dropped.
func (s *withdrawalService) pushForfeits(ctx context.Context, matchIDs []int) {
	if s.sync == nil {
		return
	}
	for _, matchID := range matchIDs {
		if _, err := s.sync.SyncMatch(ctx, matchID, false); err != nil {
			if errors.Is(err, ErrMatchAlreadySynced) {
				continue
			}
			s.logger.WarnContext(ctx, "forfeit push to authority failed",
				slog.Int("match_id", matchID),
				slog.Any("error", err))
		}
	}
}

// deactivateUpstream removes the competitor's participant when a bracket
// tournament exists. Quietly a no-op before bracket registration.
func (s *withdrawalService) deactivateUpstream(ctx context.Context, eventID, competitorID int) error {
	instance, err := s.tournamentRepo.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil
		}
		return err
	}
	seed, err := s.tournamentRepo.GetSeedByCompetitor(ctx, instance.ID, competitorID)
	if err != nil {
		if errors.Is(err, repositories.ErrSeedNotFound) {
			return nil
		}
		return err
	}

	if err := s.client.DeactivateParticipant(ctx, instance.ChallongeTournamentID, seed.ChallongeParticipantID); err != nil {
		return fmt.Errorf("failed to deactivate authority participant %s: %w", seed.ChallongeParticipantID, err)
	}
	s.logger.InfoContext(ctx, "authority participant deactivated",
		slog.Int("competitor_id", competitorID),
		slog.String("challonge_participant_id", seed.ChallongeParticipantID))
	return nil
}

func (s *withdrawalService) Reinstate(ctx context.Context, eventID, competitorID int) error {
	bracketExists, err := s.bracketRepo.ExistsByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if bracketExists {
		return ErrWithdrawalTerminal
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.withdrawalRepo.Delete(ctx, tx, eventID, competitorID)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrWithdrawalNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.logger.InfoContext(ctx, "competitor reinstated",
		slog.Int("event_id", eventID),
		slog.Int("competitor_id", competitorID))
	return nil
}

func (s *withdrawalService) List(ctx context.Context, eventID int) ([]models.Withdrawal, error) {
	return s.withdrawalRepo.ListByEvent(ctx, eventID)
}
