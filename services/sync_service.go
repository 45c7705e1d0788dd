package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/brickrace/race-server/challonge"
	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/repositories"
)

// interCallDelay throttles bulk pushes so the authority's rate limiter
// stays friendly during a full-event sync.
const interCallDelay = 100 * time.Millisecond

// MatchSyncError is one failed push inside a bulk sync.
type MatchSyncError struct {
	MatchID int    `json:"match_id"`
	Error   string `json:"error"`
}

// SyncReport summarizes a bulk sync pass.
type SyncReport struct {
	Synced  int              `json:"synced"`
	Skipped int              `json:"skipped"`
	Failed  []MatchSyncError `json:"failed,omitempty"`
}

// SyncService pushes decided match results to the authority. Every
// successful push is ledgered; a ledgered match is never pushed again
// unless an operator forces a resync.
type SyncService interface {
	SyncMatch(ctx context.Context, matchID int, force bool) (*models.SyncRecord, error)
	// SyncEvent pushes every completed, unsynced match for the event.
	// With force set, all of the event's ledger entries are cleared first
	// so every completed match is pushed again.
	SyncEvent(ctx context.Context, eventID int, force bool) (*SyncReport, error)
}

type syncService struct {
	db             *sql.DB
	client         challonge.Client
	bracketRepo    repositories.BracketRepository
	tournamentRepo repositories.TournamentRepository
	syncRepo       repositories.SyncRepository
	logger         *slog.Logger
}

func NewSyncService(
	db *sql.DB,
	client challonge.Client,
	bracketRepo repositories.BracketRepository,
	tournamentRepo repositories.TournamentRepository,
	syncRepo repositories.SyncRepository,
	logger *slog.Logger,
) SyncService {
	return &syncService{
		db:             db,
		client:         client,
		bracketRepo:    bracketRepo,
		tournamentRepo: tournamentRepo,
		syncRepo:       syncRepo,
		logger:         logger,
	}
}

func (s *syncService) SyncMatch(ctx context.Context, matchID int, force bool) (*models.SyncRecord, error) {
	match, err := s.bracketRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketMatchNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !match.IsCompleted {
		return nil, ErrMatchNotCompleted
	}
	if match.WinnerCompetitorID == nil {
		// Double withdrawal leaves no winner to report.
		return nil, fmt.Errorf("%w: match %d has no winner", ErrValidationFailed, matchID)
	}

	instance, err := s.tournamentRepo.GetByEventID(ctx, match.EventID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	existing, err := s.syncRepo.GetByMatchID(ctx, matchID)
	if err != nil && !errors.Is(err, repositories.ErrSyncRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		if !force {
			return nil, ErrMatchAlreadySynced
		}
		err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
			return s.syncRepo.DeleteByMatchID(ctx, tx, matchID)
		})
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "sync record cleared for forced resync", slog.Int("match_id", matchID))
	}

	return s.push(ctx, instance, match)
}

func (s *syncService) SyncEvent(ctx context.Context, eventID int, force bool) (*SyncReport, error) {
	instance, err := s.tournamentRepo.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if force {
		var cleared int
		err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
			cleared, err = s.syncRepo.DeleteByTournament(ctx, tx, instance.ID)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "sync ledger cleared for forced resync",
			slog.Int("event_id", eventID),
			slog.Int("records", cleared))
	}

	matches, err := s.bracketRepo.ListCompletedUnsynced(ctx, eventID)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{}
	for i := range matches {
		if i > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(interCallDelay):
			}
		}

		match := &matches[i]
		if match.WinnerCompetitorID == nil {
			report.Skipped++
			continue
		}
		if _, err := s.push(ctx, instance, match); err != nil {
			if challonge.IsAPIError(err) {
				// The authority rejected this one; keep going so a single
				// bad match cannot wedge the whole event.
				report.Failed = append(report.Failed, MatchSyncError{MatchID: match.ID, Error: err.Error()})
				s.logger.WarnContext(ctx, "authority rejected result push",
					slog.Int("match_id", match.ID),
					slog.Any("error", err))
				continue
			}
			return report, err
		}
		report.Synced++
	}

	s.logger.InfoContext(ctx, "event results synced",
		slog.Int("event_id", eventID),
		slog.Int("synced", report.Synced),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", len(report.Failed)))
	return report, nil
}

func (s *syncService) push(ctx context.Context, instance *models.TournamentInstance, match *models.BracketMatch) (*models.SyncRecord, error) {
	challongeMatchID, err := s.ensureLinked(ctx, instance, match)
	if err != nil {
		return nil, err
	}

	winnerSeed, err := s.tournamentRepo.GetSeedByCompetitor(ctx, instance.ID, *match.WinnerCompetitorID)
	if err != nil {
		if errors.Is(err, repositories.ErrSeedNotFound) {
			return nil, fmt.Errorf("%w: winner competitor %d has no seed entry", ErrValidationFailed, *match.WinnerCompetitorID)
		}
		return nil, err
	}
	winnerParticipantID, err := strconv.ParseInt(winnerSeed.ChallongeParticipantID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("seed entry %d has malformed participant id %q", winnerSeed.ID, winnerSeed.ChallongeParticipantID)
	}

	score := matchScore(match)
	if _, err := s.client.UpdateMatch(ctx, instance.ChallongeTournamentID, challongeMatchID, challonge.MatchUpdate{
		ScoresCSV: score.CSV(),
		WinnerID:  winnerParticipantID,
	}); err != nil {
		return nil, err
	}

	record := &models.SyncRecord{
		MatchID:             match.ID,
		TournamentID:        instance.ID,
		ChallongeMatchID:    challongeMatchID,
		ScoresCSV:           score.CSV(),
		WinnerParticipantID: winnerSeed.ChallongeParticipantID,
	}
	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := s.syncRepo.Create(ctx, tx, record)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrSyncRecordExists) {
			return nil, ErrMatchAlreadySynced
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "match result synced",
		slog.Int("match_id", match.ID),
		slog.String("challonge_match_id", challongeMatchID),
		slog.String("scores_csv", record.ScoresCSV))
	return record, nil
}

// ensureLinked resolves the authority match id, falling back to pairing
// by participants when the mirror row was never linked (for example a
// match created locally before an authority-side reset).
func (s *syncService) ensureLinked(ctx context.Context, instance *models.TournamentInstance, match *models.BracketMatch) (string, error) {
	if match.ChallongeMatchID != nil {
		return *match.ChallongeMatchID, nil
	}
	if match.Track1CompetitorID == nil || match.Track2CompetitorID == nil {
		return "", ErrMatchNotLinked
	}

	seed1, err := s.tournamentRepo.GetSeedByCompetitor(ctx, instance.ID, *match.Track1CompetitorID)
	if err != nil {
		return "", ErrMatchNotLinked
	}
	seed2, err := s.tournamentRepo.GetSeedByCompetitor(ctx, instance.ID, *match.Track2CompetitorID)
	if err != nil {
		return "", ErrMatchNotLinked
	}

	upstream, err := s.client.GetMatches(ctx, instance.ChallongeTournamentID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch authority matches for pairing: %w", err)
	}
	for _, candidate := range upstream {
		if candidate.Player1ID == nil || candidate.Player2ID == nil {
			continue
		}
		a, b := fmt.Sprint(*candidate.Player1ID), fmt.Sprint(*candidate.Player2ID)
		if (a == seed1.ChallongeParticipantID && b == seed2.ChallongeParticipantID) ||
			(a == seed2.ChallongeParticipantID && b == seed1.ChallongeParticipantID) {
			challongeMatchID := fmt.Sprint(candidate.ID)
			err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
				return s.bracketRepo.LinkChallongeMatch(ctx, tx, match.ID, challongeMatchID)
			})
			if err != nil {
				return "", err
			}
			s.logger.InfoContext(ctx, "match linked to authority by participant pair",
				slog.Int("match_id", match.ID),
				slog.String("challonge_match_id", challongeMatchID))
			return challongeMatchID, nil
		}
	}
	return "", ErrMatchNotLinked
}

// matchScore picks the wire score shape from the match format: sub-round
// win counts for best-of-N, raw times otherwise. Forfeits and byes carry
// a symbolic 1-0 when no times exist.
func matchScore(match *models.BracketMatch) models.Score {
	track1Won := match.WinnerTrack != nil && *match.WinnerTrack == 1

	if match.MatchFormat == models.FormatBestOf3 && (match.RoundsWonTrack1 > 0 || match.RoundsWonTrack2 > 0) {
		return models.BestOfNScore(match.RoundsWonTrack1, match.RoundsWonTrack2)
	}
	if match.Track1Time != nil && match.Track2Time != nil {
		return models.TimesScore(*match.Track1Time, *match.Track2Time)
	}
	if track1Won {
		return models.BestOfNScore(1, 0)
	}
	return models.BestOfNScore(0, 1)
}
