package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/realtime"
	"github.com/brickrace/race-server/repositories"
)

// TieBreaker picks the winning track when both racers clock the same
// time. Hardware timers read to the millisecond, so this does happen.
type TieBreaker func(track1Time, track2Time float64) int

// Track1Wins is the default house rule: dead heats go to track 1.
func Track1Wins(_, _ float64) int { return 1 }

// MatchService runs bracket matches: sub-round bookkeeping for best-of-N
// play, winner determination, and operator-forced forfeits.
type MatchService interface {
	// RecordTime stores a hardware time for the given physical track. For
	// best-of-N matches the time lands in the current sub-round; the match
	// is decided once one side takes a majority of sub-rounds.
	RecordTime(ctx context.Context, matchID, track int, raceTime float64) (*models.BracketMatch, error)
	// Forfeit hands the match to the opponent of the named competitor.
	Forfeit(ctx context.Context, matchID, competitorID int, reason string) (*models.BracketMatch, error)
	ListSubRounds(ctx context.Context, matchID int) ([]models.SubRound, error)
}

type matchService struct {
	db           *sql.DB
	bracketRepo  repositories.BracketRepository
	subRoundRepo repositories.SubRoundRepository
	tieBreaker   TieBreaker
	sync         SyncService
	publisher    realtime.Publisher
	logger       *slog.Logger
}

func NewMatchService(
	db *sql.DB,
	bracketRepo repositories.BracketRepository,
	subRoundRepo repositories.SubRoundRepository,
	tieBreaker TieBreaker,
	sync SyncService,
	publisher realtime.Publisher,
	logger *slog.Logger,
) MatchService {
	if tieBreaker == nil {
		tieBreaker = Track1Wins
	}
	return &matchService{
		db:           db,
		bracketRepo:  bracketRepo,
		subRoundRepo: subRoundRepo,
		tieBreaker:   tieBreaker,
		sync:         sync,
		publisher:    publisher,
		logger:       logger,
	}
}

func (s *matchService) RecordTime(ctx context.Context, matchID, track int, raceTime float64) (*models.BracketMatch, error) {
	if track != 1 && track != 2 {
		return nil, ErrInvalidTrack
	}
	if raceTime <= 0 {
		return nil, fmt.Errorf("%w: time must be positive", ErrValidationFailed)
	}

	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Decided() {
		return nil, ErrMatchAlreadyDecided
	}
	if match.Track1CompetitorID == nil || match.Track2CompetitorID == nil {
		return nil, ErrMatchMissingRacer
	}

	if match.MatchFormat == models.FormatSingle {
		err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
			return s.recordSingleTime(ctx, tx, match, track, raceTime)
		})
	} else {
		err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
			return s.recordSubRoundTime(ctx, tx, match, track, raceTime)
		})
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if updated.Decided() {
		s.publish(updated.EventID, "MATCH_COMPLETED", updated)
		s.pushResult(ctx, updated)
	} else {
		s.publish(updated.EventID, "MATCH_UPDATED", updated)
	}
	return updated, nil
}

// pushResult mirrors a freshly decided match upstream. Timing writes must
// never fail because the authority is unreachable, so failures are logged
// and swallowed; the operator bulk sync picks up whatever was missed.
func (s *matchService) pushResult(ctx context.Context, match *models.BracketMatch) {
	if s.sync == nil || match.WinnerCompetitorID == nil {
		return
	}
	if _, err := s.sync.SyncMatch(ctx, match.ID, false); err != nil {
		if errors.Is(err, ErrMatchAlreadySynced) {
			return
		}
		s.logger.WarnContext(ctx, "result push to authority failed",
			slog.Int("match_id", match.ID),
			slog.Any("error", err))
	}
}

func (s *matchService) recordSingleTime(ctx context.Context, tx *sql.Tx, match *models.BracketMatch, track int, raceTime float64) error {
	if err := s.bracketRepo.UpdateTrackTime(ctx, tx, match.ID, track, raceTime); err != nil {
		return err
	}
	if track == 1 {
		match.Track1Time = &raceTime
	} else {
		match.Track2Time = &raceTime
	}
	if match.Track1Time == nil || match.Track2Time == nil {
		return nil
	}

	winnerTrack := s.fasterTrack(*match.Track1Time, *match.Track2Time)
	winnerID := *match.CompetitorOnTrack(winnerTrack)
	if err := s.bracketRepo.SetWinner(ctx, tx, match.ID, winnerID, winnerTrack); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "match decided",
		slog.Int("match_id", match.ID),
		slog.Int("winner_competitor_id", winnerID),
		slog.Int("winner_track", winnerTrack))
	return nil
}

func (s *matchService) recordSubRoundTime(ctx context.Context, tx *sql.Tx, match *models.BracketMatch, track int, raceTime float64) error {
	subRound, err := s.currentSubRound(ctx, tx, match)
	if err != nil {
		return err
	}

	racerID := subRound.RacerOnTrack(track)
	if racerID == nil {
		return fmt.Errorf("%w: no racer on track %d in sub-round %d", ErrValidationFailed, track, subRound.RoundNumber)
	}
	if subRound.Racer1Track == track {
		subRound.Racer1Time = &raceTime
	} else {
		subRound.Racer2Time = &raceTime
	}

	if subRound.Racer1Time == nil || subRound.Racer2Time == nil {
		return s.subRoundRepo.RecordResult(ctx, tx, subRound)
	}

	// Both racers timed: settle the sub-round on the physical tracks,
	// then credit the win to the racer's match slot.
	track1Time := subRound.TimeOnTrack(1)
	track2Time := subRound.TimeOnTrack(2)
	winningTrack := s.fasterTrack(*track1Time, *track2Time)
	winnerID := subRound.RacerOnTrack(winningTrack)
	subRound.WinnerCompetitorID = winnerID
	if err := s.subRoundRepo.RecordResult(ctx, tx, subRound); err != nil {
		return err
	}

	wins1, wins2 := match.RoundsWonTrack1, match.RoundsWonTrack2
	if *winnerID == *match.Track1CompetitorID {
		wins1++
	} else {
		wins2++
	}

	needed := match.TotalRounds/2 + 1
	if wins1 < needed && wins2 < needed {
		if err := s.bracketRepo.UpdateBestOfState(ctx, tx, match.ID, match.CurrentRound+1, wins1, wins2); err != nil {
			return err
		}
		return nil
	}

	if err := s.bracketRepo.UpdateBestOfState(ctx, tx, match.ID, match.CurrentRound, wins1, wins2); err != nil {
		return err
	}
	return s.decideBestOfMatch(ctx, tx, match, wins1 >= needed)
}

// decideBestOfMatch records the winner and each slot's best time across
// all sub-rounds.
func (s *matchService) decideBestOfMatch(ctx context.Context, tx *sql.Tx, match *models.BracketMatch, track1Won bool) error {
	winnerTrack := 2
	winnerID := *match.Track2CompetitorID
	if track1Won {
		winnerTrack = 1
		winnerID = *match.Track1CompetitorID
	}

	subRounds, err := s.subRoundRepo.ListByMatch(ctx, match.ID)
	if err != nil {
		return err
	}
	best1 := bestTimeFor(subRounds, *match.Track1CompetitorID)
	best2 := bestTimeFor(subRounds, *match.Track2CompetitorID)
	if best1 != nil {
		if err := s.bracketRepo.UpdateTrackTime(ctx, tx, match.ID, 1, *best1); err != nil {
			return err
		}
	}
	if best2 != nil {
		if err := s.bracketRepo.UpdateTrackTime(ctx, tx, match.ID, 2, *best2); err != nil {
			return err
		}
	}

	if err := s.bracketRepo.SetWinner(ctx, tx, match.ID, winnerID, winnerTrack); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "match decided",
		slog.Int("match_id", match.ID),
		slog.Int("winner_competitor_id", winnerID),
		slog.Int("winner_track", winnerTrack))
	return nil
}

// currentSubRound loads the scaffolded sub-round for the match's current
// round. Sub-rounds are created when the bracket mirror is generated, but
// their racer assignment can go stale when reconciliation flows a new
// competitor into an undecided match, so it is refreshed from the match
// slots here. Mirrors that predate scaffolding get the row created on
// first use.
func (s *matchService) currentSubRound(ctx context.Context, tx *sql.Tx, match *models.BracketMatch) (*models.SubRound, error) {
	subRound, err := s.subRoundRepo.GetByMatchRound(ctx, match.ID, match.CurrentRound)
	if err == nil {
		if !equalIntPtr(subRound.Racer1ID, match.Track1CompetitorID) || !equalIntPtr(subRound.Racer2ID, match.Track2CompetitorID) {
			if err := s.subRoundRepo.UpdateRacers(ctx, tx, subRound.ID, match.Track1CompetitorID, match.Track2CompetitorID); err != nil {
				return nil, err
			}
			subRound.Racer1ID = match.Track1CompetitorID
			subRound.Racer2ID = match.Track2CompetitorID
		}
		return subRound, nil
	}
	if !errors.Is(err, repositories.ErrSubRoundNotFound) {
		return nil, err
	}

	subRound = scaffoldSubRound(match, match.CurrentRound)
	if _, err := s.subRoundRepo.Create(ctx, tx, subRound); err != nil {
		return nil, err
	}
	return subRound, nil
}

func (s *matchService) Forfeit(ctx context.Context, matchID, competitorID int, reason string) (*models.BracketMatch, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Decided() {
		return nil, ErrMatchAlreadyDecided
	}

	var winnerID, winnerTrack *int
	switch {
	case match.Track1CompetitorID != nil && *match.Track1CompetitorID == competitorID:
		if match.Track2CompetitorID != nil {
			winnerID = match.Track2CompetitorID
			track := 2
			winnerTrack = &track
		}
	case match.Track2CompetitorID != nil && *match.Track2CompetitorID == competitorID:
		if match.Track1CompetitorID != nil {
			winnerID = match.Track1CompetitorID
			track := 1
			winnerTrack = &track
		}
	default:
		return nil, fmt.Errorf("%w: competitor %d is not in match %d", ErrValidationFailed, competitorID, matchID)
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.bracketRepo.SetForfeit(ctx, tx, matchID, winnerID, winnerTrack, reason)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	s.publish(updated.EventID, "MATCH_FORFEITED", updated)
	s.pushResult(ctx, updated)
	s.logger.InfoContext(ctx, "match forfeited",
		slog.Int("match_id", matchID),
		slog.Int("competitor_id", competitorID),
		slog.String("reason", reason))
	return updated, nil
}

func (s *matchService) ListSubRounds(ctx context.Context, matchID int) ([]models.SubRound, error) {
	if _, err := s.getMatch(ctx, matchID); err != nil {
		return nil, err
	}
	return s.subRoundRepo.ListByMatch(ctx, matchID)
}

func (s *matchService) getMatch(ctx context.Context, matchID int) (*models.BracketMatch, error) {
	match, err := s.bracketRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketMatchNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *matchService) fasterTrack(track1Time, track2Time float64) int {
	switch {
	case track1Time < track2Time:
		return 1
	case track2Time < track1Time:
		return 2
	default:
		return s.tieBreaker(track1Time, track2Time)
	}
}

func (s *matchService) publish(eventID int, messageType string, payload interface{}) {
	if s.publisher != nil {
		s.publisher.PublishToEvent(eventID, messageType, payload)
	}
}

func bestTimeFor(subRounds []models.SubRound, competitorID int) *float64 {
	var best *float64
	for i := range subRounds {
		var t *float64
		if subRounds[i].Racer1ID != nil && *subRounds[i].Racer1ID == competitorID {
			t = subRounds[i].Racer1Time
		} else if subRounds[i].Racer2ID != nil && *subRounds[i].Racer2ID == competitorID {
			t = subRounds[i].Racer2Time
		}
		if t != nil && (best == nil || *t < *best) {
			best = t
		}
	}
	return best
}
