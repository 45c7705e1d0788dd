package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/brickrace/race-server/challonge"
	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/realtime"
	"github.com/brickrace/race-server/repositories"
)

// ReconcileSummary reports what a reconciliation pass changed.
type ReconcileSummary struct {
	SlotUpdates     int `json:"slot_updates"`
	OrderingUpdates int `json:"ordering_updates"`
	ImportedResults int `json:"imported_results"`
}

// BracketService maintains the local mirror of the authority's bracket.
// The authority owns the tree shape and progression; the mirror adds
// track assignment, best-of-N state and hardware times.
type BracketService interface {
	// GenerateMirror fetches the authority's matches and rebuilds the
	// local mirror from scratch. All existing local bracket state for the
	// event is destroyed; the whole operation is all-or-nothing.
	GenerateMirror(ctx context.Context, eventID int, format models.MatchFormat) ([]models.BracketMatch, error)
	// Reconcile pulls the authority's matches and folds progression into
	// the mirror without touching decided matches' competitor slots. It
	// never creates rows; an authority match the mirror has never seen is
	// skipped, and only a fresh generation can absorb it.
	Reconcile(ctx context.Context, eventID int) (*ReconcileSummary, error)
	ListMatches(ctx context.Context, eventID int) ([]models.BracketMatch, error)
	GetMatch(ctx context.Context, matchID int) (*models.BracketMatch, error)
}

type bracketService struct {
	db             *sql.DB
	client         challonge.Client
	tournamentRepo repositories.TournamentRepository
	bracketRepo    repositories.BracketRepository
	subRoundRepo   repositories.SubRoundRepository
	syncRepo       repositories.SyncRepository
	competitorRepo repositories.CompetitorRepository
	publisher      realtime.Publisher
	logger         *slog.Logger
}

func NewBracketService(
	db *sql.DB,
	client challonge.Client,
	tournamentRepo repositories.TournamentRepository,
	bracketRepo repositories.BracketRepository,
	subRoundRepo repositories.SubRoundRepository,
	syncRepo repositories.SyncRepository,
	competitorRepo repositories.CompetitorRepository,
	publisher realtime.Publisher,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		db:             db,
		client:         client,
		tournamentRepo: tournamentRepo,
		bracketRepo:    bracketRepo,
		subRoundRepo:   subRoundRepo,
		syncRepo:       syncRepo,
		competitorRepo: competitorRepo,
		publisher:      publisher,
		logger:         logger,
	}
}

// authorityBracket is one fetch of the upstream matches plus the seed
// mapping needed to translate participant ids into competitor ids.
type authorityBracket struct {
	instance      *models.TournamentInstance
	matches       []challonge.Match
	competitorOf  map[int64]int
	participantOf map[int]string
}

func (s *bracketService) fetchAuthorityBracket(ctx context.Context, eventID int) (*authorityBracket, error) {
	instance, err := s.tournamentRepo.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if instance.Status == models.TournamentStatusPending {
		return nil, ErrTournamentNotStarted
	}

	matches, err := s.client.GetMatches(ctx, instance.ChallongeTournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch authority matches: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrAuthorityEmptyBracket
	}

	seeds, err := s.tournamentRepo.ListSeeds(ctx, instance.ID)
	if err != nil {
		return nil, err
	}
	competitorOf := make(map[int64]int, len(seeds))
	participantOf := make(map[int]string, len(seeds))
	for _, seed := range seeds {
		var participantID int64
		if _, err := fmt.Sscan(seed.ChallongeParticipantID, &participantID); err != nil {
			return nil, fmt.Errorf("seed entry %d has malformed participant id %q", seed.ID, seed.ChallongeParticipantID)
		}
		competitorOf[participantID] = seed.CompetitorID
		participantOf[seed.CompetitorID] = seed.ChallongeParticipantID
	}

	// Every assigned slot must map to a known competitor before any local
	// state is touched.
	for _, match := range matches {
		for _, playerID := range []*int64{match.Player1ID, match.Player2ID, match.WinnerID} {
			if playerID == nil {
				continue
			}
			if _, ok := competitorOf[*playerID]; !ok {
				return nil, fmt.Errorf("%w: participant %d in match %d", ErrUnknownParticipant, *playerID, match.ID)
			}
		}
	}

	sortAuthorityMatches(matches)
	return &authorityBracket{
		instance:      instance,
		matches:       matches,
		competitorOf:  competitorOf,
		participantOf: participantOf,
	}, nil
}

// sortAuthorityMatches freezes play order: the authority's suggested play
// order when present, otherwise round then id. The mirror never re-sorts
// after this.
func sortAuthorityMatches(matches []challonge.Match) {
	anySuggested := false
	for _, m := range matches {
		if m.SuggestedPlayOrder != nil {
			anySuggested = true
			break
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if anySuggested {
			switch {
			case a.SuggestedPlayOrder == nil:
				return false
			case b.SuggestedPlayOrder == nil:
				return true
			case *a.SuggestedPlayOrder != *b.SuggestedPlayOrder:
				return *a.SuggestedPlayOrder < *b.SuggestedPlayOrder
			}
			return a.ID < b.ID
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		return a.ID < b.ID
	})
}

// groupAndRound translates the authority's signed round into a bracket
// group and a 1-based local round. Negative rounds are the loser bracket.
// In double elimination the highest positive round holding exactly one
// match is the grand final.
func groupAndRound(round int, isDoubleElim bool, maxWinnerRound, matchesAtMax int) (models.BracketGroup, int) {
	if round < 0 {
		return models.GroupLoser, -round
	}
	if isDoubleElim && round == maxWinnerRound && matchesAtMax == 1 {
		return models.GroupFinal, round
	}
	return models.GroupWinner, round
}

func bracketShape(matches []challonge.Match) (maxWinnerRound, matchesAtMax int) {
	for _, m := range matches {
		if m.Round > maxWinnerRound {
			maxWinnerRound = m.Round
		}
	}
	for _, m := range matches {
		if m.Round == maxWinnerRound {
			matchesAtMax++
		}
	}
	return maxWinnerRound, matchesAtMax
}

func (s *bracketService) GenerateMirror(ctx context.Context, eventID int, format models.MatchFormat) ([]models.BracketMatch, error) {
	if format == "" {
		format = models.FormatBestOf3
	}
	if format != models.FormatSingle && format != models.FormatBestOf3 {
		return nil, fmt.Errorf("%w: unsupported match format %q", ErrValidationFailed, format)
	}
	totalRounds := 1
	if format == models.FormatBestOf3 {
		totalRounds = 3
	}

	authority, err := s.fetchAuthorityBracket(ctx, eventID)
	if err != nil {
		return nil, err
	}
	isDoubleElim := authority.instance.TournamentType == "double elimination"
	maxWinnerRound, matchesAtMax := bracketShape(authority.matches)

	var created []models.BracketMatch
	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		deleted, err := s.bracketRepo.DeleteByEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if deleted > 0 {
			s.logger.InfoContext(ctx, "existing bracket mirror destroyed",
				slog.Int("event_id", eventID),
				slog.Int("matches", deleted))
		}

		matchNumber := 0
		for _, upstream := range authority.matches {
			group, roundNumber := groupAndRound(upstream.Round, isDoubleElim, maxWinnerRound, matchesAtMax)
			matchNumber++

			challongeID := fmt.Sprint(upstream.ID)
			challongeRound := upstream.Round
			match := models.BracketMatch{
				EventID:            eventID,
				ChallongeMatchID:   &challongeID,
				ChallongeRound:     &challongeRound,
				SuggestedPlayOrder: upstream.SuggestedPlayOrder,
				BracketGroup:       group,
				RoundNumber:        roundNumber,
				MatchNumber:        matchNumber,
				Track1CompetitorID: s.slotCompetitor(authority, upstream.Player1ID),
				Track2CompetitorID: s.slotCompetitor(authority, upstream.Player2ID),
				MatchFormat:        format,
				TotalRounds:        totalRounds,
				CurrentRound:       1,
			}
			if _, err := s.bracketRepo.Create(ctx, tx, &match); err != nil {
				return err
			}

			if format == models.FormatBestOf3 {
				for leg := 1; leg <= totalRounds; leg++ {
					if _, err := s.subRoundRepo.Create(ctx, tx, scaffoldSubRound(&match, leg)); err != nil {
						return err
					}
				}
			}

			if upstream.WinnerID != nil {
				if err := s.importUpstreamResult(ctx, tx, &match, authority, &upstream); err != nil {
					return err
				}
			}
			created = append(created, match)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(eventID, "BRACKET_GENERATED", map[string]int{"matches": len(created)})
	s.logger.InfoContext(ctx, "bracket mirror generated",
		slog.Int("event_id", eventID),
		slog.Int("matches", len(created)),
		slog.String("format", string(format)))
	return created, nil
}

func (s *bracketService) Reconcile(ctx context.Context, eventID int) (*ReconcileSummary, error) {
	local, err := s.bracketRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(local) == 0 {
		return nil, ErrBracketNotGenerated
	}

	authority, err := s.fetchAuthorityBracket(ctx, eventID)
	if err != nil {
		return nil, err
	}
	isDoubleElim := authority.instance.TournamentType == "double elimination"
	maxWinnerRound, matchesAtMax := bracketShape(authority.matches)

	localByChallongeID := make(map[string]*models.BracketMatch, len(local))
	for i := range local {
		if local[i].ChallongeMatchID != nil {
			localByChallongeID[*local[i].ChallongeMatchID] = &local[i]
		}
	}

	summary := &ReconcileSummary{}
	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		matchNumber := 0
		for i := range authority.matches {
			upstream := &authority.matches[i]
			group, roundNumber := groupAndRound(upstream.Round, isDoubleElim, maxWinnerRound, matchesAtMax)
			matchNumber++

			challongeID := fmt.Sprint(upstream.ID)
			mirror, known := localByChallongeID[challongeID]
			if !known {
				// An authority match the mirror has never seen means the
				// upstream tree was rebuilt; reconciliation never creates
				// rows, so it still counts toward numbering and is skipped.
				s.logger.WarnContext(ctx, "unknown authority match skipped",
					slog.Int("event_id", eventID),
					slog.String("challonge_match_id", challongeID))
				continue
			}

			challongeRound := upstream.Round
			orderingChanged := mirror.BracketGroup != group ||
				mirror.RoundNumber != roundNumber ||
				mirror.MatchNumber != matchNumber ||
				!equalIntPtr(mirror.ChallongeRound, &challongeRound) ||
				!equalIntPtr(mirror.SuggestedPlayOrder, upstream.SuggestedPlayOrder)
			if orderingChanged {
				if err := s.bracketRepo.UpdateOrdering(ctx, tx, mirror.ID, group, roundNumber, matchNumber, &challongeRound, upstream.SuggestedPlayOrder); err != nil {
					return err
				}
				summary.OrderingUpdates++
			}

			// Competitor slots are frozen the moment a match is decided.
			if mirror.Decided() {
				continue
			}

			track1 := s.slotCompetitor(authority, upstream.Player1ID)
			track2 := s.slotCompetitor(authority, upstream.Player2ID)
			if !equalIntPtr(mirror.Track1CompetitorID, track1) || !equalIntPtr(mirror.Track2CompetitorID, track2) {
				if err := s.bracketRepo.UpdateSlots(ctx, tx, mirror.ID, track1, track2); err != nil {
					return err
				}
				mirror.Track1CompetitorID = track1
				mirror.Track2CompetitorID = track2
				summary.SlotUpdates++
			}

			if upstream.WinnerID != nil {
				if err := s.importUpstreamResult(ctx, tx, mirror, authority, upstream); err != nil {
					return err
				}
				summary.ImportedResults++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(eventID, "BRACKET_RECONCILED", summary)
	s.logger.InfoContext(ctx, "bracket mirror reconciled",
		slog.Int("event_id", eventID),
		slog.Int("slot_updates", summary.SlotUpdates),
		slog.Int("ordering_updates", summary.OrderingUpdates),
		slog.Int("imported_results", summary.ImportedResults))
	return summary, nil
}

// importUpstreamResult applies a result already decided by the authority
// (byes, auto-forfeits after a deactivation). The result is ledgered as
// synced so the push engine never echoes it back.
func (s *bracketService) importUpstreamResult(ctx context.Context, tx *sql.Tx, mirror *models.BracketMatch, authority *authorityBracket, upstream *challonge.Match) error {
	winnerCompetitor, ok := authority.competitorOf[*upstream.WinnerID]
	if !ok {
		return fmt.Errorf("%w: winner participant %d in match %d", ErrUnknownParticipant, *upstream.WinnerID, upstream.ID)
	}

	winnerTrack := 1
	if upstream.Player2ID != nil && *upstream.Player2ID == *upstream.WinnerID {
		winnerTrack = 2
	}

	if timeA, timeB, ok := models.ParseTimesCSV(upstream.ScoresCSV); ok {
		if err := s.bracketRepo.UpdateTrackTime(ctx, tx, mirror.ID, 1, timeA); err != nil {
			return err
		}
		if err := s.bracketRepo.UpdateTrackTime(ctx, tx, mirror.ID, 2, timeB); err != nil {
			return err
		}
	}
	if err := s.bracketRepo.SetWinner(ctx, tx, mirror.ID, winnerCompetitor, winnerTrack); err != nil {
		return err
	}

	record := &models.SyncRecord{
		MatchID:             mirror.ID,
		TournamentID:        authority.instance.ID,
		ChallongeMatchID:    fmt.Sprint(upstream.ID),
		ScoresCSV:           upstream.ScoresCSV,
		WinnerParticipantID: authority.participantOf[winnerCompetitor],
	}
	if _, err := s.syncRepo.Create(ctx, tx, record); err != nil {
		if errors.Is(err, repositories.ErrSyncRecordExists) {
			return nil
		}
		return err
	}
	return nil
}

// scaffoldSubRound builds one leg of a best-of-N match. Track assignment
// alternates to cancel lane bias: odd legs run the track-1 slot on track 1,
// even legs swap.
func scaffoldSubRound(match *models.BracketMatch, roundNumber int) *models.SubRound {
	racer1Track, racer2Track := 1, 2
	if roundNumber%2 == 0 {
		racer1Track, racer2Track = 2, 1
	}
	return &models.SubRound{
		MatchID:     match.ID,
		RoundNumber: roundNumber,
		Racer1ID:    match.Track1CompetitorID,
		Racer2ID:    match.Track2CompetitorID,
		Racer1Track: racer1Track,
		Racer2Track: racer2Track,
	}
}

func (s *bracketService) slotCompetitor(authority *authorityBracket, playerID *int64) *int {
	if playerID == nil {
		return nil
	}
	competitorID := authority.competitorOf[*playerID]
	return &competitorID
}

func (s *bracketService) ListMatches(ctx context.Context, eventID int) ([]models.BracketMatch, error) {
	matches, err := s.bracketRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	s.hydrateCompetitors(ctx, matches)
	return matches, nil
}

func (s *bracketService) GetMatch(ctx context.Context, matchID int) (*models.BracketMatch, error) {
	match, err := s.bracketRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketMatchNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	matches := []models.BracketMatch{*match}
	s.hydrateCompetitors(ctx, matches)
	return &matches[0], nil
}

func (s *bracketService) hydrateCompetitors(ctx context.Context, matches []models.BracketMatch) {
	idSet := make(map[int]struct{})
	for _, m := range matches {
		if m.Track1CompetitorID != nil {
			idSet[*m.Track1CompetitorID] = struct{}{}
		}
		if m.Track2CompetitorID != nil {
			idSet[*m.Track2CompetitorID] = struct{}{}
		}
	}
	ids := make([]int, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	competitors, err := s.competitorRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to hydrate match competitors", slog.Any("error", err))
		return
	}
	for i := range matches {
		if matches[i].Track1CompetitorID != nil {
			matches[i].Track1Competitor = competitors[*matches[i].Track1CompetitorID]
		}
		if matches[i].Track2CompetitorID != nil {
			matches[i].Track2Competitor = competitors[*matches[i].Track2CompetitorID]
		}
	}
}

func (s *bracketService) publish(eventID int, messageType string, payload interface{}) {
	if s.publisher != nil {
		s.publisher.PublishToEvent(eventID, messageType, payload)
	}
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
