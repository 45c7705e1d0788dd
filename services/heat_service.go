package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/realtime"
	"github.com/brickrace/race-server/repositories"
	"github.com/brickrace/race-server/storage"
)

// HeatService owns the unified play order: qualifying heats first, then
// bracket matches in their frozen order. Display heat numbers are the
// 1-based position in that order, assigned at read time.
type HeatService interface {
	GenerateQualifyingRound(ctx context.Context, eventID int) ([]models.Qualifier, error)
	RecordQualifierTime(ctx context.Context, eventID, heatNumber, track int, time float64) (*models.Qualifier, error)
	ListHeats(ctx context.Context, eventID int) ([]models.HeatView, error)
	// CurrentHeat returns the active heat and the on-deck heat behind it.
	// Undecided byes encountered at the cursor are completed and skipped.
	CurrentHeat(ctx context.Context, eventID int) (current, onDeck *models.HeatView, err error)
}

type heatService struct {
	db             *sql.DB
	qualifierRepo  repositories.QualifierRepository
	bracketRepo    repositories.BracketRepository
	competitorRepo repositories.CompetitorRepository
	uploader       storage.FileUploader
	publisher      realtime.Publisher
	logger         *slog.Logger
}

func NewHeatService(
	db *sql.DB,
	qualifierRepo repositories.QualifierRepository,
	bracketRepo repositories.BracketRepository,
	competitorRepo repositories.CompetitorRepository,
	uploader storage.FileUploader,
	publisher realtime.Publisher,
	logger *slog.Logger,
) HeatService {
	return &heatService{
		db:             db,
		qualifierRepo:  qualifierRepo,
		bracketRepo:    bracketRepo,
		competitorRepo: competitorRepo,
		uploader:       uploader,
		publisher:      publisher,
		logger:         logger,
	}
}

// GenerateQualifyingRound pairs every eligible competitor into new heats
// appended after the existing schedule. Pairings are shuffled; an odd
// competitor count leaves one solo heat at the end of the round.
func (s *heatService) GenerateQualifyingRound(ctx context.Context, eventID int) ([]models.Qualifier, error) {
	eligible, err := s.competitorRepo.ListEligible(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load eligible competitors: %w", err)
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleCompetitors
	}

	maxHeat, err := s.qualifierRepo.MaxHeatNumber(ctx, eventID)
	if err != nil {
		return nil, err
	}

	shuffled := make([]models.Competitor, len(eligible))
	copy(shuffled, eligible)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var qualifiers []models.Qualifier
	heatNumber := maxHeat
	for i := 0; i < len(shuffled); i += 2 {
		heatNumber++
		qualifiers = append(qualifiers, models.Qualifier{
			EventID:        eventID,
			CompetitorID:   shuffled[i].ID,
			HeatNumber:     heatNumber,
			TrackNumber:    1,
			ScheduledOrder: heatNumber,
			Status:         models.HeatStatusScheduled,
		})
		if i+1 < len(shuffled) {
			qualifiers = append(qualifiers, models.Qualifier{
				EventID:        eventID,
				CompetitorID:   shuffled[i+1].ID,
				HeatNumber:     heatNumber,
				TrackNumber:    2,
				ScheduledOrder: heatNumber,
				Status:         models.HeatStatusScheduled,
			})
		}
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.qualifierRepo.CreateBatch(ctx, tx, qualifiers)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "qualifying round generated",
		slog.Int("event_id", eventID),
		slog.Int("heats", heatNumber-maxHeat),
		slog.Int("competitors", len(shuffled)))
	return qualifiers, nil
}

func (s *heatService) RecordQualifierTime(ctx context.Context, eventID, heatNumber, track int, raceTime float64) (*models.Qualifier, error) {
	if track != 1 && track != 2 {
		return nil, ErrInvalidTrack
	}
	if raceTime <= 0 {
		return nil, fmt.Errorf("%w: time must be positive", ErrValidationFailed)
	}

	slots, err := s.qualifierRepo.GetHeat(ctx, eventID, heatNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrQualifierNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var target *models.Qualifier
	for i := range slots {
		if slots[i].TrackNumber == track {
			target = &slots[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: no racer on track %d in heat %d", ErrValidationFailed, track, heatNumber)
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.qualifierRepo.RecordTime(ctx, tx, target.ID, raceTime)
	})
	if err != nil {
		return nil, err
	}
	target.Time = &raceTime
	target.Status = models.HeatStatusCompleted

	s.publish(eventID, "QUALIFIER_TIME_RECORDED", target)
	s.logger.InfoContext(ctx, "qualifier time recorded",
		slog.Int("event_id", eventID),
		slog.Int("heat", heatNumber),
		slog.Int("track", track),
		slog.Float64("time", raceTime))
	return target, nil
}

func (s *heatService) ListHeats(ctx context.Context, eventID int) ([]models.HeatView, error) {
	qualifiers, err := s.qualifierRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	matches, err := s.bracketRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	competitors, err := s.loadCompetitors(ctx, qualifiers, matches)
	if err != nil {
		return nil, err
	}

	var views []models.HeatView
	displayNumber := 0

	for _, group := range groupQualifierHeats(qualifiers) {
		displayNumber++
		views = append(views, s.qualifierHeatView(displayNumber, group, competitors))
	}
	for i := range matches {
		displayNumber++
		views = append(views, s.bracketHeatView(displayNumber, &matches[i], competitors))
	}
	return views, nil
}

func (s *heatService) CurrentHeat(ctx context.Context, eventID int) (*models.HeatView, *models.HeatView, error) {
	views, err := s.ListHeats(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	matchesByID, err := s.undecidedMatches(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}

	var pending []models.HeatView
	for _, view := range views {
		done, skip, err := s.heatSettled(ctx, view, matchesByID)
		if err != nil {
			return nil, nil, err
		}
		if done || skip {
			continue
		}
		pending = append(pending, view)
		if len(pending) == 2 {
			break
		}
	}

	switch len(pending) {
	case 0:
		return nil, nil, nil
	case 1:
		current := pending[0]
		return &current, nil, nil
	default:
		current, onDeck := pending[0], pending[1]
		return &current, &onDeck, nil
	}
}

// heatSettled reports whether the heat is finished (done) or a bye that
// was auto-completed in passing (skip).
func (s *heatService) heatSettled(ctx context.Context, view models.HeatView, undecided map[int]*models.BracketMatch) (done, skip bool, err error) {
	if view.Type == models.HeatTypeQualifier {
		for _, slot := range view.Slots {
			if slot.Time == nil {
				return false, false, nil
			}
		}
		return true, false, nil
	}

	match, stillOpen := undecided[*view.MatchID]
	if !stillOpen {
		return true, false, nil
	}
	if match.IsBye() {
		if err := s.completeBye(ctx, match); err != nil {
			return false, false, err
		}
		return false, true, nil
	}
	if match.Track1CompetitorID == nil && match.Track2CompetitorID == nil {
		// Both slots still pending upstream results; not runnable yet.
		return false, true, nil
	}
	return false, false, nil
}

// completeBye advances the lone racer without recording times.
func (s *heatService) completeBye(ctx context.Context, match *models.BracketMatch) error {
	winnerID := match.Track1CompetitorID
	winnerTrack := 1
	if winnerID == nil {
		winnerID = match.Track2CompetitorID
		winnerTrack = 2
	}
	if winnerID == nil {
		return ErrMatchNotBye
	}

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.bracketRepo.SetWinner(ctx, tx, match.ID, *winnerID, winnerTrack)
	})
	if err != nil {
		return fmt.Errorf("failed to auto-complete bye match %d: %w", match.ID, err)
	}
	match.WinnerCompetitorID = winnerID
	match.WinnerTrack = &winnerTrack
	match.IsCompleted = true
	s.publish(match.EventID, "MATCH_COMPLETED", match)
	s.logger.InfoContext(ctx, "bye match auto-completed",
		slog.Int("match_id", match.ID),
		slog.Int("winner_competitor_id", *winnerID))
	return nil
}

func (s *heatService) publish(eventID int, messageType string, payload interface{}) {
	if s.publisher != nil {
		s.publisher.PublishToEvent(eventID, messageType, payload)
	}
}

func (s *heatService) undecidedMatches(ctx context.Context, eventID int) (map[int]*models.BracketMatch, error) {
	matches, err := s.bracketRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	undecided := make(map[int]*models.BracketMatch)
	for i := range matches {
		if !matches[i].Decided() {
			undecided[matches[i].ID] = &matches[i]
		}
	}
	return undecided, nil
}

func (s *heatService) loadCompetitors(ctx context.Context, qualifiers []models.Qualifier, matches []models.BracketMatch) (map[int]*models.Competitor, error) {
	idSet := make(map[int]struct{})
	for _, q := range qualifiers {
		idSet[q.CompetitorID] = struct{}{}
	}
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
		return nil, err
	}
	for _, competitor := range competitors {
		populateCompetitorPhotoURL(competitor, s.uploader)
	}
	return competitors, nil
}

func (s *heatService) heatSlot(track int, competitorID int, raceTime *float64, competitors map[int]*models.Competitor) models.HeatSlot {
	slot := models.HeatSlot{
		TrackNumber:  track,
		CompetitorID: competitorID,
		Time:         raceTime,
	}
	if competitor, ok := competitors[competitorID]; ok {
		slot.Name = competitor.Name
		slot.RacerNumber = competitor.RacerNumber
		slot.PhotoURL = competitor.PhotoURL
	}
	return slot
}

func (s *heatService) qualifierHeatView(displayNumber int, slots []models.Qualifier, competitors map[int]*models.Competitor) models.HeatView {
	view := models.HeatView{
		HeatNumber: displayNumber,
		Type:       models.HeatTypeQualifier,
	}
	if len(slots) > 0 {
		heatNumber := slots[0].HeatNumber
		view.QualifierHeatNumber = &heatNumber
	}
	for _, q := range slots {
		view.Slots = append(view.Slots, s.heatSlot(q.TrackNumber, q.CompetitorID, q.Time, competitors))
	}
	return view
}

func (s *heatService) bracketHeatView(displayNumber int, match *models.BracketMatch, competitors map[int]*models.Competitor) models.HeatView {
	matchID := match.ID
	group := match.BracketGroup
	round := match.RoundNumber
	matchNumber := match.MatchNumber
	format := match.MatchFormat
	currentRound := match.CurrentRound
	wins1 := match.RoundsWonTrack1
	wins2 := match.RoundsWonTrack2

	view := models.HeatView{
		HeatNumber:      displayNumber,
		Type:            models.HeatTypeBracket,
		MatchID:         &matchID,
		BracketGroup:    &group,
		RoundNumber:     &round,
		MatchNumber:     &matchNumber,
		MatchFormat:     &format,
		CurrentRound:    &currentRound,
		RoundsWonTrack1: &wins1,
		RoundsWonTrack2: &wins2,
	}
	if match.Track1CompetitorID != nil {
		view.Slots = append(view.Slots, s.heatSlot(1, *match.Track1CompetitorID, match.Track1Time, competitors))
	}
	if match.Track2CompetitorID != nil {
		view.Slots = append(view.Slots, s.heatSlot(2, *match.Track2CompetitorID, match.Track2Time, competitors))
	}
	return view
}

// groupQualifierHeats groups slot rows by heat number, preserving the
// scheduled order the repository returned them in.
func groupQualifierHeats(qualifiers []models.Qualifier) [][]models.Qualifier {
	var groups [][]models.Qualifier
	index := make(map[int]int)
	for _, q := range qualifiers {
		i, ok := index[q.HeatNumber]
		if !ok {
			index[q.HeatNumber] = len(groups)
			groups = append(groups, []models.Qualifier{q})
			continue
		}
		groups[i] = append(groups[i], q)
	}
	return groups
}

func populateCompetitorPhotoURL(competitor *models.Competitor, uploader storage.FileUploader) {
	if competitor != nil && competitor.PhotoKey != nil && *competitor.PhotoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*competitor.PhotoKey)
		if url != "" {
			competitor.PhotoURL = &url
		}
	}
}
