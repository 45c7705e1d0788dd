package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brickrace/race-server/challonge"
	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/repositories"
)

// EventStatus is the aggregated race-day dashboard payload.
type EventStatus struct {
	Event            *models.Event              `json:"event"`
	Phase            models.Phase               `json:"phase"`
	QualifierTotal   int                        `json:"qualifier_total"`
	QualifierOpen    int                        `json:"qualifier_open"`
	BracketUndecided int                        `json:"bracket_undecided"`
	Tournament       *models.TournamentInstance `json:"tournament,omitempty"`
	AuthorityState   string                     `json:"authority_state,omitempty"`
}

type TournamentService interface {
	// Create provisions a tournament with the authority and stores the
	// local binding. One tournament per event.
	Create(ctx context.Context, eventID int, tournamentType string) (*models.TournamentInstance, error)
	// RegisterParticipants pushes every eligible competitor to the
	// authority seeded by best qualifying time, fastest first.
	RegisterParticipants(ctx context.Context, eventID int) ([]models.SeedEntry, error)
	Start(ctx context.Context, eventID int) (*models.TournamentInstance, error)
	// FinalizeIfComplete finalizes the authority tournament once every
	// local match is decided. Best effort: an authority refusal is
	// reported but leaves local state untouched.
	FinalizeIfComplete(ctx context.Context, eventID int) (bool, error)
	Get(ctx context.Context, eventID int) (*models.TournamentInstance, error)
	Status(ctx context.Context, eventID int) (*EventStatus, error)
}

type tournamentService struct {
	db             *sql.DB
	client         challonge.Client
	eventRepo      repositories.EventRepository
	competitorRepo repositories.CompetitorRepository
	qualifierRepo  repositories.QualifierRepository
	bracketRepo    repositories.BracketRepository
	tournamentRepo repositories.TournamentRepository
	phaseService   PhaseService
	logger         *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	client challonge.Client,
	eventRepo repositories.EventRepository,
	competitorRepo repositories.CompetitorRepository,
	qualifierRepo repositories.QualifierRepository,
	bracketRepo repositories.BracketRepository,
	tournamentRepo repositories.TournamentRepository,
	phaseService PhaseService,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:             db,
		client:         client,
		eventRepo:      eventRepo,
		competitorRepo: competitorRepo,
		qualifierRepo:  qualifierRepo,
		bracketRepo:    bracketRepo,
		tournamentRepo: tournamentRepo,
		phaseService:   phaseService,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, eventID int, tournamentType string) (*models.TournamentInstance, error) {
	if tournamentType == "" {
		tournamentType = "double elimination"
	}
	if tournamentType != "single elimination" && tournamentType != "double elimination" {
		return nil, fmt.Errorf("%w: unsupported tournament type %q", ErrValidationFailed, tournamentType)
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if _, err := s.tournamentRepo.GetByEventID(ctx, eventID); err == nil {
		return nil, ErrTournamentAlreadyExists
	} else if !errors.Is(err, repositories.ErrTournamentNotFound) {
		return nil, err
	}

	urlSlug := "race_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	created, err := s.client.CreateTournament(ctx, challonge.NewTournament{
		Name:              event.Name,
		URL:               urlSlug,
		TournamentType:    tournamentType,
		ShowRounds:        true,
		HideForum:         true,
		AcceptAttachments: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create authority tournament: %w", err)
	}

	instance := &models.TournamentInstance{
		EventID:               eventID,
		ChallongeTournamentID: fmt.Sprint(created.ID),
		ChallongeURL:          created.URL,
		TournamentType:        tournamentType,
		Status:                models.TournamentStatusPending,
	}
	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := s.tournamentRepo.Create(ctx, tx, instance)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentExists) {
			return nil, ErrTournamentAlreadyExists
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "authority tournament created",
		slog.Int("event_id", eventID),
		slog.String("challonge_tournament_id", instance.ChallongeTournamentID),
		slog.String("type", tournamentType))
	return instance, nil
}

func (s *tournamentService) RegisterParticipants(ctx context.Context, eventID int) ([]models.SeedEntry, error) {
	instance, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if instance.Status != models.TournamentStatusPending {
		return nil, ErrTournamentAlreadyStarted
	}

	eligible, err := s.competitorRepo.ListEligible(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleCompetitors
	}

	registered, err := s.tournamentRepo.ListSeeds(ctx, instance.ID)
	if err != nil {
		return nil, err
	}
	alreadyIn := make(map[int]bool, len(registered))
	for _, seed := range registered {
		alreadyIn[seed.CompetitorID] = true
	}

	// ListEligible orders fastest first, so position is the seed rank.
	var seeds []models.SeedEntry
	for rank, competitor := range eligible {
		if alreadyIn[competitor.ID] {
			continue
		}
		seed := rank + 1
		participant, err := s.client.AddParticipant(ctx, instance.ChallongeTournamentID, challonge.NewParticipant{
			Name: fmt.Sprintf("#%d %s", competitor.RacerNumber, competitor.Name),
			Seed: seed,
			Misc: fmt.Sprint(competitor.ID),
		})
		if err != nil {
			return seeds, fmt.Errorf("failed to register competitor %d with authority: %w", competitor.ID, err)
		}

		entry := models.SeedEntry{
			TournamentID:           instance.ID,
			CompetitorID:           competitor.ID,
			ChallongeParticipantID: fmt.Sprint(participant.ID),
			Seed:                   &seed,
		}
		err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
			_, err := s.tournamentRepo.CreateSeed(ctx, tx, &entry)
			return err
		})
		if err != nil {
			return seeds, err
		}
		seeds = append(seeds, entry)
	}

	s.logger.InfoContext(ctx, "participants registered",
		slog.Int("event_id", eventID),
		slog.Int("count", len(seeds)))
	return seeds, nil
}

func (s *tournamentService) Start(ctx context.Context, eventID int) (*models.TournamentInstance, error) {
	instance, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if instance.Status != models.TournamentStatusPending {
		return nil, ErrTournamentAlreadyStarted
	}

	seeds, err := s.tournamentRepo.ListSeeds(ctx, instance.ID)
	if err != nil {
		return nil, err
	}
	if len(seeds) < 2 {
		return nil, fmt.Errorf("%w: at least 2 registered competitors required", ErrValidationFailed)
	}

	if _, err := s.client.StartTournament(ctx, instance.ChallongeTournamentID); err != nil {
		return nil, fmt.Errorf("failed to start authority tournament: %w", err)
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.tournamentRepo.UpdateStatus(ctx, tx, instance.ID, models.TournamentStatusActive)
	})
	if err != nil {
		return nil, err
	}
	instance.Status = models.TournamentStatusActive

	s.logger.InfoContext(ctx, "authority tournament started",
		slog.Int("event_id", eventID),
		slog.String("challonge_tournament_id", instance.ChallongeTournamentID))
	return instance, nil
}

func (s *tournamentService) FinalizeIfComplete(ctx context.Context, eventID int) (bool, error) {
	instance, err := s.Get(ctx, eventID)
	if err != nil {
		return false, err
	}
	if instance.Status == models.TournamentStatusCompleted {
		return true, nil
	}

	phase, err := s.phaseService.Resolve(ctx, eventID)
	if err != nil {
		return false, err
	}
	if phase != models.PhaseComplete {
		return false, nil
	}

	if _, err := s.client.FinalizeTournament(ctx, instance.ChallongeTournamentID); err != nil {
		// Authority refuses until it agrees everything is scored; local
		// completion stands either way.
		s.logger.WarnContext(ctx, "authority finalize refused",
			slog.Int("event_id", eventID),
			slog.Any("error", err))
		return false, nil
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.tournamentRepo.UpdateStatus(ctx, tx, instance.ID, models.TournamentStatusCompleted)
	})
	if err != nil {
		return false, err
	}

	s.logger.InfoContext(ctx, "authority tournament finalized", slog.Int("event_id", eventID))
	return true, nil
}

func (s *tournamentService) Get(ctx context.Context, eventID int) (*models.TournamentInstance, error) {
	instance, err := s.tournamentRepo.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return instance, nil
}

func (s *tournamentService) Status(ctx context.Context, eventID int) (*EventStatus, error) {
	status := &EventStatus{}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		event, err := s.eventRepo.GetByID(gCtx, eventID)
		if err != nil {
			if errors.Is(err, repositories.ErrEventNotFound) {
				return ErrNotFound
			}
			return err
		}
		status.Event = event
		return nil
	})

	g.Go(func() error {
		phase, err := s.phaseService.Resolve(gCtx, eventID)
		if err != nil {
			return err
		}
		status.Phase = phase
		return nil
	})

	g.Go(func() error {
		total, err := s.qualifierRepo.CountByEvent(gCtx, eventID)
		if err != nil {
			return err
		}
		open, err := s.qualifierRepo.CountIncompleteByEvent(gCtx, eventID)
		if err != nil {
			return err
		}
		status.QualifierTotal = total
		status.QualifierOpen = open
		return nil
	})

	g.Go(func() error {
		undecided, err := s.bracketRepo.CountUndecidedByEvent(gCtx, eventID)
		if err != nil {
			return err
		}
		status.BracketUndecided = undecided
		return nil
	})

	g.Go(func() error {
		instance, err := s.tournamentRepo.GetByEventID(gCtx, eventID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return nil
			}
			return err
		}
		status.Tournament = instance

		upstream, err := s.client.GetTournament(gCtx, instance.ChallongeTournamentID)
		if err != nil {
			// Authority state is advisory on the dashboard.
			s.logger.WarnContext(gCtx, "failed to fetch authority tournament state",
				slog.Int("event_id", eventID),
				slog.Any("error", err))
			return nil
		}
		status.AuthorityState = upstream.State
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return status, nil
}
