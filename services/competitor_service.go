package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/brickrace/race-server/models"
	"github.com/brickrace/race-server/repositories"
	"github.com/brickrace/race-server/storage"
)

var ErrRacerNumberTaken = errors.New("racer number already in use")

type CompetitorService interface {
	Create(ctx context.Context, input CompetitorInput) (*models.Competitor, error)
	Get(ctx context.Context, id int) (*models.Competitor, error)
	List(ctx context.Context) ([]models.Competitor, error)
	Update(ctx context.Context, id int, input CompetitorInput) (*models.Competitor, error)
	SetCheckedIn(ctx context.Context, id int, checkedIn bool) (*models.Competitor, error)
	// UploadPhoto stores the car photo and records its storage key.
	UploadPhoto(ctx context.Context, id int, contentType string, reader io.Reader) (*models.Competitor, error)
	// Standings lists eligible competitors with best qualifying times,
	// fastest first.
	Standings(ctx context.Context, eventID int) ([]models.Competitor, error)
}

type CompetitorInput struct {
	Name        string  `json:"name"`
	RacerNumber int     `json:"racer_number"`
	BuilderName *string `json:"builder_name,omitempty"`
}

type competitorService struct {
	competitorRepo repositories.CompetitorRepository
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewCompetitorService(
	competitorRepo repositories.CompetitorRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) CompetitorService {
	return &competitorService{
		competitorRepo: competitorRepo,
		uploader:       uploader,
		logger:         logger,
	}
}

func (s *competitorService) Create(ctx context.Context, input CompetitorInput) (*models.Competitor, error) {
	if err := validateCompetitorInput(input); err != nil {
		return nil, err
	}

	competitor := &models.Competitor{
		Name:        strings.TrimSpace(input.Name),
		RacerNumber: input.RacerNumber,
		BuilderName: input.BuilderName,
	}
	if _, err := s.competitorRepo.Create(ctx, competitor); err != nil {
		if errors.Is(err, repositories.ErrDuplicateRacerNumber) {
			return nil, ErrRacerNumberTaken
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "competitor registered",
		slog.Int("competitor_id", competitor.ID),
		slog.Int("racer_number", competitor.RacerNumber))
	return competitor, nil
}

func (s *competitorService) Get(ctx context.Context, id int) (*models.Competitor, error) {
	competitor, err := s.competitorRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitorNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	populateCompetitorPhotoURL(competitor, s.uploader)
	return competitor, nil
}

func (s *competitorService) List(ctx context.Context) ([]models.Competitor, error) {
	competitors, err := s.competitorRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range competitors {
		populateCompetitorPhotoURL(&competitors[i], s.uploader)
	}
	return competitors, nil
}

func (s *competitorService) Update(ctx context.Context, id int, input CompetitorInput) (*models.Competitor, error) {
	if err := validateCompetitorInput(input); err != nil {
		return nil, err
	}
	competitor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	competitor.Name = strings.TrimSpace(input.Name)
	competitor.RacerNumber = input.RacerNumber
	competitor.BuilderName = input.BuilderName

	if err := s.competitorRepo.Update(ctx, competitor); err != nil {
		if errors.Is(err, repositories.ErrDuplicateRacerNumber) {
			return nil, ErrRacerNumberTaken
		}
		if errors.Is(err, repositories.ErrCompetitorNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return competitor, nil
}

func (s *competitorService) SetCheckedIn(ctx context.Context, id int, checkedIn bool) (*models.Competitor, error) {
	if err := s.competitorRepo.SetCheckedIn(ctx, id, checkedIn); err != nil {
		if errors.Is(err, repositories.ErrCompetitorNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *competitorService) UploadPhoto(ctx context.Context, id int, contentType string, reader io.Reader) (*models.Competitor, error) {
	competitor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ext, err := extensionForContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	oldKey := competitor.PhotoKey
	key := fmt.Sprintf("competitors/%d/%s%s", id, uuid.NewString(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload competitor photo: %w", err)
	}
	if err := s.competitorRepo.SetPhotoKey(ctx, id, result.Key); err != nil {
		return nil, err
	}

	if oldKey != nil && *oldKey != "" {
		if err := s.uploader.Delete(ctx, *oldKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete replaced photo",
				slog.String("key", *oldKey),
				slog.Any("error", err))
		}
	}

	competitor.PhotoKey = &result.Key
	populateCompetitorPhotoURL(competitor, s.uploader)
	return competitor, nil
}

func (s *competitorService) Standings(ctx context.Context, eventID int) ([]models.Competitor, error) {
	competitors, err := s.competitorRepo.ListEligible(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for i := range competitors {
		populateCompetitorPhotoURL(&competitors[i], s.uploader)
	}
	return competitors, nil
}

func validateCompetitorInput(input CompetitorInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidationFailed)
	}
	if input.RacerNumber <= 0 {
		return fmt.Errorf("%w: racer number must be positive", ErrValidationFailed)
	}
	return nil
}

func extensionForContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("unsupported image content type %q", contentType)
	}
}
