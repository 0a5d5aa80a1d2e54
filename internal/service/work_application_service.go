package service

import (
	"context"
	"strings"

	"marpro/internal/domain"
	"marpro/internal/events"
	"marpro/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultApplicationsLimit = 100

type WorkApplicationService struct {
	repo     domain.WorkApplicationRepository
	eventBus domain.EventPublisher
	validate *validator.Validate
	logger   *zerolog.Logger
}

func NewWorkApplicationService(repo domain.WorkApplicationRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *WorkApplicationService {
	return &WorkApplicationService{
		repo:     repo,
		eventBus: eventBus,
		validate: newValidator(),
		logger:   logger,
	}
}

func (s *WorkApplicationService) Submit(ctx context.Context, req *models.WorkApplicationRequest) (*models.WorkApplication, error) {
	if req == nil {
		return nil, domain.NewValidationError("", "empty request")
	}
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	app := &models.WorkApplication{
		ID:         uuid.NewString(),
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      strings.TrimSpace(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		Position:   strings.TrimSpace(req.Position),
		Experience: strings.TrimSpace(req.Experience),
		Message:    strings.TrimSpace(req.Message),
		Status:     models.WorkApplicationStatusNew,
	}
	if err := s.repo.CreateWorkApplication(ctx, app); err != nil {
		return nil, err
	}
	s.logger.Info().Str("application_id", app.ID).Str("position", app.Position).Msg("work application received")

	if s.eventBus != nil {
		payload := events.WorkApplicationEventPayload{
			ApplicationID: app.ID,
			Name:          strings.TrimSpace(app.FirstName + " " + app.LastName),
			Position:      app.Position,
			Phone:         app.Phone,
			Email:         app.Email,
		}
		if err := s.eventBus.PublishJSON(events.EventWorkApplicationCreated, payload); err != nil {
			s.logger.Error().Err(err).Str("application_id", app.ID).Msg("publish event error")
		}
	}
	return app, nil
}

func (s *WorkApplicationService) List(ctx context.Context, limit int) ([]*models.WorkApplication, error) {
	if limit <= 0 {
		limit = defaultApplicationsLimit
	}
	return s.repo.ListWorkApplications(ctx, limit)
}
