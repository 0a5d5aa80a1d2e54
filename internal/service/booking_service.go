package service

import (
	"context"
	"strings"
	"time"

	"marpro/internal/domain"
	"marpro/internal/events"
	"marpro/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo       domain.Repository
	notifier   domain.Notifier
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	location   *time.Location
	now        func() time.Time
	logger     *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	location *time.Location,
	logger *zerolog.Logger,
) *BookingService {
	if location == nil {
		location = time.UTC
	}
	return &BookingService{
		repo:       repo,
		notifier:   notifier,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		location:   location,
		now:        time.Now,
		logger:     logger,
	}
}

// CheckAvailability reports whether the unit is free for the whole window
// and lists the active bookings that block it.
func (s *BookingService) CheckAvailability(ctx context.Context, req models.AvailabilityRequest) (*models.AvailabilityResult, error) {
	if !req.EquipmentType.Bookable() {
		return nil, domain.NewValidationError("equipmentType", "must be containers or excavators")
	}
	if strings.TrimSpace(req.EquipmentID) == "" {
		return nil, domain.NewValidationError("equipmentId", "is required")
	}

	schedule, err := req.Schedule.Normalize()
	if err != nil {
		return nil, scheduleError(err, false)
	}

	conflicts, err := findConflicts(ctx, s.repo, models.EquipmentKey{Type: req.EquipmentType, ID: req.EquipmentID}, schedule)
	if err != nil {
		return nil, err
	}
	if conflicts == nil {
		conflicts = []*models.EquipmentBooking{}
	}
	return &models.AvailabilityResult{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// findConflicts returns the active bookings of key overlapping a normalized
// schedule.
func findConflicts(ctx context.Context, repo domain.BookingRepository, key models.EquipmentKey, schedule models.Schedule) ([]*models.EquipmentBooking, error) {
	window, err := schedule.Window()
	if err != nil {
		return nil, scheduleError(err, false)
	}
	existing, err := repo.FindActiveBookings(ctx, key, schedule.Date, schedule.LastDate())
	if err != nil {
		return nil, err
	}
	return models.OverlappingBookings(window, existing), nil
}

// ListBookings without any filter returns today's bookings.
func (s *BookingService) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.EquipmentBooking, error) {
	if filter.IsEmpty() {
		filter.Date = s.now().In(s.location).Format(models.DateLayout)
	}
	if filter.EquipmentType != "" && !filter.EquipmentType.Bookable() {
		return nil, domain.NewValidationError("equipmentType", "must be containers or excavators")
	}
	dates := []struct{ field, value string }{{"date", filter.Date}, {"from", filter.From}, {"to", filter.To}}
	for _, d := range dates {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, d.value); err != nil {
			return nil, domain.NewValidationError(d.field, "expected YYYY-MM-DD")
		}
	}
	return s.repo.ListBookings(ctx, filter)
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.EquipmentBooking, error) {
	return s.repo.GetBooking(ctx, id)
}

// UpdateBookingStatus completes or cancels an active booking. Completing the
// last active booking of an order mails its customer once; cancellation only
// informs the operator and removes the calendar event.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, id, status string) (*models.EquipmentBooking, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.NewValidationError("id", "is required")
	}
	if status != models.BookingStatusCompleted && status != models.BookingStatusCancelled {
		return nil, domain.NewValidationError("status", "must be completed or cancelled")
	}

	booking, err := s.repo.TransitionBookingStatus(ctx, id, status)
	if err != nil {
		s.logger.Warn().Err(err).Str("booking_id", id).Str("status", status).Msg("booking status not changed")
		return nil, err
	}

	switch status {
	case models.BookingStatusCompleted:
		s.publishEvent(events.EventBookingCompleted, booking)
		s.enqueueSync(ctx, models.SyncTaskCalendarUpsert, booking)
		s.sendCompletion(ctx, booking.OrderID)
	case models.BookingStatusCancelled:
		s.publishEvent(events.EventBookingCancelled, booking)
		s.enqueueSync(ctx, models.SyncTaskCalendarDelete, booking)
	}

	return booking, nil
}

func (s *BookingService) sendCompletion(ctx context.Context, orderID string) {
	if s.notifier == nil {
		return
	}
	siblings, err := s.repo.GetBookingsByOrder(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("load order bookings for completion mail")
		return
	}
	for _, b := range siblings {
		if b.Status == models.BookingStatusActive {
			s.logger.Debug().Str("order_id", orderID).Str("booking_id", b.ID).Msg("order still has active bookings, completion mail deferred")
			return
		}
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("load order for completion mail")
		return
	}
	if err := s.notifier.SendOrderCompletion(ctx, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("completion notification failed")
	}
}

func (s *BookingService) publishEvent(eventType string, b *models.EquipmentBooking) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     b.ID,
		OrderID:       b.OrderID,
		EquipmentType: string(b.EquipmentType),
		EquipmentID:   b.EquipmentID,
		Date:          b.Date,
		EndDate:       b.EndDate,
		TimeRange:     b.TimeRange(),
		Status:        b.Status,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", b.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, taskType string, b *models.EquipmentBooking) {
	if s.syncWorker == nil {
		return
	}
	if err := s.syncWorker.EnqueueTask(ctx, taskType, b.ID, b); err != nil {
		s.logger.Error().Err(err).Str("booking_id", b.ID).Str("task", taskType).Msg("sync enqueue error")
	}
}
