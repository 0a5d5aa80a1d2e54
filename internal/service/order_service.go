package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marpro/internal/domain"
	"marpro/internal/events"
	"marpro/internal/metrics"
	"marpro/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// variantFields maps a service type to the order form field carrying its
// variant.
var variantFields = map[models.ServiceType]string{
	models.ServiceContainers:    "containerType",
	models.ServiceExcavators:    "excavatorType",
	models.ServiceConstructions: "constructionType",
}

type OrderService struct {
	repo       domain.Repository
	catalog    domain.Catalog
	notifier   domain.Notifier
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	validate   *validator.Validate
	logger     *zerolog.Logger
}

func NewOrderService(
	repo domain.Repository,
	catalog domain.Catalog,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	logger *zerolog.Logger,
) *OrderService {
	return &OrderService{
		repo:       repo,
		catalog:    catalog,
		notifier:   notifier,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		validate:   newValidator(),
		logger:     logger,
	}
}

// Submit validates the order form, reserves the selected units and stores
// the order. Nothing is written when validation fails or any unit is taken.
func (s *OrderService) Submit(ctx context.Context, req *models.OrderRequest) (*models.Order, []*models.EquipmentBooking, error) {
	if req == nil {
		return nil, nil, domain.NewValidationError("", "empty request")
	}
	if err := validateStruct(s.validate, req); err != nil {
		return nil, nil, err
	}

	selection, err := selectionFromRequest(req)
	if err != nil {
		return nil, nil, err
	}

	schedule, err := models.Schedule{
		Date:            req.OrderDate,
		StartTime:       req.Time,
		EndTime:         req.EndTime,
		EndDate:         req.EndDate,
		ReservationType: models.ReservationType(req.ReservationType),
	}.Normalize()
	if err != nil {
		return nil, nil, scheduleError(err, true)
	}

	units, err := s.resolveUnits(selection, req.AdditionalUnits)
	if err != nil {
		return nil, nil, err
	}

	order := &models.Order{
		ID: uuid.NewString(),
		Customer: models.Customer{
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
			Email:     strings.TrimSpace(req.Email),
			Phone:     strings.TrimSpace(req.Phone),
		},
		Location: models.Location{
			Address:   strings.TrimSpace(req.Address),
			Street:    strings.TrimSpace(req.Street),
			City:      strings.TrimSpace(req.City),
			Zip:       strings.TrimSpace(req.Zip),
			Country:   strings.TrimSpace(req.Country),
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
		},
		Service:  selection,
		Schedule: schedule,
		Status:   models.OrderStatusPending,
		Message:  strings.TrimSpace(req.Message),
	}

	bookings := make([]*models.EquipmentBooking, 0, len(units))
	for _, unit := range units {
		bookings = append(bookings, &models.EquipmentBooking{
			ID:            uuid.NewString(),
			OrderID:       order.ID,
			EquipmentType: selection.Type,
			EquipmentID:   unit,
			Schedule:      schedule,
			Status:        models.BookingStatusActive,
		})
	}

	// fail fast before the transaction; CreateOrderWithBookings re-checks atomically
	for _, b := range bookings {
		conflicts, err := findConflicts(ctx, s.repo, b.Key(), schedule)
		if err != nil {
			return nil, nil, err
		}
		if len(conflicts) > 0 {
			metrics.IncConflict()
			return nil, nil, &domain.ConflictError{EquipmentType: b.EquipmentType, EquipmentID: b.EquipmentID, Conflicts: conflicts}
		}
	}

	if err := s.repo.CreateOrderWithBookings(ctx, order, bookings); err != nil {
		if isConflict(err) {
			metrics.IncConflict()
		}
		s.logger.Warn().Err(err).Str("service_type", string(selection.Type)).Str("variant", selection.Variant).Msg("order rejected")
		return nil, nil, err
	}

	metrics.IncOrder(string(selection.Type))
	s.logger.Info().
		Str("order_id", order.ID).
		Str("service_type", string(selection.Type)).
		Str("variant", selection.Variant).
		Str("date", schedule.Date).
		Msg("order submitted")

	s.publishOrderEvent(events.EventOrderCreated, order, bookings)

	if s.notifier != nil {
		if err := s.notifier.SendOrderConfirmation(ctx, order); err != nil {
			s.logger.Error().Err(err).Str("order_id", order.ID).Msg("confirmation notification failed")
		}
	}

	for _, b := range bookings {
		s.enqueueSync(ctx, models.SyncTaskCalendarUpsert, b.ID, b)
	}
	s.enqueueSync(ctx, models.SyncTaskSheetAppend, order.ID, order)

	return order, bookings, nil
}

// selectionFromRequest turns the three optional variant fields into a single
// selection. Exactly one must be set and it must match serviceType.
func selectionFromRequest(req *models.OrderRequest) (models.ServiceSelection, error) {
	st, err := models.ParseServiceType(req.ServiceType)
	if err != nil {
		return models.ServiceSelection{}, domain.NewValidationError("serviceType", err.Error())
	}

	populated := map[models.ServiceType]string{}
	for t, v := range map[models.ServiceType]string{
		models.ServiceContainers:    req.ContainerType,
		models.ServiceExcavators:    req.ExcavatorType,
		models.ServiceConstructions: req.ConstructionType,
	} {
		if v = strings.TrimSpace(v); v != "" {
			populated[t] = v
		}
	}

	variant, ok := populated[st]
	switch {
	case !ok:
		return models.ServiceSelection{}, domain.NewValidationError(variantFields[st], "is required for serviceType "+string(st))
	case len(populated) > 1:
		return models.ServiceSelection{}, domain.NewValidationError("serviceType",
			fmt.Sprintf("only %s may be set for serviceType %s", variantFields[st], st))
	}
	return models.ServiceSelection{Type: st, Variant: variant}, nil
}

// resolveUnits checks the selection and any additional units against the
// catalog and returns the units to book.
func (s *OrderService) resolveUnits(selection models.ServiceSelection, additional []string) ([]string, error) {
	field := variantFields[selection.Type]
	if _, ok := s.catalog.Lookup(selection.Type, selection.Variant); !ok {
		return nil, domain.NewValidationError(field, fmt.Sprintf("unknown %s %q", selection.Type, selection.Variant))
	}
	if !selection.Type.Bookable() {
		if len(additional) > 0 {
			return nil, domain.NewValidationError("additionalUnits", "not supported for "+string(selection.Type))
		}
		return nil, nil
	}

	units := []string{selection.Variant}
	seen := map[string]bool{selection.Variant: true}
	for i, raw := range additional {
		unit := strings.TrimSpace(raw)
		name := fmt.Sprintf("additionalUnits[%d]", i)
		if seen[unit] {
			return nil, domain.NewValidationError(name, "duplicate unit "+unit)
		}
		if _, ok := s.catalog.Lookup(selection.Type, unit); !ok {
			return nil, domain.NewValidationError(name, fmt.Sprintf("unknown %s %q", selection.Type, unit))
		}
		seen[unit] = true
		units = append(units, unit)
	}
	return units, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, []*models.EquipmentBooking, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	bookings, err := s.repo.GetBookingsByOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return order, bookings, nil
}

func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	if filter.ServiceType != "" {
		if _, err := models.ParseServiceType(string(filter.ServiceType)); err != nil {
			return nil, domain.NewValidationError("serviceType", err.Error())
		}
	}
	if filter.Status != "" && filter.Status != models.OrderStatusPending && len(models.OrderSourcesFor(filter.Status)) == 0 {
		return nil, domain.NewValidationError("status", "unknown order status "+filter.Status)
	}
	return s.repo.ListOrders(ctx, filter)
}

// UpdateOrderStatus moves the order along its lifecycle. Completing an order
// without bookings sends the completion mail, since no booking completion
// will do it.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id, status string) (*models.Order, error) {
	sources := models.OrderSourcesFor(status)
	if len(sources) == 0 {
		return nil, domain.NewValidationError("status", "cannot change status to "+status)
	}

	order, err := s.repo.TransitionOrderStatus(ctx, id, sources, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_id", id).Str("status", status).Msg("order status changed")
	s.publishOrderEvent(events.EventOrderStatusChanged, order, nil)
	s.enqueueSync(ctx, models.SyncTaskSheetStatus, order.ID, order)

	if status == models.OrderStatusCompleted && !order.Service.Type.Bookable() && s.notifier != nil {
		if err := s.notifier.SendOrderCompletion(ctx, order); err != nil {
			s.logger.Error().Err(err).Str("order_id", id).Msg("completion notification failed")
		}
	}
	return order, nil
}

func (s *OrderService) UpdateOrderNotes(ctx context.Context, id, notes string) error {
	if len(notes) > models.MaxMessageLength {
		return domain.NewValidationError("notes", fmt.Sprintf("must be at most %d characters", models.MaxMessageLength))
	}
	return s.repo.UpdateOrderNotes(ctx, id, strings.TrimSpace(notes))
}

func (s *OrderService) publishOrderEvent(eventType string, o *models.Order, bookings []*models.EquipmentBooking) {
	if s.eventBus == nil {
		return
	}

	payload := events.OrderEventPayload{
		OrderID:     o.ID,
		ServiceType: string(o.Service.Type),
		Variant:     o.Service.Variant,
		Customer:    o.Customer.FullName(),
		Phone:       o.Customer.Phone,
		Email:       o.Customer.Email,
		Date:        o.Schedule.Date,
		TimeRange:   o.Schedule.TimeRange(),
		City:        o.Location.City,
		Status:      o.Status,
	}
	if o.Schedule.ReservationType.IsRange() {
		payload.EndDate = o.Schedule.EndDate
	}
	for _, b := range bookings {
		payload.BookingIDs = append(payload.BookingIDs, b.ID)
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("order_id", o.ID).Msg("publish event error")
	}
}

func (s *OrderService) enqueueSync(ctx context.Context, taskType, entityID string, payload interface{}) {
	if s.syncWorker == nil {
		return
	}
	if err := s.syncWorker.EnqueueTask(ctx, taskType, entityID, payload); err != nil {
		s.logger.Error().Err(err).Str("entity_id", entityID).Str("task", taskType).Msg("sync enqueue error")
	}
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}
