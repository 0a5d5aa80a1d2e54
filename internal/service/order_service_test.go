package service

import (
	"context"
	"errors"
	"testing"

	"marpro/internal/domain"
	"marpro/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	repo     *mockRepo
	notifier *mockNotifier
	bus      *mockPublisher
	sync     *mockSyncWorker
	svc      *OrderService
}

func newOrderFixture(t *testing.T) *orderFixture {
	f := &orderFixture{
		repo:     new(mockRepo),
		notifier: new(mockNotifier),
		bus:      new(mockPublisher),
		sync:     new(mockSyncWorker),
	}
	f.svc = NewOrderService(f.repo, testCatalogData(t), f.notifier, f.bus, f.sync, nopLogger())
	return f
}

// expectSideEffects accepts any event and sync task.
func (f *orderFixture) expectSideEffects() {
	f.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
	f.sync.On("EnqueueTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func containerRequest() *models.OrderRequest {
	return &models.OrderRequest{
		FirstName:     "Jana",
		LastName:      "Dvořáková",
		Email:         "jana@example.cz",
		Phone:         "+420 777 123 456",
		City:          "Brno",
		ServiceType:   "containers",
		ContainerType: "3m3",
		OrderDate:     "2025-07-01",
		Time:          "09:00",
		EndTime:       "11:00",
		Message:       "Vjezd ze dvora",
	}
}

func TestSubmit_CreatesBookingAndConfirms(t *testing.T) {
	f := newOrderFixture(t)
	f.expectSideEffects()
	ctx := context.Background()

	key := models.EquipmentKey{Type: models.ServiceContainers, ID: "3m3"}
	f.repo.On("FindActiveBookings", ctx, key, "2025-07-01", "2025-07-01").Return([]*models.EquipmentBooking{}, nil).Once()
	f.repo.On("CreateOrderWithBookings", ctx, mock.AnythingOfType("*models.Order"), mock.AnythingOfType("[]*models.EquipmentBooking")).Return(nil).Once()
	f.notifier.On("SendOrderConfirmation", ctx, mock.MatchedBy(func(o *models.Order) bool {
		return o.Customer.Email == "jana@example.cz"
	})).Return(nil).Once()

	order, bookings, err := f.svc.Submit(ctx, containerRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.ContainerSelection("3m3"), order.Service)
	assert.Equal(t, models.ReservationTime, order.Schedule.ReservationType)

	require.Len(t, bookings, 1)
	b := bookings[0]
	assert.Equal(t, order.ID, b.OrderID)
	assert.Equal(t, models.ServiceContainers, b.EquipmentType)
	assert.Equal(t, "3m3", b.EquipmentID)
	assert.Equal(t, models.BookingStatusActive, b.Status)
	assert.Equal(t, "09:00", b.StartTime)
	assert.Equal(t, "11:00", b.EndTime)

	f.repo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.bus.AssertCalled(t, "PublishJSON", "order_created", mock.Anything)
	f.sync.AssertCalled(t, "EnqueueTask", ctx, models.SyncTaskCalendarUpsert, b.ID, b)
	f.sync.AssertCalled(t, "EnqueueTask", ctx, models.SyncTaskSheetAppend, order.ID, order)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.OrderRequest)
		field  string
	}{
		{name: "missing first name", mutate: func(r *models.OrderRequest) { r.FirstName = "" }, field: "firstName"},
		{name: "bad email", mutate: func(r *models.OrderRequest) { r.Email = "jana" }, field: "email"},
		{name: "bad phone", mutate: func(r *models.OrderRequest) { r.Phone = "call me" }, field: "phone"},
		{name: "unknown service", mutate: func(r *models.OrderRequest) { r.ServiceType = "boats" }, field: "serviceType"},
		{name: "bad date", mutate: func(r *models.OrderRequest) { r.OrderDate = "01.07.2025" }, field: "orderDate"},
		{name: "missing variant", mutate: func(r *models.OrderRequest) { r.ContainerType = "" }, field: "containerType"},
		{name: "variant of another type", mutate: func(r *models.OrderRequest) {
			r.ContainerType = ""
			r.ExcavatorType = "TB145"
		}, field: "containerType"},
		{name: "two variants", mutate: func(r *models.OrderRequest) { r.ExcavatorType = "TB145" }, field: "serviceType"},
		{name: "inactive variant", mutate: func(r *models.OrderRequest) { r.ContainerType = "9m3" }, field: "containerType"},
		{name: "end before start", mutate: func(r *models.OrderRequest) { r.EndTime = "08:00" }, field: "endTime"},
		{name: "time reservation without time", mutate: func(r *models.OrderRequest) { r.Time = "" }, field: "time"},
		{name: "end date before date", mutate: func(r *models.OrderRequest) {
			r.ReservationType = "days"
			r.EndDate = "2025-06-30"
		}, field: "endDate"},
		{name: "duplicate additional unit", mutate: func(r *models.OrderRequest) { r.AdditionalUnits = []string{"3m3"} }, field: "additionalUnits[0]"},
		{name: "unknown additional unit", mutate: func(r *models.OrderRequest) { r.AdditionalUnits = []string{"5m3", "42m3"} }, field: "additionalUnits[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(t)
			req := containerRequest()
			tt.mutate(req)

			_, _, err := f.svc.Submit(context.Background(), req)
			require.ErrorIs(t, err, domain.ErrValidation)

			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)

			f.repo.AssertNotCalled(t, "FindActiveBookings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.repo.AssertNotCalled(t, "CreateOrderWithBookings", mock.Anything, mock.Anything, mock.Anything)
			f.notifier.AssertNotCalled(t, "SendOrderConfirmation", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmit_ConflictOnPreCheck(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	existing := &models.EquipmentBooking{
		ID: "b-1", EquipmentType: models.ServiceContainers, EquipmentID: "3m3", Status: models.BookingStatusActive,
		Schedule: models.Schedule{Date: "2025-07-01", StartTime: "10:00", EndTime: "12:00", ReservationType: models.ReservationTime},
	}
	f.repo.On("FindActiveBookings", ctx, mock.Anything, "2025-07-01", "2025-07-01").Return([]*models.EquipmentBooking{existing}, nil)

	_, _, err := f.svc.Submit(ctx, containerRequest())
	require.ErrorIs(t, err, domain.ErrConflict)

	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "3m3", ce.EquipmentID)
	f.repo.AssertNotCalled(t, "CreateOrderWithBookings", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "SendOrderConfirmation", mock.Anything, mock.Anything)
}

func TestSubmit_AdjacentBookingIsNoConflict(t *testing.T) {
	f := newOrderFixture(t)
	f.expectSideEffects()
	ctx := context.Background()

	adjacent := &models.EquipmentBooking{
		ID: "b-1", EquipmentType: models.ServiceContainers, EquipmentID: "3m3", Status: models.BookingStatusActive,
		Schedule: models.Schedule{Date: "2025-07-01", StartTime: "11:00", EndTime: "13:00", ReservationType: models.ReservationTime},
	}
	f.repo.On("FindActiveBookings", ctx, mock.Anything, mock.Anything, mock.Anything).Return([]*models.EquipmentBooking{adjacent}, nil)
	f.repo.On("CreateOrderWithBookings", ctx, mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("SendOrderConfirmation", ctx, mock.Anything).Return(nil)

	_, bookings, err := f.svc.Submit(ctx, containerRequest())
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestSubmit_ConflictInsideTransaction(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	f.repo.On("FindActiveBookings", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.repo.On("CreateOrderWithBookings", ctx, mock.Anything, mock.Anything).
		Return(&domain.ConflictError{EquipmentType: models.ServiceContainers, EquipmentID: "3m3"})

	_, _, err := f.svc.Submit(ctx, containerRequest())
	require.ErrorIs(t, err, domain.ErrConflict)
	f.notifier.AssertNotCalled(t, "SendOrderConfirmation", mock.Anything, mock.Anything)
	f.sync.AssertNotCalled(t, "EnqueueTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_StorageUnavailable(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	f.repo.On("FindActiveBookings", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.StorageError("find active bookings", errors.New("disk I/O error")))

	_, _, err := f.svc.Submit(ctx, containerRequest())
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestSubmit_NotificationFailureDoesNotFailOrder(t *testing.T) {
	f := newOrderFixture(t)
	f.expectSideEffects()
	ctx := context.Background()

	f.repo.On("FindActiveBookings", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.repo.On("CreateOrderWithBookings", ctx, mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("SendOrderConfirmation", ctx, mock.Anything).Return(errors.New("smtp timeout"))

	order, _, err := f.svc.Submit(ctx, containerRequest())
	require.NoError(t, err)
	assert.NotNil(t, order)
}

func TestSubmit_ConstructionHasNoBookings(t *testing.T) {
	f := newOrderFixture(t)
	f.expectSideEffects()
	ctx := context.Background()

	req := containerRequest()
	req.ServiceType = "constructions"
	req.ContainerType = ""
	req.ConstructionType = "demolition"
	req.ReservationType = "weeks"

	f.repo.On("CreateOrderWithBookings", ctx, mock.Anything, []*models.EquipmentBooking{}).Return(nil)
	f.notifier.On("SendOrderConfirmation", ctx, mock.Anything).Return(nil)

	order, bookings, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.Equal(t, "2025-07-07", order.Schedule.EndDate)
	f.repo.AssertNotCalled(t, "FindActiveBookings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_AdditionalUnits(t *testing.T) {
	f := newOrderFixture(t)
	f.expectSideEffects()
	ctx := context.Background()

	req := containerRequest()
	req.AdditionalUnits = []string{"5m3"}

	f.repo.On("FindActiveBookings", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Twice()
	f.repo.On("CreateOrderWithBookings", ctx, mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("SendOrderConfirmation", ctx, mock.Anything).Return(nil)

	_, bookings, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "3m3", bookings[0].EquipmentID)
	assert.Equal(t, "5m3", bookings[1].EquipmentID)
	assert.Equal(t, bookings[0].OrderID, bookings[1].OrderID)
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown target", func(t *testing.T) {
		f := newOrderFixture(t)
		_, err := f.svc.UpdateOrderStatus(ctx, "o-1", models.OrderStatusPending)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("completing a construction order mails the customer", func(t *testing.T) {
		f := newOrderFixture(t)
		f.expectSideEffects()
		order := &models.Order{ID: "o-1", Service: models.ConstructionSelection("demolition"), Status: models.OrderStatusCompleted}
		f.repo.On("TransitionOrderStatus", ctx, "o-1", []string{models.OrderStatusInProgress}, models.OrderStatusCompleted).Return(order, nil)
		f.notifier.On("SendOrderCompletion", ctx, order).Return(nil).Once()

		got, err := f.svc.UpdateOrderStatus(ctx, "o-1", models.OrderStatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCompleted, got.Status)
		f.notifier.AssertExpectations(t)
		f.sync.AssertCalled(t, "EnqueueTask", ctx, models.SyncTaskSheetStatus, "o-1", order)
	})

	t.Run("container orders are completed through their bookings", func(t *testing.T) {
		f := newOrderFixture(t)
		f.expectSideEffects()
		order := &models.Order{ID: "o-2", Service: models.ContainerSelection("3m3"), Status: models.OrderStatusCompleted}
		f.repo.On("TransitionOrderStatus", ctx, "o-2", mock.Anything, models.OrderStatusCompleted).Return(order, nil)

		_, err := f.svc.UpdateOrderStatus(ctx, "o-2", models.OrderStatusCompleted)
		require.NoError(t, err)
		f.notifier.AssertNotCalled(t, "SendOrderCompletion", mock.Anything, mock.Anything)
	})

	t.Run("illegal transition", func(t *testing.T) {
		f := newOrderFixture(t)
		f.repo.On("TransitionOrderStatus", ctx, "o-3", mock.Anything, models.OrderStatusInProgress).
			Return(nil, &domain.TransitionError{Entity: "order", ID: "o-3", From: models.OrderStatusCancelled, To: models.OrderStatusInProgress})

		_, err := f.svc.UpdateOrderStatus(ctx, "o-3", models.OrderStatusInProgress)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		f.bus.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
	})
}

func TestGetOrderAndNotes(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	order := &models.Order{ID: "o-1"}
	bookings := []*models.EquipmentBooking{{ID: "b-1", OrderID: "o-1"}}
	f.repo.On("GetOrder", ctx, "o-1").Return(order, nil)
	f.repo.On("GetBookingsByOrder", ctx, "o-1").Return(bookings, nil)
	f.repo.On("GetOrder", ctx, "nope").Return(nil, domain.ErrNotFound)

	gotOrder, gotBookings, err := f.svc.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, order, gotOrder)
	assert.Equal(t, bookings, gotBookings)

	_, _, err = f.svc.GetOrder(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.repo.On("UpdateOrderNotes", ctx, "o-1", "volat po 16h").Return(nil)
	assert.NoError(t, f.svc.UpdateOrderNotes(ctx, "o-1", "  volat po 16h "))
}

func TestListOrders_RejectsUnknownFilters(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListOrders(ctx, models.OrderFilter{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.ListOrders(ctx, models.OrderFilter{ServiceType: "boats"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.repo.On("ListOrders", ctx, models.OrderFilter{Status: models.OrderStatusPending}).Return([]*models.Order{}, nil)
	orders, err := f.svc.ListOrders(ctx, models.OrderFilter{Status: models.OrderStatusPending})
	require.NoError(t, err)
	assert.Empty(t, orders)
}
