package service

import (
	"context"
	"testing"
	"time"

	"marpro/internal/domain"
	"marpro/internal/events"
	"marpro/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newBookingFixture() (*BookingService, *mockRepo, *mockNotifier, *mockPublisher, *mockSyncWorker) {
	repo, notifier, bus, sync := new(mockRepo), new(mockNotifier), new(mockPublisher), new(mockSyncWorker)
	prague, _ := time.LoadLocation("Europe/Prague")
	svc := NewBookingService(repo, notifier, bus, sync, prague, nopLogger())
	return svc, repo, notifier, bus, sync
}

func activeBooking(id, unit string, s models.Schedule) *models.EquipmentBooking {
	return &models.EquipmentBooking{
		ID:            id,
		OrderID:       "o-" + id,
		EquipmentType: models.ServiceContainers,
		EquipmentID:   unit,
		Schedule:      s,
		Status:        models.BookingStatusActive,
	}
}

func TestCheckAvailability(t *testing.T) {
	ctx := context.Background()
	key := models.EquipmentKey{Type: models.ServiceContainers, ID: "3m3"}
	existing := activeBooking("b-1", "3m3", models.Schedule{Date: "2025-07-01", StartTime: "10:00", EndTime: "12:00", ReservationType: models.ReservationTime})

	tests := []struct {
		name      string
		schedule  models.Schedule
		available bool
	}{
		{name: "overlapping start", schedule: models.Schedule{Date: "2025-07-01", StartTime: "11:00", EndTime: "13:00"}, available: false},
		{name: "adjacent after", schedule: models.Schedule{Date: "2025-07-01", StartTime: "12:00", EndTime: "14:00"}, available: true},
		{name: "adjacent before", schedule: models.Schedule{Date: "2025-07-01", StartTime: "08:00", EndTime: "10:00"}, available: true},
		{name: "covering", schedule: models.Schedule{Date: "2025-07-01", StartTime: "09:00", EndTime: "13:00"}, available: false},
		{name: "open end time", schedule: models.Schedule{Date: "2025-07-01", StartTime: "11:30"}, available: false},
		{name: "whole day range", schedule: models.Schedule{Date: "2025-07-01", ReservationType: models.ReservationDays}, available: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, _, _ := newBookingFixture()
			repo.On("FindActiveBookings", ctx, key, "2025-07-01", "2025-07-01").Return([]*models.EquipmentBooking{existing}, nil)

			res, err := svc.CheckAvailability(ctx, models.AvailabilityRequest{
				EquipmentType: models.ServiceContainers,
				EquipmentID:   "3m3",
				Schedule:      tt.schedule,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.available, res.Available)
			assert.Equal(t, !tt.available, len(res.Conflicts) == 1)
			assert.NotNil(t, res.Conflicts)
		})
	}
}

func TestCheckAvailability_DateRanges(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _, _ := newBookingFixture()

	rented := activeBooking("b-2", "3m3", models.Schedule{Date: "2025-07-01", EndDate: "2025-07-05", ReservationType: models.ReservationDays})
	repo.On("FindActiveBookings", ctx, mock.Anything, mock.Anything, mock.Anything).Return([]*models.EquipmentBooking{rented}, nil)

	res, err := svc.CheckAvailability(ctx, models.AvailabilityRequest{
		EquipmentType: models.ServiceContainers, EquipmentID: "3m3",
		Schedule: models.Schedule{Date: "2025-07-05", EndDate: "2025-07-08", ReservationType: models.ReservationDays},
	})
	require.NoError(t, err)
	assert.False(t, res.Available, "inclusive end dates touch on 07-05")

	res, err = svc.CheckAvailability(ctx, models.AvailabilityRequest{
		EquipmentType: models.ServiceContainers, EquipmentID: "3m3",
		Schedule: models.Schedule{Date: "2025-07-06", EndDate: "2025-07-08", ReservationType: models.ReservationDays},
	})
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestCheckAvailability_Validation(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _, _ := newBookingFixture()

	_, err := svc.CheckAvailability(ctx, models.AvailabilityRequest{EquipmentType: models.ServiceConstructions, EquipmentID: "x",
		Schedule: models.Schedule{Date: "2025-07-01", StartTime: "09:00"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CheckAvailability(ctx, models.AvailabilityRequest{EquipmentType: models.ServiceContainers,
		Schedule: models.Schedule{Date: "2025-07-01", StartTime: "09:00"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CheckAvailability(ctx, models.AvailabilityRequest{EquipmentType: models.ServiceContainers, EquipmentID: "3m3",
		Schedule: models.Schedule{Date: "2025-07-01", StartTime: "12:00", EndTime: "10:00"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	repo.AssertNotCalled(t, "FindActiveBookings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListBookings_DefaultsToToday(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _, _ := newBookingFixture()
	// 23:30 UTC is already the next day in Prague
	svc.now = func() time.Time { return time.Date(2025, 6, 30, 23, 30, 0, 0, time.UTC) }

	repo.On("ListBookings", ctx, models.BookingFilter{Date: "2025-07-01"}).Return([]*models.EquipmentBooking{}, nil).Once()

	_, err := svc.ListBookings(ctx, models.BookingFilter{})
	require.NoError(t, err)
	repo.AssertExpectations(t)

	filter := models.BookingFilter{EquipmentType: models.ServiceExcavators}
	repo.On("ListBookings", ctx, filter).Return([]*models.EquipmentBooking{}, nil).Once()
	_, err = svc.ListBookings(ctx, filter)
	require.NoError(t, err)

	_, err = svc.ListBookings(ctx, models.BookingFilter{Date: "tomorrow"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateBookingStatus_CompleteTwice(t *testing.T) {
	ctx := context.Background()
	svc, repo, notifier, bus, sync := newBookingFixture()

	completed := activeBooking("b-1", "3m3", models.Schedule{Date: "2025-07-01", StartTime: "09:00", EndTime: "11:00", ReservationType: models.ReservationTime})
	completed.Status = models.BookingStatusCompleted
	order := &models.Order{ID: completed.OrderID, Customer: models.Customer{Email: "jana@example.cz"}}

	repo.On("TransitionBookingStatus", ctx, "b-1", models.BookingStatusCompleted).Return(completed, nil).Once()
	repo.On("TransitionBookingStatus", ctx, "b-1", models.BookingStatusCompleted).
		Return(nil, &domain.TransitionError{Entity: "booking", ID: "b-1", From: models.BookingStatusCompleted, To: models.BookingStatusCompleted}).Once()
	repo.On("GetBookingsByOrder", ctx, completed.OrderID).Return([]*models.EquipmentBooking{completed}, nil).Once()
	repo.On("GetOrder", ctx, completed.OrderID).Return(order, nil).Once()
	notifier.On("SendOrderCompletion", ctx, order).Return(nil).Once()
	bus.On("PublishJSON", events.EventBookingCompleted, mock.Anything).Return(nil).Once()
	sync.On("EnqueueTask", ctx, models.SyncTaskCalendarUpsert, "b-1", completed).Return(nil).Once()

	got, err := svc.UpdateBookingStatus(ctx, "b-1", models.BookingStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, got.Status)

	_, err = svc.UpdateBookingStatus(ctx, "b-1", models.BookingStatusCompleted)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	notifier.AssertNumberOfCalls(t, "SendOrderCompletion", 1)
	repo.AssertExpectations(t)
	bus.AssertExpectations(t)
	sync.AssertExpectations(t)
}

func TestUpdateBookingStatus_MultiUnitOrderMailsOnce(t *testing.T) {
	ctx := context.Background()
	svc, repo, notifier, bus, sync := newBookingFixture()

	schedule := models.Schedule{Date: "2025-07-01", StartTime: "08:00", ReservationType: models.ReservationTime}
	first := activeBooking("b-1", "3m3", schedule)
	second := activeBooking("b-2", "5m3", schedule)
	second.OrderID = first.OrderID
	order := &models.Order{ID: first.OrderID, Customer: models.Customer{Email: "jana@example.cz"}}

	firstDone := *first
	firstDone.Status = models.BookingStatusCompleted
	secondDone := *second
	secondDone.Status = models.BookingStatusCompleted

	repo.On("TransitionBookingStatus", ctx, "b-1", models.BookingStatusCompleted).Return(&firstDone, nil).Once()
	repo.On("TransitionBookingStatus", ctx, "b-2", models.BookingStatusCompleted).Return(&secondDone, nil).Once()
	repo.On("GetBookingsByOrder", ctx, first.OrderID).Return([]*models.EquipmentBooking{&firstDone, second}, nil).Once()
	repo.On("GetBookingsByOrder", ctx, first.OrderID).Return([]*models.EquipmentBooking{&firstDone, &secondDone}, nil).Once()
	repo.On("GetOrder", ctx, first.OrderID).Return(order, nil).Once()
	notifier.On("SendOrderCompletion", ctx, order).Return(nil).Once()
	bus.On("PublishJSON", events.EventBookingCompleted, mock.Anything).Return(nil).Twice()
	sync.On("EnqueueTask", ctx, models.SyncTaskCalendarUpsert, mock.Anything, mock.Anything).Return(nil).Twice()

	_, err := svc.UpdateBookingStatus(ctx, "b-1", models.BookingStatusCompleted)
	require.NoError(t, err)
	notifier.AssertNotCalled(t, "SendOrderCompletion", mock.Anything, mock.Anything)

	_, err = svc.UpdateBookingStatus(ctx, "b-2", models.BookingStatusCompleted)
	require.NoError(t, err)

	notifier.AssertNumberOfCalls(t, "SendOrderCompletion", 1)
	repo.AssertExpectations(t)
}

func TestUpdateBookingStatus_CancelSendsNoMail(t *testing.T) {
	ctx := context.Background()
	svc, repo, notifier, bus, sync := newBookingFixture()

	cancelled := activeBooking("b-2", "5m3", models.Schedule{Date: "2025-07-02", EndDate: "2025-07-03", ReservationType: models.ReservationDays})
	cancelled.Status = models.BookingStatusCancelled

	repo.On("TransitionBookingStatus", ctx, "b-2", models.BookingStatusCancelled).Return(cancelled, nil)
	bus.On("PublishJSON", events.EventBookingCancelled, mock.MatchedBy(func(p events.BookingEventPayload) bool {
		return p.BookingID == "b-2" && p.EndDate == "2025-07-03"
	})).Return(nil).Once()
	sync.On("EnqueueTask", ctx, models.SyncTaskCalendarDelete, "b-2", cancelled).Return(nil).Once()

	_, err := svc.UpdateBookingStatus(ctx, "b-2", models.BookingStatusCancelled)
	require.NoError(t, err)

	notifier.AssertNotCalled(t, "SendOrderCompletion", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
	bus.AssertExpectations(t)
	sync.AssertExpectations(t)
}

func TestUpdateBookingStatus_Errors(t *testing.T) {
	ctx := context.Background()
	svc, repo, notifier, _, _ := newBookingFixture()

	_, err := svc.UpdateBookingStatus(ctx, "b-1", models.BookingStatusActive)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.UpdateBookingStatus(ctx, "", models.BookingStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrValidation)

	repo.On("TransitionBookingStatus", ctx, "missing", models.BookingStatusCancelled).Return(nil, domain.ErrNotFound)
	_, err = svc.UpdateBookingStatus(ctx, "missing", models.BookingStatusCancelled)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	notifier.AssertNotCalled(t, "SendOrderCompletion", mock.Anything, mock.Anything)
}
