package service

import (
	"context"
	"io"
	"testing"

	"marpro/internal/catalog"
	"marpro/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateOrderWithBookings(ctx context.Context, o *models.Order, b []*models.EquipmentBooking) error {
	return m.Called(ctx, o, b).Error(0)
}

func (m *mockRepo) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockRepo) ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Order), args.Error(1)
}

func (m *mockRepo) TransitionOrderStatus(ctx context.Context, id string, from []string, to string) (*models.Order, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockRepo) UpdateOrderNotes(ctx context.Context, id, notes string) error {
	return m.Called(ctx, id, notes).Error(0)
}

func (m *mockRepo) GetBooking(ctx context.Context, id string) (*models.EquipmentBooking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EquipmentBooking), args.Error(1)
}

func (m *mockRepo) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.EquipmentBooking, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EquipmentBooking), args.Error(1)
}

func (m *mockRepo) FindActiveBookings(ctx context.Context, key models.EquipmentKey, from, to string) ([]*models.EquipmentBooking, error) {
	args := m.Called(ctx, key, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EquipmentBooking), args.Error(1)
}

func (m *mockRepo) TransitionBookingStatus(ctx context.Context, id, status string) (*models.EquipmentBooking, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EquipmentBooking), args.Error(1)
}

func (m *mockRepo) GetBookingsByOrder(ctx context.Context, orderID string) ([]*models.EquipmentBooking, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EquipmentBooking), args.Error(1)
}

func (m *mockRepo) CreateWorkApplication(ctx context.Context, app *models.WorkApplication) error {
	return m.Called(ctx, app).Error(0)
}

func (m *mockRepo) ListWorkApplications(ctx context.Context, limit int) ([]*models.WorkApplication, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WorkApplication), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendOrderConfirmation(ctx context.Context, o *models.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockNotifier) SendOrderCompletion(ctx context.Context, o *models.Order) error {
	return m.Called(ctx, o).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType, entityID string, payload interface{}) error {
	return m.Called(ctx, taskType, entityID, payload).Error(0)
}

const testCatalog = `
containers:
  - id: "3m3"
    name: "Kontejner 3 m³"
    is_active: true
  - id: "5m3"
    name: "Kontejner 5 m³"
    is_active: true
  - id: "9m3"
    name: "Kontejner 9 m³"
    is_active: false
excavators:
  - id: "TB145"
    name: "Takeuchi TB145"
    is_active: true
constructions:
  - id: "demolition"
    name: "Demolice"
    is_active: true
`

func testCatalogData(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	return c
}

func nopLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}
