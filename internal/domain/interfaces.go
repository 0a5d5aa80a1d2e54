package domain

import (
	"context"
	"time"

	"marpro/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type OrderRepository interface {
	// CreateOrderWithBookings stores the order and all its bookings in one
	// transaction. Any overlap with an active booking aborts the whole
	// write with a *ConflictError.
	CreateOrderWithBookings(ctx context.Context, order *models.Order, bookings []*models.EquipmentBooking) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error)
	TransitionOrderStatus(ctx context.Context, id string, from []string, to string) (*models.Order, error)
	UpdateOrderNotes(ctx context.Context, id, notes string) error
}

type BookingRepository interface {
	GetBooking(ctx context.Context, id string) (*models.EquipmentBooking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.EquipmentBooking, error)
	FindActiveBookings(ctx context.Context, key models.EquipmentKey, fromDate, toDate string) ([]*models.EquipmentBooking, error)
	// TransitionBookingStatus moves an active booking to status. A booking
	// that is no longer active yields a *TransitionError.
	TransitionBookingStatus(ctx context.Context, id, status string) (*models.EquipmentBooking, error)
	GetBookingsByOrder(ctx context.Context, orderID string) ([]*models.EquipmentBooking, error)
}

type WorkApplicationRepository interface {
	CreateWorkApplication(ctx context.Context, app *models.WorkApplication) error
	ListWorkApplications(ctx context.Context, limit int) ([]*models.WorkApplication, error)
}

type Repository interface {
	OrderRepository
	BookingRepository
	WorkApplicationRepository
}

type SessionRepository interface {
	SaveSession(ctx context.Context, session *models.AdminSession) error
	// GetSession returns nil, nil when the session is unknown or expired.
	GetSession(ctx context.Context, id string) (*models.AdminSession, error)
	DeleteSession(ctx context.Context, id string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType, entityID string, payload interface{}) error
}

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendOrderCompletion(ctx context.Context, order *models.Order) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Catalog interface {
	Active(serviceType models.ServiceType) []models.CatalogEntry
	Lookup(serviceType models.ServiceType, id string) (*models.CatalogEntry, bool)
}

type BookingService interface {
	CheckAvailability(ctx context.Context, req models.AvailabilityRequest) (*models.AvailabilityResult, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.EquipmentBooking, error)
	GetBooking(ctx context.Context, id string) (*models.EquipmentBooking, error)
	UpdateBookingStatus(ctx context.Context, id, status string) (*models.EquipmentBooking, error)
}

type OrderService interface {
	Submit(ctx context.Context, req *models.OrderRequest) (*models.Order, []*models.EquipmentBooking, error)
	GetOrder(ctx context.Context, id string) (*models.Order, []*models.EquipmentBooking, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (*models.Order, error)
	UpdateOrderNotes(ctx context.Context, id, notes string) error
}

type WorkApplicationService interface {
	Submit(ctx context.Context, req *models.WorkApplicationRequest) (*models.WorkApplication, error)
	List(ctx context.Context, limit int) ([]*models.WorkApplication, error)
}

type AuthService interface {
	Login(ctx context.Context, password, client string) (token string, expiresAt time.Time, err error)
	Validate(ctx context.Context, token string) (*models.AdminSession, error)
	Logout(ctx context.Context, token string) error
}

type CatalogService interface {
	ActiveEntries(serviceType models.ServiceType, lang string) []models.CatalogEntry
}
