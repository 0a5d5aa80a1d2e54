package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const (
	EventOrderCreated           = "order_created"
	EventOrderStatusChanged     = "order_status_changed"
	EventBookingCompleted       = "booking_completed"
	EventBookingCancelled       = "booking_cancelled"
	EventWorkApplicationCreated = "work_application_created"
)

// OrderEventPayload is the order snapshot handed to subscribers.
type OrderEventPayload struct {
	OrderID     string   `json:"order_id"`
	ServiceType string   `json:"service_type"`
	Variant     string   `json:"variant"`
	Customer    string   `json:"customer"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email"`
	Date        string   `json:"date"`
	TimeRange   string   `json:"time_range,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	City        string   `json:"city,omitempty"`
	Status      string   `json:"status"`
	BookingIDs  []string `json:"booking_ids,omitempty"`
}

// BookingEventPayload describes a booking status change.
type BookingEventPayload struct {
	BookingID     string `json:"booking_id"`
	OrderID       string `json:"order_id"`
	EquipmentType string `json:"equipment_type"`
	EquipmentID   string `json:"equipment_id"`
	Date          string `json:"date"`
	EndDate       string `json:"end_date,omitempty"`
	TimeRange     string `json:"time_range,omitempty"`
	Status        string `json:"status"`
}

type WorkApplicationEventPayload struct {
	ApplicationID string `json:"application_id"`
	Name          string `json:"name"`
	Position      string `json:"position"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every handler synchronously, even after one fails, and
// returns the joined handler errors.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}
