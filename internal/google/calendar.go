package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marpro/internal/models"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// defaultEventDuration is used for timed bookings without an end time.
const defaultEventDuration = time.Hour

var equipmentNames = map[models.ServiceType]string{
	models.ServiceContainers: "Kontejner",
	models.ServiceExcavators: "Bagr",
}

// CalendarService mirrors equipment bookings as Google Calendar events.
type CalendarService struct {
	service    *calendar.Service
	calendarID string
	location   *time.Location
}

func NewCalendarService(ctx context.Context, credentialsFile, calendarID string, location *time.Location) (*CalendarService, error) {
	client, err := serviceAccountClient(ctx, credentialsFile, calendar.CalendarEventsScope)
	if err != nil {
		return nil, err
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}

	return newCalendarService(srv, calendarID, location), nil
}

func newCalendarService(srv *calendar.Service, calendarID string, location *time.Location) *CalendarService {
	if location == nil {
		location = time.UTC
	}
	return &CalendarService{service: srv, calendarID: calendarID, location: location}
}

// EventID derives the calendar event id from the booking id. Calendar ids
// allow only base32hex characters, which a uuid without dashes satisfies.
func EventID(bookingID string) string {
	return strings.ToLower(strings.ReplaceAll(bookingID, "-", ""))
}

// UpsertBookingEvent updates the booking's event or creates it when missing.
func (c *CalendarService) UpsertBookingEvent(ctx context.Context, booking *models.EquipmentBooking) error {
	event, err := c.bookingEvent(booking)
	if err != nil {
		return err
	}

	_, err = c.service.Events.Update(c.calendarID, event.Id, event).Context(ctx).Do()
	if err == nil {
		return nil
	}
	if !isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("update event %s: %w", event.Id, err)
	}

	if _, err := c.service.Events.Insert(c.calendarID, event).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert event %s: %w", event.Id, err)
	}
	return nil
}

// DeleteBookingEvent removes the booking's event. A missing event is not an error.
func (c *CalendarService) DeleteBookingEvent(ctx context.Context, bookingID string) error {
	eventID := EventID(bookingID)
	err := c.service.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if err != nil && !isStatus(err, http.StatusNotFound) && !isStatus(err, http.StatusGone) {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

func (c *CalendarService) bookingEvent(b *models.EquipmentBooking) (*calendar.Event, error) {
	name, ok := equipmentNames[b.EquipmentType]
	if !ok {
		name = string(b.EquipmentType)
	}

	summary := fmt.Sprintf("%s %s", name, b.EquipmentID)
	if b.Status == models.BookingStatusCompleted {
		summary = "✔ " + summary
	}

	event := &calendar.Event{
		Id:          EventID(b.ID),
		Summary:     summary,
		Description: fmt.Sprintf("Objednávka: %s\nRezervace: %s\nStav: %s", b.OrderID, b.ID, b.Status),
	}

	if b.ReservationType.IsRange() || b.StartTime == "" {
		// all-day events end exclusively
		last, err := time.Parse(models.DateLayout, b.LastDate())
		if err != nil {
			return nil, fmt.Errorf("booking %s: %w", b.ID, err)
		}
		event.Start = &calendar.EventDateTime{Date: b.Date}
		event.End = &calendar.EventDateTime{Date: last.AddDate(0, 0, 1).Format(models.DateLayout)}
		return event, nil
	}

	start, err := time.ParseInLocation(models.DateLayout+" "+models.TimeLayout, b.Date+" "+b.StartTime, c.location)
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", b.ID, err)
	}
	end := start.Add(defaultEventDuration)
	if b.EndTime != "" {
		if end, err = time.ParseInLocation(models.DateLayout+" "+models.TimeLayout, b.Date+" "+b.EndTime, c.location); err != nil {
			return nil, fmt.Errorf("booking %s: %w", b.ID, err)
		}
	}

	tz := c.location.String()
	event.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: tz}
	event.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: tz}
	return event, nil
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
