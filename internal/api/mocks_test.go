package api

import (
	"context"
	"errors"
	"io"
	"time"

	"marpro/internal/domain"
	"marpro/internal/models"
)

type fakeOrders struct {
	submitted *models.OrderRequest
	submitErr error
	order     *models.Order
	bookings  []*models.EquipmentBooking
	filter    models.OrderFilter
	status    string
	notes     string
	err       error
}

func (f *fakeOrders) Submit(_ context.Context, req *models.OrderRequest) (*models.Order, []*models.EquipmentBooking, error) {
	f.submitted = req
	if f.submitErr != nil {
		return nil, nil, f.submitErr
	}
	return f.order, f.bookings, nil
}

func (f *fakeOrders) GetOrder(_ context.Context, id string) (*models.Order, []*models.EquipmentBooking, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	if f.order == nil || f.order.ID != id {
		return nil, nil, domain.ErrNotFound
	}
	return f.order, f.bookings, nil
}

func (f *fakeOrders) ListOrders(_ context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	if f.order == nil {
		return nil, nil
	}
	return []*models.Order{f.order}, nil
}

func (f *fakeOrders) UpdateOrderStatus(_ context.Context, id, status string) (*models.Order, error) {
	f.status = status
	if f.err != nil {
		return nil, f.err
	}
	o := *f.order
	o.Status = status
	return &o, nil
}

func (f *fakeOrders) UpdateOrderNotes(_ context.Context, id, notes string) error {
	f.notes = notes
	return f.err
}

type fakeBookings struct {
	availability *models.AvailabilityResult
	availReq     models.AvailabilityRequest
	filter       models.BookingFilter
	booking      *models.EquipmentBooking
	err          error
}

func (f *fakeBookings) CheckAvailability(_ context.Context, req models.AvailabilityRequest) (*models.AvailabilityResult, error) {
	f.availReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.availability, nil
}

func (f *fakeBookings) ListBookings(_ context.Context, filter models.BookingFilter) ([]*models.EquipmentBooking, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	if f.booking == nil {
		return nil, nil
	}
	return []*models.EquipmentBooking{f.booking}, nil
}

func (f *fakeBookings) GetBooking(_ context.Context, id string) (*models.EquipmentBooking, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.booking, nil
}

func (f *fakeBookings) UpdateBookingStatus(_ context.Context, id, status string) (*models.EquipmentBooking, error) {
	if f.err != nil {
		return nil, f.err
	}
	b := *f.booking
	b.Status = status
	return &b, nil
}

type fakeApplications struct {
	submitted *models.WorkApplicationRequest
	limit     int
	err       error
}

func (f *fakeApplications) Submit(_ context.Context, req *models.WorkApplicationRequest) (*models.WorkApplication, error) {
	f.submitted = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.WorkApplication{ID: "app-1", FirstName: req.FirstName}, nil
}

func (f *fakeApplications) List(_ context.Context, limit int) ([]*models.WorkApplication, error) {
	f.limit = limit
	return nil, f.err
}

const validToken = "valid-token"

type fakeAuth struct {
	loginClient string
	loginErr    error
	loggedOut   string
}

func (f *fakeAuth) Login(_ context.Context, password, client string) (string, time.Time, error) {
	f.loginClient = client
	if f.loginErr != nil {
		return "", time.Time{}, f.loginErr
	}
	if password != "secret" {
		return "", time.Time{}, domain.ErrAuthFailure
	}
	return validToken, time.Date(2025, 7, 1, 20, 0, 0, 0, time.UTC), nil
}

func (f *fakeAuth) Validate(_ context.Context, token string) (*models.AdminSession, error) {
	if token != validToken {
		return nil, domain.ErrAuthFailure
	}
	return &models.AdminSession{ID: "session-1", Client: "192.0.2.1"}, nil
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	f.loggedOut = token
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) ActiveEntries(st models.ServiceType, lang string) []models.CatalogEntry {
	switch st {
	case models.ServiceContainers:
		desc := "Kontejner 3 m³"
		if lang == "en" {
			desc = "Container 3 m³"
		}
		return []models.CatalogEntry{{ID: "3m3", Name: "3m3", Description: desc, Price: 2500, IsActive: true}}
	case models.ServiceExcavators:
		return []models.CatalogEntry{{ID: "TB145", Name: "Takeuchi TB145", Price: 900, PriceUnit: "hod", IsActive: true}}
	default:
		return nil
	}
}

type fakeExporter struct {
	from, to string
	err      error
}

func (f *fakeExporter) Export(_ context.Context, from, to string, w io.Writer) error {
	f.from, f.to = from, to
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, "xlsx-bytes")
	return err
}

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(context.Context) error { return f.err }

var errStoreDown = domain.StorageError("insert order", errors.New("database is locked"))
