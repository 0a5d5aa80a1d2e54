package google

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"marpro/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	ordersSheet = "Orders"
	// statusColumn is the column holding the order status in ordersHeader.
	statusColumn  = "L"
	updatedColumn = "M"
)

var ordersHeader = []interface{}{
	"ID", "Vytvořeno", "Služba", "Varianta", "Jméno", "Příjmení", "Telefon", "E-mail",
	"Datum", "Čas", "Do", "Stav", "Aktualizováno", "Adresa", "Zpráva",
}

var ErrRowNotFound = errors.New("order row not found")

var updatedRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// OrdersSheet keeps one spreadsheet row per order.
type OrdersSheet struct {
	service       *sheets.Service
	spreadsheetID string
	now           func() time.Time
	rowCache      map[string]int
	cacheMu       sync.RWMutex
}

func NewOrdersSheet(ctx context.Context, credentialsFile, spreadsheetID string) (*OrdersSheet, error) {
	client, err := serviceAccountClient(ctx, credentialsFile, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, err
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newOrdersSheet(srv, spreadsheetID), nil
}

func newOrdersSheet(srv *sheets.Service, spreadsheetID string) *OrdersSheet {
	return &OrdersSheet{
		service:       srv,
		spreadsheetID: spreadsheetID,
		now:           time.Now,
		rowCache:      make(map[string]int),
	}
}

// TestConnection checks that the spreadsheet is reachable.
func (s *OrdersSheet) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, ordersSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the header row when the sheet is empty.
func (s *OrdersSheet) EnsureHeader(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, ordersSheet+"!A1:A1").Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, ordersSheet+"!A1", &sheets.ValueRange{
		Values: [][]interface{}{ordersHeader},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache indexes the ID column so status updates skip the lookup.
func (s *OrdersSheet) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, ordersSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if id := fmt.Sprint(row[0]); id != "" {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// AppendOrder adds the order row.
func (s *OrdersSheet) AppendOrder(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order is nil")
	}

	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, ordersSheet+"!A:A", &sheets.ValueRange{
		Values: [][]interface{}{orderRowValues(order)},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}

	if resp.Updates != nil {
		if m := updatedRowRe.FindStringSubmatch(resp.Updates.UpdatedRange); m != nil {
			if row, err := strconv.Atoi(m[1]); err == nil {
				s.setCachedRow(order.ID, row)
			}
		}
	}
	return nil
}

// UpdateOrderStatus rewrites the status and updated-at cells of the order row.
func (s *OrdersSheet) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	row, err := s.FindOrderRow(ctx, orderID)
	if err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!%s%d:%s%d", ordersSheet, statusColumn, row, updatedColumn, row)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{{status, s.now().UTC().Format(models.TimestampLayout)}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// FindOrderRow returns the 1-based row of orderID, consulting the cache first.
func (s *OrdersSheet) FindOrderRow(ctx context.Context, orderID string) (int, error) {
	if orderID == "" {
		return 0, fmt.Errorf("order id is required")
	}
	if row, ok := s.getCachedRow(orderID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, ordersSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if len(row) > 0 && fmt.Sprint(row[0]) == orderID {
			s.setCachedRow(orderID, i+1)
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%s: %w", orderID, ErrRowNotFound)
}

func (s *OrdersSheet) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *OrdersSheet) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func orderRowValues(o *models.Order) []interface{} {
	var parts []string
	for _, p := range []string{
		o.Location.Address,
		o.Location.Street,
		strings.TrimSpace(o.Location.Zip + " " + o.Location.City),
		o.Location.Country,
	} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	end := ""
	if o.Schedule.LastDate() != o.Schedule.Date {
		end = o.Schedule.LastDate()
	}
	return []interface{}{
		o.ID,
		o.CreatedAt.UTC().Format(models.TimestampLayout),
		string(o.Service.Type),
		o.Service.Variant,
		o.Customer.FirstName,
		o.Customer.LastName,
		o.Customer.Phone,
		o.Customer.Email,
		o.Schedule.Date,
		o.Schedule.TimeRange(),
		end,
		o.Status,
		o.UpdatedAt.UTC().Format(models.TimestampLayout),
		strings.Join(parts, ", "),
		o.Message,
	}
}
