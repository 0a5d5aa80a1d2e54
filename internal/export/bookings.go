package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"marpro/internal/domain"
	"marpro/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	listSheet     = "Rezervace"
	scheduleSheet = "Přehled"
)

var listHeader = []interface{}{
	"Od", "Do", "Čas", "Typ", "Jednotka", "Stav", "Zákazník", "Telefon", "Město", "Objednávka", "Rezervace",
}

var statusLabels = map[string]string{
	models.BookingStatusActive:    "aktivní",
	models.BookingStatusCompleted: "dokončeno",
	models.BookingStatusCancelled: "zrušeno",
}

// BookingExporter builds the admin XLSX export of equipment bookings.
type BookingExporter struct {
	repo         domain.Repository
	maxRangeDays int
	logger       *zerolog.Logger
}

func NewBookingExporter(repo domain.Repository, maxRangeDays int, logger *zerolog.Logger) *BookingExporter {
	return &BookingExporter{repo: repo, maxRangeDays: maxRangeDays, logger: logger}
}

// FileName suggests the download name for a range.
func FileName(from, to string) string {
	return fmt.Sprintf("rezervace_%s_%s.xlsx", from, to)
}

// Export writes every booking touching [from, to] as a workbook to w.
func (e *BookingExporter) Export(ctx context.Context, from, to string, w io.Writer) error {
	start, end, err := e.parseRange(from, to)
	if err != nil {
		return err
	}

	bookings, err := e.repo.ListBookings(ctx, models.BookingFilter{From: from, To: to})
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}

	orders := make(map[string]*models.Order)
	for _, b := range bookings {
		if _, seen := orders[b.OrderID]; seen {
			continue
		}
		order, err := e.repo.GetOrder(ctx, b.OrderID)
		if err != nil {
			e.logger.Warn().Err(err).Str("order_id", b.OrderID).Msg("order for export not found")
		}
		orders[b.OrderID] = order
	}

	f, err := Workbook(bookings, orders, start, end)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	e.logger.Info().Str("from", from).Str("to", to).Int("bookings", len(bookings)).Msg("bookings exported")
	return nil
}

func (e *BookingExporter) parseRange(from, to string) (time.Time, time.Time, error) {
	start, err := time.Parse(models.DateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, domain.NewValidationError("from", "must be a date in YYYY-MM-DD format")
	}
	end, err := time.Parse(models.DateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, domain.NewValidationError("to", "must be a date in YYYY-MM-DD format")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, domain.NewValidationError("to", "must not be before from")
	}
	if e.maxRangeDays > 0 && int(end.Sub(start).Hours()/24) >= e.maxRangeDays {
		return time.Time{}, time.Time{}, domain.NewValidationError("to", fmt.Sprintf("range must not exceed %d days", e.maxRangeDays))
	}
	return start, end, nil
}

// Workbook renders the list sheet and the unit-by-day schedule sheet.
// orders may miss entries; such rows are exported without customer data.
func Workbook(bookings []*models.EquipmentBooking, orders map[string]*models.Order, start, end time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(listSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(scheduleSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	// drop the default sheet
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	if err := writeList(f, bookings, orders, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSchedule(f, bookings, start, end, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeList(f *excelize.File, bookings []*models.EquipmentBooking, orders map[string]*models.Order, headerStyle int) error {
	if err := f.SetSheetRow(listSheet, "A1", &listHeader); err != nil {
		return err
	}
	_ = f.SetCellStyle(listSheet, "A1", "K1", headerStyle)

	for i, b := range bookings {
		var customer, phone, city string
		if o := orders[b.OrderID]; o != nil {
			customer, phone, city = o.Customer.FullName(), o.Customer.Phone, o.Location.City
		}
		row := []interface{}{
			displayDate(b.Date),
			displayDate(b.LastDate()),
			b.TimeRange(),
			string(b.EquipmentType),
			b.EquipmentID,
			statusLabel(b.Status),
			customer,
			phone,
			city,
			b.OrderID,
			b.ID,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(listSheet, cell, &row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(listSheet, "A", "C", 12)
	_ = f.SetColWidth(listSheet, "D", "F", 14)
	_ = f.SetColWidth(listSheet, "G", "I", 22)
	_ = f.SetColWidth(listSheet, "J", "K", 38)
	_ = f.SetPanes(listSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return nil
}

// writeSchedule lays units out as rows and days as columns.
func writeSchedule(f *excelize.File, bookings []*models.EquipmentBooking, start, end time.Time, headerStyle int) error {
	_ = f.SetCellValue(scheduleSheet, "A1", fmt.Sprintf("Období: %s - %s",
		start.Format(models.DisplayDateLayout), end.Format(models.DisplayDateLayout)))

	dateCols := make(map[string]int)
	col := 2
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(scheduleSheet, cell, d.Format("02.01"))
		_ = f.SetCellStyle(scheduleSheet, cell, cell, headerStyle)
		dateCols[d.Format(models.DateLayout)] = col
		col++
	}
	lastCol, _ := excelize.ColumnNumberToName(col - 1)
	if col > 2 {
		_ = f.MergeCell(scheduleSheet, "A1", lastCol+"1")
	}

	busyStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	doneStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})

	type slot struct {
		labels []string
		done   bool
	}
	cells := make(map[models.EquipmentKey]map[int]*slot)
	var units []models.EquipmentKey
	for _, b := range bookings {
		if b.Status == models.BookingStatusCancelled {
			continue
		}
		key := b.Key()
		if _, ok := cells[key]; !ok {
			cells[key] = make(map[int]*slot)
			units = append(units, key)
		}
		label := b.TimeRange()
		if label == "" {
			label = "celý den"
		}
		for _, day := range coveredDays(b) {
			c, ok := dateCols[day]
			if !ok {
				continue
			}
			s := cells[key][c]
			if s == nil {
				s = &slot{done: true}
				cells[key][c] = s
			}
			s.labels = append(s.labels, label)
			s.done = s.done && b.Status == models.BookingStatusCompleted
		}
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].Type != units[j].Type {
			return units[i].Type < units[j].Type
		}
		return units[i].ID < units[j].ID
	})

	for i, unit := range units {
		row := i + 3
		nameCell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(scheduleSheet, nameCell, fmt.Sprintf("%s / %s", unit.Type, unit.ID))

		for c, s := range cells[unit] {
			cell, _ := excelize.CoordinatesToCellName(c, row)
			_ = f.SetCellValue(scheduleSheet, cell, strings.Join(s.labels, "\n"))
			style := busyStyle
			if s.done {
				style = doneStyle
			}
			_ = f.SetCellStyle(scheduleSheet, cell, cell, style)
		}
	}

	_ = f.SetColWidth(scheduleSheet, "A", "A", 24)
	if col > 2 {
		_ = f.SetColWidth(scheduleSheet, "B", lastCol, 14)
	}
	return nil
}

// coveredDays lists every calendar day the booking touches.
func coveredDays(b *models.EquipmentBooking) []string {
	first, err := time.Parse(models.DateLayout, b.Date)
	if err != nil {
		return nil
	}
	last, err := time.Parse(models.DateLayout, b.LastDate())
	if err != nil || last.Before(first) {
		return []string{b.Date}
	}
	var days []string
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(models.DateLayout))
	}
	return days
}

func displayDate(raw string) string {
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format(models.DisplayDateLayout)
}

func statusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status
}
