package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marpro/internal/domain"
	"marpro/internal/models"

	sq "github.com/Masterminds/squirrel"
)

var bookingColumns = []string{
	"id", "order_id", "equipment_type", "equipment_id",
	"date", "start_time", "end_time", "end_date", "reservation_type",
	"status", "notes", "created_at", "updated_at",
}

func scanBooking(row rowScanner) (*models.EquipmentBooking, error) {
	var b models.EquipmentBooking
	err := row.Scan(
		&b.ID, &b.OrderID, &b.EquipmentType, &b.EquipmentID,
		&b.Date, &b.StartTime, &b.EndTime, &b.EndDate, &b.ReservationType,
		&b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) insertBooking(ctx context.Context, q querier, b *models.EquipmentBooking) error {
	query, args, err := db.qb.Insert("equipment_bookings").Columns(bookingColumns...).Values(
		b.ID, b.OrderID, b.EquipmentType, b.EquipmentID,
		b.Date, b.StartTime, b.EndTime, b.EndDate, b.ReservationType,
		b.Status, b.Notes, b.CreatedAt, b.UpdatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build booking insert: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (db *DB) queryBookings(ctx context.Context, q querier, builder sq.SelectBuilder) ([]*models.EquipmentBooking, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build bookings query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.EquipmentBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.EquipmentBooking, error) {
	b, err := db.getBooking(ctx, db, id)
	if err != nil {
		return nil, storageErr("get booking", err)
	}
	return b, nil
}

func (db *DB) getBooking(ctx context.Context, q querier, id string) (*models.EquipmentBooking, error) {
	query, args, err := db.qb.Select(bookingColumns...).From("equipment_bookings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	b, err := scanBooking(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns bookings ordered by date, start time and creation.
// Date matches bookings occupying that day; From/To match bookings that
// intersect the inclusive range.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.EquipmentBooking, error) {
	builder := db.qb.Select(bookingColumns...).
		From("equipment_bookings").
		OrderBy("date", "start_time", "created_at")

	if filter.EquipmentType != "" {
		builder = builder.Where(sq.Eq{"equipment_type": filter.EquipmentType})
	}
	if filter.EquipmentID != "" {
		builder = builder.Where(sq.Eq{"equipment_id": filter.EquipmentID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Date != "" {
		builder = builder.Where(sq.LtOrEq{"date": filter.Date}).Where(sq.GtOrEq{lastDateExpr: filter.Date})
	}
	if filter.From != "" {
		builder = builder.Where(sq.GtOrEq{lastDateExpr: filter.From})
	}
	if filter.To != "" {
		builder = builder.Where(sq.LtOrEq{"date": filter.To})
	}

	bookings, err := db.queryBookings(ctx, db, builder)
	if err != nil {
		return nil, domain.StorageError("list bookings", err)
	}
	return bookings, nil
}

// FindActiveBookings returns the active bookings of one unit touching the
// inclusive day range.
func (db *DB) FindActiveBookings(ctx context.Context, key models.EquipmentKey, fromDate, toDate string) ([]*models.EquipmentBooking, error) {
	bookings, err := db.findActiveBookings(ctx, db, key, fromDate, toDate)
	if err != nil {
		return nil, domain.StorageError("find active bookings", err)
	}
	return bookings, nil
}

func (db *DB) findActiveBookings(ctx context.Context, q querier, key models.EquipmentKey, fromDate, toDate string) ([]*models.EquipmentBooking, error) {
	builder := db.qb.Select(bookingColumns...).
		From("equipment_bookings").
		Where(sq.Eq{
			"equipment_type": key.Type,
			"equipment_id":   key.ID,
			"status":         models.BookingStatusActive,
		}).
		Where(sq.LtOrEq{"date": toDate}).
		Where(sq.GtOrEq{lastDateExpr: fromDate}).
		OrderBy("date", "start_time")
	return db.queryBookings(ctx, q, builder)
}

// TransitionBookingStatus finalizes an active booking. Completed and
// cancelled bookings are terminal.
func (db *DB) TransitionBookingStatus(ctx context.Context, id, status string) (*models.EquipmentBooking, error) {
	var updated *models.EquipmentBooking
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := db.getBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != models.BookingStatusActive {
			return &domain.TransitionError{Entity: "booking", ID: id, From: current.Status, To: status}
		}

		now := time.Now().UTC()
		query, args, err := db.qb.Update("equipment_bookings").
			Set("status", status).
			Set("updated_at", now).
			Where(sq.Eq{"id": id, "status": models.BookingStatusActive}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build booking update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}

		current.Status = status
		current.UpdatedAt = now
		updated = current
		return nil
	})
	if err != nil {
		return nil, storageErr("update booking status", err)
	}

	db.logger.Info().Str("booking_id", id).Str("status", status).Msg("booking status changed")
	return updated, nil
}

func (db *DB) GetBookingsByOrder(ctx context.Context, orderID string) ([]*models.EquipmentBooking, error) {
	builder := db.qb.Select(bookingColumns...).
		From("equipment_bookings").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("created_at", "equipment_id")

	bookings, err := db.queryBookings(ctx, db, builder)
	if err != nil {
		return nil, domain.StorageError("get order bookings", err)
	}
	return bookings, nil
}
