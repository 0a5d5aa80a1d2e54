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

var orderColumns = []string{
	"id", "first_name", "last_name", "email", "phone",
	"address", "street", "city", "zip", "country", "latitude", "longitude",
	"service_type", "service_variant",
	"order_date", "start_time", "end_time", "end_date", "reservation_type",
	"status", "message", "notes", "created_at", "updated_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o        models.Order
		lat, lng sql.NullFloat64
	)
	err := row.Scan(
		&o.ID, &o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Email, &o.Customer.Phone,
		&o.Location.Address, &o.Location.Street, &o.Location.City, &o.Location.Zip, &o.Location.Country, &lat, &lng,
		&o.Service.Type, &o.Service.Variant,
		&o.Schedule.Date, &o.Schedule.StartTime, &o.Schedule.EndTime, &o.Schedule.EndDate, &o.Schedule.ReservationType,
		&o.Status, &o.Message, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Location.Latitude = floatPtr(lat)
	o.Location.Longitude = floatPtr(lng)
	return &o, nil
}

// CreateOrderWithBookings writes the order and its bookings atomically. The
// overlap check for each booking runs inside the same write transaction as
// its insert, so two concurrent orders for one unit cannot both succeed.
func (db *DB) CreateOrderWithBookings(ctx context.Context, order *models.Order, bookings []*models.EquipmentBooking) error {
	now := time.Now().UTC()
	order.CreatedAt, order.UpdatedAt = now, now
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.insertOrder(ctx, tx, order); err != nil {
			return err
		}

		for _, b := range bookings {
			w, err := b.Schedule.Window()
			if err != nil {
				return domain.NewValidationError("date", err.Error())
			}

			existing, err := db.findActiveBookings(ctx, tx, b.Key(), b.Date, b.LastDate())
			if err != nil {
				return err
			}
			if conflicts := models.OverlappingBookings(w, existing); len(conflicts) > 0 {
				return &domain.ConflictError{
					EquipmentType: b.EquipmentType,
					EquipmentID:   b.EquipmentID,
					Conflicts:     conflicts,
				}
			}

			b.OrderID = order.ID
			b.CreatedAt, b.UpdatedAt = now, now
			if b.Status == "" {
				b.Status = models.BookingStatusActive
			}
			if err := db.insertBooking(ctx, tx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("create order", err)
	}

	db.logger.Info().
		Str("order_id", order.ID).
		Str("service_type", string(order.Service.Type)).
		Int("bookings", len(bookings)).
		Msg("order created")
	return nil
}

func (db *DB) insertOrder(ctx context.Context, q querier, o *models.Order) error {
	query, args, err := db.qb.Insert("orders").Columns(orderColumns...).Values(
		o.ID, o.Customer.FirstName, o.Customer.LastName, o.Customer.Email, o.Customer.Phone,
		o.Location.Address, o.Location.Street, o.Location.City, o.Location.Zip, o.Location.Country,
		nullFloat(o.Location.Latitude), nullFloat(o.Location.Longitude),
		o.Service.Type, o.Service.Variant,
		o.Schedule.Date, o.Schedule.StartTime, o.Schedule.EndTime, o.Schedule.EndDate, o.Schedule.ReservationType,
		o.Status, o.Message, o.Notes, o.CreatedAt, o.UpdatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build order insert: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (db *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := db.getOrder(ctx, db, id)
	if err != nil {
		return nil, storageErr("get order", err)
	}
	return o, nil
}

func (db *DB) getOrder(ctx context.Context, q querier, id string) (*models.Order, error) {
	query, args, err := db.qb.Select(orderColumns...).From("orders").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order query: %w", err)
	}

	o, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// ListOrders returns the newest orders first.
func (db *DB) ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	builder := db.qb.Select(orderColumns...).From("orders").OrderBy("created_at DESC", "id")
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.ServiceType != "" {
		builder = builder.Where(sq.Eq{"service_type": filter.ServiceType})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build orders query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError("list orders", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.StorageError("scan order", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("list orders", err)
	}
	return orders, nil
}

// TransitionOrderStatus moves the order to status `to` if it currently holds
// one of `from`.
func (db *DB) TransitionOrderStatus(ctx context.Context, id string, from []string, to string) (*models.Order, error) {
	var updated *models.Order
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := db.getOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if !contains(from, current.Status) {
			return &domain.TransitionError{Entity: "order", ID: id, From: current.Status, To: to}
		}

		now := time.Now().UTC()
		query, args, err := db.qb.Update("orders").
			Set("status", to).
			Set("updated_at", now).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build order update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		current.Status = to
		current.UpdatedAt = now
		updated = current
		return nil
	})
	if err != nil {
		return nil, storageErr("update order status", err)
	}
	return updated, nil
}

func (db *DB) UpdateOrderNotes(ctx context.Context, id, notes string) error {
	query, args, err := db.qb.Update("orders").
		Set("notes", notes).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build notes update: %w", err)
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.StorageError("update order notes", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.StorageError("update order notes", err)
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// storageErr keeps domain errors as they are and marks everything else as
// a storage failure.
func storageErr(op string, err error) error {
	var (
		conflict   *domain.ConflictError
		transition *domain.TransitionError
		validation *domain.ValidationError
	)
	switch {
	case errors.As(err, &conflict), errors.As(err, &transition), errors.As(err, &validation),
		errors.Is(err, domain.ErrNotFound):
		return err
	default:
		return domain.StorageError(op, err)
	}
}
