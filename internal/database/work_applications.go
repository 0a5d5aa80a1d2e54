package database

import (
	"context"
	"fmt"
	"time"

	"marpro/internal/domain"
	"marpro/internal/models"
)

var workApplicationColumns = []string{
	"id", "first_name", "last_name", "email", "phone",
	"position", "experience", "message", "status", "created_at",
}

func (db *DB) CreateWorkApplication(ctx context.Context, app *models.WorkApplication) error {
	if app.Status == "" {
		app.Status = models.WorkApplicationStatusNew
	}
	app.CreatedAt = time.Now().UTC()

	query, args, err := db.qb.Insert("work_applications").Columns(workApplicationColumns...).Values(
		app.ID, app.FirstName, app.LastName, app.Email, app.Phone,
		app.Position, app.Experience, app.Message, app.Status, app.CreatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build application insert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return domain.StorageError("create work application", err)
	}
	return nil
}

// ListWorkApplications returns the newest applications first.
func (db *DB) ListWorkApplications(ctx context.Context, limit int) ([]*models.WorkApplication, error) {
	builder := db.qb.Select(workApplicationColumns...).
		From("work_applications").
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build applications query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError("list work applications", err)
	}
	defer rows.Close()

	var apps []*models.WorkApplication
	for rows.Next() {
		var a models.WorkApplication
		if err := rows.Scan(
			&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone,
			&a.Position, &a.Experience, &a.Message, &a.Status, &a.CreatedAt,
		); err != nil {
			return nil, domain.StorageError("scan work application", err)
		}
		apps = append(apps, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("list work applications", err)
	}
	return apps, nil
}
