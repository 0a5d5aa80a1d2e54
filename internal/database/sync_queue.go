package database

import (
	"context"
	"fmt"
	"time"

	"marpro/internal/domain"
	"marpro/internal/models"

	sq "github.com/Masterminds/squirrel"
)

var syncTaskColumns = []string{
	"id", "task_type", "entity_id", "payload", "status", "retry_count",
	"last_error", "created_at", "processed_at", "next_retry_at",
}

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	if task.NextRetryAt != nil {
		utc := task.NextRetryAt.UTC()
		task.NextRetryAt = &utc
	}
	now := time.Now().UTC()

	query, args, err := db.qb.Insert("sync_queue").
		Columns("task_type", "entity_id", "payload", "status", "retry_count", "last_error", "created_at", "next_retry_at").
		Values(task.TaskType, task.EntityID, task.Payload, task.Status, task.RetryCount, task.LastError, now, task.NextRetryAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sync task insert: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// GetPendingSyncTasks returns tasks whose retry time has come, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	builder := db.qb.Select(syncTaskColumns...).
		From("sync_queue").
		Where(sq.Eq{"status": []string{models.SyncStatusPending, models.SyncStatusRetry}}).
		Where(sq.Or{sq.Eq{"next_retry_at": nil}, sq.LtOrEq{"next_retry_at": time.Now().UTC()}}).
		OrderBy("created_at ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	tasks, err := db.querySyncTasks(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync tasks: %w", err)
	}
	return tasks, nil
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastErr *string
	if errMsg != "" {
		lastErr = &errMsg
	}
	// next_retry_at is compared as text, keep it in UTC
	if nextRetryAt != nil {
		utc := nextRetryAt.UTC()
		nextRetryAt = &utc
	}

	builder := db.qb.Update("sync_queue").
		Set("status", status).
		Set("last_error", lastErr).
		Set("next_retry_at", nextRetryAt).
		Where(sq.Eq{"id": id})

	switch status {
	case models.SyncStatusRetry:
		builder = builder.Set("retry_count", sq.Expr("retry_count + 1"))
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		builder = builder.Set("processed_at", time.Now().UTC())
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sync task update: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

// GetSyncTask reloads a task, e.g. one popped from the Redis queue.
func (db *DB) GetSyncTask(ctx context.Context, id int64) (*models.SyncTask, error) {
	tasks, err := db.querySyncTasks(ctx, db.qb.Select(syncTaskColumns...).From("sync_queue").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("failed to get sync task: %w", err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("sync task %d: %w", id, domain.ErrNotFound)
	}
	return &tasks[0], nil
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	builder := db.qb.Select(syncTaskColumns...).
		From("sync_queue").
		Where(sq.Eq{"status": models.SyncStatusFailed}).
		OrderBy("created_at DESC")
	tasks, err := db.querySyncTasks(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed sync tasks: %w", err)
	}
	return tasks, nil
}

func (db *DB) querySyncTasks(ctx context.Context, builder sq.SelectBuilder) ([]models.SyncTask, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(
			&t.ID, &t.TaskType, &t.EntityID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
