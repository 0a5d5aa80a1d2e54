package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marpro/internal/metrics"
	"marpro/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TaskStore persists sync tasks; *database.DB implements it.
type TaskStore interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetSyncTask(ctx context.Context, id int64) (*models.SyncTask, error)
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

type CalendarClient interface {
	UpsertBookingEvent(ctx context.Context, booking *models.EquipmentBooking) error
	DeleteBookingEvent(ctx context.Context, bookingID string) error
}

type SheetClient interface {
	AppendOrder(ctx context.Context, order *models.Order) error
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
}

// SyncWorker pushes bookings to Google Calendar and orders to Google Sheets.
// Tasks are persisted first, so a restart or a Redis outage only delays them.
type SyncWorker struct {
	store         TaskStore
	calendar      CalendarClient
	sheet         SheetClient
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan int64
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewSyncWorker builds a worker; zero retry fields take the defaults.
// calendar, sheet and redisClient may be nil.
func NewSyncWorker(store TaskStore, calendar CalendarClient, sheet SheetClient, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SyncWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &SyncWorker{
		store:         store,
		calendar:      calendar,
		sheet:         sheet,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan int64, models.WorkerQueueSize),
		redisQueueKey: "sync:queue",
		deadLetterKey: "sync:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// Enabled reports whether a client is configured for the task type.
func (w *SyncWorker) Enabled(taskType string) bool {
	switch taskType {
	case models.SyncTaskCalendarUpsert, models.SyncTaskCalendarDelete:
		return w.calendar != nil
	case models.SyncTaskSheetAppend, models.SyncTaskSheetStatus:
		return w.sheet != nil
	default:
		return false
	}
}

// EnqueueTask persists the task and schedules it via Redis or the in-memory
// queue. Tasks for a disabled integration are dropped silently.
func (w *SyncWorker) EnqueueTask(ctx context.Context, taskType, entityID string, payload interface{}) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if entityID == "" {
		return errors.New("entity id is required")
	}
	switch taskType {
	case models.SyncTaskCalendarUpsert, models.SyncTaskCalendarDelete, models.SyncTaskSheetAppend, models.SyncTaskSheetStatus:
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
	if !w.Enabled(taskType) {
		return nil
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType: taskType,
		EntityID: entityID,
		Payload:  string(payloadBytes),
		Status:   models.SyncStatusPending,
	}
	if err := w.store.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		if err := w.redis.LPush(ctx, w.redisQueueKey, task.ID).Err(); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task.ID:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
	}
	return nil
}

// Start runs the main loop until ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sync worker started")
	defer w.logger.Info().Msg("sync worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if id, ok := w.tryLocalQueue(); ok {
			w.processByID(ctx, id)
			continue
		}

		if id, ok := w.tryRedis(ctx); ok {
			w.processByID(ctx, id)
			continue
		}

		if n := w.pollOnce(ctx); n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// pollOnce processes due tasks from the table and returns how many it saw.
func (w *SyncWorker) pollOnce(ctx context.Context) int {
	tasks, err := w.store.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending sync tasks")
		}
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *SyncWorker) tryLocalQueue() (int64, bool) {
	select {
	case id := <-w.queue:
		return id, true
	default:
		return 0, false
	}
}

func (w *SyncWorker) tryRedis(ctx context.Context) (int64, bool) {
	if w.redis == nil {
		return 0, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Warn().Err(err).Msg("redis BRPOP error")
		}
		return 0, false
	}
	if len(res) != 2 {
		return 0, false
	}
	var id int64
	if _, err := fmt.Sscan(res[1], &id); err != nil {
		w.logger.Warn().Err(err).Str("raw", res[1]).Msg("decode redis task id")
		return 0, false
	}
	return id, true
}

// processByID reloads the task so a copy already handled by polling is skipped.
func (w *SyncWorker) processByID(ctx context.Context, id int64) {
	task, err := w.store.GetSyncTask(ctx, id)
	if err != nil {
		w.logger.Warn().Err(err).Int64("task_id", id).Msg("load sync task")
		return
	}
	if task.Status != models.SyncStatusPending {
		return
	}
	w.processTask(ctx, task)
}

func (w *SyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	err := w.handleTask(ctx, task)
	metrics.IncSyncTask(task.TaskType, err)

	var permanent *permanentError
	switch {
	case err == nil:
		if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
		}
	case errors.As(err, &permanent):
		w.failTask(ctx, task, err)
	default:
		w.retryOrFail(ctx, task, err)
	}
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func (w *SyncWorker) handleTask(ctx context.Context, task *models.SyncTask) error {
	switch task.TaskType {
	case models.SyncTaskCalendarUpsert:
		if w.calendar == nil {
			return permanent(errors.New("calendar is not configured"))
		}
		var booking models.EquipmentBooking
		if err := json.Unmarshal([]byte(task.Payload), &booking); err != nil {
			return permanent(fmt.Errorf("decode payload: %w", err))
		}
		if booking.ID == "" {
			booking.ID = task.EntityID
		}
		return w.calendar.UpsertBookingEvent(ctx, &booking)
	case models.SyncTaskCalendarDelete:
		if w.calendar == nil {
			return permanent(errors.New("calendar is not configured"))
		}
		return w.calendar.DeleteBookingEvent(ctx, task.EntityID)
	case models.SyncTaskSheetAppend, models.SyncTaskSheetStatus:
		if w.sheet == nil {
			return permanent(errors.New("sheet is not configured"))
		}
		var order models.Order
		if err := json.Unmarshal([]byte(task.Payload), &order); err != nil {
			return permanent(fmt.Errorf("decode payload: %w", err))
		}
		if order.ID == "" {
			order.ID = task.EntityID
		}
		if task.TaskType == models.SyncTaskSheetAppend {
			return w.sheet.AppendOrder(ctx, &order)
		}
		if order.Status == "" {
			return permanent(errors.New("order status missing"))
		}
		return w.sheet.UpdateOrderStatus(ctx, order.ID, order.Status)
	default:
		return permanent(fmt.Errorf("unknown task type: %s", task.TaskType))
	}
}

func (w *SyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
	w.logger.Warn().Err(cause).
		Int64("task_id", task.ID).
		Str("type", task.TaskType).
		Int("attempt", attempt).
		Time("next_retry_at", nextTime).
		Msg("sync task will be retried")
}

func (w *SyncWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("type", task.TaskType).Str("entity_id", task.EntityID).Msg("sync task failed")
	w.pushDeadLetter(ctx, task, cause)
}

func (w *SyncWorker) pushDeadLetter(ctx context.Context, task *models.SyncTask, cause error) {
	if w.redis == nil {
		return
	}
	msg := cause.Error()
	dead := *task
	dead.Status = models.SyncStatusFailed
	dead.LastError = &msg

	data, err := json.Marshal(dead)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
