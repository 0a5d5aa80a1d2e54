package models

import "time"

const (
	BookingStatusActive    = "active"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

const (
	WorkApplicationStatusNew      = "new"
	WorkApplicationStatusReviewed = "reviewed"
)

const (
	DateLayout        = "2006-01-02"
	TimeLayout        = "15:04"
	DisplayDateLayout = "02.01.2006"
	TimestampLayout   = "2006-01-02 15:04:05"
)

const (
	// DefaultSessionTTL время жизни админской сессии
	DefaultSessionTTL = 8 * time.Hour

	// LoginAttempts попыток входа в окне LoginWindow
	LoginAttempts = 5
	LoginWindow   = time.Minute

	// DefaultLanguage язык описаний каталога по умолчанию
	DefaultLanguage = "cs"

	// WorkerQueueSize размер in-memory очереди воркера
	WorkerQueueSize = 128

	// MaxMessageLength ограничение на длину свободного текста
	MaxMessageLength = 4000
)
