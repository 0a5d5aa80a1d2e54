package domain

import (
	"errors"
	"fmt"
	"strings"

	"marpro/internal/models"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("time slot unavailable")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNotFound           = errors.New("not found")
	ErrAuthFailure        = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many attempts")
)

// ValidationError points at the offending request field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError names the equipment and the active bookings it collided with.
type ConflictError struct {
	EquipmentType models.ServiceType
	EquipmentID   string
	Conflicts     []*models.EquipmentBooking
}

func (e *ConflictError) Error() string {
	windows := make([]string, 0, len(e.Conflicts))
	for _, b := range e.Conflicts {
		w := b.Date
		if b.ReservationType.IsRange() {
			w += ".." + b.EndDate
		} else if tr := b.TimeRange(); tr != "" {
			w += " " + tr
		}
		windows = append(windows, w)
	}
	return fmt.Sprintf("%s/%s is booked at %s", e.EquipmentType, e.EquipmentID, strings.Join(windows, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// TransitionError describes a refused status change.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot change status from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// StorageError wraps a driver error as ErrStorageUnavailable.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
