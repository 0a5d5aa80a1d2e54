package models

import (
	"fmt"
	"strings"
	"time"
)

type ReservationType string

const (
	ReservationTime   ReservationType = "time"
	ReservationDays   ReservationType = "days"
	ReservationWeeks  ReservationType = "weeks"
	ReservationMonths ReservationType = "months"
)

// ParseReservationType accepts an empty string; the caller resolves the default.
func ParseReservationType(raw string) (ReservationType, error) {
	switch rt := ReservationType(strings.ToLower(strings.TrimSpace(raw))); rt {
	case "", ReservationTime, ReservationDays, ReservationWeeks, ReservationMonths:
		return rt, nil
	default:
		return "", fmt.Errorf("unknown reservation type %q", raw)
	}
}

// IsRange reports whether the reservation blocks whole days.
func (rt ReservationType) IsRange() bool {
	return rt == ReservationDays || rt == ReservationWeeks || rt == ReservationMonths
}

// Schedule is the scheduling part shared by orders and bookings.
// Date fields use DateLayout, time fields use TimeLayout.
type Schedule struct {
	Date            string          `json:"date"`
	StartTime       string          `json:"startTime,omitempty"`
	EndTime         string          `json:"endTime,omitempty"`
	EndDate         string          `json:"endDate,omitempty"`
	ReservationType ReservationType `json:"reservationType,omitempty"`
}

// Window is a half-open instant interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open semantics: touching windows do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// ScheduleError describes which field of a schedule is malformed.
type ScheduleError struct {
	Field   string
	Message string
}

func (e *ScheduleError) Error() string {
	return e.Field + ": " + e.Message
}

// Normalize fills in the defaults implied by the reservation type and
// validates the result. It returns a copy; the receiver is untouched.
func (s Schedule) Normalize() (Schedule, error) {
	s.Date = strings.TrimSpace(s.Date)
	s.StartTime = strings.TrimSpace(s.StartTime)
	s.EndTime = strings.TrimSpace(s.EndTime)
	s.EndDate = strings.TrimSpace(s.EndDate)

	start, err := time.Parse(DateLayout, s.Date)
	if err != nil {
		return s, &ScheduleError{Field: "date", Message: "expected YYYY-MM-DD"}
	}

	var end time.Time
	if s.EndDate != "" {
		end, err = time.Parse(DateLayout, s.EndDate)
		if err != nil {
			return s, &ScheduleError{Field: "endDate", Message: "expected YYYY-MM-DD"}
		}
	}

	if s.ReservationType == "" {
		if s.EndDate != "" && !end.Equal(start) {
			s.ReservationType = ReservationDays
		} else {
			s.ReservationType = ReservationTime
		}
	}

	switch s.ReservationType {
	case ReservationTime:
		if s.StartTime == "" {
			return s, &ScheduleError{Field: "startTime", Message: "required for time reservations"}
		}
		from, err := time.Parse(TimeLayout, s.StartTime)
		if err != nil {
			return s, &ScheduleError{Field: "startTime", Message: "expected HH:MM"}
		}
		if s.EndTime != "" {
			to, err := time.Parse(TimeLayout, s.EndTime)
			if err != nil {
				return s, &ScheduleError{Field: "endTime", Message: "expected HH:MM"}
			}
			if !from.Before(to) {
				return s, &ScheduleError{Field: "endTime", Message: "must be after startTime"}
			}
			s.EndTime = to.Format(TimeLayout)
		}
		s.StartTime = from.Format(TimeLayout)
		s.EndDate = ""
		return s, nil
	case ReservationDays:
		if s.EndDate == "" {
			end = start
		}
	case ReservationWeeks:
		if s.EndDate == "" {
			end = start.AddDate(0, 0, 6)
		}
	case ReservationMonths:
		if s.EndDate == "" {
			end = start.AddDate(0, 1, -1)
		}
	default:
		return s, &ScheduleError{Field: "reservationType", Message: "unknown reservation type"}
	}

	if end.Before(start) {
		return s, &ScheduleError{Field: "endDate", Message: "must not be before date"}
	}
	if s.StartTime != "" {
		from, err := time.Parse(TimeLayout, s.StartTime)
		if err != nil {
			return s, &ScheduleError{Field: "startTime", Message: "expected HH:MM"}
		}
		s.StartTime = from.Format(TimeLayout)
	}
	if s.EndTime != "" {
		to, err := time.Parse(TimeLayout, s.EndTime)
		if err != nil {
			return s, &ScheduleError{Field: "endTime", Message: "expected HH:MM"}
		}
		s.EndTime = to.Format(TimeLayout)
	}
	s.EndDate = end.Format(DateLayout)
	return s, nil
}

// Window maps a normalized schedule to instants in UTC. Time reservations
// without an end time block the rest of the day; range reservations block
// whole days up to and including EndDate.
func (s Schedule) Window() (Window, error) {
	day, err := time.Parse(DateLayout, s.Date)
	if err != nil {
		return Window{}, fmt.Errorf("parse date %q: %w", s.Date, err)
	}

	if s.ReservationType.IsRange() {
		last := day
		if s.EndDate != "" {
			if last, err = time.Parse(DateLayout, s.EndDate); err != nil {
				return Window{}, fmt.Errorf("parse end date %q: %w", s.EndDate, err)
			}
		}
		return Window{Start: day, End: last.AddDate(0, 0, 1)}, nil
	}

	w := Window{Start: day, End: day.AddDate(0, 0, 1)}
	if s.StartTime != "" {
		t, err := time.Parse(TimeLayout, s.StartTime)
		if err != nil {
			return Window{}, fmt.Errorf("parse start time %q: %w", s.StartTime, err)
		}
		w.Start = day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
	}
	if s.EndTime != "" {
		t, err := time.Parse(TimeLayout, s.EndTime)
		if err != nil {
			return Window{}, fmt.Errorf("parse end time %q: %w", s.EndTime, err)
		}
		w.End = day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
	}
	return w, nil
}

// LastDate is the last calendar day the schedule touches.
func (s Schedule) LastDate() string {
	if s.ReservationType.IsRange() && s.EndDate != "" {
		return s.EndDate
	}
	return s.Date
}

// TimeRange renders "09:00 - 11:00", "09:00" or "" for display.
func (s Schedule) TimeRange() string {
	switch {
	case s.StartTime != "" && s.EndTime != "":
		return s.StartTime + " - " + s.EndTime
	default:
		return s.StartTime
	}
}
