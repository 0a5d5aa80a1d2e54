package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timed(date, from, to string) *EquipmentBooking {
	return &EquipmentBooking{
		Status:   BookingStatusActive,
		Schedule: Schedule{Date: date, StartTime: from, EndTime: to, ReservationType: ReservationTime},
	}
}

func ranged(from, to string) *EquipmentBooking {
	return &EquipmentBooking{
		Status:   BookingStatusActive,
		Schedule: Schedule{Date: from, EndDate: to, ReservationType: ReservationDays},
	}
}

func window(t *testing.T, s Schedule) Window {
	t.Helper()
	n, err := s.Normalize()
	require.NoError(t, err)
	w, err := n.Window()
	require.NoError(t, err)
	return w
}

func TestSchedule_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		in      Schedule
		want    Schedule
		wantErr string
	}{
		{
			name: "time default",
			in:   Schedule{Date: "2025-07-01", StartTime: "09:00", EndTime: "11:00"},
			want: Schedule{Date: "2025-07-01", StartTime: "09:00", EndTime: "11:00", ReservationType: ReservationTime},
		},
		{
			name: "days inferred from end date",
			in:   Schedule{Date: "2025-06-01", EndDate: "2025-06-03"},
			want: Schedule{Date: "2025-06-01", EndDate: "2025-06-03", ReservationType: ReservationDays},
		},
		{
			name: "same end date stays time",
			in:   Schedule{Date: "2025-06-01", EndDate: "2025-06-01", StartTime: "08:00"},
			want: Schedule{Date: "2025-06-01", StartTime: "08:00", ReservationType: ReservationTime},
		},
		{
			name: "weeks default end",
			in:   Schedule{Date: "2025-06-02", ReservationType: ReservationWeeks},
			want: Schedule{Date: "2025-06-02", EndDate: "2025-06-08", ReservationType: ReservationWeeks},
		},
		{
			name: "months default end",
			in:   Schedule{Date: "2025-01-15", ReservationType: ReservationMonths},
			want: Schedule{Date: "2025-01-15", EndDate: "2025-02-14", ReservationType: ReservationMonths},
		},
		{
			name: "days without end date",
			in:   Schedule{Date: "2025-06-01", ReservationType: ReservationDays},
			want: Schedule{Date: "2025-06-01", EndDate: "2025-06-01", ReservationType: ReservationDays},
		},
		{
			name: "one digit hours padded",
			in:   Schedule{Date: "2025-07-01", StartTime: "9:00", EndTime: "9:30"},
			want: Schedule{Date: "2025-07-01", StartTime: "09:00", EndTime: "09:30", ReservationType: ReservationTime},
		},
		{
			name: "range start time padded",
			in:   Schedule{Date: "2025-07-01", EndDate: "2025-07-03", StartTime: "7:30"},
			want: Schedule{Date: "2025-07-01", EndDate: "2025-07-03", StartTime: "07:30", ReservationType: ReservationDays},
		},
		{name: "bad date", in: Schedule{Date: "01.06.2025", StartTime: "09:00"}, wantErr: "date"},
		{name: "missing start time", in: Schedule{Date: "2025-06-01"}, wantErr: "startTime"},
		{name: "end before start", in: Schedule{Date: "2025-06-01", StartTime: "12:00", EndTime: "10:00"}, wantErr: "endTime"},
		{name: "equal times", in: Schedule{Date: "2025-06-01", StartTime: "10:00", EndTime: "10:00"}, wantErr: "endTime"},
		{
			name:    "end date before date",
			in:      Schedule{Date: "2025-06-05", EndDate: "2025-06-01", ReservationType: ReservationDays},
			wantErr: "endDate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr != "" {
				var se *ScheduleError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantErr, se.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWindow_TimeBoundaries(t *testing.T) {
	a := window(t, Schedule{Date: "2025-07-01", StartTime: "10:00", EndTime: "12:00"})
	b := window(t, Schedule{Date: "2025-07-01", StartTime: "12:00", EndTime: "14:00"})
	c := window(t, Schedule{Date: "2025-07-01", StartTime: "11:00", EndTime: "13:00"})
	other := window(t, Schedule{Date: "2025-07-02", StartTime: "10:00", EndTime: "12:00"})

	assert.False(t, a.Overlaps(b), "touching windows must not overlap")
	assert.False(t, b.Overlaps(a))
	assert.True(t, a.Overlaps(c))
	assert.True(t, c.Overlaps(b))
	assert.False(t, a.Overlaps(other))
}

func TestWindow_OpenEndTimeBlocksRestOfDay(t *testing.T) {
	open := window(t, Schedule{Date: "2025-07-01", StartTime: "15:00"})
	late := window(t, Schedule{Date: "2025-07-01", StartTime: "20:00", EndTime: "21:00"})
	early := window(t, Schedule{Date: "2025-07-01", StartTime: "08:00", EndTime: "15:00"})

	assert.True(t, open.Overlaps(late))
	assert.False(t, open.Overlaps(early))
}

func TestWindow_DateRanges(t *testing.T) {
	booked := window(t, Schedule{Date: "2025-06-01", EndDate: "2025-06-03", ReservationType: ReservationDays})
	shared := window(t, Schedule{Date: "2025-06-03", EndDate: "2025-06-05", ReservationType: ReservationDays})
	after := window(t, Schedule{Date: "2025-06-04", EndDate: "2025-06-06", ReservationType: ReservationDays})
	timedInside := window(t, Schedule{Date: "2025-06-02", StartTime: "09:00", EndTime: "10:00"})

	assert.True(t, booked.Overlaps(shared), "shared boundary day is a conflict")
	assert.False(t, booked.Overlaps(after))
	assert.True(t, booked.Overlaps(timedInside))
}

func TestOverlappingBookings(t *testing.T) {
	existing := []*EquipmentBooking{
		timed("2025-07-01", "10:00", "12:00"),
		ranged("2025-07-05", "2025-07-07"),
	}
	cancelled := timed("2025-07-01", "11:00", "12:00")
	cancelled.Status = BookingStatusCancelled
	existing = append(existing, cancelled)

	free := window(t, Schedule{Date: "2025-07-01", StartTime: "12:00", EndTime: "14:00"})
	assert.Empty(t, OverlappingBookings(free, existing))

	busy := window(t, Schedule{Date: "2025-07-01", StartTime: "11:00", EndTime: "13:00"})
	conflicts := OverlappingBookings(busy, existing)
	require.Len(t, conflicts, 1)
	assert.Same(t, existing[0], conflicts[0])
}

func TestServiceSelection(t *testing.T) {
	sel := ExcavatorSelection("TB145")
	assert.Equal(t, "TB145", sel.ExcavatorType())
	assert.Empty(t, sel.ContainerType())
	assert.Empty(t, sel.ConstructionType())
	assert.True(t, sel.Type.Bookable())
	assert.False(t, ServiceConstructions.Bookable())

	_, err := ParseServiceType("boats")
	assert.Error(t, err)
	st, err := ParseServiceType(" Containers ")
	require.NoError(t, err)
	assert.Equal(t, ServiceContainers, st)
}

func TestOrderSourcesFor(t *testing.T) {
	assert.ElementsMatch(t, []string{OrderStatusPending, OrderStatusInProgress}, OrderSourcesFor(OrderStatusCancelled))
	assert.Equal(t, []string{OrderStatusInProgress}, OrderSourcesFor(OrderStatusCompleted))
	assert.Empty(t, OrderSourcesFor(OrderStatusPending))
}

func TestLocation_IsEmpty(t *testing.T) {
	lat := 50.08
	assert.True(t, Location{}.IsEmpty())
	assert.True(t, Location{Latitude: &lat}.IsEmpty())
	assert.False(t, Location{City: "Praha"}.IsEmpty())
}
