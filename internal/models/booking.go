package models

import "time"

type EquipmentBooking struct {
	ID            string      `json:"id"`
	OrderID       string      `json:"orderId"`
	EquipmentType ServiceType `json:"equipmentType"`
	EquipmentID   string      `json:"equipmentId"`
	Schedule
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EquipmentKey identifies a bookable unit. Ids are only unique per type.
type EquipmentKey struct {
	Type ServiceType
	ID   string
}

func (b *EquipmentBooking) Key() EquipmentKey {
	return EquipmentKey{Type: b.EquipmentType, ID: b.EquipmentID}
}

// BookingFilter narrows ListBookings. Zero values mean "any".
type BookingFilter struct {
	EquipmentType ServiceType
	EquipmentID   string
	Date          string
	From          string
	To            string
	Status        string
}

func (f BookingFilter) IsEmpty() bool {
	return f.EquipmentType == "" && f.EquipmentID == "" && f.Date == "" &&
		f.From == "" && f.To == "" && f.Status == ""
}

// AvailabilityRequest is a window probe against one equipment unit.
type AvailabilityRequest struct {
	EquipmentType ServiceType `json:"equipmentType"`
	EquipmentID   string      `json:"equipmentId"`
	Schedule
}

type AvailabilityResult struct {
	Available bool                `json:"available"`
	Conflicts []*EquipmentBooking `json:"conflicts"`
}

// OverlappingBookings returns the bookings from existing whose window
// intersects w. Bookings that are not active, or whose window cannot be
// computed, are skipped.
func OverlappingBookings(w Window, existing []*EquipmentBooking) []*EquipmentBooking {
	var conflicts []*EquipmentBooking
	for _, b := range existing {
		if b.Status != BookingStatusActive {
			continue
		}
		bw, err := b.Schedule.Window()
		if err != nil {
			continue
		}
		if w.Overlaps(bw) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts
}
