package api

import (
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/models"
	"salonbook/internal/slots"
)

// ServicesRequest is the body of the find-best and available-beauticians
// endpoints.
type ServicesRequest struct {
	ServiceIDs []int64 `json:"service_ids"`
	Date       string  `json:"date"` // Format: YYYY-MM-DD
	BranchID   *int64  `json:"branch_id,omitempty"`
}

// ValidateRequest is the body of POST /appointment-services/validate-booking.
type ValidateRequest struct {
	ServiceIDs   []int64 `json:"service_ids"`
	Date         string  `json:"date"`
	BranchID     *int64  `json:"branch_id,omitempty"`
	BeauticianID *int64  `json:"beautician_id,omitempty"`
}

// ValidateResponse mirrors availability.ValidationResult with plain messages.
type ValidateResponse struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// AppointmentRequest is the body of POST /appointments.
type AppointmentRequest struct {
	BeauticianID int64   `json:"beautician_id"`
	BranchID     *int64  `json:"branch_id,omitempty"`
	CustomerID   *int64  `json:"customer_id,omitempty"`
	ServiceIDs   []int64 `json:"service_ids"`
	Date         string  `json:"date"`
	Start        string  `json:"start"` // Format: HH:MM
}

// StatusRequest is the body of PUT /appointments/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// Slot is a candidate slot with wall-clock times.
type Slot struct {
	BeauticianID    int64  `json:"beautician_id"`
	Date            string `json:"date"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
}

// BestMatch is the response of find-best-beautician.
type BestMatch struct {
	BeauticianID int64 `json:"beautician_id"`
	Slot         Slot  `json:"slot"`
}

// Beautician is one entry of available-beauticians.
type Beautician struct {
	BeauticianID int64  `json:"beautician_id"`
	Name         string `json:"name"`
	Slots        []Slot `json:"slots"`
	SlotCount    int    `json:"slot_count"`
}

// AvailableBeauticians is the response of available-beauticians.
type AvailableBeauticians struct {
	Date                 string       `json:"date"`
	AvailableBeauticians []Beautician `json:"available_beauticians"`
	Count                int          `json:"count"`
}

// Appointment is a booking as returned by the appointments endpoints.
type Appointment struct {
	ID            int64     `json:"id"`
	BeauticianID  int64     `json:"beautician_id"`
	BranchID      *int64    `json:"branch_id,omitempty"`
	CustomerID    *int64    `json:"customer_id,omitempty"`
	ServiceIDs    []int64   `json:"service_ids"`
	Date          string    `json:"date"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	Status        string    `json:"status"`
	ReceiptNumber string    `json:"receipt_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toSlot(s models.CandidateSlot) Slot {
	return Slot{
		BeauticianID:    s.ResourceID,
		Date:            s.Date.Format(slots.DateLayout),
		Start:           slots.FormatClock(s.Start),
		End:             slots.FormatClock(s.End),
		DurationMinutes: s.Duration,
	}
}

func toSlots(in []models.CandidateSlot) []Slot {
	out := make([]Slot, 0, len(in))
	for _, s := range in {
		out = append(out, toSlot(s))
	}
	return out
}

func toBeauticians(in []availability.ResourceAvailability) []Beautician {
	out := make([]Beautician, 0, len(in))
	for _, r := range in {
		out = append(out, Beautician{
			BeauticianID: r.ResourceID,
			Name:         r.Name,
			Slots:        toSlots(r.Slots),
			SlotCount:    r.SlotCount,
		})
	}
	return out
}

func toAppointment(b *models.Booking) Appointment {
	ids := b.ServiceIDs
	if ids == nil {
		ids = []int64{}
	}
	return Appointment{
		ID:            b.ID,
		BeauticianID:  b.ResourceID,
		BranchID:      b.BranchID,
		CustomerID:    b.CustomerID,
		ServiceIDs:    ids,
		Date:          b.Date.Format(slots.DateLayout),
		Start:         slots.FormatClock(b.Start),
		End:           slots.FormatClock(b.End),
		Status:        string(b.Status),
		ReceiptNumber: b.ReceiptNumber,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}
