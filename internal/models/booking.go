package models

import "time"

// BookingStatus is the lifecycle status of an appointment.
type BookingStatus string

const (
	StatusScheduled  BookingStatus = "SCHEDULED"
	StatusConfirmed  BookingStatus = "CONFIRMED"
	StatusInProgress BookingStatus = "IN_PROGRESS"
	StatusCompleted  BookingStatus = "COMPLETED"
	StatusCancelled  BookingStatus = "CANCELLED"
	StatusNoShow     BookingStatus = "NO_SHOW"
)

// ActiveStatuses are the statuses that occupy a resource's calendar.
var ActiveStatuses = []BookingStatus{StatusScheduled, StatusConfirmed, StatusInProgress}

// IsActive reports whether a booking in this status blocks availability.
func (s BookingStatus) IsActive() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Booking is an appointment of one resource for one contiguous block on one date.
// Start and End are minutes from midnight, End exclusive.
type Booking struct {
	ID            int64         `json:"id"`
	ResourceID    int64         `json:"beautician_id"`
	BranchID      *int64        `json:"branch_id,omitempty"`
	CustomerID    *int64        `json:"customer_id,omitempty"`
	Date          time.Time     `json:"date"`
	Start         int           `json:"start"`
	End           int           `json:"end"`
	Status        BookingStatus `json:"status"`
	ServiceIDs    []int64       `json:"service_ids,omitempty"`
	ReceiptNumber string        `json:"receipt_number,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Duration returns the booked length in minutes.
func (b *Booking) Duration() int {
	return b.End - b.Start
}

// Overlaps reports whether the booking intersects [start, end).
// Both intervals are half-open, so touching edges do not overlap.
func (b *Booking) Overlaps(start, end int) bool {
	return b.Start < end && b.End > start
}
