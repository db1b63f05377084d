package slots

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/models"
)

// BookingSource returns the active bookings of a resource on a date.
type BookingSource interface {
	ActiveBookingsFor(ctx context.Context, resourceID int64, date time.Time) ([]models.Booking, error)
}

// NoConflict reports whether [start, end) overlaps none of the active bookings.
func NoConflict(start, end int, bookings []models.Booking) bool {
	for i := range bookings {
		b := &bookings[i]
		if b.Status.IsActive() && b.Overlaps(start, end) {
			return false
		}
	}
	return true
}

// ConflictChecker re-validates slots against a fresh read of bookings.
type ConflictChecker struct {
	source BookingSource
}

// NewConflictChecker creates a checker reading from source.
func NewConflictChecker(source BookingSource) *ConflictChecker {
	return &ConflictChecker{source: source}
}

// Check reads the resource's bookings and reports whether slot is still free.
func (c *ConflictChecker) Check(ctx context.Context, slot models.CandidateSlot) (bool, error) {
	bookings, err := c.source.ActiveBookingsFor(ctx, slot.ResourceID, slot.Date)
	if err != nil {
		return false, fmt.Errorf("read bookings: %w", err)
	}
	return NoConflict(slot.Start, slot.End, bookings), nil
}

// Filter drops slots that conflict with bookings, using one read for all of them.
func (c *ConflictChecker) Filter(ctx context.Context, resourceID int64, date time.Time, candidates []models.CandidateSlot) ([]models.CandidateSlot, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	bookings, err := c.source.ActiveBookingsFor(ctx, resourceID, date)
	if err != nil {
		return nil, fmt.Errorf("read bookings: %w", err)
	}

	kept := candidates[:0:0]
	for _, s := range candidates {
		if NoConflict(s.Start, s.End, bookings) {
			kept = append(kept, s)
		}
	}
	return kept, nil
}
