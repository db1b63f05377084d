package slots

import (
	"cmp"
	"slices"

	"salonbook/internal/models"
)

// FreeBlocks subtracts active bookings from the window [start, end) and
// returns the remaining intervals in ascending order. Inactive bookings are
// ignored. Blocks are never merged across windows; call once per window.
func FreeBlocks(start, end int, bookings []models.Booking) []models.FreeBlock {
	if end <= start {
		return nil
	}

	ordered := bookings
	if !slices.IsSortedFunc(ordered, byStart) {
		ordered = slices.Clone(bookings)
		slices.SortStableFunc(ordered, byStart)
	}

	var blocks []models.FreeBlock
	emit := func(from, to int) {
		if to > from {
			blocks = append(blocks, models.FreeBlock{Start: from, End: to, Duration: to - from})
		}
	}

	cursor := start
	for i := range ordered {
		b := &ordered[i]
		if !b.Status.IsActive() {
			continue
		}
		if b.End <= cursor || b.Start >= end {
			continue
		}
		if b.Start > cursor {
			emit(cursor, min(b.Start, end))
		}
		cursor = max(cursor, b.End)
		if cursor >= end {
			break
		}
	}
	if cursor < end {
		emit(cursor, end)
	}

	return blocks
}

// WindowBlocks computes free blocks for every window, flattened, keeping
// blocks of at least minDuration minutes, sorted by start.
func WindowBlocks(windows []models.Window, bookings []models.Booking, minDuration int) []models.FreeBlock {
	var all []models.FreeBlock
	for _, w := range windows {
		for _, b := range FreeBlocks(w.Start, w.End, bookings) {
			if b.Duration >= minDuration {
				all = append(all, b)
			}
		}
	}
	slices.SortStableFunc(all, func(a, b models.FreeBlock) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return all
}

func byStart(a, b models.Booking) int {
	return cmp.Compare(a.Start, b.Start)
}
