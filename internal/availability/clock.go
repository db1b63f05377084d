package availability

import (
	"time"

	"salonbook/internal/slots"
)

// Clock supplies "today" as a wall-clock date.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the process clock in Location (time.Local when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() time.Time {
	now := time.Now()
	if c.Location != nil {
		now = now.In(c.Location)
	}
	return slots.DateOnly(now)
}

// FixedClock always reports the same date. Used in tests.
type FixedClock struct {
	Date time.Time
}

func (c FixedClock) Today() time.Time {
	return slots.DateOnly(c.Date)
}
