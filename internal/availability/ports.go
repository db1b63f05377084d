package availability

import (
	"context"
	"time"

	"salonbook/internal/matching"
	"salonbook/internal/models"
	"salonbook/internal/slots"
)

// ServiceCatalog resolves service durations. DurationOf returns an error
// wrapping ErrNotFound for unknown services.
type ServiceCatalog interface {
	DurationOf(ctx context.Context, serviceID int64) (int, error)
}

// SkillRegistry answers coverage questions about resources and services.
type SkillRegistry interface {
	matching.SkillRegistry
	Covers(ctx context.Context, resourceID int64, serviceIDs []int64) (bool, error)
}

// WindowProvider returns a resource's weekly windows for one weekday,
// ordered by start.
type WindowProvider interface {
	WindowsFor(ctx context.Context, resourceID int64, weekday time.Weekday) ([]models.Window, error)
}

// BookingRepository reads active bookings.
type BookingRepository interface {
	slots.BookingSource
}

// ResourceDirectory looks up resources and branches.
type ResourceDirectory interface {
	matching.ResourceDirectory
	BranchExists(ctx context.Context, id int64) (bool, error)
}

// Observer receives the outcome of every engine query.
type Observer interface {
	ObserveQuery(operation, outcome string, elapsed time.Duration)
}
