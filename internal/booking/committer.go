package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salonbook/internal/availability"
	"salonbook/internal/events"
	"salonbook/internal/models"
	"salonbook/internal/slots"
)

// Repository persists bookings.
type Repository interface {
	availability.BookingRepository
	CreateBooking(ctx context.Context, b *models.Booking) (int64, error)
	// GetBooking returns nil, nil when the booking does not exist.
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error
}

// Recorder counts commit outcomes.
type Recorder interface {
	ObserveCommit(outcome string)
}

// Request asks for one resource at one start time.
type Request struct {
	ResourceID int64     `json:"beautician_id"`
	BranchID   *int64    `json:"branch_id,omitempty"`
	CustomerID *int64    `json:"customer_id,omitempty"`
	ServiceIDs []int64   `json:"service_ids"`
	Date       time.Time `json:"date"`
	Start      int       `json:"start"`
}

// Committer turns requests into bookings. Commits for the same resource and
// date are serialized and re-checked against a fresh read of bookings.
type Committer struct {
	engine   *availability.Engine
	windows  availability.WindowProvider
	repo     Repository
	locker   Locker
	bus      *events.EventBus
	recorder Recorder
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewCommitter creates a new committer.
func NewCommitter(
	engine *availability.Engine,
	windows availability.WindowProvider,
	repo Repository,
	locker Locker,
	bus *events.EventBus,
	logger *zerolog.Logger,
) *Committer {
	return &Committer{
		engine:  engine,
		windows: windows,
		repo:    repo,
		locker:  locker,
		bus:     bus,
		logger:  logger,
		now:     time.Now,
	}
}

// WithRecorder attaches a commit outcome recorder.
func (c *Committer) WithRecorder(r Recorder) *Committer {
	c.recorder = r
	return c
}

// Commit books req or explains why it cannot be booked.
func (c *Committer) Commit(ctx context.Context, req Request) (b *models.Booking, err error) {
	defer func() { c.record(err) }()

	if req.ResourceID <= 0 {
		return nil, fmt.Errorf("%w: beautician_id is required", availability.ErrInvalidInput)
	}
	if req.Start < 0 || req.Start >= slots.MinutesPerDay {
		return nil, fmt.Errorf("%w: start %d is outside the day", availability.ErrInvalidInput, req.Start)
	}

	rid := req.ResourceID
	res, err := c.engine.ValidateBookingRequest(ctx, availability.BookingRequest{
		ServiceIDs: req.ServiceIDs,
		Date:       req.Date,
		BranchID:   req.BranchID,
		ResourceID: &rid,
	})
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, res.Err()
	}

	total, err := c.engine.TotalDuration(ctx, req.ServiceIDs)
	if err != nil {
		return nil, err
	}

	date := slots.DateOnly(req.Date)
	b = &models.Booking{
		ResourceID:    req.ResourceID,
		BranchID:      req.BranchID,
		CustomerID:    req.CustomerID,
		Date:          date,
		Start:         req.Start,
		End:           req.Start + total,
		Status:        models.StatusScheduled,
		ServiceIDs:    req.ServiceIDs,
		ReceiptNumber: uuid.NewString(),
	}

	if err := c.insertSerialized(ctx, b); err != nil {
		return nil, err
	}

	c.logger.Info().
		Int64("booking_id", b.ID).
		Int64("resource_id", b.ResourceID).
		Str("date", date.Format(slots.DateLayout)).
		Str("start", slots.FormatClock(b.Start)).
		Str("end", slots.FormatClock(b.End)).
		Msg("booking created")
	c.publish(events.BookingCreated, b)
	return b, nil
}

func (c *Committer) insertSerialized(ctx context.Context, b *models.Booking) error {
	unlock, err := c.locker.Lock(ctx, LockKey(b.ResourceID, b.Date))
	if err != nil {
		return err
	}
	defer unlock()

	if err := c.recheck(ctx, b); err != nil {
		return err
	}

	now := c.now()
	b.CreatedAt, b.UpdatedAt = now, now
	id, err := c.repo.CreateBooking(ctx, b)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	b.ID = id
	return nil
}

// recheck must run while the lock for b's resource and date is held.
func (c *Committer) recheck(ctx context.Context, b *models.Booking) error {
	windows, err := c.windows.WindowsFor(ctx, b.ResourceID, b.Date.Weekday())
	if err != nil {
		return fmt.Errorf("windows of resource %d: %w", b.ResourceID, err)
	}
	inside := false
	for _, w := range windows {
		if b.Start >= w.Start && b.End <= w.End {
			inside = true
			break
		}
	}
	if !inside {
		return fmt.Errorf("%w: %s-%s is outside working hours of resource %d",
			availability.ErrNoAvailability, slots.FormatClock(b.Start), slots.FormatClock(b.End), b.ResourceID)
	}

	bookings, err := c.repo.ActiveBookingsFor(ctx, b.ResourceID, b.Date)
	if err != nil {
		return fmt.Errorf("bookings of resource %d: %w", b.ResourceID, err)
	}
	if !slots.NoConflict(b.Start, b.End, bookings) {
		return fmt.Errorf("%w: resource %d at %s-%s",
			availability.ErrConflictDetected, b.ResourceID, slots.FormatClock(b.Start), slots.FormatClock(b.End))
	}
	return nil
}

// SetStatus moves a booking to status. Reactivating a finished or cancelled
// booking goes through the same serialized re-check as a new commit.
func (c *Committer) SetStatus(ctx context.Context, id int64, status models.BookingStatus) (*models.Booking, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", availability.ErrInvalidInput, status)
	}

	b, err := c.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: booking %d", availability.ErrNotFound, id)
	}
	if b.Status == status {
		return b, nil
	}

	if !b.Status.IsActive() && status.IsActive() {
		unlock, err := c.locker.Lock(ctx, LockKey(b.ResourceID, b.Date))
		if err != nil {
			return nil, err
		}
		defer unlock()
		if err := c.recheck(ctx, b); err != nil {
			return nil, err
		}
	}

	if err := c.repo.UpdateBookingStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update booking %d: %w", id, err)
	}

	previous := b.Status
	b.Status = status
	b.UpdatedAt = c.now()
	c.logger.Info().
		Int64("booking_id", id).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("booking status changed")
	c.publish(events.BookingStatusChanged, b)
	return b, nil
}

func (c *Committer) publish(eventType string, b *models.Booking) {
	if c.bus == nil {
		return
	}
	if err := c.bus.PublishJSON(eventType, b); err != nil {
		c.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func (c *Committer) record(err error) {
	if c.recorder == nil {
		return
	}
	switch {
	case err == nil:
		c.recorder.ObserveCommit("created")
	case errors.Is(err, availability.ErrConflictDetected):
		c.recorder.ObserveCommit("conflict")
	case availability.KindOf(err) == availability.KindInternal:
		c.recorder.ObserveCommit("error")
	default:
		c.recorder.ObserveCommit("rejected")
	}
}
