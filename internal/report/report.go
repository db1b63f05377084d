package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/models"
	"salonbook/internal/slots"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AvailabilityLister lists resources with free slots.
type AvailabilityLister interface {
	ListAvailableResources(ctx context.Context, serviceIDs []int64, date time.Time, branchID *int64) ([]availability.ResourceAvailability, error)
}

// BookingLister lists the bookings of a day.
type BookingLister interface {
	ListBookingsOn(ctx context.Context, date time.Time) ([]models.Booking, error)
}

// Request selects what the report covers.
type Request struct {
	ServiceIDs []int64
	Date       time.Time
	BranchID   *int64
}

// Builder renders availability workbooks.
type Builder struct {
	lister   AvailabilityLister
	bookings BookingLister
}

func NewBuilder(lister AvailabilityLister, bookings BookingLister) *Builder {
	return &Builder{lister: lister, bookings: bookings}
}

// Build writes a workbook with one row per free slot and, when a booking
// lister is configured, a second sheet with the day's bookings.
func (b *Builder) Build(ctx context.Context, out io.Writer, req Request) error {
	list, err := b.lister.ListAvailableResources(ctx, req.ServiceIDs, req.Date, req.BranchID)
	if err != nil {
		return err
	}

	w := newSheetWriter()
	defer w.close()

	if err := w.addSheet("Availability"); err != nil {
		return err
	}
	if err := w.header("Beautician ID", "Name", "Date", "Start", "End", "Duration (min)", "Slots that day"); err != nil {
		return err
	}
	day := slots.DateOnly(req.Date).Format(slots.DateLayout)
	for _, r := range list {
		for _, s := range r.Slots {
			if err := w.write(r.ResourceID, r.Name, day,
				slots.FormatClock(s.Start), slots.FormatClock(s.End), s.Duration, r.SlotCount); err != nil {
				return err
			}
		}
	}

	if b.bookings != nil {
		bookings, err := b.bookings.ListBookingsOn(ctx, slots.DateOnly(req.Date))
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		if err := w.addSheet("Bookings"); err != nil {
			return err
		}
		if err := w.header("Booking ID", "Beautician ID", "Start", "End", "Length", "Status", "Receipt"); err != nil {
			return err
		}
		for _, bk := range bookings {
			if err := w.write(bk.ID, bk.ResourceID, slots.FormatClock(bk.Start), slots.FormatClock(bk.End),
				slots.FormatDuration(bk.Duration()), string(bk.Status), bk.ReceiptNumber); err != nil {
				return err
			}
		}
	}

	return w.save(out)
}
