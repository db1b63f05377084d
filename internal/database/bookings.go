package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/models"
	"salonbook/internal/slots"
)

const bookingColumns = `id, resource_id, branch_id, customer_id, date, start_minute, end_minute,
	status, receipt_number, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b        models.Booking
		branch   sql.NullInt64
		customer sql.NullInt64
		date     string
		status   string
		receipt  sql.NullString
	)
	if err := row.Scan(&b.ID, &b.ResourceID, &branch, &customer, &date, &b.Start, &b.End,
		&status, &receipt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}

	d, err := slots.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("booking %d: %w", b.ID, err)
	}
	b.Date = d
	b.BranchID = ptrInt64(branch)
	b.CustomerID = ptrInt64(customer)
	b.Status = models.BookingStatus(status)
	b.ReceiptNumber = receipt.String
	return &b, nil
}

// ActiveBookingsFor returns the active bookings of a resource on date ordered by start.
func (db *DB) ActiveBookingsFor(ctx context.Context, resourceID int64, date time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE resource_id = ? AND date = ? AND status IN (?, ?, ?)
		ORDER BY start_minute, id`,
		resourceID, date.Format(slots.DateLayout),
		string(models.StatusScheduled), string(models.StatusConfirmed), string(models.StatusInProgress),
	)
	if err != nil {
		return nil, fmt.Errorf("query active bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ListBookingsOn returns every booking on date, ordered by resource and start.
func (db *DB) ListBookingsOn(ctx context.Context, date time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings WHERE date = ?
		ORDER BY resource_id, start_minute, id`, date.Format(slots.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// CreateBooking inserts b with its services and returns the new id.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created, updated := b.CreatedAt, b.UpdatedAt
	if created.IsZero() {
		created = db.now()
	}
	if updated.IsZero() {
		updated = created
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (resource_id, branch_id, customer_id, date, start_minute, end_minute,
			status, receipt_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ResourceID, nullInt64(b.BranchID), nullInt64(b.CustomerID), b.Date.Format(slots.DateLayout),
		b.Start, b.End, string(b.Status), sql.NullString{String: b.ReceiptNumber, Valid: b.ReceiptNumber != ""},
		created, updated,
	)
	if err != nil {
		return 0, fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	for i, sid := range b.ServiceIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO booking_services (booking_id, service_id, position) VALUES (?, ?, ?)`,
			id, sid, i,
		); err != nil {
			return 0, fmt.Errorf("insert booking service %d: %w", sid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit booking: %w", err)
	}
	return id, nil
}

// GetBooking returns a booking with its services, or nil when it does not exist.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query booking %d: %w", id, err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT service_id FROM booking_services WHERE booking_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query booking services: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sid int64
		if err := rows.Scan(&sid); err != nil {
			return nil, fmt.Errorf("scan booking service: %w", err)
		}
		b.ServiceIDs = append(b.ServiceIDs, sid)
	}
	return b, rows.Err()
}

// UpdateBookingStatus sets the status of a booking.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), db.now(), id,
	)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("booking %d: %w", id, availability.ErrNotFound)
	}
	return nil
}
