package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salonbook/internal/models"
)

// WindowsFor returns a resource's windows on weekday ordered by start.
func (db *DB) WindowsFor(ctx context.Context, resourceID int64, weekday time.Weekday) ([]models.Window, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT w.resource_id, w.day_of_week, w.start_minute, w.end_minute
		FROM availability_windows w
		JOIN resources r ON r.id = w.resource_id AND r.is_active = 1
		WHERE w.resource_id = ? AND w.day_of_week = ?
		ORDER BY w.start_minute`, resourceID, int(weekday))
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}
	defer rows.Close()

	var out []models.Window
	for rows.Next() {
		var (
			w   models.Window
			day int
		)
		if err := rows.Scan(&w.ResourceID, &day, &w.Start, &w.End); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		w.Weekday = time.Weekday(day)
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListResources returns active resources ordered by id.
func (db *DB) ListResources(ctx context.Context) ([]models.Resource, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, COALESCE(email, ''), branch_id
		FROM resources WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	var out []models.Resource
	for rows.Next() {
		var (
			r      models.Resource
			branch sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &branch); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		r.BranchID = ptrInt64(branch)
		out = append(out, r)
	}
	return out, rows.Err()
}
