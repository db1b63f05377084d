package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salonbook/internal/config"
)

// SyncStats summarizes a salon sync.
type SyncStats struct {
	Branches    int
	Services    int
	Resources   int
	Windows     int
	Deactivated int
}

// SyncSalon applies the salon configuration to the database in one transaction.
// It upserts branches, services and staff, replaces each staff member's skills
// and windows, and marks rows missing from the configuration inactive.
// Bookings are never touched.
func (db *DB) SyncSalon(ctx context.Context, cat config.Catalog) (SyncStats, error) {
	var stats SyncStats
	now := db.now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seenBranches := make([]int64, 0, len(cat.Branches))
	for _, b := range cat.Branches {
		// Preserve created_at if the branch already exists.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO branches (id, name, address, contact, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				address = excluded.address,
				contact = excluded.contact,
				is_active = 1,
				updated_at = excluded.updated_at`,
			b.ID, b.Name, b.Address, b.Contact, now, now,
		)
		if err != nil {
			return stats, fmt.Errorf("sync branch %d: %w", b.ID, err)
		}
		seenBranches = append(seenBranches, b.ID)
	}
	stats.Branches = len(seenBranches)

	seenServices := make([]int64, 0, len(cat.Services))
	for _, s := range cat.Services {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO services (id, name, duration_minutes, price, category, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				duration_minutes = excluded.duration_minutes,
				price = excluded.price,
				category = excluded.category,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			s.ID, s.Name, s.Duration, s.Price, s.Category, s.IsActive, now, now,
		)
		if err != nil {
			return stats, fmt.Errorf("sync service %d: %w", s.ID, err)
		}
		seenServices = append(seenServices, s.ID)
	}
	stats.Services = len(seenServices)

	seenResources := make([]int64, 0, len(cat.Resources))
	for _, r := range cat.Resources {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO resources (id, name, email, branch_id, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				email = excluded.email,
				branch_id = excluded.branch_id,
				is_active = 1,
				updated_at = excluded.updated_at`,
			r.ID, r.Name, r.Email, nullInt64(r.BranchID), now, now,
		)
		if err != nil {
			return stats, fmt.Errorf("sync resource %d: %w", r.ID, err)
		}
		seenResources = append(seenResources, r.ID)

		if _, err := tx.ExecContext(ctx, `DELETE FROM resource_skills WHERE resource_id = ?`, r.ID); err != nil {
			return stats, fmt.Errorf("clear skills of resource %d: %w", r.ID, err)
		}
		for _, sid := range cat.Skills[r.ID] {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO resource_skills (resource_id, service_id) VALUES (?, ?)`, r.ID, sid,
			); err != nil {
				return stats, fmt.Errorf("sync skill %d of resource %d: %w", sid, r.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM availability_windows WHERE resource_id = ?`, r.ID); err != nil {
			return stats, fmt.Errorf("clear windows of resource %d: %w", r.ID, err)
		}
	}
	stats.Resources = len(seenResources)

	for _, w := range cat.Windows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO availability_windows (resource_id, day_of_week, start_minute, end_minute)
			VALUES (?, ?, ?, ?)`,
			w.ResourceID, int(w.Weekday), w.Start, w.End,
		); err != nil {
			return stats, fmt.Errorf("sync window of resource %d: %w", w.ResourceID, err)
		}
		stats.Windows++
	}

	// Deactivate rows that disappeared from config.
	for _, t := range []struct {
		table string
		seen  []int64
	}{
		{"branches", seenBranches},
		{"services", seenServices},
		{"resources", seenResources},
	} {
		n, err := deactivateMissing(ctx, tx, t.table, t.seen, now)
		if err != nil {
			return stats, err
		}
		stats.Deactivated += n
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit sync: %w", err)
	}

	db.logger.Info().
		Int("branches", stats.Branches).
		Int("services", stats.Services).
		Int("resources", stats.Resources).
		Int("windows", stats.Windows).
		Int("deactivated", stats.Deactivated).
		Msg("Salon configuration synced")
	return stats, nil
}

func deactivateMissing(ctx context.Context, tx *sql.Tx, table string, seen []int64, now time.Time) (int, error) {
	query := fmt.Sprintf(`UPDATE %s SET is_active = 0, updated_at = ? WHERE is_active = 1`, table)
	args := []any{now}
	if len(seen) > 0 {
		query += fmt.Sprintf(` AND id NOT IN (%s)`, placeholders(len(seen)))
		args = append(args, int64Args(seen)...)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
