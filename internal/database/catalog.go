package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"salonbook/internal/availability"
	"salonbook/internal/matching"
	"salonbook/internal/models"
)

// DurationOf returns the duration of an active service.
func (db *DB) DurationOf(ctx context.Context, serviceID int64) (int, error) {
	var d int
	err := db.QueryRowContext(ctx,
		`SELECT duration_minutes FROM services WHERE id = ? AND is_active = 1`, serviceID,
	).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("service %d: %w", serviceID, availability.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query service %d: %w", serviceID, err)
	}
	return d, nil
}

// ListServices returns active services ordered by id.
func (db *DB) ListServices(ctx context.Context) ([]models.Service, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, duration_minutes, price, COALESCE(category, ''), is_active
		FROM services WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	var out []models.Service
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Duration, &s.Price, &s.Category, &s.IsActive); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetResource returns an active resource, or nil when there is none with id.
func (db *DB) GetResource(ctx context.Context, id int64) (*models.Resource, error) {
	var (
		r      models.Resource
		branch sql.NullInt64
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(email, ''), branch_id
		FROM resources WHERE id = ? AND is_active = 1`, id,
	).Scan(&r.ID, &r.Name, &r.Email, &branch)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query resource %d: %w", id, err)
	}
	r.BranchID = ptrInt64(branch)
	return &r, nil
}

// BranchExists reports whether an active branch has the given id.
func (db *DB) BranchExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM branches WHERE id = ? AND is_active = 1`, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query branch %d: %w", id, err)
	}
	return n > 0, nil
}

// Covers reports whether the resource holds a skill for every service id.
func (db *DB) Covers(ctx context.Context, resourceID int64, serviceIDs []int64) (bool, error) {
	ids := matching.Normalize(serviceIDs)
	if len(ids) == 0 {
		return false, nil
	}

	args := append([]any{resourceID}, int64Args(ids)...)
	var n int
	err := db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(DISTINCT service_id) FROM resource_skills
		WHERE resource_id = ? AND service_id IN (%s)`, placeholders(len(ids))),
		args...,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query skills of resource %d: %w", resourceID, err)
	}
	return n == len(ids), nil
}

// ResourcesCovering returns active resources whose distinct matched skill
// count equals the number of distinct requested services, ordered by id.
func (db *DB) ResourcesCovering(ctx context.Context, serviceIDs []int64) ([]int64, error) {
	ids := matching.Normalize(serviceIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	args := append(int64Args(ids), len(ids))
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT s.resource_id
		FROM resource_skills s
		JOIN resources r ON r.id = s.resource_id AND r.is_active = 1
		WHERE s.service_id IN (%s)
		GROUP BY s.resource_id
		HAVING COUNT(DISTINCT s.service_id) = ?
		ORDER BY s.resource_id`, placeholders(len(ids))),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query covering resources: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan resource id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
