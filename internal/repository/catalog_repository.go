package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CatalogRepo reads venues, tables (resources) and time slots.  It only
// answers existence, ownership and capacity questions; managing the
// catalog is done elsewhere.
type CatalogRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewCatalogRepo returns a CatalogRepo bound to db.  A non-positive timeout
// selects DefaultQueryTimeout.
func NewCatalogRepo(db *sql.DB, timeout time.Duration) *CatalogRepo {
	return &CatalogRepo{db: db, timeout: timeout}
}

// ActiveVenueIDs returns the ids among ids that are active venues.
func (r *CatalogRepo) ActiveVenueIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT id FROM venues WHERE active = 1 AND id IN (` + placeholders(len(ids)) + `)`
	return r.queryIDs(ctx, q, idArgs(ids)...)
}

// ActiveResourceIDs returns the ids among ids that are active tables of venueID.
func (r *CatalogRepo) ActiveResourceIDs(ctx context.Context, venueID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT id FROM resources WHERE active = 1 AND venue_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := append([]interface{}{venueID.String()}, idArgs(ids)...)
	return r.queryIDs(ctx, q, args...)
}

// ActiveSlotIDs returns the ids among ids that are active slots of venueID.
func (r *CatalogRepo) ActiveSlotIDs(ctx context.Context, venueID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT id FROM slots WHERE active = 1 AND venue_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := append([]interface{}{venueID.String()}, idArgs(ids)...)
	return r.queryIDs(ctx, q, args...)
}

// SumCapacity totals the capacity of the given tables.  Unknown ids add
// nothing.
func (r *CatalogRepo) SumCapacity(ctx context.Context, resourceIDs []uuid.UUID) (int, error) {
	if len(resourceIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	q := `SELECT COALESCE(SUM(capacity), 0) FROM resources WHERE id IN (` + placeholders(len(resourceIDs)) + `)`
	var total int
	if err := r.db.QueryRowContext(ctx, q, idArgs(resourceIDs)...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum capacity: %w", err)
	}
	return total, nil
}

func (r *CatalogRepo) queryIDs(ctx context.Context, q string, args ...interface{}) ([]uuid.UUID, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
