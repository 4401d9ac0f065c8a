package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/model"
)

// ReservationRepo provides reads and transactional writes for reservations
// and their lines.  Tables held by a reservation are stored in the
// reservation_lines table, one row per (resource, slot) pair; the unique
// index uq_reservation_lines_active admits at most one active row per
// (resource, slot, date).  All timestamp fields are stored in UTC.
type ReservationRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB, timeout time.Duration) *ReservationRepo {
	return &ReservationRepo{db: db, timeout: timeout}
}

// FindActiveLines returns the pairs among pairs held by an active line on
// date, skipping lines of the excluded reservation.  Pairs missing from
// the result are free.
func (r *ReservationRepo) FindActiveLines(ctx context.Context, pairs []model.Pair, date model.Date, exclude *uuid.UUID) ([]model.Pair, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	q, args := activeLinesQuery(pairs, date, exclude)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find active lines: %w", err)
	}
	defer rows.Close()

	var out []model.Pair
	for rows.Next() {
		var p model.Pair
		if err := rows.Scan(&p.ResourceID, &p.SlotID); err != nil {
			return nil, fmt.Errorf("scan active line: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateReservation inserts r and its lines in one transaction.  When the
// active line index rejects a line the whole reservation is rolled back
// and ErrLineTaken is returned.
func (r *ReservationRepo) CreateReservation(ctx context.Context, res *model.Reservation) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.CreateTx(ctx, tx, res); err != nil {
			return err
		}
		return r.CreateLinesBulkTx(ctx, tx, res.Lines)
	})
}

// ApplyUpdate writes the reservation row and the line changes in one
// transaction.  Lines are released first, then moved to the new date,
// then inserted, so a pair kept across a date change only collides with
// other reservations.
func (r *ReservationRepo) ApplyUpdate(ctx context.Context, res *model.Reservation, lines model.LineChanges) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.UpdateTx(ctx, tx, res); err != nil {
			return err
		}
		if err := r.DeactivateLinesTx(ctx, tx, res.ID, lines.Deactivate); err != nil {
			return err
		}
		if lines.MoveTo != nil {
			if err := r.MoveLinesTx(ctx, tx, res.ID, *lines.MoveTo); err != nil {
				return err
			}
		}
		if len(lines.Insert) == 0 {
			return nil
		}
		now := res.UpdatedAt
		if now.IsZero() {
			now = time.Now().UTC()
		}
		recs := make([]model.ReservationLine, len(lines.Insert))
		for i, p := range lines.Insert {
			recs[i] = model.ReservationLine{
				ID:            uuid.New(),
				ReservationID: res.ID,
				ResourceID:    p.ResourceID,
				SlotID:        p.SlotID,
				Date:          res.Date,
				Active:        true,
				CreatedAt:     now,
			}
		}
		return r.CreateLinesBulkTx(ctx, tx, recs)
	})
}

// inTx runs fn inside a transaction and commits when it returns nil.
// Duplicate entries on the active line index become ErrLineTaken.
func (r *ReservationRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		if isLineTaken(err) {
			return ErrLineTaken
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		if isLineTaken(err) {
			return ErrLineTaken
		}
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// CreateTx inserts a reservation row within the scope of an existing
// transaction.  The caller must commit or rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
	             (id, requester_id, venue_id, party_size, date, note, status, active, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		res.ID.String(), res.RequesterID.String(), res.VenueID.String(), res.PartySize,
		res.Date, res.Note, string(res.Status), res.Active, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// CreateLinesBulkTx inserts multiple reservation_lines rows in a single
// statement.  Passing an empty slice has no effect and returns nil.
func (r *ReservationRepo) CreateLinesBulkTx(ctx context.Context, tx *sql.Tx, lines []model.ReservationLine) error {
	if len(lines) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_lines (id, reservation_id, resource_id, slot_id, date, active, created_at) VALUES `
	args := make([]interface{}, 0, len(lines)*7)
	for i, l := range lines {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?)"
		args = append(args, l.ID.String(), l.ReservationID.String(), l.ResourceID.String(), l.SlotID.String(), l.Date, l.Active, l.CreatedAt)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert reservation lines: %w", err)
	}
	return nil
}

// UpdateTx overwrites the mutable columns of a reservation.  It returns
// ErrNotFound when no row has the reservation's id.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `UPDATE reservations
	           SET venue_id = ?, party_size = ?, date = ?, note = ?, status = ?, active = ?, updated_at = ?
	           WHERE id = ?`
	result, err := tx.ExecContext(ctx, q,
		res.VenueID.String(), res.PartySize, res.Date, res.Note, string(res.Status), res.Active, res.UpdatedAt,
		res.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateLinesTx releases the given pairs of a reservation.  Inactive
// rows are kept for history.
func (r *ReservationRepo) DeactivateLinesTx(ctx context.Context, tx *sql.Tx, reservationID uuid.UUID, pairs []model.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	in, pairArgs := pairInClause("", pairs)
	q := `UPDATE reservation_lines SET active = 0 WHERE reservation_id = ? AND active = 1 AND ` + in
	args := append([]interface{}{reservationID.String()}, pairArgs...)
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("deactivate reservation lines: %w", err)
	}
	return nil
}

// MoveLinesTx changes the date of a reservation's active lines.
func (r *ReservationRepo) MoveLinesTx(ctx context.Context, tx *sql.Tx, reservationID uuid.UUID, date model.Date) error {
	const q = `UPDATE reservation_lines SET date = ? WHERE reservation_id = ? AND active = 1`
	if _, err := tx.ExecContext(ctx, q, date, reservationID.String()); err != nil {
		return fmt.Errorf("move reservation lines: %w", err)
	}
	return nil
}

const reservationColumns = `id, requester_id, venue_id, party_size, date, note, status, active, created_at, updated_at`

// GetReservation loads a reservation with its active lines.  It returns
// ErrNotFound when the id is unknown.
func (r *ReservationRepo) GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	lines, err := r.activeLinesFor(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	res.Lines = lines[id]
	return res, nil
}

// ListReservations returns reservations matching f, ordered by date and
// creation time, each with its active lines.
func (r *ReservationRepo) ListReservations(ctx context.Context, f model.ListFilter) ([]model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	q, args := listQuery(f)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	var ids []uuid.UUID
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *res)
		ids = append(ids, res.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Reservation{}, nil
	}

	lines, err := r.activeLinesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

func listQuery(f model.ListFilter) (string, []interface{}) {
	var where []string
	var args []interface{}
	if !f.IncludeCanceled {
		where = append(where, "active = 1")
	}
	if f.RequesterID != nil {
		where = append(where, "requester_id = ?")
		args = append(args, f.RequesterID.String())
	}
	if f.VenueID != nil {
		where = append(where, "venue_id = ?")
		args = append(args, f.VenueID.String())
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY date, created_at, id`
	return q, args
}

func (r *ReservationRepo) activeLinesFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]model.ReservationLine, error) {
	q := `SELECT id, reservation_id, resource_id, slot_id, date, active, created_at
	      FROM reservation_lines
	      WHERE active = 1 AND reservation_id IN (` + placeholders(len(ids)) + `)
	      ORDER BY resource_id, slot_id`
	rows, err := r.db.QueryContext(ctx, q, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("load reservation lines: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]model.ReservationLine, len(ids))
	for rows.Next() {
		var l model.ReservationLine
		if err := rows.Scan(&l.ID, &l.ReservationID, &l.ResourceID, &l.SlotID, &l.Date, &l.Active, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation line: %w", err)
		}
		out[l.ReservationID] = append(out[l.ReservationID], l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	var status string
	if err := row.Scan(
		&res.ID, &res.RequesterID, &res.VenueID, &res.PartySize, &res.Date,
		&res.Note, &status, &res.Active, &res.CreatedAt, &res.UpdatedAt,
	); err != nil {
		return nil, err
	}
	res.Status = model.Status(status)
	return &res, nil
}
