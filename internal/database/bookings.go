package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"renthub/internal/models"
)

const bookingColumns = `id, item_id, booker_id, start_at, end_at, status, created_at, updated_at, version`

// overlapExistsQuery finds APPROVED bookings of an item that intersect
// the half-open interval [start,end): s1 < e2 AND e1 > s2.
const overlapExistsQuery = `SELECT EXISTS(
            SELECT 1 FROM bookings
            WHERE item_id = ? AND status = ? AND id != ?
              AND start_at < ? AND end_at > ?)`

// CreateBooking inserts a booking inside a transaction, re-checking the
// overlap invariant against approved bookings first so two writers
// cannot both slip past a service-level check.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	conflict, err := overlapExistsTx(ctx, tx, booking.ItemID, booking.Start, booking.End, 0)
	if err != nil {
		return fmt.Errorf("failed to check overlap in tx: %w", err)
	}
	if conflict {
		return ErrTimeConflict
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (item_id, booker_id, start_at, end_at, status, created_at, updated_at, version)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ItemID,
		booking.BookerID,
		booking.Start.UTC(),
		booking.End.UTC(),
		string(booking.Status),
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)

	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBooking rewrites the interval and item of a WAITING booking.
// The overlap check excludes the booking itself so it cannot collide
// with its own previous interval.
func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	conflict, err := overlapExistsTx(ctx, tx, booking.ItemID, booking.Start, booking.End, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to check overlap in tx: %w", err)
	}
	if conflict {
		return ErrTimeConflict
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET item_id = ?, start_at = ?, end_at = ?, updated_at = ?, version = version + 1
         WHERE id = ? AND status = ? AND version = ?`,
		booking.ItemID,
		booking.Start.UTC(),
		booking.End.UTC(),
		now,
		booking.ID,
		string(models.StatusWaiting),
		booking.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	booking.UpdatedAt = now
	booking.Version++
	return tx.Commit()
}

// UpdateBookingStatusWithVersion moves a WAITING booking to a decided
// status. When the target status is APPROVED and recheckOverlap is set,
// the approved-overlap invariant is re-validated inside the same
// transaction: approval is the true point of conflict, not creation.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus, recheckOverlap bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if recheckOverlap && status == models.StatusApproved {
		var itemID int64
		var start, end time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT item_id, start_at, end_at FROM bookings WHERE id = ?`, id).
			Scan(&itemID, &start, &end)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load booking in tx: %w", err)
		}

		conflict, err := overlapExistsTx(ctx, tx, itemID, start, end, id)
		if err != nil {
			return fmt.Errorf("failed to check overlap in tx: %w", err)
		}
		if conflict {
			return ErrTimeConflict
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ?, version = version + 1
         WHERE id = ? AND status = ? AND version = ?`,
		string(status),
		time.Now().UTC(),
		id,
		string(models.StatusWaiting),
		fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	return tx.Commit()
}

// DeleteBooking removes a booking unconditionally. Administrative use only.
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ExistsOverlapping(ctx context.Context, itemID int64, start, end time.Time, excludeID int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, overlapExistsQuery,
		itemID, string(models.StatusApproved), excludeID, end.UTC(), start.UTC()).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check overlapping bookings: %w", err)
	}
	return exists, nil
}

func overlapExistsTx(ctx context.Context, tx *sql.Tx, itemID int64, start, end time.Time, excludeID int64) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, overlapExistsQuery,
		itemID, string(models.StatusApproved), excludeID, end.UTC(), start.UTC()).
		Scan(&exists)
	return exists, err
}

// Booker-scoped list queries. All ordered start DESC with id ASC as the
// deterministic tie-break.

func (db *DB) ListByBooker(ctx context.Context, bookerID int64) ([]models.Booking, error) {
	return db.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE booker_id = ? ORDER BY start_at DESC, id ASC`, bookerID)
}

func (db *DB) ListByBookerAndStatus(ctx context.Context, bookerID int64, status models.BookingStatus) ([]models.Booking, error) {
	return db.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE booker_id = ? AND status = ? ORDER BY start_at DESC, id ASC`,
		bookerID, string(status))
}

func (db *DB) ListByBookerCurrent(ctx context.Context, bookerID int64, now time.Time) ([]models.Booking, error) {
	return db.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE booker_id = ? AND start_at <= ? AND end_at >= ? ORDER BY start_at DESC, id ASC`,
		bookerID, now.UTC(), now.UTC())
}

func (db *DB) ListByBookerPast(ctx context.Context, bookerID int64, now time.Time) ([]models.Booking, error) {
	return db.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE booker_id = ? AND end_at < ? ORDER BY start_at DESC, id ASC`,
		bookerID, now.UTC())
}

func (db *DB) ListByBookerFuture(ctx context.Context, bookerID int64, now time.Time) ([]models.Booking, error) {
	return db.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE booker_id = ? AND start_at > ? ORDER BY start_at DESC, id ASC`,
		bookerID, now.UTC())
}

// Owner-scoped list queries join through item ownership.

const ownerJoin = `SELECT b.id, b.item_id, b.booker_id, b.start_at, b.end_at, b.status, b.created_at, b.updated_at, b.version
         FROM bookings b JOIN items i ON b.item_id = i.id`

func (db *DB) ListByOwner(ctx context.Context, ownerID int64) ([]models.Booking, error) {
	return db.listBookings(ctx,
		ownerJoin+` WHERE i.owner_id = ? ORDER BY b.start_at DESC, b.id ASC`, ownerID)
}

func (db *DB) ListByOwnerAndStatus(ctx context.Context, ownerID int64, status models.BookingStatus) ([]models.Booking, error) {
	return db.listBookings(ctx,
		ownerJoin+` WHERE i.owner_id = ? AND b.status = ? ORDER BY b.start_at DESC, b.id ASC`,
		ownerID, string(status))
}

func (db *DB) ListByOwnerCurrent(ctx context.Context, ownerID int64, now time.Time) ([]models.Booking, error) {
	return db.listBookings(ctx,
		ownerJoin+` WHERE i.owner_id = ? AND b.start_at <= ? AND b.end_at >= ? ORDER BY b.start_at DESC, b.id ASC`,
		ownerID, now.UTC(), now.UTC())
}

func (db *DB) ListByOwnerPast(ctx context.Context, ownerID int64, now time.Time) ([]models.Booking, error) {
	return db.listBookings(ctx,
		ownerJoin+` WHERE i.owner_id = ? AND b.end_at < ? ORDER BY b.start_at DESC, b.id ASC`,
		ownerID, now.UTC())
}

func (db *DB) ListByOwnerFuture(ctx context.Context, ownerID int64, now time.Time) ([]models.Booking, error) {
	return db.listBookings(ctx,
		ownerJoin+` WHERE i.owner_id = ? AND b.start_at > ? ORDER BY b.start_at DESC, b.id ASC`,
		ownerID, now.UTC())
}

// ListByDateRange returns bookings whose interval intersects [from,to).
// Feeds the export report.
func (db *DB) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	return db.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE start_at < ? AND end_at > ? ORDER BY start_at DESC, id ASC`,
		to.UTC(), from.UTC())
}

func (db *DB) listBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var status string
	err := row.Scan(
		&b.ID, &b.ItemID, &b.BookerID, &b.Start, &b.End,
		&status, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Status = models.BookingStatus(status)
	b.Start = b.Start.UTC()
	b.End = b.End.UTC()
	return &b, nil
}
