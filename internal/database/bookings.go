package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"zapisly/internal/booking"
	"zapisly/internal/models"
)

const bookingColumns = `id, business_id, service_id, employee_id, client_id,
	start_time, duration_minutes, status, reminder_sent_at, paid, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var (
		b          models.Booking
		employeeID sql.NullInt64
		reminderAt sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.BusinessID, &b.ServiceID, &employeeID, &b.ClientID,
		&b.StartTime, &b.DurationMinutes, &b.Status, &reminderAt, &b.Paid,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if employeeID.Valid {
		b.EmployeeID = &employeeID.Int64
	}
	if reminderAt.Valid {
		t := reminderAt.Time
		b.ReminderSentAt = &t
	}
	return &b, nil
}

// GetBooking returns a booking by id, or nil when absent.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookings returns non-cancelled bookings whose occupied interval
// intersects [from, to), for one business and optionally one employee.
func (db *DB) ListBookings(ctx context.Context, businessID int64, employeeID *int64, from, to time.Time) ([]models.Booking, error) {
	query := "SELECT " + bookingColumns + ` FROM bookings
		WHERE business_id = ? AND status != ? AND start_time < ? AND end_time > ?`
	args := []any{businessID, models.StatusCancelled, to, from}
	if employeeID != nil {
		query += " AND employee_id = ?"
		args = append(args, *employeeID)
	}
	query += " ORDER BY start_time"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// InsertBooking commits a booking after re-checking overlap inside the
// transaction. This check, not the resolver's, is what keeps two racing
// creates from both succeeding.
func (db *DB) InsertBooking(ctx context.Context, b *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	taken, err := overlapExists(ctx, tx, b.BusinessID, b.EmployeeID, b.StartTime, b.EndTime(), 0)
	if err != nil {
		return err
	}
	if taken {
		return &booking.ConflictError{}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (business_id, service_id, employee_id, client_id,
			start_time, end_time, duration_minutes, status, paid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.BusinessID, b.ServiceID, nullableID(b.EmployeeID), b.ClientID,
		b.StartTime, b.EndTime(), b.DurationMinutes, b.Status, b.Paid,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	b.ID = id
	return nil
}

// UpdateBookingStatus sets the lifecycle status.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error {
	_, err := db.ExecContext(ctx,
		"UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC(), id,
	)
	return err
}

// UpdateBookingFields applies a reschedule, re-checking overlap against
// everything except the booking's own row.
func (db *DB) UpdateBookingFields(ctx context.Context, id int64, upd booking.Update) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var businessID int64
	if err := tx.QueryRowContext(ctx,
		"SELECT business_id FROM bookings WHERE id = ?", id,
	).Scan(&businessID); err != nil {
		return fmt.Errorf("load booking: %w", err)
	}

	end := upd.StartTime.Add(time.Duration(upd.DurationMinutes) * time.Minute)
	taken, err := overlapExists(ctx, tx, businessID, upd.EmployeeID, upd.StartTime, end, id)
	if err != nil {
		return err
	}
	if taken {
		return &booking.ConflictError{}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET start_time = ?, end_time = ?, duration_minutes = ?, service_id = ?, employee_id = ?, updated_at = ?
		WHERE id = ?`,
		upd.StartTime, end, upd.DurationMinutes, upd.ServiceID, nullableID(upd.EmployeeID), time.Now().UTC(), id,
	); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}

	return tx.Commit()
}

// MarkReminderSent records the reminder timestamp. Guarded so it can
// only ever be written once per booking.
func (db *DB) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	res, err := db.ExecContext(ctx,
		"UPDATE bookings SET reminder_sent_at = ? WHERE id = ? AND reminder_sent_at IS NULL",
		at, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("booking %d already has a reminder recorded", id)
	}
	return nil
}

// DueForReminder returns confirmed bookings starting within [from, to]
// that have not had a reminder yet.
func (db *DB) DueForReminder(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+bookingColumns+` FROM bookings
		WHERE status = ? AND reminder_sent_at IS NULL AND start_time >= ? AND start_time <= ?
		ORDER BY start_time`,
		models.StatusConfirmed, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("due for reminder: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ListBookingsInRange returns every booking, any status, starting
// within [from, to). Used by the audit export.
func (db *DB) ListBookingsInRange(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+bookingColumns+` FROM bookings
		WHERE start_time >= ? AND start_time < ?
		ORDER BY business_id, start_time`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings in range: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// DeleteOldCancelled prunes cancelled bookings that started before the
// cutoff, returning how many were removed.
func (db *DB) DeleteOldCancelled(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		"DELETE FROM bookings WHERE status = ? AND start_time < ?",
		models.StatusCancelled, before,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func overlapExists(ctx context.Context, tx *sql.Tx, businessID int64, employeeID *int64, start, end time.Time, excludeID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM bookings
		WHERE business_id = ? AND status != ? AND start_time < ? AND end_time > ? AND id != ?`
	args := []any{businessID, models.StatusCancelled, end, start, excludeID}
	if employeeID != nil {
		query += " AND employee_id = ?"
		args = append(args, *employeeID)
	}

	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return count > 0, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
