package database

import (
	"context"
	"fmt"
	"time"

	"zapisly/internal/schedule"
)

// OwnerType distinguishes whose working hours a template belongs to.
type OwnerType string

const (
	OwnerBusiness OwnerType = "business"
	OwnerEmployee OwnerType = "employee"
)

// GetBusinessSchedule returns the weekly template of a business. A
// business without rows gets an empty (all-disabled) schedule.
func (db *DB) GetBusinessSchedule(ctx context.Context, businessID int64) (schedule.WeeklySchedule, error) {
	return db.loadSchedule(ctx, OwnerBusiness, businessID)
}

// GetEmployeeSchedule returns an employee's individual template, empty
// when none is configured.
func (db *DB) GetEmployeeSchedule(ctx context.Context, employeeID int64) (schedule.WeeklySchedule, error) {
	return db.loadSchedule(ctx, OwnerEmployee, employeeID)
}

func (db *DB) loadSchedule(ctx context.Context, owner OwnerType, ownerID int64) (schedule.WeeklySchedule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT day_of_week, enabled, start_time, end_time
		FROM working_hours
		WHERE owner_type = ? AND owner_id = ?
		ORDER BY day_of_week, position`,
		owner, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	defer rows.Close()

	ws := schedule.WeeklySchedule{}
	for rows.Next() {
		var (
			dayOfWeek  int
			enabled    bool
			start, end string
		)
		if err := rows.Scan(&dayOfWeek, &enabled, &start, &end); err != nil {
			return nil, err
		}
		day := ws[time.Weekday(dayOfWeek)]
		day.Enabled = day.Enabled || enabled
		day.Ranges = append(day.Ranges, schedule.TimeRange{Start: start, End: end})
		ws[time.Weekday(dayOfWeek)] = day
	}
	return ws, rows.Err()
}

// ReplaceSchedule swaps the whole weekly template of an owner in one
// transaction. This is the settings-update boundary: the template is
// validated here and nowhere downstream.
func (db *DB) ReplaceSchedule(ctx context.Context, owner OwnerType, ownerID int64, ws schedule.WeeklySchedule) error {
	if err := ws.Validate(); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	ws = ws.Normalize()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM working_hours WHERE owner_type = ? AND owner_id = ?",
		owner, ownerID,
	); err != nil {
		return fmt.Errorf("clear schedule: %w", err)
	}

	for day, ds := range ws {
		for pos, r := range ds.Ranges {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO working_hours (owner_type, owner_id, day_of_week, enabled, position, start_time, end_time)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				owner, ownerID, int(day), ds.Enabled, pos, r.Start, r.End,
			); err != nil {
				return fmt.Errorf("insert range: %w", err)
			}
		}
	}

	return tx.Commit()
}
