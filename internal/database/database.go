// Package database is the SQLite-backed data store for businesses,
// catalogs, working hours and bookings.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the booking engine.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS businesses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			suspended BOOLEAN NOT NULL DEFAULT 0,
			telegram_chat_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			phone TEXT,
			telegram_chat_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			price_cents INTEGER NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (business_id) REFERENCES businesses(id)
		)`,

		`CREATE TABLE IF NOT EXISTS employees (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (business_id) REFERENCES businesses(id)
		)`,

		// One row per working range. day_of_week follows time.Weekday
		// (Sunday = 0). The whole template for an owner is replaced
		// wholesale on a settings update.
		`CREATE TABLE IF NOT EXISTS working_hours (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_type TEXT NOT NULL CHECK (owner_type IN ('business', 'employee')),
			owner_id INTEGER NOT NULL,
			day_of_week INTEGER NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			position INTEGER NOT NULL DEFAULT 0,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			service_id INTEGER NOT NULL,
			employee_id INTEGER,
			client_id INTEGER NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			duration_minutes INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'confirmed',
			reminder_sent_at DATETIME,
			paid BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (business_id) REFERENCES businesses(id),
			FOREIGN KEY (service_id) REFERENCES services(id),
			FOREIGN KEY (client_id) REFERENCES clients(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_working_hours_owner ON working_hours(owner_type, owner_id, day_of_week)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_business_time ON bookings(business_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_employee_time ON bookings(employee_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_reminder ON bookings(status, reminder_sent_at, start_time)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}
