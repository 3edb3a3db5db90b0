package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"zapisly/internal/models"
)

// CreateBusiness inserts a tenant.
func (db *DB) CreateBusiness(ctx context.Context, b *models.Business) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO businesses (name, suspended, telegram_chat_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.Name, b.Suspended, b.TelegramChatID, now, now,
	)
	if err != nil {
		return fmt.Errorf("create business: %w", err)
	}
	b.ID, err = res.LastInsertId()
	b.CreatedAt, b.UpdatedAt = now, now
	return err
}

// GetBusiness returns a business by id, or nil when absent.
func (db *DB) GetBusiness(ctx context.Context, id int64) (*models.Business, error) {
	var b models.Business
	err := db.QueryRowContext(ctx,
		`SELECT id, name, suspended, telegram_chat_id, created_at, updated_at
		FROM businesses WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &b.Suspended, &b.TelegramChatID, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBusinesses returns all tenants ordered by id.
func (db *DB) ListBusinesses(ctx context.Context) ([]models.Business, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, suspended, telegram_chat_id, created_at, updated_at
		FROM businesses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	var out []models.Business
	for rows.Next() {
		var b models.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Suspended, &b.TelegramChatID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetBusinessSuspended toggles the suspension flag.
func (db *DB) SetBusinessSuspended(ctx context.Context, id int64, suspended bool) error {
	_, err := db.ExecContext(ctx,
		"UPDATE businesses SET suspended = ?, updated_at = ? WHERE id = ?",
		suspended, time.Now().UTC(), id,
	)
	return err
}

// CreateService inserts a service for a business.
func (db *DB) CreateService(ctx context.Context, s *models.Service) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO services (business_id, name, duration_minutes, price_cents, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.BusinessID, s.Name, s.DurationMinutes, s.PriceCents, s.Active, now, now,
	)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	s.ID, err = res.LastInsertId()
	s.CreatedAt, s.UpdatedAt = now, now
	return err
}

// ListServices returns a business's services in id order. The fuzzy
// name matcher relies on this order being stable.
func (db *DB) ListServices(ctx context.Context, businessID int64) ([]models.Service, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, business_id, name, duration_minutes, price_cents, active, created_at, updated_at
		FROM services WHERE business_id = ? ORDER BY id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []models.Service
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateEmployee inserts a staff member.
func (db *DB) CreateEmployee(ctx context.Context, e *models.Employee) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO employees (business_id, name, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.BusinessID, e.Name, e.Active, now, now,
	)
	if err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	e.ID, err = res.LastInsertId()
	e.CreatedAt, e.UpdatedAt = now, now
	return err
}

// ListEmployees returns a business's staff in id order.
func (db *DB) ListEmployees(ctx context.Context, businessID int64) ([]models.Employee, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, business_id, name, active, created_at, updated_at
		FROM employees WHERE business_id = ? ORDER BY id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var out []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.Name, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateClient inserts a client.
func (db *DB) CreateClient(ctx context.Context, c *models.Client) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO clients (name, phone, telegram_chat_id, created_at)
		VALUES (?, ?, ?, ?)`,
		c.Name, c.Phone, c.TelegramChatID, now,
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	c.ID, err = res.LastInsertId()
	c.CreatedAt = now
	return err
}

// GetClient returns a client by id, or nil when absent.
func (db *DB) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	var c models.Client
	err := db.QueryRowContext(ctx,
		"SELECT id, name, phone, telegram_chat_id, created_at FROM clients WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.TelegramChatID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetBusinessChatID returns the Telegram chat bound to a business.
func (db *DB) GetBusinessChatID(ctx context.Context, businessID int64) (int64, error) {
	var chatID int64
	err := db.QueryRowContext(ctx,
		"SELECT telegram_chat_id FROM businesses WHERE id = ?", businessID,
	).Scan(&chatID)
	return chatID, err
}

// GetClientChatID returns the Telegram chat bound to a client.
func (db *DB) GetClientChatID(ctx context.Context, clientID int64) (int64, error) {
	var chatID int64
	err := db.QueryRowContext(ctx,
		"SELECT telegram_chat_id FROM clients WHERE id = ?", clientID,
	).Scan(&chatID)
	return chatID, err
}
