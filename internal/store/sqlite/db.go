// Package sqlite implements store.Repository on an embedded single-file
// SQLite database. All cross-entity mutations (stock↔product quantity,
// order↔product quantity) run inside a single transaction so a crash
// between statements cannot leave the materialized balances inconsistent.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"dukapos/internal/domain"
)

// timeLayout is the on-disk timestamp format, UTC. It matches SQLite's
// own datetime('now') output so date() and strftime() work on it.
const timeLayout = "2006-01-02 15:04:05"

type Store struct {
	db *sql.DB
}

func New(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}

	// One logical writer. The UI is request/response driven and the
	// engine serializes writes anyway; a single pooled connection also
	// keeps ":memory:" databases stable across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	rating INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	category_id INTEGER NOT NULL,
	description TEXT,
	quantity INTEGER NOT NULL DEFAULT 0,
	price REAL NOT NULL,
	buying_price REAL,
	volume REAL,
	alcohol_percentage REAL,
	measurement_unit TEXT CHECK (measurement_unit IN ('ml', 'liter')),
	rating INTEGER DEFAULT 0,
	image TEXT,
	meta TEXT,
	origin TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (category_id) REFERENCES categories(id),
	UNIQUE (name, measurement_unit, volume)
);

CREATE TABLE IF NOT EXISTS stock_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id INTEGER NOT NULL,
	quantity INTEGER NOT NULL,
	note TEXT,
	supplier TEXT,
	batch_number TEXT,
	expiry_date TEXT,
	date_added TEXT NOT NULL,
	is_deleted INTEGER DEFAULT 0,
	FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lines TEXT NOT NULL,
	total REAL NOT NULL,
	payment_type TEXT NOT NULL,
	tax REAL DEFAULT 0.0,
	shipping_cost REAL DEFAULT 0.0,
	is_deleted INTEGER DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	email TEXT,
	phone TEXT UNIQUE,
	meta TEXT,
	is_deleted INTEGER DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	amount REAL NOT NULL,
	due_date TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	meta TEXT,
	created_at TEXT NOT NULL,
	payment_date TEXT,
	is_deleted INTEGER DEFAULT 0,
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY,
	store_name TEXT NOT NULL UNIQUE,
	currency TEXT DEFAULT 'KSH',
	timezone TEXT DEFAULT 'Africa/Nairobi',
	paybill_number TEXT,
	account_number TEXT,
	till_number TEXT,
	phone_number TEXT,
	auto_generate_next_month INTEGER DEFAULT 0,
	meta TEXT
);

CREATE TABLE IF NOT EXISTS staff_accounts (
	username TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	role TEXT NOT NULL,
	active INTEGER DEFAULT 1,
	created_at TEXT NOT NULL
);
`

// InitSchema is idempotent and safe to run on every process start. It
// creates missing tables, applies additive column migrations for
// databases created by older builds, and guarantees the singleton
// settings row exists.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		slog.Error("schema creation failed", "error", err)
		return fmt.Errorf("create schema: %w", err)
	}

	// products.threshold arrived after the first release.
	if err := s.addColumnIfMissing(ctx, "products", "threshold", "INTEGER DEFAULT 1"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO settings (id, store_name, currency, timezone)
		VALUES (1, 'Liquor Store', 'KSH', 'Africa/Nairobi')
	`); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	return nil
}

func (s *Store) addColumnIfMissing(ctx context.Context, table string, column string, definition string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	if err != nil {
		if strings.Contains(err.Error(), "duplicate column name") {
			return nil
		}
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	slog.Info("applied column migration", "table", table, "column", column)
	return nil
}

// SeedDemo inserts the default category list and a few sample users.
// Everything is INSERT OR IGNORE, so it is safe to run repeatedly.
func (s *Store) SeedDemo(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO categories (name, rating) VALUES
			('Whisky', 5), ('Vodka', 4), ('Gin', 4), ('Beer', 3),
			('Rum', 4), ('Cider', 3), ('Liqueur', 3), ('Wine', 4)
	`)
	if err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (name, email, phone, meta, created_at) VALUES
			('Zuleikha (A2-F5)', 'zuleikha@example.com', '254711000001',
			 '[{"name":"house","value":"A2"},{"name":"floor","value":"5"}]', ?),
			('Carol (A1-F2)', 'carol@example.com', '254711000002',
			 '[{"name":"house","value":"A1"},{"name":"floor","value":"2"}]', ?),
			('Allan (A1-F3)', 'allan@example.com', '254711000003',
			 '[{"name":"house","value":"A1"},{"name":"floor","value":"3"}]', ?)
	`, now, now, now)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	return nil
}

// adjustProductQuantity is the single mutation point for the derived
// quantity balance; both the stock ledger and the order store go
// through it, always inside the caller's transaction. With clampZero
// the balance never drops below zero.
func adjustProductQuantity(ctx context.Context, tx *sql.Tx, productID int64, delta int, clampZero bool) error {
	now := time.Now().UTC().Format(timeLayout)
	var err error
	if clampZero {
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET quantity = MAX(quantity + ?, 0), updated_at = ? WHERE id = ?
		`, delta, now, productID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET quantity = quantity + ?, updated_at = ? WHERE id = ?
		`, delta, now, productID)
	}
	if err != nil {
		return fmt.Errorf("adjust quantity for product %d: %w", productID, err)
	}
	return nil
}

func isUniqueViolation(err error, target string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+target)
}

func encodeMeta(m domain.Meta) (string, error) {
	if len(m) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode meta: %w", err)
	}
	return string(raw), nil
}

// decodeMeta is lenient: legacy rows carry object-shaped or empty meta
// blobs, and a broken meta field must not make a whole listing
// unreadable.
func decodeMeta(raw string) domain.Meta {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "{}" || raw == "[]" {
		return nil
	}
	var m domain.Meta
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		slog.Warn("discarding unreadable meta blob", "error", err)
		return nil
	}
	return m
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation(timeLayout, raw, time.UTC); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func parseTimePtr(raw sql.NullString) *time.Time {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	t := parseTime(raw.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

// dayBoundsUTC converts an inclusive calendar-day range in loc to a
// half-open UTC instant range [start, end).
func dayBoundsUTC(rng domain.DateRange, loc *time.Location) (string, string, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01-02", rng.Start, loc)
	if err != nil {
		return "", "", fmt.Errorf("parse start date %q: %w", rng.Start, err)
	}
	end, err := time.ParseInLocation("2006-01-02", rng.End, loc)
	if err != nil {
		return "", "", fmt.Errorf("parse end date %q: %w", rng.End, err)
	}
	return start.UTC().Format(timeLayout), end.AddDate(0, 0, 1).UTC().Format(timeLayout), nil
}
