// Package sqlite implements the store interfaces on an embedded SQLite
// database file (modernc.org/sqlite, pure Go driver).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jeogo/casnos-sub000/internal/store"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS services (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tickets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_number TEXT NOT NULL UNIQUE,
	service_id INTEGER NOT NULL REFERENCES services(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','called','served')),
	print_status TEXT NOT NULL DEFAULT 'pending' CHECK (print_status IN ('pending','printing','printed','print_failed')),
	created_at TEXT NOT NULL,
	called_at TEXT,
	served_at TEXT,
	window_id INTEGER REFERENCES windows(id) ON DELETE SET NULL,
	printer_id TEXT,
	target_device TEXT
);

CREATE TABLE IF NOT EXISTS devices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	ip_address TEXT NOT NULL DEFAULT '',
	device_type TEXT NOT NULL CHECK (device_type IN ('display','customer','window','admin')),
	status TEXT NOT NULL DEFAULT 'offline' CHECK (status IN ('online','offline','error')),
	last_seen TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS device_printers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id TEXT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
	printer_id TEXT NOT NULL,
	printer_name TEXT NOT NULL DEFAULT '',
	is_default INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	UNIQUE (device_id, printer_id)
);

CREATE TABLE IF NOT EXISTS windows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service_id INTEGER REFERENCES services(id) ON DELETE SET NULL,
	device_id TEXT REFERENCES devices(device_id) ON DELETE SET NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_resets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	last_reset_date TEXT NOT NULL UNIQUE,
	last_reset_timestamp TEXT NOT NULL,
	tickets_reset INTEGER NOT NULL DEFAULT 0,
	files_reset INTEGER NOT NULL DEFAULT 0,
	cache_reset INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
CREATE INDEX IF NOT EXISTS idx_tickets_service ON tickets(service_id, status);
CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status);
`

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// modernc.org/sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY between the HTTP, socket, and scheduler goroutines.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Maintain compacts and re-optimizes the database after the daily purge.
func (s *Store) Maintain(ctx context.Context) error {
	for _, stmt := range []string{"VACUUM", "ANALYZE", "REINDEX"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", strings.ToLower(stmt), err)
		}
	}
	return nil
}

// mapBusy translates the driver's lock-contention failures into the
// ErrBusy sentinel so callers can report a retryable condition. Other
// errors pass through unchanged.
func mapBusy(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return fmt.Errorf("%w: %s", store.ErrBusy, msg)
	}
	return err
}

const timeLayout = time.RFC3339Nano

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func fmtNullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseNullTime(raw sql.NullString) *time.Time {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	t := parseTime(raw.String)
	return &t
}
