// Package store persists monitoring state in the SQLite database shared with the rest of the
// logistics platform. Shipments and claim tickets are owned by other services; the monitoring
// core reads them and only performs guarded status transitions on tickets.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed-width so that text comparisons order the same way as instants.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS shipments (
    id                  TEXT PRIMARY KEY,
    tracking_number     TEXT NOT NULL DEFAULT '',
    client_id           TEXT NOT NULL DEFAULT '',
    carrier             TEXT NOT NULL DEFAULT '',
    service_option      TEXT NOT NULL DEFAULT '',
    origin_country      TEXT NOT NULL DEFAULT '',
    destination_country TEXT NOT NULL DEFAULT '',
    zone                INTEGER NOT NULL DEFAULT 0,
    label_created_at    TEXT,
    delivered_at        TEXT
);
CREATE INDEX IF NOT EXISTS idx_shipments_open ON shipments(label_created_at) WHERE delivered_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_shipments_delivered ON shipments(delivered_at) WHERE delivered_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS checkpoints (
    shipment_id TEXT NOT NULL,
    occurred_at TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT '',
    substatus   TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    location    TEXT NOT NULL DEFAULT '',
    type        TEXT NOT NULL,
    sentiment   TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    PRIMARY KEY (shipment_id, occurred_at, description)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_delivered ON checkpoints(shipment_id) WHERE type = 'DELIVERED';

CREATE TABLE IF NOT EXISTS benchmarks (
    kind          TEXT NOT NULL,
    key           TEXT NOT NULL,
    zones         TEXT NOT NULL,
    route_avg     REAL NOT NULL DEFAULT 0,
    route_samples INTEGER NOT NULL DEFAULT 0,
    computed_at   TEXT NOT NULL,
    PRIMARY KEY (kind, key)
);

CREATE TABLE IF NOT EXISTS monitoring_records (
    shipment_id            TEXT PRIMARY KEY,
    tracking_number        TEXT NOT NULL DEFAULT '',
    carrier                TEXT NOT NULL DEFAULT '',
    client_id              TEXT NOT NULL DEFAULT '',
    international          INTEGER NOT NULL DEFAULT 0,
    tracking_id            TEXT,
    eligibility_status     TEXT NOT NULL DEFAULT '',
    last_scan_at           TEXT,
    last_scan_description  TEXT NOT NULL DEFAULT '',
    last_scan_location     TEXT NOT NULL DEFAULT '',
    days_in_transit        INTEGER NOT NULL DEFAULT 0,
    days_since_last_update INTEGER NOT NULL DEFAULT 0,
    eligible_after         TEXT,
    assessment             TEXT,
    next_check_at          TEXT NOT NULL,
    created_at             TEXT NOT NULL,
    updated_at             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitoring_due ON monitoring_records(next_check_at);

CREATE TABLE IF NOT EXISTS claim_tickets (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    status      TEXT NOT NULL,
    shipment_id TEXT NOT NULL DEFAULT '',
    voided      INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_claim_tickets_shipment ON claim_tickets(shipment_id);
CREATE INDEX IF NOT EXISTS idx_claim_tickets_status ON claim_tickets(type, status);

CREATE TABLE IF NOT EXISTS claim_events (
    id          TEXT PRIMARY KEY,
    ticket_id   TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    actor       TEXT NOT NULL,
    from_status TEXT NOT NULL DEFAULT '',
    to_status   TEXT NOT NULL DEFAULT '',
    message     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_claim_events_ticket ON claim_events(ticket_id, created_at);

CREATE TABLE IF NOT EXISTS tracking_ids (
    shipment_id TEXT PRIMARY KEY,
    tracking_id TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
`

// Store provides SQLite-backed access to monitoring state.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the sweep and trigger goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		// Rows written by other services may carry RFC3339 without milliseconds.
		t, err = time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", v, err)
		}
	}
	return t.UTC(), nil
}

func parseTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
