package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_orders (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  vendor_id TEXT,
  customer TEXT NOT NULL DEFAULT '',
  line_items TEXT NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_orders_org ON ledger_orders(organization_id, created_at);

CREATE TABLE IF NOT EXISTS ledger_tasks (
  id TEXT PRIMARY KEY,
  organization_id TEXT NOT NULL,
  vendor_id TEXT,
  description TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_tasks_org ON ledger_tasks(organization_id, created_at);
`

// SQLiteStore writes records to a local SQLite database in WAL mode.
type SQLiteStore struct {
	conn *sql.DB
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ledger: mkdir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ledger: enable wal: %w", err)
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ledger: migrate sqlite: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// WriteOrder implements [Store]. Re-writing an existing ID is a no-op.
func (s *SQLiteStore) WriteOrder(ctx context.Context, rec OrderRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	items, err := json.Marshal(rec.LineItems)
	if err != nil {
		return fmt.Errorf("ledger: marshal line items: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
INSERT OR IGNORE INTO ledger_orders (id, organization_id, vendor_id, customer, line_items, notes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OrganizationID, nullable(rec.VendorID), rec.Customer, string(items), rec.Notes,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ledger: write order: %w", err)
	}
	return nil
}

// WriteTask implements [Store]. Re-writing an existing ID is a no-op.
func (s *SQLiteStore) WriteTask(ctx context.Context, rec TaskRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	_, err := s.conn.ExecContext(ctx, `
INSERT OR IGNORE INTO ledger_tasks (id, organization_id, vendor_id, description, created_at)
VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.OrganizationID, nullable(rec.VendorID), rec.Description,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ledger: write task: %w", err)
	}
	return nil
}

// CountOrders returns the number of orders stored for orgID.
func (s *SQLiteStore) CountOrders(ctx context.Context, orgID string) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_orders WHERE organization_id = ?`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ledger: count orders: %w", err)
	}
	return n, nil
}

// CountTasks returns the number of tasks stored for orgID.
func (s *SQLiteStore) CountTasks(ctx context.Context, orgID string) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_tasks WHERE organization_id = ?`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ledger: count tasks: %w", err)
	}
	return n, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
