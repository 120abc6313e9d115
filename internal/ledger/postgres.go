package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the ledger tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_orders (
    id              TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    vendor_id       TEXT,
    customer        TEXT NOT NULL DEFAULT '',
    line_items      JSONB NOT NULL,
    notes           TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_orders_org ON ledger_orders(organization_id, created_at);

CREATE TABLE IF NOT EXISTS ledger_tasks (
    id              TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    vendor_id       TEXT,
    description     TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_tasks_org ON ledger_tasks(organization_id, created_at);
`

// Execer is the database interface used by [PostgresStore]. Both
// *pgxpool.Pool and *pgx.Conn satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore writes records to PostgreSQL. Re-writing a record with an
// existing ID is a no-op.
type PostgresStore struct {
	db Execer
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore]. The caller is responsible for
// calling [PostgresStore.Migrate] before writing.
func NewPostgresStore(db Execer) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ledger: migrate: %w", err)
	}
	return nil
}

// WriteOrder implements [Store].
func (s *PostgresStore) WriteOrder(ctx context.Context, rec OrderRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	items, err := json.Marshal(rec.LineItems)
	if err != nil {
		return fmt.Errorf("ledger: marshal line items: %w", err)
	}

	const q = `
		INSERT INTO ledger_orders (id, organization_id, vendor_id, customer, line_items, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.Exec(ctx, q,
		rec.ID, rec.OrganizationID, rec.VendorID, rec.Customer, items, rec.Notes, rec.Timestamp,
	); err != nil {
		return fmt.Errorf("ledger: write order: %w", err)
	}
	return nil
}

// WriteTask implements [Store].
func (s *PostgresStore) WriteTask(ctx context.Context, rec TaskRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	const q = `
		INSERT INTO ledger_tasks (id, organization_id, vendor_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.Exec(ctx, q,
		rec.ID, rec.OrganizationID, rec.VendorID, rec.Description, rec.Timestamp,
	); err != nil {
		return fmt.Errorf("ledger: write task: %w", err)
	}
	return nil
}
