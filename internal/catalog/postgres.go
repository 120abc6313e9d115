package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the catalog tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
//
// The seq column preserves insertion order, which matching relies on for
// deterministic tie-breaking.
const Schema = `
CREATE TABLE IF NOT EXISTS catalog_vendors (
    seq             BIGSERIAL,
    id              TEXT NOT NULL,
    organization_id TEXT NOT NULL,
    name            TEXT NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (organization_id, id)
);
CREATE INDEX IF NOT EXISTS idx_catalog_vendors_org_seq ON catalog_vendors(organization_id, seq);

CREATE TABLE IF NOT EXISTS catalog_inventory (
    seq             BIGSERIAL,
    id              TEXT NOT NULL,
    organization_id TEXT NOT NULL,
    name            TEXT NOT NULL,
    quantity        DOUBLE PRECISION NOT NULL DEFAULT 0,
    unit_price      DOUBLE PRECISION NOT NULL DEFAULT 0,
    min_price       DOUBLE PRECISION NOT NULL DEFAULT 0,
    max_price       DOUBLE PRECISION NOT NULL DEFAULT 0,
    location        TEXT NOT NULL DEFAULT '',
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (organization_id, id)
);
CREATE INDEX IF NOT EXISTS idx_catalog_inventory_org_seq ON catalog_inventory(organization_id, seq);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// ListVendors implements [VendorStore].
func (s *PostgresStore) ListVendors(ctx context.Context, orgID string) ([]Vendor, error) {
	if orgID == "" {
		return nil, ErrMissingOrganization
	}

	const query = `
		SELECT id, name, organization_id
		FROM catalog_vendors
		WHERE organization_id = $1
		ORDER BY seq`

	rows, err := s.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list vendors: %w", err)
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.OrganizationID); err != nil {
			return nil, fmt.Errorf("catalog: list vendors scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list vendors: %w", err)
	}
	return out, nil
}

// ListInventory implements [InventoryStore].
func (s *PostgresStore) ListInventory(ctx context.Context, orgID string) ([]InventoryItem, error) {
	if orgID == "" {
		return nil, ErrMissingOrganization
	}

	const query = `
		SELECT id, name, quantity, unit_price, min_price, max_price, location, organization_id
		FROM catalog_inventory
		WHERE organization_id = $1
		ORDER BY seq`

	rows, err := s.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list inventory: %w", err)
	}
	defer rows.Close()

	var out []InventoryItem
	for rows.Next() {
		var it InventoryItem
		if err := rows.Scan(
			&it.ID, &it.Name, &it.Quantity, &it.UnitPrice,
			&it.MinPrice, &it.MaxPrice, &it.Location, &it.OrganizationID,
		); err != nil {
			return nil, fmt.Errorf("catalog: list inventory scan: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list inventory: %w", err)
	}
	return out, nil
}

// UpsertVendors implements [Importer]. It stops at the first failing row and
// reports how many rows were written before it.
func (s *PostgresStore) UpsertVendors(ctx context.Context, orgID string, vendors []Vendor) (int, error) {
	if orgID == "" {
		return 0, ErrMissingOrganization
	}

	const query = `
		INSERT INTO catalog_vendors (id, organization_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = now()`

	for i, v := range vendors {
		if err := v.Validate(); err != nil {
			return i, err
		}
		id := v.ID
		if id == "" {
			id = fmt.Sprintf("v-%d", i+1)
		}
		if _, err := s.db.Exec(ctx, query, id, orgID, v.Name); err != nil {
			return i, fmt.Errorf("catalog: upsert vendor %q: %w", v.Name, err)
		}
	}
	return len(vendors), nil
}

// UpsertInventory implements [Importer]. It stops at the first failing row
// and reports how many rows were written before it.
func (s *PostgresStore) UpsertInventory(ctx context.Context, orgID string, items []InventoryItem) (int, error) {
	if orgID == "" {
		return 0, ErrMissingOrganization
	}

	const query = `
		INSERT INTO catalog_inventory (
			id, organization_id, name, quantity, unit_price, min_price, max_price, location
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (organization_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			quantity = EXCLUDED.quantity,
			unit_price = EXCLUDED.unit_price,
			min_price = EXCLUDED.min_price,
			max_price = EXCLUDED.max_price,
			location = EXCLUDED.location,
			updated_at = now()`

	for i, it := range items {
		if err := it.Validate(); err != nil {
			return i, err
		}
		id := it.ID
		if id == "" {
			id = fmt.Sprintf("i-%d", i+1)
		}
		if _, err := s.db.Exec(ctx, query,
			id, orgID, it.Name, it.Quantity, it.UnitPrice, it.MinPrice, it.MaxPrice, it.Location,
		); err != nil {
			return i, fmt.Errorf("catalog: upsert item %q: %w", it.Name, err)
		}
	}
	return len(items), nil
}
