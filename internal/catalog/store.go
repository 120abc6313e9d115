package catalog

import (
	"context"
	"errors"
)

// ErrMissingOrganization is returned when a read or write is attempted
// without an organization ID.
var ErrMissingOrganization = errors.New("catalog: organization id must not be empty")

// VendorStore lists the vendors of an organization.
type VendorStore interface {
	// ListVendors returns the organization's full vendor list in a stable
	// order. An unknown organization yields an empty list, not an error.
	ListVendors(ctx context.Context, orgID string) ([]Vendor, error)
}

// InventoryStore lists the inventory of an organization.
type InventoryStore interface {
	// ListInventory returns the organization's full inventory in a stable
	// order. An unknown organization yields an empty list, not an error.
	ListInventory(ctx context.Context, orgID string) ([]InventoryItem, error)
}

// Importer writes catalog data. Existing rows with the same ID are replaced.
type Importer interface {
	UpsertVendors(ctx context.Context, orgID string, vendors []Vendor) (int, error)
	UpsertInventory(ctx context.Context, orgID string, items []InventoryItem) (int, error)
}

// Store is a full catalog backend.
//
// All implementations must be safe for concurrent use.
type Store interface {
	VendorStore
	InventoryStore
	Importer
}
