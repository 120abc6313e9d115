// Package catalog holds the reference data an order is checked against: the
// vendors (customers) a salesperson sells to and the inventory they sell.
//
// Catalog data is scoped by organization. Every read takes the organization
// explicitly; there is no ambient "current organization".
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Vendor is a customer the organization sells to.
type Vendor struct {
	// ID uniquely identifies the vendor within the catalog backend.
	ID string `yaml:"id"   json:"id"`

	// Name is the display name used for matching free-text customer names.
	Name string `yaml:"name" json:"name"`

	// OrganizationID scopes the vendor. Loaders fill it when empty.
	OrganizationID string `yaml:"organization_id,omitempty" json:"organization_id"`
}

// InventoryItem is a product with its stock level and pricing bounds.
//
// MinPrice <= UnitPrice <= MaxPrice is expected but not enforced; validation
// only consults Quantity, UnitPrice and MinPrice.
type InventoryItem struct {
	ID             string  `yaml:"id"                        json:"id"`
	Name           string  `yaml:"name"                      json:"name"`
	Quantity       float64 `yaml:"quantity"                  json:"quantity"`
	UnitPrice      float64 `yaml:"unit_price"                json:"unit_price"`
	MinPrice       float64 `yaml:"min_price"                 json:"min_price"`
	MaxPrice       float64 `yaml:"max_price"                 json:"max_price"`
	Location       string  `yaml:"location,omitempty"        json:"location,omitempty"`
	OrganizationID string  `yaml:"organization_id,omitempty" json:"organization_id"`
}

// Snapshot is the full catalog of one organization as read at one instant.
// Order is significant: matching breaks ties by first occurrence.
type Snapshot struct {
	OrganizationID string
	Vendors        []Vendor
	Inventory      []InventoryItem
}

// Validate checks that the vendor carries the fields matching depends on.
func (v Vendor) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("catalog: vendor %q: name must not be empty", v.ID)
	}
	return nil
}

// Validate checks that the item has a name and no negative amounts.
// All violations are returned joined.
func (it InventoryItem) Validate() error {
	var errs []error
	if strings.TrimSpace(it.Name) == "" {
		errs = append(errs, fmt.Errorf("catalog: item %q: name must not be empty", it.ID))
	}
	if it.Quantity < 0 {
		errs = append(errs, fmt.Errorf("catalog: item %q: quantity must be >= 0, got %v", it.Name, it.Quantity))
	}
	if it.UnitPrice < 0 || it.MinPrice < 0 || it.MaxPrice < 0 {
		errs = append(errs, fmt.Errorf("catalog: item %q: prices must be >= 0", it.Name))
	}
	return errors.Join(errs...)
}
