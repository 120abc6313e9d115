package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store]. Lists are
// returned in insertion order; an upsert of an existing ID keeps its slot.
// The zero value is ready to use.
type MemStore struct {
	mu        sync.RWMutex
	vendors   map[string][]Vendor
	inventory map[string][]InventoryItem
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		vendors:   make(map[string][]Vendor),
		inventory: make(map[string][]InventoryItem),
	}
}

// ListVendors implements [VendorStore].
func (s *MemStore) ListVendors(_ context.Context, orgID string) ([]Vendor, error) {
	if orgID == "" {
		return nil, ErrMissingOrganization
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.vendors[orgID]), nil
}

// ListInventory implements [InventoryStore].
func (s *MemStore) ListInventory(_ context.Context, orgID string) ([]InventoryItem, error) {
	if orgID == "" {
		return nil, ErrMissingOrganization
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.inventory[orgID]), nil
}

// UpsertVendors implements [Importer]. Vendors without an ID get one derived
// from their position.
func (s *MemStore) UpsertVendors(_ context.Context, orgID string, vendors []Vendor) (int, error) {
	if orgID == "" {
		return 0, ErrMissingOrganization
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vendors == nil {
		s.vendors = make(map[string][]Vendor)
	}

	list := s.vendors[orgID]
	for i, v := range vendors {
		if err := v.Validate(); err != nil {
			s.vendors[orgID] = list
			return i, err
		}
		v.OrganizationID = orgID
		if v.ID == "" {
			v.ID = fmt.Sprintf("v-%d", len(list)+1)
		}
		if idx := slices.IndexFunc(list, func(e Vendor) bool { return e.ID == v.ID }); idx >= 0 {
			list[idx] = v
		} else {
			list = append(list, v)
		}
	}
	s.vendors[orgID] = list
	return len(vendors), nil
}

// UpsertInventory implements [Importer]. Items without an ID get one derived
// from their position.
func (s *MemStore) UpsertInventory(_ context.Context, orgID string, items []InventoryItem) (int, error) {
	if orgID == "" {
		return 0, ErrMissingOrganization
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inventory == nil {
		s.inventory = make(map[string][]InventoryItem)
	}

	list := s.inventory[orgID]
	for i, it := range items {
		if err := it.Validate(); err != nil {
			s.inventory[orgID] = list
			return i, err
		}
		it.OrganizationID = orgID
		if it.ID == "" {
			it.ID = fmt.Sprintf("i-%d", len(list)+1)
		}
		if idx := slices.IndexFunc(list, func(e InventoryItem) bool { return e.ID == it.ID }); idx >= 0 {
			list[idx] = it
		} else {
			list = append(list, it)
		}
	}
	s.inventory[orgID] = list
	return len(items), nil
}
