package catalog

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheSize is the number of organizations whose catalogs are
	// kept in a [CachedStore] when no size is configured.
	DefaultCacheSize = 256

	// DefaultCacheTTL bounds how long a cached list is served when no TTL
	// is configured.
	DefaultCacheTTL = 30 * time.Second
)

// CachedStore fronts a [Store] with per-organization LRU caches for vendor
// and inventory lists. Entries expire after the TTL so edits made directly
// in the backing database become visible; writes through the store
// invalidate the organization immediately.
type CachedStore struct {
	next      Store
	vendors   *expirable.LRU[string, []Vendor]
	inventory *expirable.LRU[string, []InventoryItem]
}

// Compile-time interface check.
var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps next with caches holding up to size organizations
// for at most ttl. A size <= 0 uses [DefaultCacheSize] and a ttl <= 0 uses
// [DefaultCacheTTL].
func NewCachedStore(next Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		next:      next,
		vendors:   expirable.NewLRU[string, []Vendor](size, nil, ttl),
		inventory: expirable.NewLRU[string, []InventoryItem](size, nil, ttl),
	}
}

// ListVendors implements [VendorStore].
func (c *CachedStore) ListVendors(ctx context.Context, orgID string) ([]Vendor, error) {
	if v, ok := c.vendors.Get(orgID); ok {
		return slices.Clone(v), nil
	}
	v, err := c.next.ListVendors(ctx, orgID)
	if err != nil {
		return nil, err
	}
	c.vendors.Add(orgID, slices.Clone(v))
	return v, nil
}

// ListInventory implements [InventoryStore].
func (c *CachedStore) ListInventory(ctx context.Context, orgID string) ([]InventoryItem, error) {
	if items, ok := c.inventory.Get(orgID); ok {
		return slices.Clone(items), nil
	}
	items, err := c.next.ListInventory(ctx, orgID)
	if err != nil {
		return nil, err
	}
	c.inventory.Add(orgID, slices.Clone(items))
	return items, nil
}

// UpsertVendors implements [Importer].
func (c *CachedStore) UpsertVendors(ctx context.Context, orgID string, vendors []Vendor) (int, error) {
	defer c.Invalidate(orgID)
	return c.next.UpsertVendors(ctx, orgID, vendors)
}

// UpsertInventory implements [Importer].
func (c *CachedStore) UpsertInventory(ctx context.Context, orgID string, items []InventoryItem) (int, error) {
	defer c.Invalidate(orgID)
	return c.next.UpsertInventory(ctx, orgID, items)
}

// Invalidate drops the cached lists of one organization.
func (c *CachedStore) Invalidate(orgID string) {
	c.vendors.Remove(orgID)
	c.inventory.Remove(orgID)
}

// Purge drops every cached list.
func (c *CachedStore) Purge() {
	c.vendors.Purge()
	c.inventory.Purge()
}
