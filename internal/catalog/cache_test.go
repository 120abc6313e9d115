package catalog_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/salesnote/internal/catalog"
)

// countingStore counts list calls that reach the backing store.
type countingStore struct {
	*catalog.MemStore
	vendorLists    atomic.Int32
	inventoryLists atomic.Int32
}

func (c *countingStore) ListVendors(ctx context.Context, orgID string) ([]catalog.Vendor, error) {
	c.vendorLists.Add(1)
	return c.MemStore.ListVendors(ctx, orgID)
}

func (c *countingStore) ListInventory(ctx context.Context, orgID string) ([]catalog.InventoryItem, error) {
	c.inventoryLists.Add(1)
	return c.MemStore.ListInventory(ctx, orgID)
}

func TestCachedStore_HitsAndInvalidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := &countingStore{MemStore: catalog.NewMemStore()}
	_, _ = backing.UpsertVendors(ctx, "org", []catalog.Vendor{{ID: "v1", Name: "Acme Corp"}})

	c := catalog.NewCachedStore(backing, 0, 0)

	for range 3 {
		v, err := c.ListVendors(ctx, "org")
		if err != nil || len(v) != 1 {
			t.Fatalf("ListVendors = %v, %v", v, err)
		}
	}
	if got := backing.vendorLists.Load(); got != 1 {
		t.Errorf("expected 1 backing call, got %d", got)
	}

	// Writes through the cache invalidate the organization.
	if _, err := c.UpsertVendors(ctx, "org", []catalog.Vendor{{ID: "v2", Name: "Globex"}}); err != nil {
		t.Fatalf("UpsertVendors: %v", err)
	}
	v, _ := c.ListVendors(ctx, "org")
	if len(v) != 2 {
		t.Errorf("expected 2 vendors after write, got %d", len(v))
	}
	if got := backing.vendorLists.Load(); got != 2 {
		t.Errorf("expected 2 backing calls, got %d", got)
	}
}

func TestCachedStore_CopiesOnRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := catalog.NewMemStore()
	_, _ = backing.UpsertInventory(ctx, "org", []catalog.InventoryItem{{ID: "p", Name: "Widget A", Quantity: 3}})

	c := catalog.NewCachedStore(backing, 4, 0)
	first, _ := c.ListInventory(ctx, "org")
	first[0].Quantity = 999

	second, _ := c.ListInventory(ctx, "org")
	if second[0].Quantity != 3 {
		t.Errorf("cache was mutated through returned slice: %v", second[0].Quantity)
	}
}

func TestCachedStore_Purge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := &countingStore{MemStore: catalog.NewMemStore()}
	c := catalog.NewCachedStore(backing, 4, 0)

	_, _ = c.ListInventory(ctx, "org")
	c.Purge()
	_, _ = c.ListInventory(ctx, "org")
	if got := backing.inventoryLists.Load(); got != 2 {
		t.Errorf("expected purge to force reload, got %d backing calls", got)
	}
}

func TestCachedStore_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := &countingStore{MemStore: catalog.NewMemStore()}
	_, _ = backing.UpsertInventory(ctx, "org", []catalog.InventoryItem{{ID: "p", Name: "Widget A", Quantity: 50}})

	const ttl = 50 * time.Millisecond
	c := catalog.NewCachedStore(backing, 4, ttl)
	if items, _ := c.ListInventory(ctx, "org"); items[0].Quantity != 50 {
		t.Fatalf("initial stock = %v, want 50", items[0].Quantity)
	}

	// Stock changes behind the cache's back.
	_, _ = backing.UpsertInventory(ctx, "org", []catalog.InventoryItem{{ID: "p", Name: "Widget A", Quantity: 5}})
	if items, _ := c.ListInventory(ctx, "org"); items[0].Quantity != 50 {
		t.Errorf("stock within TTL = %v, want cached 50", items[0].Quantity)
	}

	time.Sleep(3 * ttl)
	items, err := c.ListInventory(ctx, "org")
	if err != nil {
		t.Fatalf("ListInventory: %v", err)
	}
	if items[0].Quantity != 5 {
		t.Errorf("stock after TTL = %v, want 5", items[0].Quantity)
	}
	if got := backing.inventoryLists.Load(); got != 2 {
		t.Errorf("expected 2 backing calls, got %d", got)
	}
}
