package extract

import (
	"fmt"
	"strings"

	"github.com/MrWong99/salesnote/internal/amount"
	"github.com/MrWong99/salesnote/internal/catalog"
)

// Prompt size bounds. Truncation keeps the first entries in catalog order.
const (
	MaxPromptInventory = 30
	MaxPromptVendors   = 50
)

// Snapshot is the prompt-sized text rendering of a catalog.
type Snapshot struct {
	Vendors   string
	Inventory string
}

// BuildSnapshot renders the first [MaxPromptVendors] vendors and the first
// [MaxPromptInventory] inventory items as text blocks, one entry per line.
// Empty inputs yield empty blocks.
func BuildSnapshot(vendors []catalog.Vendor, items []catalog.InventoryItem) Snapshot {
	var vb strings.Builder
	for i, v := range vendors {
		if i == MaxPromptVendors {
			break
		}
		fmt.Fprintf(&vb, "- %s\n", strings.TrimSpace(v.Name))
	}

	var ib strings.Builder
	for i, it := range items {
		if i == MaxPromptInventory {
			break
		}
		fmt.Fprintf(&ib, "- %s | stock: %s | unit price: $%s | min price: $%s\n",
			strings.TrimSpace(it.Name), amount.Format(it.Quantity), amount.Money(it.UnitPrice), amount.Money(it.MinPrice))
	}

	return Snapshot{
		Vendors:   strings.TrimRight(vb.String(), "\n"),
		Inventory: strings.TrimRight(ib.String(), "\n"),
	}
}
