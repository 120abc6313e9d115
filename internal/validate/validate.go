// Package validate applies the business rules that decide a line item's
// status and derived discount. Check is pure and is re-run whenever an item
// is edited.
package validate

import (
	"math"
	"strings"

	"github.com/MrWong99/salesnote/internal/amount"
	"github.com/MrWong99/salesnote/internal/catalog"
	"github.com/MrWong99/salesnote/internal/extract"
)

// Warning texts. Stock and price warnings carry the catalog figure in
// parentheses.
const (
	WarnNotFound = "Warning: Product not found in inventory"
	warnStock    = "Warning: Quantity exceeds available stock"
	warnMinPrice = "Warning: Price below minimum"
)

// Check recomputes item's status against match, the catalog entry it
// resolved to, or nil when unresolved. Warnings are joined with ", ". A
// matched item without an explicit discount gets one derived from the
// catalog unit price; markups never produce a negative discount.
func Check(item extract.LineItem, match *catalog.InventoryItem) extract.LineItem {
	out := item
	out.Quantity = math.Max(0, out.Quantity)
	out.UnitPrice = math.Max(0, out.UnitPrice)
	out.DiscountPercent = math.Max(0, out.DiscountPercent)

	if match == nil {
		if !out.DiscountExplicit {
			out.DiscountPercent = 0
		}
		out.Status = WarnNotFound
		return out
	}

	var warnings []string
	if out.Quantity > match.Quantity {
		warnings = append(warnings, warnStock+" ("+amount.Format(match.Quantity)+")")
	}
	if out.UnitPrice < match.MinPrice {
		warnings = append(warnings, warnMinPrice+" ("+amount.Format(match.MinPrice)+")")
	}

	if !out.DiscountExplicit {
		out.DiscountPercent = DerivedDiscount(match.UnitPrice, out.UnitPrice)
	}

	if len(warnings) == 0 {
		out.Status = extract.StatusValid
	} else {
		out.Status = strings.Join(warnings, ", ")
	}
	return out
}

// DerivedDiscount is round((catalog-price)/catalog*100), floored at 0. A
// non-positive catalog price yields 0.
func DerivedDiscount(catalogPrice, price float64) float64 {
	if catalogPrice <= 0 {
		return 0
	}
	return math.Max(0, math.Round((catalogPrice-price)/catalogPrice*100))
}

// HasWarning reports whether status carries at least one warning.
func HasWarning(status string) bool {
	return strings.HasPrefix(status, "Warning:")
}
