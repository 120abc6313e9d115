package validate_test

import (
	"testing"

	"github.com/MrWong99/salesnote/internal/catalog"
	"github.com/MrWong99/salesnote/internal/extract"
	"github.com/MrWong99/salesnote/internal/validate"
)

func widget() *catalog.InventoryItem {
	return &catalog.InventoryItem{ID: "i1", Name: "Widget A", Quantity: 50, UnitPrice: 15, MinPrice: 10}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		item         extract.LineItem
		match        *catalog.InventoryItem
		wantStatus   string
		wantDiscount float64
	}{
		{
			name:         "valid with derived discount",
			item:         extract.LineItem{ProductName: "Widget A", Quantity: 10, UnitPrice: 12},
			match:        widget(),
			wantStatus:   extract.StatusValid,
			wantDiscount: 20,
		},
		{
			name:         "stock exceeded",
			item:         extract.LineItem{ProductName: "Widget A", Quantity: 60, UnitPrice: 15},
			match:        widget(),
			wantStatus:   "Warning: Quantity exceeds available stock (50)",
			wantDiscount: 0,
		},
		{
			name:         "price below minimum",
			item:         extract.LineItem{ProductName: "Widget A", Quantity: 5, UnitPrice: 9},
			match:        widget(),
			wantStatus:   "Warning: Price below minimum (10)",
			wantDiscount: 40,
		},
		{
			name:         "both warnings in order",
			item:         extract.LineItem{ProductName: "Widget A", Quantity: 51, UnitPrice: 9.5},
			match:        widget(),
			wantStatus:   "Warning: Quantity exceeds available stock (50), Warning: Price below minimum (10)",
			wantDiscount: 37,
		},
		{
			name:         "explicit discount kept",
			item:         extract.LineItem{ProductName: "Widget A", Quantity: 1, UnitPrice: 12, DiscountPercent: 5, DiscountExplicit: true},
			match:        widget(),
			wantStatus:   extract.StatusValid,
			wantDiscount: 5,
		},
		{
			name:         "unmatched",
			item:         extract.LineItem{ProductName: "Gizmo", Quantity: 1000, UnitPrice: 0, DiscountPercent: 12},
			match:        nil,
			wantStatus:   validate.WarnNotFound,
			wantDiscount: 0,
		},
		{
			name:         "non-numeric input coerced to zero",
			item:         extract.LineItem{ProductName: "Widget A"},
			match:        widget(),
			wantStatus:   "Warning: Price below minimum (10)",
			wantDiscount: 100,
		},
		{
			name:         "fractional figures",
			item:         extract.LineItem{ProductName: "Cable", Quantity: 13, UnitPrice: 2},
			match:        &catalog.InventoryItem{Name: "Cable", Quantity: 12.5, UnitPrice: 3, MinPrice: 2.25},
			wantStatus:   "Warning: Quantity exceeds available stock (12.5), Warning: Price below minimum (2.25)",
			wantDiscount: 33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := validate.Check(tt.item, tt.match)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.DiscountPercent != tt.wantDiscount {
				t.Errorf("DiscountPercent = %v, want %v", got.DiscountPercent, tt.wantDiscount)
			}
			if got.ProductName != tt.item.ProductName {
				t.Errorf("ProductName changed to %q", got.ProductName)
			}
		})
	}
}

func TestDerivedDiscount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		catalog, price, want float64
	}{
		{100, 80, 20},
		{100, 120, 0},
		{100, 100, 0},
		{0, 10, 0},
		{3, 2, 33},
	}
	for _, tt := range tests {
		if got := validate.DerivedDiscount(tt.catalog, tt.price); got != tt.want {
			t.Errorf("DerivedDiscount(%v, %v) = %v, want %v", tt.catalog, tt.price, got, tt.want)
		}
	}
}

// Raising the quantity or lowering the price never clears a warning.
func TestCheck_Monotonic(t *testing.T) {
	t.Parallel()

	match := widget()
	base := extract.LineItem{ProductName: "Widget A", Quantity: 60, UnitPrice: 9}
	if !validate.HasWarning(validate.Check(base, match).Status) {
		t.Fatal("base item should carry warnings")
	}
	for _, q := range []float64{60, 61, 100, 1e6} {
		for _, p := range []float64{9, 5, 0} {
			it := base
			it.Quantity, it.UnitPrice = q, p
			got := validate.Check(it, match).Status
			if got != "Warning: Quantity exceeds available stock (50), Warning: Price below minimum (10)" {
				t.Errorf("qty=%v price=%v: status %q lost a warning", q, p, got)
			}
		}
	}
}

func TestCheck_Deterministic(t *testing.T) {
	t.Parallel()

	it := extract.LineItem{ProductName: "Widget A", Quantity: 10, UnitPrice: 12}
	a := validate.Check(it, widget())
	b := validate.Check(a, widget())
	if a != b {
		t.Errorf("re-checking changed the item: %+v vs %+v", a, b)
	}
}
