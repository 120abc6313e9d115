package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/MrWong99/salesnote/internal/amount"
)

// column keys recognised in spreadsheet header rows.
const (
	colID        = "id"
	colName      = "name"
	colQuantity  = "quantity"
	colUnitPrice = "unit_price"
	colMinPrice  = "min_price"
	colMaxPrice  = "max_price"
	colLocation  = "location"
)

// headerSynonyms maps normalised header text to a column key.
var headerSynonyms = map[string]string{
	"id": colID, "sku": colID, "code": colID, "vendor id": colID, "customer id": colID, "product id": colID,
	"name": colName, "product": colName, "product name": colName, "item": colName,
	"vendor": colName, "vendor name": colName, "customer": colName, "customer name": colName,
	"quantity": colQuantity, "qty": colQuantity, "stock": colQuantity, "on hand": colQuantity,
	"unit price": colUnitPrice, "price": colUnitPrice, "list price": colUnitPrice,
	"min price": colMinPrice, "minimum price": colMinPrice, "floor": colMinPrice, "floor price": colMinPrice,
	"max price": colMaxPrice, "maximum price": colMaxPrice, "ceiling": colMaxPrice,
	"location": colLocation, "warehouse": colLocation, "bin": colLocation,
}

// LoadWorkbook reads a catalog from an .xlsx workbook. Sheets whose name
// mentions vendors or customers become vendors; every other sheet is read
// as inventory. Each sheet needs a header row within its first three rows.
// Rows without a name are skipped.
func LoadWorkbook(r io.Reader) (*File, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("catalog: open workbook: %w", err)
	}
	defer f.Close()

	cf := &File{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("catalog: read sheet %q: %w", sheet, err)
		}
		cols, start := findHeader(rows)
		if cols == nil {
			continue
		}

		vendorSheet := isVendorSheet(sheet)
		for _, row := range rows[start:] {
			name := cell(row, cols, colName)
			if name == "" {
				continue
			}
			if vendorSheet {
				cf.Vendors = append(cf.Vendors, Vendor{ID: cell(row, cols, colID), Name: name})
				continue
			}
			cf.Inventory = append(cf.Inventory, InventoryItem{
				ID:        cell(row, cols, colID),
				Name:      name,
				Quantity:  amount.NonNegative(cell(row, cols, colQuantity)),
				UnitPrice: amount.NonNegative(cell(row, cols, colUnitPrice)),
				MinPrice:  amount.NonNegative(cell(row, cols, colMinPrice)),
				MaxPrice:  amount.NonNegative(cell(row, cols, colMaxPrice)),
				Location:  cell(row, cols, colLocation),
			})
		}
	}
	return cf, nil
}

// findHeader locates the header row among the first three rows and returns
// the column index per key plus the index of the first data row.
func findHeader(rows [][]string) (map[string]int, int) {
	for i := 0; i < len(rows) && i < 3; i++ {
		cols := map[string]int{}
		for j, c := range rows[i] {
			key, ok := headerSynonyms[normalizeHeader(c)]
			if !ok {
				continue
			}
			if _, dup := cols[key]; !dup {
				cols[key] = j
			}
		}
		if _, ok := cols[colName]; ok {
			return cols, i + 1
		}
	}
	return nil, 0
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ", ".", "", "(", "", ")", "", "$", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func isVendorSheet(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "vendor") || strings.Contains(n, "customer") || strings.Contains(n, "client")
}

func cell(row []string, cols map[string]int, key string) string {
	idx, ok := cols[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
