package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog format shared by the YAML seed file and the
// spreadsheet importer.
//
// Example:
//
//	organization: acme-sales
//	vendors:
//	  - id: v1
//	    name: "Acme Corp"
//	inventory:
//	  - id: p1
//	    name: "Widget A"
//	    quantity: 50
//	    unit_price: 12
//	    min_price: 10
//	    max_price: 15
type File struct {
	Organization string          `yaml:"organization"`
	Vendors      []Vendor        `yaml:"vendors"`
	Inventory    []InventoryItem `yaml:"inventory"`
}

// LoadFile reads a catalog file from disk. The format is chosen by
// extension: .xlsx is read as a workbook, everything else as YAML.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	var cf *File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		cf, err = LoadWorkbook(f)
	default:
		cf, err = LoadYAML(f)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	return cf, nil
}

// LoadYAML parses catalog YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadYAML(r io.Reader) (*File, error) {
	var cf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&cf); err != nil {
		if err == io.EOF {
			return &cf, nil
		}
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return &cf, nil
}

// Import writes all vendors and inventory of cf into dst for orgID. When
// orgID is empty the file's own organization is used.
// It returns the number of vendors and items written.
func Import(ctx context.Context, dst Importer, orgID string, cf *File) (vendors, items int, err error) {
	if cf == nil {
		return 0, 0, fmt.Errorf("catalog: file must not be nil")
	}
	if orgID == "" {
		orgID = cf.Organization
	}
	if orgID == "" {
		return 0, 0, ErrMissingOrganization
	}

	vendors, err = dst.UpsertVendors(ctx, orgID, cf.Vendors)
	if err != nil {
		return vendors, 0, fmt.Errorf("catalog: import vendors for %q: %w", orgID, err)
	}
	items, err = dst.UpsertInventory(ctx, orgID, cf.Inventory)
	if err != nil {
		return vendors, items, fmt.Errorf("catalog: import inventory for %q: %w", orgID, err)
	}
	return vendors, items, nil
}
