package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/salesnote/internal/extract"
	"github.com/MrWong99/salesnote/internal/ledger"
)

func sampleOrder() ledger.OrderRecord {
	return ledger.OrderRecord{
		ID:             "o-1",
		OrganizationID: "org-1",
		VendorID:       ledger.VendorRef("v1"),
		Customer:       "Acme Corp",
		LineItems: []extract.LineItem{
			{ProductName: "Widget A", ProductID: "i1", Resolved: true, Quantity: 10, UnitPrice: 12, DiscountPercent: 20, Status: extract.StatusValid},
		},
		Notes:     "Deliver Friday",
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func sampleTask() ledger.TaskRecord {
	return ledger.TaskRecord{
		ID:             "t-1",
		Description:    "Follow up Friday",
		OrganizationID: "org-1",
		Timestamp:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestOrderRecord_Validate(t *testing.T) {
	t.Parallel()

	if err := sampleOrder().Validate(); err != nil {
		t.Fatalf("valid order: %v", err)
	}

	err := ledger.OrderRecord{}.Validate()
	if !errors.Is(err, ledger.ErrMissingOrganization) || !errors.Is(err, ledger.ErrEmptyOrder) {
		t.Errorf("empty order error = %v, want both sentinel errors", err)
	}
}

func TestTaskRecord_Validate(t *testing.T) {
	t.Parallel()

	if err := sampleTask().Validate(); err != nil {
		t.Fatalf("valid task: %v", err)
	}
	err := ledger.TaskRecord{OrganizationID: "org"}.Validate()
	if !errors.Is(err, ledger.ErrEmptyTask) {
		t.Errorf("error = %v, want ErrEmptyTask", err)
	}
}

func TestVendorRef(t *testing.T) {
	t.Parallel()

	if ledger.VendorRef("") != nil {
		t.Error("empty id should map to nil")
	}
	if p := ledger.VendorRef("v1"); p == nil || *p != "v1" {
		t.Errorf("VendorRef(v1) = %v", p)
	}
}

func TestNewID_Unique(t *testing.T) {
	t.Parallel()

	if ledger.NewID() == ledger.NewID() {
		t.Error("NewID returned the same value twice")
	}
}
