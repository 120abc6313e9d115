// Package ledger persists confirmed orders and follow-up tasks. A [Store]
// receives at most one order and one task per confirmation; backends are an
// append-only JSON lines file, PostgreSQL, SQLite and a Kafka topic.
//
// Records carry a caller-assigned ID so a confirmation that is retried
// after a partial failure does not write duplicates on backends that can
// deduplicate.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/salesnote/internal/extract"
)

var (
	// ErrMissingOrganization is returned for records without an organization.
	ErrMissingOrganization = errors.New("ledger: organization id is required")

	// ErrEmptyOrder is returned for an order without line items.
	ErrEmptyOrder = errors.New("ledger: order has no line items")

	// ErrEmptyTask is returned for a task without a description.
	ErrEmptyTask = errors.New("ledger: task description is empty")
)

// OrderRecord is a confirmed order.
type OrderRecord struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`

	// VendorID is nil when the customer did not resolve to a catalog vendor.
	VendorID *string `json:"vendor_id"`

	// Customer is the customer name as shown on the confirmed draft.
	Customer  string             `json:"customer"`
	LineItems []extract.LineItem `json:"line_items"`
	Notes     string             `json:"notes"`
	Timestamp time.Time          `json:"timestamp"`
}

// Validate checks the fields every backend relies on.
func (r OrderRecord) Validate() error {
	var errs []error
	if r.OrganizationID == "" {
		errs = append(errs, ErrMissingOrganization)
	}
	if len(r.LineItems) == 0 {
		errs = append(errs, ErrEmptyOrder)
	}
	return errors.Join(errs...)
}

// TaskRecord is a follow-up task created alongside an order.
type TaskRecord struct {
	ID             string    `json:"id"`
	Description    string    `json:"description"`
	OrganizationID string    `json:"organization_id"`
	VendorID       *string   `json:"vendor_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate checks the fields every backend relies on.
func (r TaskRecord) Validate() error {
	var errs []error
	if r.OrganizationID == "" {
		errs = append(errs, ErrMissingOrganization)
	}
	if r.Description == "" {
		errs = append(errs, ErrEmptyTask)
	}
	return errors.Join(errs...)
}

// Store is a destination for confirmed records. Implementations must be
// safe for concurrent use.
type Store interface {
	WriteOrder(ctx context.Context, rec OrderRecord) error
	WriteTask(ctx context.Context, rec TaskRecord) error
}

// NewID returns a fresh record ID.
func NewID() string {
	return uuid.NewString()
}

// VendorRef returns a pointer to id, or nil when id is empty.
func VendorRef(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
