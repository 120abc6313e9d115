package draft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/salesnote/internal/extract"
	"github.com/MrWong99/salesnote/internal/ledger"
	"github.com/MrWong99/salesnote/internal/resolve"
	"github.com/MrWong99/salesnote/internal/validate"
)

// Revalidator re-runs resolution and the business rules for edited fields
// against the catalog snapshot the draft was built from.
type Revalidator interface {
	ResolveCustomer(name string) (canonical, id string, resolved bool)
	Revalidate(item extract.LineItem) extract.LineItem
	SuggestCustomers(name string) []resolve.Candidate
	SuggestProducts(name string) []resolve.Candidate
}

// Content is the outcome of a processing run installed into a session.
type Content struct {
	OrganizationID string
	Order          extract.Order
	Report         extract.Report

	// Catalog revalidates later edits. Nil treats every name as unresolved.
	Catalog Revalidator
}

// Receipt identifies what a confirmation wrote. Empty IDs mean that record
// was not needed.
type Receipt struct {
	OrderID string `json:"order_id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

// payload is the set of records a confirmation writes. It survives a
// failed Confirm so the retry sends the same IDs.
type payload struct {
	order     *ledger.OrderRecord
	task      *ledger.TaskRecord
	orderDone bool
	taskDone  bool
}

// Session is one user's draft. It is not safe for concurrent use; the
// [Manager] serialises access.
type Session struct {
	user    string
	state   State
	orgID   string
	input   string
	order   extract.Order
	report  extract.Report
	catalog Revalidator
	pending *payload
	receipt Receipt
	failure string
	updated time.Time
	now     func() time.Time
}

// NewSession returns an empty session for user.
func NewSession(user string) *Session {
	s := &Session{user: user, now: time.Now}
	s.updated = s.now()
	return s
}

// User returns the session owner.
func (s *Session) User() string { return s.user }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Order returns a copy of the drafted order.
func (s *Session) Order() extract.Order { return s.order.Clone() }

// Input returns the note of the latest processing run.
func (s *Session) Input() string { return s.input }

// StartProcessing begins a run for note. Any drafted content is discarded.
// Starting while another run is in flight supersedes it.
func (s *Session) StartProcessing(orgID, note string) {
	s.state = StateProcessing
	s.orgID = orgID
	s.input = note
	s.order = extract.Order{}
	s.report = extract.Report{}
	s.catalog = nil
	s.pending = nil
	s.receipt = Receipt{}
	s.failure = ""
	s.touch()
}

// Install moves a processing session to Drafted with c.
func (s *Session) Install(c Content) error {
	if s.state != StateProcessing {
		return invalid("install", s.state)
	}
	s.state = StateDrafted
	if c.OrganizationID != "" {
		s.orgID = c.OrganizationID
	}
	s.order = c.Order.Clone()
	s.report = c.Report
	s.catalog = c.Catalog
	if s.catalog == nil {
		s.catalog = unresolved{}
	}
	s.touch()
	return nil
}

// Fail moves a processing session back to Empty with a user-facing
// message. The input note is kept.
func (s *Session) Fail(message string) error {
	if s.state != StateProcessing {
		return invalid("fail", s.state)
	}
	s.state = StateEmpty
	s.failure = message
	s.touch()
	return nil
}

// Cancel discards a processing or drafted session.
func (s *Session) Cancel() error {
	if s.state != StateProcessing && s.state != StateDrafted {
		return invalid("cancel", s.state)
	}
	s.state = StateCancelled
	s.pending = nil
	s.touch()
	return nil
}

// RenameCustomer sets the customer and re-resolves it.
func (s *Session) RenameCustomer(name string) error {
	if err := s.editable("rename customer"); err != nil {
		return err
	}
	canonical, id, ok := s.catalog.ResolveCustomer(name)
	s.order.Customer = canonical
	s.order.CustomerID = id
	s.order.CustomerResolved = ok
	s.edited()
	return nil
}

// AddItem appends a line item built from p and validates it. The product
// name is required; numeric fields default to 0.
func (s *Session) AddItem(p ItemPatch) error {
	if err := s.editable("add item"); err != nil {
		return err
	}
	if p.ProductName == nil || strings.TrimSpace(*p.ProductName) == "" {
		return ErrEmptyProduct
	}
	var item extract.LineItem
	applyPatch(&item, p)
	s.order.LineItems = append(s.order.LineItems, s.catalog.Revalidate(item))
	s.edited()
	return nil
}

// RemoveItem deletes the line item at i.
func (s *Session) RemoveItem(i int) error {
	if err := s.editable("remove item"); err != nil {
		return err
	}
	if i < 0 || i >= len(s.order.LineItems) {
		return fmt.Errorf("%w: %d", ErrItemIndex, i)
	}
	s.order.LineItems = append(s.order.LineItems[:i:i], s.order.LineItems[i+1:]...)
	s.edited()
	return nil
}

// EditItem applies p to the line item at i and revalidates it.
func (s *Session) EditItem(i int, p ItemPatch) error {
	if err := s.editable("edit item"); err != nil {
		return err
	}
	if i < 0 || i >= len(s.order.LineItems) {
		return fmt.Errorf("%w: %d", ErrItemIndex, i)
	}
	item := s.order.LineItems[i]
	applyPatch(&item, p)
	s.order.LineItems[i] = s.catalog.Revalidate(item)
	s.edited()
	return nil
}

// SetNote replaces the order note.
func (s *Session) SetNote(note string) error {
	if err := s.editable("set note"); err != nil {
		return err
	}
	s.order.Note = strings.TrimSpace(note)
	s.edited()
	return nil
}

// SetTask replaces the follow-up task.
func (s *Session) SetTask(task string) error {
	if err := s.editable("set task"); err != nil {
		return err
	}
	s.order.Task = strings.TrimSpace(task)
	s.edited()
	return nil
}

// Confirm writes the order (when it has line items) and the task (when it
// is non-empty) to store and moves the session to Confirmed. On failure the
// session stays Drafted with its data intact; calling Confirm again resends
// the same records, skipping any that were already written.
func (s *Session) Confirm(ctx context.Context, store ledger.Store) (Receipt, error) {
	if s.state != StateDrafted {
		return Receipt{}, invalid("confirm", s.state)
	}
	if s.pending == nil {
		s.pending = s.buildPayload()
	}
	p := s.pending

	if p.order != nil && !p.orderDone {
		if err := store.WriteOrder(ctx, *p.order); err != nil {
			return Receipt{}, fmt.Errorf("draft: confirm: write order: %w", err)
		}
		p.orderDone = true
	}
	if p.task != nil && !p.taskDone {
		if err := store.WriteTask(ctx, *p.task); err != nil {
			return Receipt{}, fmt.Errorf("draft: confirm: write task: %w", err)
		}
		p.taskDone = true
	}

	if p.order != nil {
		s.receipt.OrderID = p.order.ID
	}
	if p.task != nil {
		s.receipt.TaskID = p.task.ID
	}
	s.state = StateConfirmed
	s.pending = nil
	s.touch()
	return s.receipt, nil
}

func (s *Session) buildPayload() *payload {
	ts := s.now().UTC()
	vendor := ledger.VendorRef(s.order.CustomerID)
	p := &payload{}
	if len(s.order.LineItems) > 0 {
		items := make([]extract.LineItem, len(s.order.LineItems))
		copy(items, s.order.LineItems)
		p.order = &ledger.OrderRecord{
			ID:             ledger.NewID(),
			OrganizationID: s.orgID,
			VendorID:       vendor,
			Customer:       s.order.Customer,
			LineItems:      items,
			Notes:          s.order.Note,
			Timestamp:      ts,
		}
	}
	if s.order.Task != "" {
		p.task = &ledger.TaskRecord{
			ID:             ledger.NewID(),
			Description:    s.order.Task,
			OrganizationID: s.orgID,
			VendorID:       vendor,
			Timestamp:      ts,
		}
	}
	return p
}

func (s *Session) editable(op string) error {
	if s.state != StateDrafted {
		return invalid(op, s.state)
	}
	return nil
}

// edited rebuilds the unwritten parts of a pending payload from the
// edited draft. Records already written stay as they were sent.
func (s *Session) edited() {
	if p := s.pending; p != nil {
		fresh := s.buildPayload()
		if !p.orderDone {
			p.order = fresh.order
		}
		if !p.taskDone {
			p.task = fresh.task
		}
	}
	s.touch()
}

func (s *Session) touch() {
	s.updated = s.now()
}

func applyPatch(item *extract.LineItem, p ItemPatch) {
	if p.ProductName != nil {
		item.ProductName = strings.TrimSpace(*p.ProductName)
	}
	if p.Quantity != nil {
		item.Quantity = p.Quantity.Value()
	}
	if p.UnitPrice != nil {
		item.UnitPrice = p.UnitPrice.Value()
	}
	if p.DiscountPercent != nil {
		if p.DiscountPercent.Blank() {
			item.DiscountExplicit = false
			item.DiscountPercent = 0
		} else {
			item.DiscountExplicit = true
			item.DiscountPercent = p.DiscountPercent.Value()
		}
	}
}

// View is a read-only snapshot of a session for presentation.
type View struct {
	User           string          `json:"user"`
	State          State           `json:"state"`
	OrganizationID string          `json:"organization_id,omitempty"`
	Input          string          `json:"input,omitempty"`
	Order          *extract.Order  `json:"order,omitempty"`
	Report         *extract.Report `json:"report,omitempty"`

	// CustomerSuggestions is set when the customer did not resolve.
	CustomerSuggestions []resolve.Candidate `json:"customer_suggestions,omitempty"`

	// ProductSuggestions is keyed by line-item index for unresolved items.
	ProductSuggestions map[int][]resolve.Candidate `json:"product_suggestions,omitempty"`

	// Error is the message of the last failed processing run.
	Error   string    `json:"error,omitempty"`
	Receipt *Receipt  `json:"receipt,omitempty"`
	Updated time.Time `json:"updated_at"`
}

// View returns a snapshot of s with suggestions for unresolved names.
func (s *Session) View() View {
	v := View{
		User:           s.user,
		State:          s.state,
		OrganizationID: s.orgID,
		Input:          s.input,
		Error:          s.failure,
		Updated:        s.updated,
	}
	if s.state == StateDrafted || s.state == StateConfirmed {
		o := s.order.Clone()
		rep := s.report
		v.Order = &o
		v.Report = &rep
	}
	if s.state == StateDrafted && s.catalog != nil {
		if !s.order.CustomerResolved && s.order.Customer != "" {
			v.CustomerSuggestions = s.catalog.SuggestCustomers(s.order.Customer)
		}
		for i, it := range s.order.LineItems {
			if it.Resolved {
				continue
			}
			if sugg := s.catalog.SuggestProducts(it.ProductName); len(sugg) > 0 {
				if v.ProductSuggestions == nil {
					v.ProductSuggestions = make(map[int][]resolve.Candidate)
				}
				v.ProductSuggestions[i] = sugg
			}
		}
	}
	if s.state == StateConfirmed {
		r := s.receipt
		v.Receipt = &r
	}
	return v
}

// unresolved is the Revalidator used when a run installed no catalog.
type unresolved struct{}

func (unresolved) ResolveCustomer(name string) (string, string, bool) {
	return strings.TrimSpace(name), "", false
}

func (unresolved) Revalidate(item extract.LineItem) extract.LineItem {
	item.Resolved = false
	item.ProductID = ""
	return validate.Check(item, nil)
}

func (unresolved) SuggestCustomers(string) []resolve.Candidate { return nil }
func (unresolved) SuggestProducts(string) []resolve.Candidate  { return nil }
