package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/salesnote/internal/catalog"
	"github.com/MrWong99/salesnote/internal/extract"
	"github.com/MrWong99/salesnote/internal/pipeline"
	"github.com/MrWong99/salesnote/internal/resolve"
	"github.com/MrWong99/salesnote/internal/validate"
	"github.com/MrWong99/salesnote/pkg/provider/llm"
	llmmock "github.com/MrWong99/salesnote/pkg/provider/llm/mock"
)

const org = "org-1"

const wellFormedReply = "**Customer**: Acme Corp\n" +
	"**Quote / Order**:\n" +
	"| Widget A | 10 | $12.00 | | OK |\n" +
	"**Note**:\n> Deliver Friday\n" +
	"**Task**:\n> none\n" +
	"**Ambiguities (if any)**:\n> none"

func newCatalog(t *testing.T, stock float64) *catalog.MemStore {
	t.Helper()
	s := catalog.NewMemStore()
	ctx := context.Background()
	if _, err := s.UpsertVendors(ctx, org, []catalog.Vendor{
		{ID: "v1", Name: "Acme Corporation"},
		{ID: "v2", Name: "Acme Corp"},
		{ID: "v3", Name: "Beta LLC"},
	}); err != nil {
		t.Fatalf("UpsertVendors: %v", err)
	}
	if _, err := s.UpsertInventory(ctx, org, []catalog.InventoryItem{
		{ID: "i1", Name: "Widget A", Quantity: stock, UnitPrice: 15, MinPrice: 10, MaxPrice: 20},
		{ID: "i2", Name: "BoxSet", Quantity: 10, UnitPrice: 10, MinPrice: 8, MaxPrice: 12},
	}); err != nil {
		t.Fatalf("UpsertInventory: %v", err)
	}
	return s
}

func newEngine(t *testing.T, stock float64, reply string) (*pipeline.Engine, *llmmock.Provider) {
	t.Helper()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: reply}}
	return pipeline.NewEngine(newCatalog(t, stock), pipeline.NewInvoker(p)), p
}

func TestEngine_WellFormedReply(t *testing.T) {
	t.Parallel()

	e, p := newEngine(t, 50, wellFormedReply)
	res, err := e.Process(context.Background(), org, "acme, 10 widget a at 12, deliver friday")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	o := res.Order
	if o.Customer != "Acme Corp" || o.CustomerID != "v2" || !o.CustomerResolved {
		t.Errorf("customer = %q/%q/%v, want Acme Corp/v2/true", o.Customer, o.CustomerID, o.CustomerResolved)
	}
	if o.Source != extract.SourceModel {
		t.Errorf("Source = %q, want model", o.Source)
	}
	if res.Fallback != nil {
		t.Error("fallback used for a well-formed reply")
	}
	if len(o.LineItems) != 1 {
		t.Fatalf("line items = %d, want 1", len(o.LineItems))
	}
	li := o.LineItems[0]
	want := extract.LineItem{
		ProductName:     "Widget A",
		ProductID:       "i1",
		Resolved:        true,
		Quantity:        10,
		UnitPrice:       12,
		DiscountPercent: 20,
		Status:          extract.StatusValid,
	}
	if li != want {
		t.Errorf("line item = %+v, want %+v", li, want)
	}
	if o.Note != "Deliver Friday" || o.Task != "" || o.Ambiguities != "" {
		t.Errorf("note/task/ambiguities = %q/%q/%q", o.Note, o.Task, o.Ambiguities)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(calls))
	}
	prompt := calls[0].Req.Messages[0].Content
	for _, s := range []string{"acme, 10 widget a at 12", "Widget A", "Acme Corp"} {
		if !strings.Contains(prompt, s) {
			t.Errorf("prompt missing %q", s)
		}
	}
}

func TestEngine_StockWarning(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 5, wellFormedReply)
	res, err := e.Process(context.Background(), org, "note")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := res.Order.LineItems[0].Status
	if want := "Warning: Quantity exceeds available stock (5)"; got != want {
		t.Errorf("Status = %q, want %q", got, want)
	}
}

func TestEngine_FallbackWhenTableMissing(t *testing.T) {
	t.Parallel()

	reply := "**Customer**: Acme Corp\n**Quote / Order**:\nI could not build a table.\n**Note**:\n> none"
	e, _ := newEngine(t, 50, reply)

	res, err := e.Process(context.Background(), org, "Acme Corp, BoxSet, 3, $9")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Fallback == nil {
		t.Fatal("Fallback report is nil")
	}
	o := res.Order
	if o.Source != extract.SourceFallback {
		t.Errorf("Source = %q, want fallback", o.Source)
	}
	if len(o.LineItems) != 1 {
		t.Fatalf("line items = %d, want 1", len(o.LineItems))
	}
	li := o.LineItems[0]
	if li.ProductName != "BoxSet" || li.Quantity != 3 || li.UnitPrice != 9 {
		t.Errorf("line item = %+v, want BoxSet x3 @9", li)
	}
	if !li.Resolved || li.Status != extract.StatusValid || li.DiscountPercent != 10 {
		t.Errorf("validation = resolved %v status %q discount %v", li.Resolved, li.Status, li.DiscountPercent)
	}
	if o.Customer != "Acme Corp" || !o.CustomerResolved {
		t.Errorf("customer = %q resolved %v", o.Customer, o.CustomerResolved)
	}
	if !res.Report.Has(extract.SectionCustomer) {
		t.Error("report lost the customer section")
	}
}

func TestEngine_FallbackUnknownProduct(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 50, "sorry, no idea")
	res, err := e.Process(context.Background(), org, "Beta LLC, Gizmo Z, 2, $4")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Order.LineItems) != 1 {
		t.Fatalf("line items = %d, want 1", len(res.Order.LineItems))
	}
	li := res.Order.LineItems[0]
	if li.Resolved || li.Status != validate.WarnNotFound || li.ProductName != "Gizmo Z" {
		t.Errorf("line item = %+v, want unresolved Gizmo Z", li)
	}
	if res.Order.Customer != "Beta LLC" {
		t.Errorf("customer = %q", res.Order.Customer)
	}
}

func TestEngine_ExactCustomerWinsOverFuzzy(t *testing.T) {
	t.Parallel()

	reply := strings.Replace(wellFormedReply, "Acme Corp", "acme corp", 1)
	e, _ := newEngine(t, 50, reply)

	res, err := e.Process(context.Background(), org, "note")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Customer.Kind != resolve.KindExact {
		t.Errorf("Kind = %q, want exact", res.Customer.Kind)
	}
	if res.Order.Customer != "Acme Corp" {
		t.Errorf("Customer = %q, want Acme Corp", res.Order.Customer)
	}
}

func TestEngine_InputErrors(t *testing.T) {
	t.Parallel()

	e, p := newEngine(t, 50, wellFormedReply)
	if _, err := e.Process(context.Background(), "", "note"); !errors.Is(err, catalog.ErrMissingOrganization) {
		t.Errorf("no org: err = %v", err)
	}
	if _, err := e.Process(context.Background(), org, "  \n "); !errors.Is(err, pipeline.ErrEmptyNote) {
		t.Errorf("empty note: err = %v", err)
	}
	if n := len(p.Calls()); n != 0 {
		t.Errorf("completion calls = %d, want 0", n)
	}
}

func TestEngine_CompletionFailure(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteErr: errors.New("boom")}
	e := pipeline.NewEngine(newCatalog(t, 50), pipeline.NewInvoker(p))

	res, err := e.Process(context.Background(), org, "note")
	if res != nil {
		t.Error("result returned on completion failure")
	}
	var cf *pipeline.CompletionFailure
	if !errors.As(err, &cf) {
		t.Fatalf("err = %v, want *CompletionFailure", err)
	}
}

type failingCatalog struct{ err error }

func (f failingCatalog) ListVendors(context.Context, string) ([]catalog.Vendor, error) {
	return nil, nil
}

func (f failingCatalog) ListInventory(context.Context, string) ([]catalog.InventoryItem, error) {
	return nil, f.err
}

func TestEngine_CatalogError(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("db down")
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: wellFormedReply}}
	e := pipeline.NewEngine(failingCatalog{err: dbErr}, pipeline.NewInvoker(p))

	if _, err := e.Process(context.Background(), org, "note"); !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped db error", err)
	}
	if n := len(p.Calls()); n != 0 {
		t.Errorf("completion calls = %d, want 0", n)
	}
}

func TestCatalogView(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 50, wellFormedReply)
	res, err := e.Process(context.Background(), org, "note")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	view := res.Catalog

	name, id, ok := view.ResolveCustomer("beta llc")
	if !ok || name != "Beta LLC" || id != "v3" {
		t.Errorf("ResolveCustomer = %q/%q/%v", name, id, ok)
	}
	if name, _, ok := view.ResolveCustomer("Zeta Industries"); ok || name != "Zeta Industries" {
		t.Errorf("unknown customer = %q/%v", name, ok)
	}

	item := view.Revalidate(extract.LineItem{ProductName: "widget a", Quantity: 60, UnitPrice: 9})
	if item.ProductName != "Widget A" || !item.Resolved {
		t.Errorf("Revalidate name = %q resolved %v", item.ProductName, item.Resolved)
	}
	want := "Warning: Quantity exceeds available stock (50), Warning: Price below minimum (10)"
	if item.Status != want {
		t.Errorf("Status = %q, want %q", item.Status, want)
	}

	sugg := view.SuggestProducts("Widgit")
	if len(sugg) == 0 || sugg[0].Name != "Widget A" {
		t.Errorf("SuggestProducts = %+v", sugg)
	}
	if got := view.SuggestCustomers("Acme"); len(got) == 0 || len(got) > pipeline.DefaultSuggestions {
		t.Errorf("SuggestCustomers = %+v", got)
	}
}
