// Package pipeline runs one "process note" action end to end: it loads the
// organization's catalog, prompts the completion service, parses the reply
// (falling back to heuristics when it yields no line items), resolves names
// against the catalog and validates every line item.
//
// Every entry point takes the organization explicitly; the package holds no
// catalog state between runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/salesnote/internal/catalog"
	"github.com/MrWong99/salesnote/internal/extract"
	"github.com/MrWong99/salesnote/internal/observe"
	"github.com/MrWong99/salesnote/internal/resolve"
	"github.com/MrWong99/salesnote/internal/validate"
)

// ErrEmptyNote is returned when there is nothing to process.
var ErrEmptyNote = errors.New("pipeline: note is empty")

// DefaultSuggestions is the number of candidates offered for an unresolved
// name.
const DefaultSuggestions = 3

// CatalogReader is the read side of a catalog backend.
type CatalogReader interface {
	catalog.VendorStore
	catalog.InventoryStore
}

// Completer is the completion step. [*Invoker] implements it.
type Completer interface {
	Invoke(ctx context.Context, prompt string, params Params) (string, error)
}

// Option is a functional option for [NewEngine].
type Option func(*Engine)

// WithParams sets the completion parameters for every run.
func WithParams(p Params) Option {
	return func(e *Engine) { e.params = p }
}

// WithResolver replaces the default resolver.
func WithResolver(r *resolve.Resolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.resolver = r
		}
	}
}

// WithEngineMetrics records run outcomes on m. Default:
// observe.DefaultMetrics().
func WithEngineMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSuggestionLimit sets how many candidates are offered per unresolved
// name.
func WithSuggestionLimit(n int) Option {
	return func(e *Engine) { e.suggestions = n }
}

// Engine runs the extraction pipeline. It is safe for concurrent use.
type Engine struct {
	catalog     CatalogReader
	completer   Completer
	resolver    *resolve.Resolver
	params      Params
	metrics     *observe.Metrics
	suggestions int
}

// NewEngine creates an Engine reading catalogs from cat and prompting
// through c.
func NewEngine(cat CatalogReader, c Completer, opts ...Option) *Engine {
	e := &Engine{
		catalog:     cat,
		completer:   c,
		resolver:    resolve.New(),
		suggestions: DefaultSuggestions,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Result is the outcome of one processing run.
type Result struct {
	// Order is resolved and validated.
	Order extract.Order

	// Report describes the structure found in the model reply.
	Report extract.Report

	// Fallback is set when the heuristic extractor produced the line items.
	Fallback *extract.FallbackReport

	// Customer and Products describe how each name was resolved. Products
	// is aligned with Order.LineItems.
	Customer resolve.Match
	Products []resolve.Match

	// Catalog is the snapshot the run used. Draft edits revalidate
	// against it.
	Catalog *CatalogView
}

// Process runs the pipeline for one note of organization orgID. Upstream
// failures are returned as [*CompletionFailure]; parse misses, empty
// extractions and resolution misses are never errors.
func (e *Engine) Process(ctx context.Context, orgID, note string) (res *Result, err error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, catalog.ErrMissingOrganization
	}
	if strings.TrimSpace(note) == "" {
		return nil, ErrEmptyNote
	}

	ctx, span := observe.StartStage(ctx, "process", observe.Attr("organization_id", orgID))
	defer func() { observe.EndSpan(span, err) }()

	vendors, items, err := e.loadCatalog(ctx, orgID)
	if err != nil {
		e.metrics.RecordRun(ctx, "none", "catalog_error")
		return nil, err
	}

	reply, err := e.complete(ctx, note, vendors, items)
	if err != nil {
		e.metrics.RecordRun(ctx, "none", "completion_error")
		return nil, err
	}

	res = &Result{}
	order, report := e.parse(ctx, reply)
	res.Report = report
	if len(order.LineItems) == 0 {
		order, res.Fallback = e.fallback(ctx, note, order)
	}

	view := &CatalogView{resolver: e.resolver, vendors: vendors, items: items, suggestions: e.suggestions}
	res.Catalog = view

	resolved := e.resolver.Resolve(order, vendors, items)
	res.Customer = resolved.Customer
	res.Products = resolved.Products
	e.metrics.RecordResolution(ctx, "customer", string(resolved.Customer.Kind))
	for _, m := range resolved.Products {
		e.metrics.RecordResolution(ctx, "product", string(m.Kind))
	}

	res.Order = resolved.Order
	for i, it := range res.Order.LineItems {
		checked := validate.Check(it, resolved.Items[i])
		res.Order.LineItems[i] = checked
		e.metrics.RecordValidation(ctx, validationOutcome(checked))
	}

	e.metrics.RecordRun(ctx, string(res.Order.Source), "ok")
	observe.Logger(ctx).Debug("note processed",
		"organization_id", orgID,
		"source", res.Order.Source,
		"line_items", len(res.Order.LineItems),
		"customer_resolved", res.Order.CustomerResolved,
	)
	return res, nil
}

// loadCatalog reads vendors and inventory concurrently.
func (e *Engine) loadCatalog(ctx context.Context, orgID string) (vendors []catalog.Vendor, items []catalog.InventoryItem, err error) {
	ctx, span := observe.StartStage(ctx, "catalog")
	defer func() { observe.EndSpan(span, err) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vendors, err = e.catalog.ListVendors(gctx, orgID)
		if err != nil {
			return fmt.Errorf("pipeline: load vendors: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		items, err = e.catalog.ListInventory(gctx, orgID)
		if err != nil {
			return fmt.Errorf("pipeline: load inventory: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vendors, items, nil
}

func (e *Engine) complete(ctx context.Context, note string, vendors []catalog.Vendor, items []catalog.InventoryItem) (reply string, err error) {
	ctx, span := observe.StartStage(ctx, "complete")
	defer func() { observe.EndSpan(span, err) }()

	prompt := extract.ComposePrompt(note, extract.BuildSnapshot(vendors, items))
	return e.completer.Invoke(ctx, prompt, e.params)
}

func (e *Engine) parse(ctx context.Context, reply string) (extract.Order, extract.Report) {
	ctx, span := observe.StartStage(ctx, "parse")
	defer span.End()

	order, report := extract.ParseResponse(reply)
	for _, sec := range report.Missing {
		e.metrics.RecordMissingSection(ctx, string(sec))
	}
	if len(report.Rejected) > 0 {
		observe.Logger(ctx).Debug("rejected table rows", "count", len(report.Rejected))
	}
	return order, report
}

// fallback replaces the empty extraction with heuristics over the original
// note. Line items come only from the note; customer, note and task from
// the model reply are kept when present.
func (e *Engine) fallback(ctx context.Context, note string, parsed extract.Order) (extract.Order, *extract.FallbackReport) {
	_, span := observe.StartStage(ctx, "fallback")
	defer span.End()

	fb, rep := extract.Fallback(note)
	if parsed.Customer != "" {
		fb.Customer = parsed.Customer
	}
	if parsed.Note != "" {
		fb.Note = parsed.Note
	}
	if parsed.Task != "" {
		fb.Task = parsed.Task
	}
	fb.Ambiguities = parsed.Ambiguities
	fb.RawResponse = parsed.RawResponse

	observe.Logger(ctx).Info("model reply had no line items, used fallback extractor",
		"line_items", len(fb.LineItems),
		"dropped", len(rep.Dropped),
	)
	return fb, &rep
}

func validationOutcome(it extract.LineItem) string {
	switch {
	case it.Status == validate.WarnNotFound:
		return "not_found"
	case validate.HasWarning(it.Status):
		return "warning"
	default:
		return "valid"
	}
}

// CatalogView is the catalog snapshot of one run together with the
// resolver. It re-resolves and re-validates edited draft fields.
type CatalogView struct {
	resolver    *resolve.Resolver
	vendors     []catalog.Vendor
	items       []catalog.InventoryItem
	suggestions int
}

// NewCatalogView creates a view over an explicit snapshot.
func NewCatalogView(r *resolve.Resolver, vendors []catalog.Vendor, items []catalog.InventoryItem) *CatalogView {
	if r == nil {
		r = resolve.New()
	}
	return &CatalogView{resolver: r, vendors: vendors, items: items, suggestions: DefaultSuggestions}
}

// ResolveCustomer maps name to the canonical vendor, or returns it
// unchanged with resolved false.
func (c *CatalogView) ResolveCustomer(name string) (canonical, id string, resolved bool) {
	v, _ := c.resolver.Customer(name, c.vendors)
	if v == nil {
		return strings.TrimSpace(name), "", false
	}
	return v.Name, v.ID, true
}

// Revalidate re-resolves the item's product name and re-runs the business
// rules.
func (c *CatalogView) Revalidate(item extract.LineItem) extract.LineItem {
	match, _ := c.resolver.Product(item.ProductName, c.items)
	item.Resolved = match != nil
	item.ProductID = ""
	if match != nil {
		item.ProductName = match.Name
		item.ProductID = match.ID
	}
	return validate.Check(item, match)
}

// SuggestCustomers ranks vendor names for name.
func (c *CatalogView) SuggestCustomers(name string) []resolve.Candidate {
	return c.resolver.SuggestCustomers(name, c.vendors, c.suggestions)
}

// SuggestProducts ranks inventory names for name.
func (c *CatalogView) SuggestProducts(name string) []resolve.Candidate {
	return c.resolver.SuggestProducts(name, c.items, c.suggestions)
}
