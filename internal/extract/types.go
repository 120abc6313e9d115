// Package extract turns a salesperson's free-text note into a structured
// order. It builds the catalog context and prompt sent to the completion
// service, reads the model's semi-structured reply back into an [Order], and
// falls back to deterministic heuristics over the original note when the
// reply yields no line items.
//
// Everything in this package is pure: no I/O, no shared state, safe for
// concurrent use.
package extract

// Source records which extractor produced an order.
type Source string

const (
	// SourceModel marks an order parsed from the completion response.
	SourceModel Source = "model"

	// SourceFallback marks an order built by the heuristic fallback extractor.
	SourceFallback Source = "fallback"
)

// StatusValid is the line-item status when no business rule fired.
const StatusValid = "Valid"

// LineItem is one product/quantity/price/discount/status tuple of an order.
type LineItem struct {
	// ProductName is the catalog's canonical name once resolved, otherwise the
	// text as written.
	ProductName string `json:"product_name"`

	// ProductID is the matched catalog item, empty when unresolved.
	ProductID string `json:"product_id,omitempty"`

	// Resolved reports whether ProductName was matched to the catalog.
	Resolved bool `json:"resolved"`

	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`

	// DiscountExplicit is true when the discount was stated rather than
	// derived from the catalog price.
	DiscountExplicit bool `json:"discount_explicit"`

	// Status is StatusValid or one or more comma-joined "Warning: ..." texts.
	Status string `json:"status"`
}

// Order is the strict intermediate schema produced from one processing run.
// Every field has a usable zero value.
type Order struct {
	Customer         string     `json:"customer"`
	CustomerID       string     `json:"customer_id,omitempty"`
	CustomerResolved bool       `json:"customer_resolved"`
	LineItems        []LineItem `json:"line_items"`
	Note             string     `json:"note"`
	Task             string     `json:"task"`
	Ambiguities      string     `json:"ambiguities"`
	Source           Source     `json:"source"`

	// RawResponse is the unparsed completion text, kept for debugging.
	RawResponse string `json:"-"`
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	c := o
	if o.LineItems != nil {
		c.LineItems = make([]LineItem, len(o.LineItems))
		copy(c.LineItems, o.LineItems)
	}
	return c
}
