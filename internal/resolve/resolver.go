// Package resolve maps free-text customer and product names onto catalog
// entries. An exact case-insensitive hit always wins; otherwise the best
// approximate match under a pluggable [Similarity] must clear a named
// threshold. Names that resolve to nothing are kept verbatim.
//
// A [Resolver] is read-only after construction and safe for concurrent use.
package resolve

import (
	"cmp"
	"slices"
	"strings"

	"github.com/MrWong99/salesnote/internal/catalog"
	"github.com/MrWong99/salesnote/internal/extract"
)

const (
	// CustomerThreshold is the default minimum similarity for customer names.
	CustomerThreshold = 0.6

	// ProductThreshold is the default minimum similarity for product names.
	ProductThreshold = 0.7
)

// Kind classifies how a name was resolved.
type Kind string

const (
	KindExact      Kind = "exact"
	KindFuzzy      Kind = "fuzzy"
	KindUnresolved Kind = "unresolved"
)

// Match is the outcome of resolving one name.
type Match struct {
	// Input is the name as written.
	Input string `json:"input"`

	// Index is the position of the matched entry in the catalog list, -1
	// when unresolved.
	Index int     `json:"-"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Kind  Kind    `json:"kind"`
}

// Resolved reports whether the name matched a catalog entry.
func (m Match) Resolved() bool { return m.Kind != KindUnresolved }

// Candidate is one ranked suggestion for an unresolved name.
type Candidate struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Option is a functional option for [New].
type Option func(*Resolver)

// WithSimilarity replaces the default LevenshteinRatio strategy.
func WithSimilarity(s Similarity) Option {
	return func(r *Resolver) {
		if s != nil {
			r.sim = s
		}
	}
}

// WithCustomerThreshold sets the minimum score for customer matches.
func WithCustomerThreshold(t float64) Option {
	return func(r *Resolver) { r.customerThreshold = t }
}

// WithProductThreshold sets the minimum score for product matches.
func WithProductThreshold(t float64) Option {
	return func(r *Resolver) { r.productThreshold = t }
}

// Resolver matches names against catalog lists.
type Resolver struct {
	sim               Similarity
	customerThreshold float64
	productThreshold  float64
}

// New returns a Resolver with LevenshteinRatio, CustomerThreshold and
// ProductThreshold unless overridden.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		sim:               LevenshteinRatio,
		customerThreshold: CustomerThreshold,
		productThreshold:  ProductThreshold,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Customer resolves name against vendors. The returned pointer is nil when
// the name is unresolved.
func (r *Resolver) Customer(name string, vendors []catalog.Vendor) (*catalog.Vendor, Match) {
	names := make([]string, len(vendors))
	for i, v := range vendors {
		names[i] = v.Name
	}
	m := r.match(name, names, r.customerThreshold)
	if !m.Resolved() {
		return nil, m
	}
	v := vendors[m.Index]
	return &v, m
}

// Product resolves name against the inventory. The returned pointer is nil
// when the name is unresolved.
func (r *Resolver) Product(name string, items []catalog.InventoryItem) (*catalog.InventoryItem, Match) {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	m := r.match(name, names, r.productThreshold)
	if !m.Resolved() {
		return nil, m
	}
	it := items[m.Index]
	return &it, m
}

// Result is a resolved order with the catalog entries that matched.
type Result struct {
	Order extract.Order

	// Items is aligned with Order.LineItems; nil entries are unresolved.
	Items []*catalog.InventoryItem

	Customer Match
	Products []Match
}

// Resolve rewrites the customer and every line item of order to canonical
// catalog names where they resolve. Unresolved names are kept as written.
// Resolution runs against the full lists passed in.
func (r *Resolver) Resolve(order extract.Order, vendors []catalog.Vendor, items []catalog.InventoryItem) Result {
	out := order.Clone()
	res := Result{
		Items:    make([]*catalog.InventoryItem, len(out.LineItems)),
		Products: make([]Match, len(out.LineItems)),
	}

	vendor, cm := r.Customer(out.Customer, vendors)
	res.Customer = cm
	out.CustomerResolved = vendor != nil
	out.CustomerID = ""
	if vendor != nil {
		out.Customer = vendor.Name
		out.CustomerID = vendor.ID
	}

	for i := range out.LineItems {
		li := &out.LineItems[i]
		item, pm := r.Product(li.ProductName, items)
		res.Products[i] = pm
		res.Items[i] = item
		li.Resolved = item != nil
		li.ProductID = ""
		if item != nil {
			li.ProductName = item.Name
			li.ProductID = item.ID
		}
	}

	res.Order = out
	return res
}

// Suggest returns up to n catalog names ranked by similarity to name, best
// first. Ties keep catalog order. Entries scoring 0 are omitted.
func (r *Resolver) Suggest(name string, names []string, n int) []Candidate {
	key := normalize(name)
	if key == "" || n <= 0 {
		return nil
	}
	var out []Candidate
	for _, cand := range names {
		ck := normalize(cand)
		if ck == "" {
			continue
		}
		s := 1.0
		if ck != key {
			s = r.sim(key, ck)
		}
		if s > 0 {
			out = append(out, Candidate{Name: cand, Score: s})
		}
	}
	slices.SortStableFunc(out, func(a, b Candidate) int { return cmp.Compare(b.Score, a.Score) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// SuggestCustomers ranks vendor names for name.
func (r *Resolver) SuggestCustomers(name string, vendors []catalog.Vendor, n int) []Candidate {
	names := make([]string, len(vendors))
	for i, v := range vendors {
		names[i] = v.Name
	}
	return r.Suggest(name, names, n)
}

// SuggestProducts ranks inventory names for name.
func (r *Resolver) SuggestProducts(name string, items []catalog.InventoryItem, n int) []Candidate {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	return r.Suggest(name, names, n)
}

// match finds the entry of names that name refers to. Exact hits take
// precedence over any approximate score; among approximate matches the
// first entry with the highest score wins.
func (r *Resolver) match(name string, names []string, threshold float64) Match {
	m := Match{Input: name, Index: -1, Kind: KindUnresolved}
	key := normalize(name)
	if key == "" {
		return m
	}

	for i, cand := range names {
		if normalize(cand) == key {
			return Match{Input: name, Index: i, Name: cand, Score: 1, Kind: KindExact}
		}
	}

	best, bestScore := -1, 0.0
	for i, cand := range names {
		ck := normalize(cand)
		if ck == "" {
			continue
		}
		if s := r.sim(key, ck); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < threshold {
		m.Score = bestScore
		return m
	}
	return Match{Input: name, Index: best, Name: names[best], Score: bestScore, Kind: KindFuzzy}
}

// normalize lowercases s and collapses internal whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
