package extract

import (
	"math"
	"regexp"
	"strings"

	"github.com/MrWong99/salesnote/internal/amount"
)

// Section identifies one part of the reply format.
type Section string

const (
	SectionCustomer    Section = "customer"
	SectionOrder       Section = "order"
	SectionNote        Section = "note"
	SectionTask        Section = "task"
	SectionAmbiguities Section = "ambiguities"
)

// sectionOrder is the canonical order used in reports.
var sectionOrder = []Section{SectionCustomer, SectionOrder, SectionNote, SectionTask, SectionAmbiguities}

// RejectedRow is a table row the parser could not turn into a line item.
type RejectedRow struct {
	Row    string `json:"row"`
	Reason string `json:"reason"`
}

// Report describes how much of the expected reply structure was present.
// Missing sections are normal for a model that deviates from the template
// and never make parsing fail.
type Report struct {
	Found    []Section     `json:"found"`
	Missing  []Section     `json:"missing"`
	Rejected []RejectedRow `json:"rejected,omitempty"`

	// HeaderMapped is true when table cells were assigned by header name
	// rather than by position.
	HeaderMapped bool `json:"header_mapped"`
}

// Has reports whether sec was present in the reply.
func (r Report) Has(sec Section) bool {
	for _, s := range r.Found {
		if s == sec {
			return true
		}
	}
	return false
}

// Table column keys.
const (
	colProduct  = "product"
	colQuantity = "quantity"
	colPrice    = "price"
	colDiscount = "discount"
	colStatus   = "status"
)

var (
	// headerLine matches "**Name**: inline", "**Name:** inline" and the same
	// behind a Markdown heading prefix.
	headerLine = regexp.MustCompile(`^\s*(?:#{1,6}\s*)?\*\*([^*]+?)\*\*\s*:?\s*(.*)$`)

	// inlineHeader matches a header that follows other text on the same
	// line. Unlike a line-leading header it needs the colon.
	inlineHeader = regexp.MustCompile(`\*\*([^*]+?)\*\*\s*:|\*\*([^*]+?):\*\*`)

	separatorCell = regexp.MustCompile(`^:?-+:?$`)
	discountCell  = regexp.MustCompile(`(?i)^[-+]?\d+(?:[.,]\d+)?\s*(?:%|percent|pct)?(?:\s*off)?$`)
)

// ParseResponse reads a completion reply into an Order. It is total: any
// section that cannot be found is left at its zero value and recorded in the
// Report. Parsing the same text twice yields identical results.
func ParseResponse(text string) (Order, Report) {
	bodies, found := splitSections(text)

	order := Order{
		Source:      SourceModel,
		RawResponse: text,
	}
	var rep Report

	order.Customer = joinInline(bodies[SectionCustomer])
	order.LineItems, rep.Rejected, rep.HeaderMapped = parseTable(bodies[SectionOrder])
	order.Note = joinQuoted(bodies[SectionNote])
	order.Task = joinQuoted(bodies[SectionTask])
	order.Ambiguities = joinQuoted(bodies[SectionAmbiguities])

	for _, sec := range sectionOrder {
		if found[sec] {
			rep.Found = append(rep.Found, sec)
		} else {
			rep.Missing = append(rep.Missing, sec)
		}
	}
	return order, rep
}

// splitSections walks the reply line by line and collects each known
// section's body. A section runs until the next bold header, whether that
// header starts a line or follows text on the same line. Only the first
// occurrence of a section counts; unknown headers end the current section
// and their bodies are ignored.
func splitSections(text string) (map[Section][]string, map[Section]bool) {
	bodies := make(map[Section][]string)
	found := make(map[Section]bool)

	var cur Section
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		for _, line := range splitInlineHeaders(raw) {
			if m := headerLine.FindStringSubmatch(line); m != nil {
				sec, ok := sectionFor(m[1])
				if !ok || found[sec] {
					cur = ""
					continue
				}
				found[sec] = true
				cur = sec
				if inline := strings.TrimSpace(m[2]); inline != "" {
					bodies[sec] = append(bodies[sec], inline)
				}
				continue
			}
			if cur != "" {
				bodies[cur] = append(bodies[cur], line)
			}
		}
	}
	return bodies, found
}

// splitInlineHeaders cuts line before every known section header that is
// preceded by other text, so "**Customer**: Acme **Note**: > Friday" reads
// as two header lines. Bold text that names no section stays in place.
func splitInlineHeaders(line string) []string {
	var parts []string
	start := 0
	for _, loc := range inlineHeader.FindAllStringSubmatchIndex(line, -1) {
		if strings.TrimLeft(line[start:loc[0]], " \t#") == "" {
			continue
		}
		name := ""
		if loc[2] >= 0 {
			name = line[loc[2]:loc[3]]
		} else {
			name = line[loc[4]:loc[5]]
		}
		if _, ok := sectionFor(name); !ok {
			continue
		}
		parts = append(parts, strings.TrimRight(line[start:loc[0]], " \t"))
		start = loc[0]
	}
	return append(parts, line[start:])
}

// sectionFor maps header text to a known section.
func sectionFor(name string) (Section, bool) {
	n := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), ":")))
	switch {
	case strings.HasPrefix(n, strings.ToLower(HeaderCustomer)):
		return SectionCustomer, true
	case strings.HasPrefix(n, "quote"), strings.HasPrefix(n, "order"), n == "line items":
		return SectionOrder, true
	case strings.HasPrefix(n, strings.ToLower(HeaderNote)):
		return SectionNote, true
	case strings.HasPrefix(n, strings.ToLower(HeaderTask)):
		return SectionTask, true
	case strings.HasPrefix(n, "ambiguit"):
		return SectionAmbiguities, true
	}
	return "", false
}

// joinInline joins a single-value section onto one line.
func joinInline(lines []string) string {
	var parts []string
	for _, l := range lines {
		if s := cleanText(l); s != "" {
			parts = append(parts, s)
		}
	}
	return normalizeNone(strings.Join(parts, " "))
}

// joinQuoted joins a blockquote section, one entry per line.
func joinQuoted(lines []string) string {
	var parts []string
	for _, l := range lines {
		if s := cleanText(l); s != "" {
			parts = append(parts, s)
		}
	}
	return normalizeNone(strings.Join(parts, "\n"))
}

// cleanText strips blockquote markers and bold markup.
func cleanText(line string) string {
	s := strings.TrimSpace(line)
	for strings.HasPrefix(s, ">") {
		s = strings.TrimSpace(strings.TrimPrefix(s, ">"))
	}
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}

// normalizeNone maps placeholder bodies to the empty string.
func normalizeNone(s string) string {
	switch strings.ToLower(strings.TrimRight(strings.TrimSpace(s), ".")) {
	case "none", "n/a", "na", "-", "nil", "null", "nothing":
		return ""
	}
	return s
}

// parseTable turns the order section's table rows into line items.
func parseTable(lines []string) (items []LineItem, rejected []RejectedRow, headerMapped bool) {
	var header map[string]int
	var headerWidth int

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			continue
		}
		cells := splitRow(trimmed)
		if isSeparator(cells) {
			continue
		}
		if isHeaderRow(trimmed, cells) {
			header = mapHeader(cells)
			headerWidth = len(cells)
			continue
		}

		var (
			item   LineItem
			reason string
		)
		if header != nil && len(cells) == headerWidth {
			item, reason = rowByHeader(cells, header)
			headerMapped = true
		} else {
			item, reason = rowByPosition(cells)
		}
		if reason != "" {
			rejected = append(rejected, RejectedRow{Row: trimmed, Reason: reason})
			continue
		}
		items = append(items, item)
	}
	return items, rejected, headerMapped
}

// splitRow splits a pipe-delimited row into trimmed cells, keeping empty
// interior cells.
func splitRow(row string) []string {
	s := strings.TrimSpace(row)
	s = strings.TrimPrefix(s, "|")
	s = strings.TrimSuffix(s, "|")
	parts := strings.Split(s, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(strings.ReplaceAll(p, "**", ""))
	}
	return parts
}

func isSeparator(cells []string) bool {
	seen := false
	for _, c := range cells {
		if c == "" {
			continue
		}
		if !separatorCell.MatchString(strings.ReplaceAll(c, " ", "")) {
			return false
		}
		seen = true
	}
	return seen
}

func isHeaderRow(row string, cells []string) bool {
	if strings.Contains(strings.ToLower(row), strings.ToLower(TableColumns[0])) {
		return true
	}
	known := 0
	for _, c := range cells {
		if _, ok := headerKey(c); ok {
			known++
		}
		if _, ok := amount.Parse(c); ok {
			return false
		}
	}
	return known >= 2
}

// headerKey maps a header cell to a column key.
func headerKey(cell string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(cell))
	switch {
	case c == "":
		return "", false
	case strings.Contains(c, "discount"):
		return colDiscount, true
	case strings.Contains(c, "status"), strings.Contains(c, "validation"):
		return colStatus, true
	case strings.Contains(c, "price"), c == "rate":
		return colPrice, true
	case strings.Contains(c, "qty"), strings.Contains(c, "quantity"):
		return colQuantity, true
	case strings.Contains(c, "product"), c == "item", c == "name", c == "sku":
		return colProduct, true
	}
	return "", false
}

func mapHeader(cells []string) map[string]int {
	cols := make(map[string]int)
	for i, c := range cells {
		if key, ok := headerKey(c); ok {
			if _, dup := cols[key]; !dup {
				cols[key] = i
			}
		}
	}
	return cols
}

func rowByHeader(cells []string, cols map[string]int) (LineItem, string) {
	get := func(key string) string {
		if i, ok := cols[key]; ok && i < len(cells) {
			return cells[i]
		}
		return ""
	}

	item := LineItem{
		ProductName: get(colProduct),
		Quantity:    amount.NonNegative(get(colQuantity)),
		UnitPrice:   amount.NonNegative(get(colPrice)),
		Status:      normalizeStatus(get(colStatus)),
	}
	if item.ProductName == "" {
		return LineItem{}, "missing product name"
	}
	if d, ok := amount.Parse(get(colDiscount)); ok {
		item.DiscountPercent = math.Max(0, d)
		item.DiscountExplicit = true
	}
	return item, ""
}

// rowByPosition applies the positional rule: empty cells are dropped, the
// first three are product, quantity and price, a numeric fourth cell is the
// discount and the status follows it.
func rowByPosition(cells []string) (LineItem, string) {
	var vals []string
	for _, c := range cells {
		if c != "" {
			vals = append(vals, c)
		}
	}
	if len(vals) < 3 {
		return LineItem{}, "fewer than 3 non-empty cells"
	}

	item := LineItem{
		ProductName: vals[0],
		Quantity:    amount.NonNegative(vals[1]),
		UnitPrice:   amount.NonNegative(vals[2]),
	}
	if len(vals) >= 4 {
		if discountCell.MatchString(vals[3]) {
			item.DiscountPercent = math.Max(0, amount.ParseOrZero(vals[3]))
			item.DiscountExplicit = true
			if len(vals) >= 5 {
				item.Status = normalizeStatus(vals[4])
			}
		} else {
			item.Status = normalizeStatus(vals[3])
		}
	}
	return item, ""
}

func normalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "ok") || strings.EqualFold(s, StatusValid) {
		return StatusValid
	}
	return s
}
