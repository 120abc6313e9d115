package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/MrWong99/salesnote/internal/amount"
)

// FallbackReport explains how the fallback extractor classified the note.
type FallbackReport struct {
	Customer          string   `json:"customer,omitempty"`
	ProductCandidates []string `json:"product_candidates,omitempty"`
	TaskCandidates    []string `json:"task_candidates,omitempty"`
	NoteCandidates    []string `json:"note_candidates,omitempty"`

	// Dropped lists product candidates no extraction pattern could read.
	Dropped []string `json:"dropped,omitempty"`
}

const (
	unitWords = `units?|pcs|pieces?|boxes|box|cases?|packs?|cartons?|pallets?|dozen|items?`
	// qtyNumber accepts comma thousands grouping ("1,200").
	qtyNumber = `(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?`
)

var (
	currencyMark   = regexp.MustCompile(`(?i)[$€£]|\b(?:usd|eur|gbp|dollars?|euros?)\b`)
	productKeyword = regexp.MustCompile(`(?i)\b(?:` + unitWords + `|qty|x)\b|\d\s*x\b`)
	capsRun        = regexp.MustCompile(`^[A-Z0-9][A-Z0-9\-_/. ]{0,23}$`)
	taskDate       = regexp.MustCompile(`(?i)\bby\s+(?:` +
		`(?:mon|tues?|wed(?:nes)?|thu(?:rs)?|fri|sat(?:ur)?|sun)(?:day)?\b` +
		`|tomorrow|today|tonight|eod|eow|end\s+of\b|next\s+\w+` +
		`|\d{1,2}(?:[/.\-]\d{1,2}(?:[/.\-]\d{2,4})?|st|nd|rd|th)\b` +
		`|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?(?:\s+\d{1,2})?)`)
	taskKeyword = regexp.MustCompile(`(?i)\b(?:check|follow|call|contact|remind|schedule)`)

	qtyFragment   = regexp.MustCompile(`(?i)^` + qtyNumber + `\s*(?:` + unitWords + `)?$`)
	priceFragment = regexp.MustCompile(`(?i)^(?:@\s*|at\s+)?(?:[$€£]\s*\d[\d,]*(?:\.\d+)?|\d[\d,]*(?:\.\d+)?\s*(?:usd|eur|gbp|dollars?|euros?|[$€£]))(?:\s*(?:each|ea|/\s*unit|per\s+unit))?$`)

	// "name, qty, $price"
	commaRecord = regexp.MustCompile(`(?i)^(?P<name>[^,]+?)\s*,\s*(?P<qty>` + qtyNumber + `)\s*(?:` + unitWords + `)?\s*,\s*(?:@\s*|at\s+)?(?P<price>[$€£]?\s*\d[\d,]*(?:\.\d+)?)`)
	// "name qty $price"
	spaceRecord = regexp.MustCompile(`(?i)^(?P<name>.+?)\s+(?:x\s*)?(?P<qty>` + qtyNumber + `)\s*(?:` + unitWords + `)?\s+(?:@\s*|at\s+|for\s+)?(?P<price>[$€£]\s*\d[\d,]*(?:\.\d+)?|\d[\d,]*(?:\.\d+)?\s*(?:usd|eur|gbp|dollars?|euros?))`)
	// "qty [units] [of] name at $price"
	naturalRecord = regexp.MustCompile(`(?i)(?P<qty>` + qtyNumber + `)\s*(?:x\s+|(?:` + unitWords + `)\s+(?:of\s+)?|of\s+)?(?P<name>[a-z][^$€£@]*?)\s+(?:at|@|for)\s*(?P<price>[$€£]?\s*\d[\d,]*(?:\.\d+)?)`)
)

// Fallback builds an order from the original note with deterministic rules.
// It is used when the model reply produced no line items and is best-effort:
// product candidates that match no pattern are dropped, not reported as
// errors.
//
// The note is split into candidates on newlines, semicolons and commas; a
// comma-separated "name, qty, $price" run is kept together. The first
// unclassified candidate is the customer; product candidates become line
// items; task and remaining candidates are joined with "; ".
func Fallback(note string) (Order, FallbackReport) {
	order := Order{Source: SourceFallback}
	var rep FallbackReport
	var tasks, notes []string

	for i, cand := range candidates(note) {
		switch {
		case isProductCandidate(cand):
			rep.ProductCandidates = append(rep.ProductCandidates, cand)
			item, ok := parseProduct(cand)
			if !ok {
				rep.Dropped = append(rep.Dropped, cand)
				slog.Debug("fallback: dropped product candidate", "candidate", cand)
				continue
			}
			order.LineItems = append(order.LineItems, item)
		case isTaskCandidate(cand):
			tasks = append(tasks, cand)
		case i == 0:
			order.Customer = cand
		default:
			notes = append(notes, cand)
		}
	}

	order.Task = strings.Join(tasks, "; ")
	order.Note = strings.Join(notes, "; ")
	rep.Customer = order.Customer
	rep.TaskCandidates = tasks
	rep.NoteCandidates = notes
	return order, rep
}

// candidates splits the note into trimmed, non-empty candidate lines.
func candidates(note string) []string {
	var out []string
	lines := strings.FieldsFunc(note, func(r rune) bool { return r == '\n' || r == '\r' || r == ';' })
	for _, line := range lines {
		out = append(out, rejoinRecords(splitCommas(line))...)
	}
	return out
}

// splitCommas splits on commas that are not thousands separators.
func splitCommas(line string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(line)
	for i, r := range runes {
		if r != ',' {
			continue
		}
		if i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			continue
		}
		out = appendTrimmed(out, string(runes[start:i]))
		start = i + 1
	}
	return appendTrimmed(out, string(runes[start:]))
}

func appendTrimmed(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

// rejoinRecords glues "name", "qty", "$price" fragment runs back together so
// the comma record pattern can still match them.
func rejoinRecords(frags []string) []string {
	var out []string
	for i := 0; i < len(frags); i++ {
		if i+2 < len(frags) && isNameFragment(frags[i]) && qtyFragment.MatchString(frags[i+1]) && priceFragment.MatchString(frags[i+2]) {
			out = append(out, frags[i]+", "+frags[i+1]+", "+frags[i+2])
			i += 2
			continue
		}
		out = append(out, frags[i])
	}
	return out
}

func isNameFragment(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0 && !currencyMark.MatchString(s) && !hasDigit(s)
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func isProductCandidate(s string) bool {
	if !hasDigit(s) {
		return false
	}
	if currencyMark.MatchString(s) || productKeyword.MatchString(s) {
		return true
	}
	return capsRun.MatchString(s) && strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func isTaskCandidate(s string) bool {
	return taskDate.MatchString(s) || taskKeyword.MatchString(s)
}

// parseProduct applies the record patterns in order and returns the first
// match with a usable name.
func parseProduct(cand string) (LineItem, bool) {
	for _, re := range []*regexp.Regexp{commaRecord, spaceRecord, naturalRecord} {
		m := re.FindStringSubmatch(cand)
		if m == nil {
			continue
		}
		name := cleanProductName(m[re.SubexpIndex("name")])
		if name == "" {
			continue
		}
		return LineItem{
			ProductName: name,
			Quantity:    amount.NonNegative(m[re.SubexpIndex("qty")]),
			UnitPrice:   amount.NonNegative(m[re.SubexpIndex("price")]),
		}, true
	}
	return LineItem{}, false
}

func cleanProductName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, " -:,x")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "of ") {
		s = strings.TrimSpace(s[3:])
	}
	if strings.IndexFunc(s, unicode.IsLetter) < 0 {
		return ""
	}
	return s
}
