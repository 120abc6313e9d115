// Package amount parses and formats the quantities, prices and percentages
// that appear in free-text sales notes, model output and spreadsheets.
package amount

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	currencyWords = regexp.MustCompile(`(?i)\b(usd|eur|gbp|dollars?|euros?|bucks|each|ea|per\s+unit|/\s*unit)\b`)
	numberToken   = regexp.MustCompile(`-?(\d{1,3}(?:[.,]\d{3})+(?:[.,]\d+)?|\d+(?:[.,]\d+)?|[.,]\d+)`)
	groupedDot    = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	groupedComma  = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)

	// dotDecimalCurrency marks currencies written with a decimal point.
	dotDecimalCurrency = regexp.MustCompile(`(?i)[$£]|\b(?:usd|gbp|dollars?|bucks)\b`)
)

// Only non-breaking and thin spaces group digits. A plain space separates
// numbers: "3 100" is 3 followed by 100.
var groupSpaces = strings.NewReplacer("\u00a0", "", "\u202f", "", "\u2009", "")

// Parse extracts the first number in s after stripping currency marks,
// percent signs, currency words and thousands separators. It reports false
// when s holds no number.
//
// A single dot group is a thousands separator ("1.200" is 1200) unless s
// names a dollar or pound amount, where it is a decimal point ("$12.000"
// is 12).
func Parse(s string) (float64, bool) {
	s = groupSpaces.Replace(s)
	dotDecimal := dotDecimalCurrency.MatchString(s)
	s = currencyWords.ReplaceAllString(s, " ")
	s = strings.NewReplacer("$", "", "€", "", "£", "", "%", "", "*", "").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	tok := numberToken.FindString(s)
	if tok == "" {
		return 0, false
	}
	neg := strings.HasPrefix(tok, "-")
	tok = strings.TrimPrefix(tok, "-")

	f, err := strconv.ParseFloat(normalizeToken(tok, dotDecimal), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// ParseOrZero is Parse with failures coerced to 0.
func ParseOrZero(s string) float64 {
	f, _ := Parse(s)
	return f
}

// NonNegative parses s and clamps the result at 0. Unparseable input yields 0.
func NonNegative(s string) float64 {
	return math.Max(0, ParseOrZero(s))
}

// normalizeToken turns a locale-formatted numeric token into a form
// strconv.ParseFloat accepts.
func normalizeToken(compact string, dotDecimal bool) string {
	if groupedDot.MatchString(compact) {
		if dotDecimal && strings.Count(compact, ".") == 1 {
			return compact
		}
		return strings.ReplaceAll(compact, ".", "")
	}
	if groupedComma.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	hasDot := strings.Contains(compact, ".")
	hasComma := strings.Contains(compact, ",")
	switch {
	case hasDot && hasComma:
		// The later separator is the decimal mark.
		if strings.LastIndex(compact, ",") > strings.LastIndex(compact, ".") {
			compact = strings.ReplaceAll(compact, ".", "")
			return strings.ReplaceAll(compact, ",", ".")
		}
		return strings.ReplaceAll(compact, ",", "")
	case hasComma:
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}

// Format renders f without trailing zeros: 5, 10, 12.5, 0.25.
func Format(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Money renders f with exactly two decimals: 12.00, 0.50.
func Money(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
