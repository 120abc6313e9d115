package resolve

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Similarity scores two normalized names in [0, 1], where 1 is identical.
type Similarity func(a, b string) float64

// LevenshteinRatio is one minus the edit distance divided by the longer
// rune length. It is the default strategy.
func LevenshteinRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	d := matchr.Levenshtein(a, b)
	return 1 - float64(d)/float64(longest)
}

// JaroWinkler is the standard Jaro-Winkler similarity.
func JaroWinkler(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return matchr.JaroWinkler(a, b, false)
}

// unvoicedPenalty scales Jaro-Winkler scores for pairs that share no Double
// Metaphone code, so a plain spelling match must be stronger than a
// phonetic one to clear the same threshold.
const unvoicedPenalty = 0.82

// Phonetic combines Double Metaphone overlap with Jaro-Winkler ranking. It
// suits names that were dictated and transcribed ("Akme" for "Acme").
func Phonetic(a, b string) float64 {
	at, bt := strings.Fields(a), strings.Fields(b)
	if len(at) == 0 || len(bt) == 0 {
		if len(at) == len(bt) {
			return 1
		}
		return 0
	}
	score := bestJW(at, bt, a, b)
	if codesOverlap(codesForTokens(at), codesForTokens(bt)) {
		return score
	}
	return score * unvoicedPenalty
}

// codesForTokens returns the union of Double Metaphone codes of tokens.
// Empty codes are skipped.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJW is the highest Jaro-Winkler score over the full strings, the
// space-stripped strings and every token pair.
func bestJW(at, bt []string, a, b string) float64 {
	score := matchr.JaroWinkler(a, b, false)

	if len(at) > 1 || len(bt) > 1 {
		if s := matchr.JaroWinkler(strings.Join(at, ""), strings.Join(bt, ""), false); s > score {
			score = s
		}
	}

	// Pairwise tokens only count for single-token inputs. Otherwise "widget b"
	// would score 1 against "widget a".
	if len(at) == 1 || len(bt) == 1 {
		for _, x := range at {
			for _, y := range bt {
				if s := matchr.JaroWinkler(x, y, false); s > score {
					score = s
				}
			}
		}
	}
	return score
}

// ParseSimilarity maps a configuration name to a strategy. Unknown or empty
// names select LevenshteinRatio.
func ParseSimilarity(name string) (Similarity, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "levenshtein":
		return LevenshteinRatio, true
	case "jarowinkler", "jaro-winkler":
		return JaroWinkler, true
	case "phonetic":
		return Phonetic, true
	}
	return LevenshteinRatio, false
}
