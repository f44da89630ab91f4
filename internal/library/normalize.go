package library

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var replacer = strings.NewReplacer("$", "s", "&", " and ")

// Normalize folds s to the form used for matching: accents stripped,
// lowercased, "$" to "s", "&" to "and", whitespace collapsed.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = replacer.Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Ratio is a Levenshtein similarity in [0,100] over runes, rounded to the
// nearest integer. Two empty strings score 100.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(d)/float64(longest))))
}
