package company

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"
)

// Substitutions cost two edits, which turns Levenshtein distance into
// insert/delete distance and keeps Ratio symmetric in its arguments.
var indelParams = levenshtein.NewParams().SubCost(2)

// Normalize projects a company name onto its dedup key: case-folded with all
// whitespace removed. "Tata Steel Ltd" and "TATA steel  ltd" share a key.
func Normalize(name string) string {
	folded := cases.Fold().String(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}

// Ratio scores the similarity of two strings on a 0-100 scale as
// 100 * (len(a)+len(b)-indel(a,b)) / (len(a)+len(b)), counting runes.
// Two empty strings are identical.
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	dist := levenshtein.Distance(a, b, indelParams)
	return 100 * float64(total-dist) / float64(total)
}
