package correction

import (
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Ratio returns 1 - lev(a, b) / max(len(a), len(b)) with lengths counted in
// runes. Two empty strings are identical and score 1.
func Ratio(a, b string) float64 {
	n := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if n == 0 {
		return 1
	}
	return 1 - float64(matchr.Levenshtein(a, b))/float64(n)
}

// Score averages [Ratio] of original against each variant and truncates the
// percentage to an int in [0, 100]. With no variants the score is 100.
func Score(original string, variants ...string) int {
	if len(variants) == 0 {
		return 100
	}
	var sum float64
	for _, v := range variants {
		sum += Ratio(original, v)
	}
	s := int(sum / float64(len(variants)) * 100)
	return min(max(s, 0), 100)
}
