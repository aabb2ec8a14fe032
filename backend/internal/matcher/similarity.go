package matcher

import (
	"sort"
	"strings"
)

// TokenSetRatio scores two comparison keys in [0, 100], ignoring token order
// and repetition. Shared tokens are compared against each side's remainder
// using a normalized indel ratio; when one side's tokens are a subset of the
// other's the score is 100.
func TokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var inter, onlyA, onlyB []string
	for tok := range setA {
		if setB[tok] {
			inter = append(inter, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if !setA[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	if len(inter) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	sect := strings.Join(inter, " ")
	sectA := joinNonEmpty(sect, strings.Join(onlyA, " "))
	sectB := joinNonEmpty(sect, strings.Join(onlyB, " "))

	best := indelRatio(sectA, sectB)
	if sect != "" {
		best = maxFloat(best, indelRatio(sect, sectA))
		best = maxFloat(best, indelRatio(sect, sectB))
	}
	return best
}

// indelRatio is 100 * (1 - indel(a, b) / (len(a) + len(b))), where indel
// counts insertions and deletions only.
func indelRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	lcs := lcsLength(ra, rb)
	indel := total - 2*lcs
	return 100 * (1 - float64(indel)/float64(total))
}

func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func tokenSet(key string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokens(key) {
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
