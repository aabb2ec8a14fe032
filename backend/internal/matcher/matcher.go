// Package matcher decides whether two raw names denote the same entity.
//
// Every registry lookup goes through a single Matcher so the threshold and
// the combining rule live in one place. The default Policy combines two
// signals and accepts a pair when either clears its bar:
//
//   - token-set similarity (order- and case-insensitive) at or above
//     TokenThreshold, on a 0-100 scale;
//   - Levenshtein distance at or below MaxEditDistance, applied only when
//     both keys are at least MinEditLength runes long so that short names
//     ("li_wei", "li_wen") are not collapsed by a single typo.
//
// The reported score is the larger of the token score and the distance
// expressed as a 0-100 similarity; registries rank candidates by it.
package matcher

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"uhnw-graph/backend/internal/constants"
)

// Matcher scores and accepts candidate pairs of comparison keys.
// Implementations must be deterministic.
type Matcher interface {
	// Similarity returns a score in [0, 100].
	Similarity(a, b string) float64
	// Match returns the score and whether the pair clears the policy.
	Match(a, b string) (float64, bool)
}

// Policy is the default Matcher.
type Policy struct {
	TokenThreshold  float64
	MaxEditDistance int // negative disables the distance signal
	MinEditLength   int
}

// DefaultPolicy returns the documented thresholds.
func DefaultPolicy() Policy {
	return Policy{
		TokenThreshold:  constants.DefaultMatchThreshold,
		MaxEditDistance: constants.DefaultMaxEditDistance,
		MinEditLength:   8,
	}
}

// TokenOnly returns a Policy that ignores edit distance.
func TokenOnly(threshold float64) Policy {
	return Policy{TokenThreshold: threshold, MaxEditDistance: -1}
}

// Similarity implements Matcher.
func (p Policy) Similarity(a, b string) float64 {
	score, _ := p.Match(a, b)
	return score
}

// Match implements Matcher.
func (p Policy) Match(a, b string) (float64, bool) {
	if a == "" || b == "" {
		return 0, false
	}
	if a == b {
		return 100, true
	}

	tokenScore := TokenSetRatio(a, b)
	ok := tokenScore >= p.TokenThreshold
	score := tokenScore

	if p.MaxEditDistance >= 0 {
		la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
		dist := levenshtein.ComputeDistance(a, b)
		longest := la
		if lb > longest {
			longest = lb
		}
		editScore := 100 * (1 - float64(dist)/float64(longest))
		if editScore > score {
			score = editScore
		}
		if dist <= p.MaxEditDistance && la >= p.MinEditLength && lb >= p.MinEditLength {
			ok = true
		}
	}
	return score, ok
}
