package kinship

import (
	"strings"

	"uhnw-graph/backend/internal/constants"
)

// Directed edge "Src Relation Dst" with Relation drawn from the closed set
// of family relation types.
type directed struct {
	Src      string
	Dst      string
	Relation string
}

// Source text states relations in two vocabularies. The "_of" forms read
// "A <rel> B". The bare column forms read "B is A's <rel>", which is how
// knowledge-base dumps lay out a person row with father/mother/child columns.
var columnForms = map[string]string{
	"father":   constants.RelFatherOf,
	"mother":   constants.RelMotherOf,
	"parent":   constants.RelParentOf,
	"child":    constants.RelChildOf,
	"spouse":   constants.RelSpouseOf,
	"sibling":  constants.RelSiblingOf,
	"relative": constants.RelRelativeOf,
}

// canonicalRelation cleans up source spellings such as "FATHER_OF",
// "is father of" or "Father Of".
func canonicalRelation(raw string) string {
	rel := strings.ToLower(strings.TrimSpace(raw))
	rel = strings.TrimPrefix(rel, "is ")
	rel = strings.Join(strings.Fields(rel), "_")
	return rel
}

// CanonicalRelation maps a directed "A <rel> B" spelling to its relation
// type. Column forms are not directed and report false.
func CanonicalRelation(raw string) (string, bool) {
	rel := canonicalRelation(raw)
	if _, isColumn := columnForms[rel]; isColumn {
		return "", false
	}
	d, ok := orient("a", "b", rel)
	return d.Relation, ok
}

// orient turns a raw fact between a and b into its forward directed edge.
// ok is false for relation strings outside both vocabularies.
func orient(a, b, rawRelation string) (directed, bool) {
	rel := canonicalRelation(rawRelation)
	if col, isColumn := columnForms[rel]; isColumn {
		// "b is a's father" == "b father_of a"; "b is a's child" == "b child_of a".
		return directed{Src: b, Dst: a, Relation: col}, true
	}
	switch rel {
	case constants.RelFatherOf, constants.RelMotherOf, constants.RelParentOf,
		constants.RelChildOf, constants.RelSpouseOf, constants.RelSiblingOf,
		constants.RelRelativeOf:
		return directed{Src: a, Dst: b, Relation: rel}, true
	}
	return directed{}, false
}

// parentLabel picks father_of / mother_of from the parent's gender, or the
// generic parent_of when the gender is unknown or neither.
func parentLabel(gender string) string {
	switch gender {
	case constants.GenderMale:
		return constants.RelFatherOf
	case constants.GenderFemale:
		return constants.RelMotherOf
	}
	return constants.RelParentOf
}

// inverse returns the semantically inverse edge of d. Spouse, sibling and
// relative are symmetric.
func inverse(d directed, genderOf func(string) string) directed {
	switch {
	case isParentage(d.Relation):
		return directed{Src: d.Dst, Dst: d.Src, Relation: constants.RelChildOf}
	case d.Relation == constants.RelChildOf:
		return directed{Src: d.Dst, Dst: d.Src, Relation: parentLabel(genderOf(d.Dst))}
	}
	return directed{Src: d.Dst, Dst: d.Src, Relation: d.Relation}
}

func isParentage(rel string) bool {
	return rel == constants.RelFatherOf || rel == constants.RelMotherOf || rel == constants.RelParentOf
}
