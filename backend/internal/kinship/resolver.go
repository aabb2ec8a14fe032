// Package kinship turns raw family facts into a minimal, contradiction-free
// set of directed FAMILY edges.
//
// Facts are expanded on arrival into a forward and an inverse edge and
// accumulated; Consolidate then runs once over the whole set, grouping by
// ordered (source, destination) pair:
//
//   - father_of together with mother_of collapses to parent_of;
//   - otherwise a single parentage label is kept, preferring the specific
//     father_of / mother_of over the generic parent_of;
//   - child_of survives only when no parentage label exists for the pair;
//   - spouse_of, sibling_of and relative_of are kept independently.
package kinship

import (
	"sort"

	"go.uber.org/zap"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/state"
	apperrors "uhnw-graph/backend/pkg/errors"
)

// GenderFunc returns the normalized gender of a person id, or "".
type GenderFunc func(id string) string

type pair struct {
	src string
	dst string
}

// Resolver accumulates family edges for one ingestion run. It is not safe
// for concurrent use.
type Resolver struct {
	genderOf GenderFunc
	logger   *zap.Logger
	edges    map[pair]map[string]state.Provenance
	dropped  int
}

// NewResolver creates an empty resolver. genderOf may be nil, in which case
// generic parent facts stay parent_of.
func NewResolver(genderOf GenderFunc, log *zap.Logger) *Resolver {
	if genderOf == nil {
		genderOf = func(string) string { return constants.GenderUnknown }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		genderOf: genderOf,
		logger:   log.Named("kinship"),
		edges:    make(map[pair]map[string]state.Provenance),
	}
}

// Add records the fact "a <relation> b" between two resolved person ids,
// together with its inverse. Self-loops are dropped and reported as false.
// Unknown relation strings are a malformed record.
func (r *Resolver) Add(a, b, relation string, prov state.Provenance) (bool, error) {
	fwd, ok := orient(a, b, relation)
	if !ok {
		return false, apperrors.NewMalformedRecord("family_fact", "relation_type")
	}
	if fwd.Src == fwd.Dst {
		r.dropped++
		r.logger.Debug("Self-loop family fact dropped",
			zap.String("person_id", fwd.Src),
			zap.String("relation", fwd.Relation),
		)
		return false, nil
	}
	if fwd.Relation == constants.RelParentOf {
		fwd.Relation = parentLabel(r.genderOf(fwd.Src))
	}

	r.put(fwd, prov)
	r.put(inverse(fwd, r.genderOf), prov)
	return true, nil
}

// Seed loads edges that were consolidated by an earlier run so the next
// consolidation accounts for them. Invalid edges are ignored.
func (r *Resolver) Seed(edges []state.FamilyEdge) {
	for _, e := range edges {
		if err := e.Validate(); err != nil {
			continue
		}
		r.put(directed{Src: e.SourceID, Dst: e.DestID, Relation: e.Relation}, e.Provenance)
	}
}

// Dropped returns how many self-loop facts were discarded.
func (r *Resolver) Dropped() int {
	return r.dropped
}

// Len returns the number of raw accumulated edges.
func (r *Resolver) Len() int {
	n := 0
	for _, rels := range r.edges {
		n += len(rels)
	}
	return n
}

func (r *Resolver) put(d directed, prov state.Provenance) {
	p := pair{src: d.Src, dst: d.Dst}
	rels, ok := r.edges[p]
	if !ok {
		rels = make(map[string]state.Provenance)
		r.edges[p] = rels
	}
	if prev, seen := rels[d.Relation]; seen && prev.UpdatedAt.After(prov.UpdatedAt) {
		return
	}
	rels[d.Relation] = prov
}

// Consolidate returns the minimal edge list, sorted by (source, destination,
// relation).
func (r *Resolver) Consolidate() []state.FamilyEdge {
	out := make([]state.FamilyEdge, 0, len(r.edges))
	for p, rels := range r.edges {
		out = append(out, consolidatePair(p, rels)...)
	}
	state.SortFamilyEdges(out)
	return out
}

func consolidatePair(p pair, rels map[string]state.Provenance) []state.FamilyEdge {
	_, father := rels[constants.RelFatherOf]
	_, mother := rels[constants.RelMotherOf]
	_, parent := rels[constants.RelParentOf]
	_, child := rels[constants.RelChildOf]

	var out []state.FamilyEdge
	emit := func(rel string, prov state.Provenance) {
		out = append(out, state.FamilyEdge{SourceID: p.src, DestID: p.dst, Relation: rel, Provenance: prov})
	}

	switch {
	case father && mother:
		emit(constants.RelParentOf, latest(rels, constants.RelFatherOf, constants.RelMotherOf, constants.RelParentOf))
	case father:
		emit(constants.RelFatherOf, rels[constants.RelFatherOf])
	case mother:
		emit(constants.RelMotherOf, rels[constants.RelMotherOf])
	case parent:
		emit(constants.RelParentOf, rels[constants.RelParentOf])
	case child:
		emit(constants.RelChildOf, rels[constants.RelChildOf])
	}

	for _, rel := range []string{constants.RelSpouseOf, constants.RelSiblingOf, constants.RelRelativeOf} {
		if prov, ok := rels[rel]; ok {
			emit(rel, prov)
		}
	}
	return out
}

// latest returns the most recent provenance among the given relations.
func latest(rels map[string]state.Provenance, names ...string) state.Provenance {
	sort.Strings(names)
	var best state.Provenance
	found := false
	for _, name := range names {
		prov, ok := rels[name]
		if !ok {
			continue
		}
		if !found || prov.UpdatedAt.After(best.UpdatedAt) {
			best, found = prov, true
		}
	}
	return best
}
