package datafile

import (
	"sort"
	"time"

	"uhnw-graph/backend/internal/kinship"
	"uhnw-graph/backend/internal/state"
)

// Property keys of a snapshot person.
const (
	PropName       = "name" // canonical name first, aliases after
	PropGender     = "gender"
	PropExternalID = "external_id"
	PropSourceKind = "source_kind"
	PropSourceFile = "source_file"
	PropUpdatedAt  = "updated_at"
)

// PersonRecord is one person of the knowledge-base snapshot.
type PersonRecord struct {
	ID         string            `json:"id"`
	Props      map[string]Values `json:"props"`
	Attributes map[string]Values `json:"attributes,omitempty"`
}

// EdgeRecord is one directed family edge: "Seed RelType Rel".
type EdgeRecord struct {
	Seed       string `json:"seed"`
	Rel        string `json:"rel"`
	RelType    string `json:"relType"`
	SourceKind string `json:"source_kind,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
}

// Snapshot is the persisted knowledge-base dump, {persons, edges}.
type Snapshot struct {
	Persons []PersonRecord `json:"persons"`
	Edges   []EdgeRecord   `json:"edges"`
}

// LoadSnapshot reads the snapshot at path. A missing file yields an empty
// snapshot; a corrupt one is quarantined and an empty snapshot is returned
// together with the corruption error.
func LoadSnapshot(path string) (Snapshot, error) {
	var s Snapshot
	if _, err := LoadJSON(path, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// SaveSnapshot atomically writes s to path.
func SaveSnapshot(path string, s Snapshot) error {
	if s.Persons == nil {
		s.Persons = []PersonRecord{}
	}
	if s.Edges == nil {
		s.Edges = []EdgeRecord{}
	}
	return SaveJSON(path, s)
}

// NewSnapshot builds a snapshot from resolved persons and consolidated
// family edges. Persons are ordered by id; edges keep the order given.
func NewSnapshot(persons []state.Person, edges []state.FamilyEdge) Snapshot {
	s := Snapshot{
		Persons: make([]PersonRecord, 0, len(persons)),
		Edges:   make([]EdgeRecord, 0, len(edges)),
	}
	for _, p := range persons {
		s.Persons = append(s.Persons, personRecord(p))
	}
	sort.Slice(s.Persons, func(i, j int) bool { return s.Persons[i].ID < s.Persons[j].ID })
	for _, e := range edges {
		s.Edges = append(s.Edges, EdgeRecord{
			Seed:       e.SourceID,
			Rel:        e.DestID,
			RelType:    e.Relation,
			SourceKind: e.Provenance.SourceKind,
			SourceFile: e.Provenance.SourceFile,
		})
	}
	return s
}

func personRecord(p state.Person) PersonRecord {
	rec := PersonRecord{
		ID:    p.ID,
		Props: map[string]Values{PropName: append(Values{p.Name}, p.Aliases...)},
	}
	set := func(key, value string) {
		if value != "" {
			rec.Props[key] = Values{value}
		}
	}
	set(PropGender, p.Gender)
	set(PropExternalID, p.ExternalID)
	set(PropSourceKind, p.Provenance.SourceKind)
	set(PropSourceFile, p.Provenance.SourceFile)
	if !p.Provenance.UpdatedAt.IsZero() {
		set(PropUpdatedAt, p.Provenance.UpdatedAt.UTC().Format(time.RFC3339))
	}
	if len(p.Attributes) > 0 {
		rec.Attributes = make(map[string]Values, len(p.Attributes))
		for k, v := range p.Attributes {
			rec.Attributes[k] = Values(v).Unique()
		}
	}
	return rec
}

// People converts the snapshot persons back into domain persons. Records
// without a name fall back to their id.
func (s Snapshot) People() []state.Person {
	out := make([]state.Person, 0, len(s.Persons))
	for _, rec := range s.Persons {
		if rec.ID == "" {
			continue
		}
		names := rec.Props[PropName].Unique()
		p := state.Person{
			ID:         rec.ID,
			Name:       names.First(),
			Gender:     rec.Props[PropGender].First(),
			ExternalID: rec.Props[PropExternalID].First(),
			Provenance: state.Provenance{
				SourceKind: rec.Props[PropSourceKind].First(),
				SourceFile: rec.Props[PropSourceFile].First(),
			},
		}
		if p.Name == "" {
			p.Name = rec.ID
		}
		if len(names) > 1 {
			p.Aliases = append([]string(nil), names[1:]...)
			sort.Strings(p.Aliases)
		}
		if ts := rec.Props[PropUpdatedAt].First(); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				p.Provenance.UpdatedAt = t
			}
		}
		if len(rec.Attributes) > 0 {
			p.Attributes = make(map[string][]string, len(rec.Attributes))
			for k, v := range rec.Attributes {
				p.Attributes[k] = []string(v.Unique())
			}
		}
		out = append(out, p)
	}
	return out
}

// FamilyEdges converts the snapshot edges back into domain edges, skipping
// entries with a missing endpoint or unknown relation. Older dumps spell
// relations as "is father of"; those are read as father_of.
func (s Snapshot) FamilyEdges() []state.FamilyEdge {
	out := make([]state.FamilyEdge, 0, len(s.Edges))
	for _, e := range s.Edges {
		rel, ok := kinship.CanonicalRelation(e.RelType)
		if !ok {
			continue
		}
		edge := state.FamilyEdge{
			SourceID: e.Seed,
			DestID:   e.Rel,
			Relation: rel,
			Provenance: state.Provenance{
				SourceKind: e.SourceKind,
				SourceFile: e.SourceFile,
			},
		}
		if edge.Validate() != nil {
			continue
		}
		out = append(out, edge)
	}
	return out
}
