package registry

import (
	"sort"

	"uhnw-graph/backend/internal/state"
)

// PersonEntry is the canonical record for one real-world person.
type PersonEntry struct {
	ID         string
	Canonical  string // fixed by the mention that created the entry
	Key        string // normalized Canonical
	ExternalID string // authoritative id; empty for fuzzy-matched entries
	Gender     string

	aliases    map[string]struct{}
	attributes map[string][]string
	seq        int64
}

// Seq returns the creation order of the entry.
func (e *PersonEntry) Seq() int64 {
	return e.seq
}

// Authoritative reports whether the entry is keyed by an external identifier.
func (e *PersonEntry) Authoritative() bool {
	return e.ExternalID != ""
}

// Aliases returns the alias set sorted for stable storage.
func (e *PersonEntry) Aliases() []string {
	out := make([]string, 0, len(e.aliases))
	for a := range e.aliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// HasAlias reports whether alias is recorded verbatim.
func (e *PersonEntry) HasAlias(alias string) bool {
	_, ok := e.aliases[alias]
	return ok
}

// Person converts the entry into the stored node shape.
func (e *PersonEntry) Person(prov state.Provenance) state.Person {
	return state.Person{
		ID:         e.ID,
		Name:       e.Canonical,
		Aliases:    e.Aliases(),
		ExternalID: e.ExternalID,
		Gender:     e.Gender,
		Attributes: e.Attributes(),
		Seq:        e.seq,
		Provenance: prov,
	}
}

// Attributes returns a copy of the attribute hints gathered from mentions.
func (e *PersonEntry) Attributes() map[string][]string {
	if len(e.attributes) == 0 {
		return nil
	}
	out := make(map[string][]string, len(e.attributes))
	for k, v := range e.attributes {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (e *PersonEntry) addAttribute(key, value string) {
	if key == "" || value == "" {
		return
	}
	if e.attributes == nil {
		e.attributes = make(map[string][]string)
	}
	for _, v := range e.attributes[key] {
		if v == value {
			return
		}
	}
	e.attributes[key] = append(e.attributes[key], value)
}

// addAlias records alias unless it is empty or the canonical name itself.
func (e *PersonEntry) addAlias(alias string) bool {
	if alias == "" || alias == e.Canonical {
		return false
	}
	if _, ok := e.aliases[alias]; ok {
		return false
	}
	e.aliases[alias] = struct{}{}
	return true
}

// CompanyEntry is the canonical record for one company.
type CompanyEntry struct {
	ID   string
	Name string // first-seen display name
	Key  string

	seq int64
}

// Company converts the entry into the stored node shape.
func (e *CompanyEntry) Company(prov state.Provenance) state.Company {
	return state.Company{ID: e.ID, Name: e.Name, Seq: e.seq, Provenance: prov}
}
