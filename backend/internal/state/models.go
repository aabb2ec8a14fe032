package state

import (
	"fmt"
	"sort"
	"time"

	"uhnw-graph/backend/internal/constants"
)

// Provenance records which source produced or most recently touched a fact
type Provenance struct {
	SourceKind string    `json:"source_kind"`
	SourceFile string    `json:"source_file"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Person is a canonical person node
type Person struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Aliases    []string            `json:"aliases"`               // sorted, unique
	ExternalID string              `json:"external_id,omitempty"` // authoritative id, when known
	Gender     string              `json:"gender,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"` // source hints, written as extra node properties
	Seq        int64               `json:"seq,omitempty"`        // creation order, kept by the first write
	Provenance Provenance          `json:"provenance"`
}

// Company is a canonical company node
type Company struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Seq        int64      `json:"seq,omitempty"` // creation order, kept by the first write
	Provenance Provenance `json:"provenance"`
}

// RoleEdge links a person to a company; unique by (PersonID, CompanyID, Role)
type RoleEdge struct {
	PersonID   string     `json:"person_id"`
	CompanyID  string     `json:"company_id"`
	Role       string     `json:"role"`
	Start      string     `json:"start,omitempty"`
	End        string     `json:"end,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// Key returns the uniqueness key of the edge
func (e RoleEdge) Key() string {
	return e.PersonID + "|" + e.CompanyID + "|" + e.Role
}

// FamilyEdge links two persons; unique by (SourceID, DestID, Relation)
type FamilyEdge struct {
	SourceID   string     `json:"source_id"`
	DestID     string     `json:"dest_id"`
	Relation   string     `json:"relation"`
	Provenance Provenance `json:"provenance"`
}

// Key returns the uniqueness key of the edge
func (e FamilyEdge) Key() string {
	return e.SourceID + "|" + e.DestID + "|" + e.Relation
}

// Validate checks the Person is storable
func (p *Person) Validate() error {
	if p.ID == "" {
		return ErrInvalidEntity{Kind: constants.LabelPerson, Field: "id", Reason: "cannot be empty"}
	}
	if p.Name == "" {
		return ErrInvalidEntity{Kind: constants.LabelPerson, Field: "name", Reason: "cannot be empty"}
	}
	return nil
}

// Validate checks the Company is storable
func (c *Company) Validate() error {
	if c.ID == "" {
		return ErrInvalidEntity{Kind: constants.LabelCompany, Field: "id", Reason: "cannot be empty"}
	}
	if c.Name == "" {
		return ErrInvalidEntity{Kind: constants.LabelCompany, Field: "name", Reason: "cannot be empty"}
	}
	return nil
}

// Validate checks the RoleEdge is storable
func (e *RoleEdge) Validate() error {
	if e.PersonID == "" || e.CompanyID == "" {
		return ErrInvalidEntity{Kind: constants.EdgeRole, Field: "endpoints", Reason: "both ids are required"}
	}
	return nil
}

// Validate checks the FamilyEdge is storable; self-loops are rejected
func (e *FamilyEdge) Validate() error {
	if e.SourceID == "" || e.DestID == "" {
		return ErrInvalidEntity{Kind: constants.EdgeFamily, Field: "endpoints", Reason: "both ids are required"}
	}
	if e.SourceID == e.DestID {
		return ErrInvalidEntity{Kind: constants.EdgeFamily, Field: "endpoints", Reason: "self-loop"}
	}
	if !IsRelation(e.Relation) {
		return ErrInvalidEntity{Kind: constants.EdgeFamily, Field: "relation", Reason: fmt.Sprintf("unknown relation %q", e.Relation)}
	}
	return nil
}

var relations = map[string]bool{
	constants.RelFatherOf:   true,
	constants.RelMotherOf:   true,
	constants.RelParentOf:   true,
	constants.RelChildOf:    true,
	constants.RelSpouseOf:   true,
	constants.RelSiblingOf:  true,
	constants.RelRelativeOf: true,
}

// IsRelation reports whether rel is a known family relation type
func IsRelation(rel string) bool {
	return relations[rel]
}

// SortFamilyEdges orders edges by (source, dest, relation)
func SortFamilyEdges(edges []FamilyEdge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.DestID != b.DestID {
			return a.DestID < b.DestID
		}
		return a.Relation < b.Relation
	})
}

// Errors

type ErrInvalidEntity struct {
	Kind   string
	Field  string
	Reason string
}

func (e ErrInvalidEntity) Error() string {
	return fmt.Sprintf("invalid %s: %s - %s", e.Kind, e.Field, e.Reason)
}
