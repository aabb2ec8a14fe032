// Package record defines the four normalized shapes every source adapter
// emits. The ingestion core never looks at source-specific structure.
package record

import (
	apperrors "uhnw-graph/backend/pkg/errors"
)

// Record is one of PersonMention, CompanyMention, RoleFact or FamilyFact.
type Record interface {
	Kind() string
	Validate() error
}

// PersonRef identifies a person either by authoritative id or by raw name.
// When both are set the external id wins.
type PersonRef struct {
	ExternalID string
	Name       string
}

// IsZero reports whether the reference carries nothing to resolve.
func (r PersonRef) IsZero() bool {
	return r.ExternalID == "" && r.Name == ""
}

// PersonMention introduces or refreshes a person.
type PersonMention struct {
	RawName       string
	CanonicalName string   // optional override of the display name
	ExternalID    string   // optional authoritative id
	Aliases       []string // optional alias hints
	Attributes    map[string]string
}

// CompanyMention introduces or refreshes a company.
type CompanyMention struct {
	RawName string
}

// RoleFact states that a person holds a role at a company.
type RoleFact struct {
	Person  PersonRef
	Company string
	Role    string
	Start   string
	End     string
}

// FamilyFact states a directed family relation between two persons, as
// parsed from the source: "A <RelationType> B".
type FamilyFact struct {
	PersonA      PersonRef
	PersonB      PersonRef
	RelationType string
}

// Batch is the unit an adapter hands to an ingestion run: the records of one
// source file plus the ids the batch was seeded from.
type Batch struct {
	SourceKind string
	SourceFile string
	SeedIDs    []string
	Records    []Record
}

const (
	KindPersonMention  = "person_mention"
	KindCompanyMention = "company_mention"
	KindRoleFact       = "role_fact"
	KindFamilyFact     = "family_fact"
)

func (PersonMention) Kind() string  { return KindPersonMention }
func (CompanyMention) Kind() string { return KindCompanyMention }
func (RoleFact) Kind() string       { return KindRoleFact }
func (FamilyFact) Kind() string     { return KindFamilyFact }

func (m PersonMention) Validate() error {
	if m.RawName == "" && m.CanonicalName == "" && m.ExternalID == "" {
		return apperrors.NewMalformedRecord(KindPersonMention, "raw_name")
	}
	return nil
}

func (m CompanyMention) Validate() error {
	if m.RawName == "" {
		return apperrors.NewMalformedRecord(KindCompanyMention, "raw_name")
	}
	return nil
}

func (f RoleFact) Validate() error {
	if f.Person.IsZero() {
		return apperrors.NewMalformedRecord(KindRoleFact, "person_ref")
	}
	if f.Company == "" {
		return apperrors.NewMalformedRecord(KindRoleFact, "company_ref")
	}
	return nil
}

func (f FamilyFact) Validate() error {
	if f.PersonA.IsZero() {
		return apperrors.NewMalformedRecord(KindFamilyFact, "person_a")
	}
	if f.PersonB.IsZero() {
		return apperrors.NewMalformedRecord(KindFamilyFact, "person_b")
	}
	if f.RelationType == "" {
		return apperrors.NewMalformedRecord(KindFamilyFact, "relation_type")
	}
	return nil
}
