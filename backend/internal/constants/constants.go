package constants

// Source kinds recorded as provenance on every node and edge
const (
	SourceNeo4jExport  = "neo4j_export"
	SourceWikidata     = "wikidata"
	SourceMAS          = "MAS_csv"
	SourceAnnualReport = "annual_report"
	SourceBillionaires = "bloomberg"
)

// Family relation types
const (
	RelFatherOf   = "father_of"
	RelMotherOf   = "mother_of"
	RelParentOf   = "parent_of"
	RelChildOf    = "child_of"
	RelSpouseOf   = "spouse_of"
	RelSiblingOf  = "sibling_of"
	RelRelativeOf = "relative_of"
)

// Graph labels and relationship types
const (
	LabelPerson  = "Person"
	LabelCompany = "Company"
	EdgeRole     = "HAS_ROLE_AT"
	EdgeFamily   = "FAMILY"
)

// Id prefixes for generated identifiers
const (
	PersonIDPrefix  = "person:"
	CompanyIDPrefix = "company:"
	// GeneratedIDHexLen is the number of uuid hex characters kept in a generated id
	GeneratedIDHexLen = 12
)

// Matching defaults
const (
	// DefaultMatchThreshold is the token-set score (0-100) at or above which two keys merge
	DefaultMatchThreshold = 93.0
	// DefaultMaxEditDistance is the edit distance at or below which two company keys merge
	DefaultMaxEditDistance = 2
)

// Genders understood by parent direction inference
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderUnknown = ""
)

// Well-known PersonMention attribute keys
const (
	AttrGender = "gender"
)
