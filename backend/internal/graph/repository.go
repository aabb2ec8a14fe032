// Package graph writes the resolved people, companies and their edges to
// Neo4j with MERGE upserts tagged by source.
package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/state"
	apperrors "uhnw-graph/backend/pkg/errors"
	"uhnw-graph/backend/pkg/logger"
)

const mergePersonQuery = `
	MERGE (p:Person {id: $id})
	SET p.name = $name,
	    p.aliases = $aliases,
	    p.qid = $qid,
	    p.gender = $gender,
	    p.updated = datetime($updated),
	    p.reference_type = $source_type,
	    p.reference_file = $source_file,
	    p.created_seq = coalesce(p.created_seq, $seq)
	SET p += $attributes
`

const mergeCompanyQuery = `
	MERGE (c:Company {id: $id})
	SET c.name = $name,
	    c.lastUpdated = datetime($updated),
	    c.reference_type = $source_type,
	    c.reference_file = $source_file,
	    c.created_seq = coalesce(c.created_seq, $seq)
`

// Dates are first-write-wins; provenance always follows the latest writer.
const mergeRoleQuery = `
	MATCH (p:Person {id: $pid})
	MATCH (c:Company {id: $cid})
	MERGE (p)-[r:HAS_ROLE_AT {role: $role}]->(c)
	ON CREATE SET
	    r.startDate = $start,
	    r.endDate = $end
	ON MATCH SET
	    r.startDate = coalesce(r.startDate, $start),
	    r.endDate = coalesce(r.endDate, $end)
	SET r.updated = datetime($updated),
	    r.reference_type = $source_type,
	    r.reference_file = $source_file
`

const mergeFamilyQuery = `
	MATCH (a:Person {id: $src})
	MATCH (b:Person {id: $dst})
	MERGE (a)-[r:FAMILY {relation: $rel}]->(b)
	SET r.updated = datetime($updated),
	    r.reference_type = $source_type,
	    r.reference_file = $source_file
`

// Repository handles all Neo4j database operations
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	uri      string
	logger   *zap.Logger
	now      func() time.Time
}

// NewRepository creates a new graph repository. An empty database selects
// the server default.
func NewRepository(driver neo4j.DriverWithContext, database string) *Repository {
	return &Repository{
		driver:   driver,
		database: database,
		logger:   logger.Get().Named("graph"),
		now:      time.Now,
	}
}

// WithURI records the bolt URI for error reporting.
func (r *Repository) WithURI(uri string) *Repository {
	r.uri = uri
	return r
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
}

// write runs query in its own write transaction.
func (r *Repository) write(ctx context.Context, operation, query string, params map[string]interface{}) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return r.wrap(operation, err)
	}
	return nil
}

func (r *Repository) wrap(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewContextCancelled(operation, err)
	}
	if neo4j.IsConnectivityError(err) {
		return apperrors.NewGraphConnectionFailed(r.uri, err)
	}
	return apperrors.NewGraphQueryFailed(operation, err)
}

func (r *Repository) stamp(p state.Provenance) string {
	ts := p.UpdatedAt
	if ts.IsZero() {
		ts = r.now()
	}
	return ts.UTC().Format(time.RFC3339)
}

var propertyKey = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// reserved person properties are owned by the upsert itself
var reservedPersonProps = map[string]bool{
	"id": true, "name": true, "aliases": true, "qid": true, "gender": true,
	"updated": true, "reference_type": true, "reference_file": true,
	"created_seq": true,
}

// unsequenced sorts nodes written before creation order was stored last.
const unsequenced = math.MaxInt64

// personAttributes turns attribute hints into node properties: one value is
// stored as a string, several as a list. Keys that are not plain identifiers
// are dropped.
func personAttributes(attrs map[string][]string) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for k, values := range attrs {
		if !propertyKey.MatchString(k) || reservedPersonProps[k] || len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			out[k] = values[0]
			continue
		}
		out[k] = append([]string(nil), values...)
	}
	return out
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableSeq(seq int64) interface{} {
	if seq <= 0 {
		return nil
	}
	return seq
}

// UpsertPerson merges a person node by id
func (r *Repository) UpsertPerson(ctx context.Context, p state.Person) error {
	if err := p.Validate(); err != nil {
		return err
	}
	aliases := p.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return r.write(ctx, "upsert_person", mergePersonQuery, map[string]interface{}{
		"id":          p.ID,
		"name":        p.Name,
		"aliases":     aliases,
		"qid":         nullable(p.ExternalID),
		"gender":      nullable(p.Gender),
		"attributes":  personAttributes(p.Attributes),
		"seq":         nullableSeq(p.Seq),
		"updated":     r.stamp(p.Provenance),
		"source_type": p.Provenance.SourceKind,
		"source_file": p.Provenance.SourceFile,
	})
}

// UpsertCompany merges a company node by id
func (r *Repository) UpsertCompany(ctx context.Context, c state.Company) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.write(ctx, "upsert_company", mergeCompanyQuery, map[string]interface{}{
		"id":          c.ID,
		"name":        c.Name,
		"seq":         nullableSeq(c.Seq),
		"updated":     r.stamp(c.Provenance),
		"source_type": c.Provenance.SourceKind,
		"source_file": c.Provenance.SourceFile,
	})
}

// UpsertRole merges a HAS_ROLE_AT edge keyed by (person, company, role)
func (r *Repository) UpsertRole(ctx context.Context, e state.RoleEdge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return r.write(ctx, "upsert_role", mergeRoleQuery, map[string]interface{}{
		"pid":         e.PersonID,
		"cid":         e.CompanyID,
		"role":        e.Role,
		"start":       nullable(e.Start),
		"end":         nullable(e.End),
		"updated":     r.stamp(e.Provenance),
		"source_type": e.Provenance.SourceKind,
		"source_file": e.Provenance.SourceFile,
	})
}

// UpsertFamily merges a FAMILY edge keyed by (source, dest, relation)
func (r *Repository) UpsertFamily(ctx context.Context, e state.FamilyEdge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return r.write(ctx, "upsert_family", mergeFamilyQuery, map[string]interface{}{
		"src":         e.SourceID,
		"dst":         e.DestID,
		"rel":         e.Relation,
		"updated":     r.stamp(e.Provenance),
		"source_type": e.Provenance.SourceKind,
		"source_file": e.Provenance.SourceFile,
	})
}

// LoadRegistrySnapshot reads every stored person and company so a new run
// resolves mentions against what is already in the graph.
func (r *Repository) LoadRegistrySnapshot(ctx context.Context) ([]state.Person, []state.Company, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (p:Person)
		RETURN p.id AS id, p.name AS name, p.aliases AS aliases,
		       coalesce(p.qid, p.wikidata_qid) AS qid, p.gender AS gender,
		       p.created_seq AS seq,
		       p.reference_type AS source_type, p.reference_file AS source_file
		ORDER BY coalesce(p.created_seq, $unsequenced), id
	`, map[string]interface{}{"unsequenced": unsequenced})
	if err != nil {
		return nil, nil, r.wrap("load_persons", err)
	}
	var persons []state.Person
	for result.Next(ctx) {
		record := result.Record()
		persons = append(persons, state.Person{
			ID:         getStringFromRecord(record, "id"),
			Name:       getStringFromRecord(record, "name"),
			Aliases:    getStringSliceFromRecord(record, "aliases"),
			ExternalID: getStringFromRecord(record, "qid"),
			Gender:     getStringFromRecord(record, "gender"),
			Seq:        getInt64FromRecord(record, "seq"),
			Provenance: state.Provenance{
				SourceKind: getStringFromRecord(record, "source_type"),
				SourceFile: getStringFromRecord(record, "source_file"),
			},
		})
	}
	if err := result.Err(); err != nil {
		return nil, nil, r.wrap("load_persons", err)
	}

	result, err = session.Run(ctx, `
		MATCH (c:Company)
		RETURN c.id AS id, c.name AS name, c.created_seq AS seq,
		       c.reference_type AS source_type, c.reference_file AS source_file
		ORDER BY coalesce(c.created_seq, $unsequenced), id
	`, map[string]interface{}{"unsequenced": unsequenced})
	if err != nil {
		return nil, nil, r.wrap("load_companies", err)
	}
	var companies []state.Company
	for result.Next(ctx) {
		record := result.Record()
		companies = append(companies, state.Company{
			ID:   getStringFromRecord(record, "id"),
			Name: getStringFromRecord(record, "name"),
			Seq:  getInt64FromRecord(record, "seq"),
			Provenance: state.Provenance{
				SourceKind: getStringFromRecord(record, "source_type"),
				SourceFile: getStringFromRecord(record, "source_file"),
			},
		})
	}
	if err := result.Err(); err != nil {
		return nil, nil, r.wrap("load_companies", err)
	}

	r.logger.Info("Registry snapshot loaded",
		zap.Int("persons", len(persons)),
		zap.Int("companies", len(companies)),
	)
	return persons, companies, nil
}

// ProcessedSourceFiles returns the source files of the given kind that
// already left a node or edge in the graph.
func (r *Repository) ProcessedSourceFiles(ctx context.Context, sourceKind string) (map[string]bool, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (n) WHERE n.reference_type = $kind
		RETURN DISTINCT n.reference_file AS file
		UNION
		MATCH ()-[r]-() WHERE r.reference_type = $kind
		RETURN DISTINCT r.reference_file AS file
	`, map[string]interface{}{"kind": sourceKind})
	if err != nil {
		return nil, r.wrap("processed_files", err)
	}

	files := make(map[string]bool)
	for result.Next(ctx) {
		if f := getStringFromRecord(result.Record(), "file"); f != "" {
			files[f] = true
		}
	}
	if err := result.Err(); err != nil {
		return nil, r.wrap("processed_files", err)
	}

	r.logger.Debug("Processed source files loaded",
		zap.String("source_kind", sourceKind),
		zap.Int("files", len(files)),
	)
	return files, nil
}

// EnsureSchema creates the uniqueness constraints and lookup indexes the
// MERGE statements rely on.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf("CREATE CONSTRAINT person_id_unique IF NOT EXISTS FOR (p:%s) REQUIRE p.id IS UNIQUE", constants.LabelPerson),
		fmt.Sprintf("CREATE CONSTRAINT company_id_unique IF NOT EXISTS FOR (c:%s) REQUIRE c.id IS UNIQUE", constants.LabelCompany),
		fmt.Sprintf("CREATE INDEX person_qid IF NOT EXISTS FOR (p:%s) ON (p.qid)", constants.LabelPerson),
		fmt.Sprintf("CREATE INDEX person_reference_type IF NOT EXISTS FOR (p:%s) ON (p.reference_type)", constants.LabelPerson),
		fmt.Sprintf("CREATE INDEX company_reference_type IF NOT EXISTS FOR (c:%s) ON (c.reference_type)", constants.LabelCompany),
	}

	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return r.wrap("ensure_schema", err)
		}
		r.logger.Debug("Schema statement applied", zap.String("statement", stmt))
	}
	r.logger.Info("Schema ensured", zap.Int("statements", len(statements)))
	return nil
}
