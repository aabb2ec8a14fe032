// Package ingest drives one ingestion run: it owns the registry, the family
// edge accumulator, the crawl frontier and the graph writer, and feeds them
// source batches one at a time.
package ingest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/datafile"
	"uhnw-graph/backend/internal/frontier"
	"uhnw-graph/backend/internal/graph"
	"uhnw-graph/backend/internal/kinship"
	"uhnw-graph/backend/internal/matcher"
	"uhnw-graph/backend/internal/metrics"
	"uhnw-graph/backend/internal/record"
	"uhnw-graph/backend/internal/registry"
	"uhnw-graph/backend/internal/state"
	"uhnw-graph/backend/internal/utils"
	apperrors "uhnw-graph/backend/pkg/errors"
	"uhnw-graph/backend/pkg/logger"
)

// Options configures a Run. Zero values fall back to defaults.
type Options struct {
	PersonMatcher  matcher.Matcher
	CompanyMatcher matcher.Matcher
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Now            func() time.Time
	IDGenerator    registry.IDGenerator
}

// Summary reports what a run did.
type Summary struct {
	Batches          int      `json:"batches"`
	Records          int      `json:"records"`
	Skipped          int      `json:"skipped"`
	PersonsCreated   int      `json:"persons_created"`
	PersonsMerged    int      `json:"persons_merged"`
	CompaniesCreated int      `json:"companies_created"`
	CompaniesMerged  int      `json:"companies_merged"`
	Ambiguous        int      `json:"ambiguous"`
	RoleEdges        int      `json:"role_edges"`
	FamilyEdges      int      `json:"family_edges"`
	SelfLoopsDropped int      `json:"self_loops_dropped"`
	Pending          []string `json:"pending"`
}

// Run is the single owner of all mutable resolution state for one
// invocation. It is not safe for concurrent use.
type Run struct {
	registry *registry.Registry
	resolver *kinship.Resolver
	frontier *frontier.Tracker
	writer   graph.Writer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	// signatures of what has already been written, so unchanged nodes and
	// edges are not re-sent within a run
	writtenPersons   map[string]string
	writtenCompanies map[string]string
	writtenRoles     map[string]string
	personProv       map[string]state.Provenance

	processed map[string]map[string]bool
	summary   Summary
	finished  bool
}

// New creates a run writing to w. tracker may be nil for sources that do not
// crawl.
func New(w graph.Writer, tracker *frontier.Tracker, opts Options) *Run {
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	if tracker == nil {
		tracker = frontier.New(log)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	r := &Run{
		registry:         registry.New(opts.PersonMatcher, opts.CompanyMatcher, log),
		frontier:         tracker,
		writer:           w,
		metrics:          opts.Metrics,
		logger:           log.Named("ingest"),
		now:              now,
		writtenPersons:   make(map[string]string),
		writtenCompanies: make(map[string]string),
		writtenRoles:     make(map[string]string),
		personProv:       make(map[string]state.Provenance),
		processed:        make(map[string]map[string]bool),
	}
	r.registry.SetIDGenerator(opts.IDGenerator)
	r.resolver = kinship.NewResolver(r.genderOf, log)
	return r
}

func (r *Run) genderOf(id string) string {
	if e, ok := r.registry.Person(id); ok {
		return e.Gender
	}
	return constants.GenderUnknown
}

// Registry exposes the run's registry.
func (r *Run) Registry() *registry.Registry { return r.registry }

// Frontier exposes the run's crawl frontier.
func (r *Run) Frontier() *frontier.Tracker { return r.frontier }

// Rehydrate seeds the registry with already-stored entities and the
// resolver with already-consolidated family edges.
func (r *Run) Rehydrate(persons []state.Person, companies []state.Company, edges []state.FamilyEdge) {
	r.registry.Rehydrate(persons, companies)
	r.resolver.Seed(edges)
	for _, p := range persons {
		if _, ok := r.personProv[p.ID]; !ok {
			r.personProv[p.ID] = p.Provenance
		}
	}
}

// MarkProcessed records source files whose facts are already in the store.
func (r *Run) MarkProcessed(sourceKind string, files map[string]bool) {
	if len(files) == 0 {
		return
	}
	set, ok := r.processed[sourceKind]
	if !ok {
		set = make(map[string]bool, len(files))
		r.processed[sourceKind] = set
	}
	for f := range files {
		set[f] = true
	}
}

// AlreadyProcessed reports whether a source file was ingested before.
func (r *Run) AlreadyProcessed(sourceKind, sourceFile string) bool {
	return r.processed[sourceKind][sourceFile]
}

// Process feeds one batch through resolution and writes its nodes and role
// edges. Malformed records are skipped and logged. A store failure aborts
// the batch and is returned; records already written stay written and are
// safe to replay.
func (r *Run) Process(ctx context.Context, batch record.Batch) error {
	if r.finished {
		return errors.New("ingest: run already finished")
	}
	start := r.now()
	defer func() { r.metrics.ObserveBatch(batch.SourceKind, time.Since(start)) }()

	prov := state.Provenance{
		SourceKind: batch.SourceKind,
		SourceFile: batch.SourceFile,
		UpdatedAt:  start,
	}
	log := r.logger.With(
		zap.String("source_kind", batch.SourceKind),
		zap.String("source_file", batch.SourceFile),
	)

	seeds := make(map[string]bool, len(batch.SeedIDs))
	for _, id := range batch.SeedIDs {
		seeds[id] = true
		r.frontier.MarkResolved(id)
	}

	r.summary.Batches++
	for i, rec := range batch.Records {
		if err := ctx.Err(); err != nil {
			return apperrors.NewContextCancelled("process_batch", err)
		}
		r.summary.Records++

		err := rec.Validate()
		if err == nil {
			err = r.apply(ctx, rec, prov, seeds)
		}
		if err == nil {
			r.metrics.IncRecord(rec.Kind(), "ok")
			continue
		}
		if !skippable(err) {
			log.Error("Batch aborted",
				zap.Int("record", i),
				zap.String("kind", rec.Kind()),
				zap.Error(err),
			)
			return err
		}
		r.summary.Skipped++
		r.metrics.IncRecord(rec.Kind(), "skipped")
		log.Warn("Record skipped",
			zap.Int("record", i),
			zap.String("kind", rec.Kind()),
			zap.Error(err),
		)
	}

	log.Info("Batch processed",
		zap.Int("records", len(batch.Records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func skippable(err error) bool {
	if apperrors.IsSkippable(err) {
		return true
	}
	var invalid state.ErrInvalidEntity
	return errors.As(err, &invalid)
}

func (r *Run) apply(ctx context.Context, rec record.Record, prov state.Provenance, seeds map[string]bool) error {
	switch v := rec.(type) {
	case record.PersonMention:
		_, err := r.applyPerson(ctx, v, prov, seeds)
		return err
	case *record.PersonMention:
		_, err := r.applyPerson(ctx, *v, prov, seeds)
		return err
	case record.CompanyMention:
		_, err := r.resolveCompany(ctx, v.RawName, prov)
		return err
	case *record.CompanyMention:
		_, err := r.resolveCompany(ctx, v.RawName, prov)
		return err
	case record.RoleFact:
		return r.applyRole(ctx, v, prov, seeds)
	case *record.RoleFact:
		return r.applyRole(ctx, *v, prov, seeds)
	case record.FamilyFact:
		return r.applyFamily(ctx, v, prov, seeds)
	case *record.FamilyFact:
		return r.applyFamily(ctx, *v, prov, seeds)
	}
	return apperrors.NewMalformedRecord(rec.Kind(), "kind")
}

func (r *Run) applyPerson(ctx context.Context, m record.PersonMention, prov state.Provenance, seeds map[string]bool) (string, error) {
	gender := utils.NormalizeGender(m.Attributes[constants.AttrGender])
	if gender == constants.GenderUnknown {
		gender = utils.GenderFromTitle(m.RawName)
	}
	attrs := make(map[string]string, len(m.Attributes))
	for k, v := range m.Attributes {
		if k != constants.AttrGender {
			attrs[k] = v
		}
	}
	return r.resolvePerson(ctx, registry.PersonQuery{
		RawName:           m.RawName,
		CanonicalOverride: m.CanonicalName,
		AliasHints:        m.Aliases,
		ExternalID:        m.ExternalID,
		Gender:            gender,
		Attributes:        attrs,
	}, prov, seeds)
}

func (r *Run) resolveRef(ctx context.Context, ref record.PersonRef, prov state.Provenance, seeds map[string]bool) (string, error) {
	return r.resolvePerson(ctx, registry.PersonQuery{
		RawName:    ref.Name,
		ExternalID: ref.ExternalID,
		Gender:     utils.GenderFromTitle(ref.Name),
	}, prov, seeds)
}

func (r *Run) resolvePerson(ctx context.Context, q registry.PersonQuery, prov state.Provenance, seeds map[string]bool) (string, error) {
	id, entry, err := r.registry.ResolvePerson(q)
	if err != nil {
		return "", err
	}
	if entry.Authoritative() && !seeds[entry.ExternalID] {
		r.frontier.Discover(entry.ExternalID)
	}
	r.personProv[id] = prov

	p := entry.Person(prov)
	sig := personSignature(p)
	if r.writtenPersons[id] == sig {
		return id, nil
	}
	if err := r.upsert(ctx, "person", func() error { return r.writer.UpsertPerson(ctx, p) }); err != nil {
		return "", err
	}
	r.writtenPersons[id] = sig
	return id, nil
}

func personSignature(p state.Person) string {
	keys := make([]string, 0, len(p.Attributes))
	for k := range p.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]string, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, k+"="+strings.Join(p.Attributes[k], "\x1f"))
	}
	return strings.Join([]string{
		p.Name,
		strings.Join(p.Aliases, "\x1f"),
		p.ExternalID,
		p.Gender,
		strings.Join(attrs, "\x1f"),
		p.Provenance.SourceKind,
		p.Provenance.SourceFile,
	}, "\x1e")
}

func (r *Run) resolveCompany(ctx context.Context, raw string, prov state.Provenance) (string, error) {
	id, err := r.registry.ResolveCompany(raw)
	if err != nil {
		return "", err
	}
	sig := prov.SourceKind + "\x1e" + prov.SourceFile
	if r.writtenCompanies[id] == sig {
		return id, nil
	}
	entry, _ := r.registry.Company(id)
	c := entry.Company(prov)
	if err := r.upsert(ctx, "company", func() error { return r.writer.UpsertCompany(ctx, c) }); err != nil {
		return "", err
	}
	r.writtenCompanies[id] = sig
	return id, nil
}

func (r *Run) applyRole(ctx context.Context, f record.RoleFact, prov state.Provenance, seeds map[string]bool) error {
	pid, err := r.resolveRef(ctx, f.Person, prov, seeds)
	if err != nil {
		return err
	}
	cid, err := r.resolveCompany(ctx, f.Company, prov)
	if err != nil {
		return err
	}

	edge := state.RoleEdge{
		PersonID:   pid,
		CompanyID:  cid,
		Role:       strings.TrimSpace(f.Role),
		Start:      strings.TrimSpace(f.Start),
		End:        strings.TrimSpace(f.End),
		Provenance: prov,
	}
	sig := edge.Start + "\x1e" + edge.End + "\x1e" + prov.SourceKind + "\x1e" + prov.SourceFile
	if r.writtenRoles[edge.Key()] == sig {
		return nil
	}
	if err := r.upsert(ctx, "role", func() error { return r.writer.UpsertRole(ctx, edge) }); err != nil {
		return err
	}
	if _, seen := r.writtenRoles[edge.Key()]; !seen {
		r.summary.RoleEdges++
	}
	r.writtenRoles[edge.Key()] = sig
	return nil
}

func (r *Run) applyFamily(ctx context.Context, f record.FamilyFact, prov state.Provenance, seeds map[string]bool) error {
	a, err := r.resolveRef(ctx, f.PersonA, prov, seeds)
	if err != nil {
		return err
	}
	b, err := r.resolveRef(ctx, f.PersonB, prov, seeds)
	if err != nil {
		return err
	}
	_, err = r.resolver.Add(a, b, f.RelationType, prov)
	return err
}

func (r *Run) upsert(ctx context.Context, target string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.metrics.ObserveUpsert(target, time.Since(start), err)
	return err
}

// Finish consolidates the accumulated family facts, writes the resulting
// edges and returns the run summary. A run cannot process batches after
// Finish.
func (r *Run) Finish(ctx context.Context) (Summary, error) {
	if r.finished {
		return r.summary, nil
	}

	edges := r.resolver.Consolidate()
	for _, e := range edges {
		if err := ctx.Err(); err != nil {
			return r.summary, apperrors.NewContextCancelled("write_family", err)
		}
		edge := e
		if err := r.upsert(ctx, "family", func() error { return r.writer.UpsertFamily(ctx, edge) }); err != nil {
			return r.summary, err
		}
	}
	r.finished = true

	stats := r.registry.Stats()
	r.summary.PersonsCreated = stats.PersonsCreated
	r.summary.PersonsMerged = stats.PersonsMerged
	r.summary.CompaniesCreated = stats.CompaniesCreated
	r.summary.CompaniesMerged = stats.CompaniesMerged
	r.summary.Ambiguous = stats.Ambiguous
	r.summary.FamilyEdges = len(edges)
	r.summary.SelfLoopsDropped = r.resolver.Dropped()
	r.summary.Pending = r.frontier.PendingIDs()

	r.metrics.AddEntities("person", "created", stats.PersonsCreated)
	r.metrics.AddEntities("person", "merged", stats.PersonsMerged)
	r.metrics.AddEntities("company", "created", stats.CompaniesCreated)
	r.metrics.AddEntities("company", "merged", stats.CompaniesMerged)
	r.metrics.AddEntities("person", "ambiguous", stats.Ambiguous)
	r.metrics.SetFrontierPending(len(r.summary.Pending))

	r.logger.Info("Run finished",
		zap.Int("batches", r.summary.Batches),
		zap.Int("records", r.summary.Records),
		zap.Int("skipped", r.summary.Skipped),
		zap.Int("persons_created", stats.PersonsCreated),
		zap.Int("companies_created", stats.CompaniesCreated),
		zap.Int("family_edges", len(edges)),
		zap.Int("pending", len(r.summary.Pending)),
	)
	return r.summary, nil
}

// Snapshot returns the knowledge-base dump of everything the run resolved,
// with the consolidated family edges.
func (r *Run) Snapshot() datafile.Snapshot {
	entries := r.registry.Persons()
	persons := make([]state.Person, 0, len(entries))
	for _, e := range entries {
		persons = append(persons, e.Person(r.personProv[e.ID]))
	}
	return datafile.NewSnapshot(persons, r.resolver.Consolidate())
}
