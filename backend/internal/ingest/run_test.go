package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/record"
	"uhnw-graph/backend/internal/state"
	apperrors "uhnw-graph/backend/pkg/errors"
)

// memStore keeps nodes and edges by their uniqueness keys and applies the
// same merge rules as the Cypher statements.
type memStore struct {
	persons   map[string]state.Person
	companies map[string]state.Company
	roles     map[string]state.RoleEdge
	families  map[string]state.FamilyEdge
	failOn    string
	writes    int
}

func newMemStore() *memStore {
	return &memStore{
		persons:   make(map[string]state.Person),
		companies: make(map[string]state.Company),
		roles:     make(map[string]state.RoleEdge),
		families:  make(map[string]state.FamilyEdge),
	}
}

func (s *memStore) fail(target string) error {
	if s.failOn == target {
		return apperrors.NewGraphConnectionFailed("bolt://test", fmt.Errorf("connection refused"))
	}
	s.writes++
	return nil
}

func (s *memStore) UpsertPerson(_ context.Context, p state.Person) error {
	if err := s.fail("person"); err != nil {
		return err
	}
	p.Attributes = nil
	if prev, ok := s.persons[p.ID]; ok && prev.Seq > 0 {
		p.Seq = prev.Seq
	}
	s.persons[p.ID] = p
	return nil
}

func (s *memStore) UpsertCompany(_ context.Context, c state.Company) error {
	if err := s.fail("company"); err != nil {
		return err
	}
	if prev, ok := s.companies[c.ID]; ok && prev.Seq > 0 {
		c.Seq = prev.Seq
	}
	s.companies[c.ID] = c
	return nil
}

func (s *memStore) UpsertRole(_ context.Context, e state.RoleEdge) error {
	if err := s.fail("role"); err != nil {
		return err
	}
	if prev, ok := s.roles[e.Key()]; ok {
		if prev.Start != "" {
			e.Start = prev.Start
		}
		if prev.End != "" {
			e.End = prev.End
		}
	}
	s.roles[e.Key()] = e
	return nil
}

func (s *memStore) UpsertFamily(_ context.Context, e state.FamilyEdge) error {
	if err := s.fail("family"); err != nil {
		return err
	}
	s.families[e.Key()] = e
	return nil
}

// LoadRegistrySnapshot returns entities in id order; the run must restore
// creation order from Seq on its own.
func (s *memStore) LoadRegistrySnapshot(context.Context) ([]state.Person, []state.Company, error) {
	persons := make([]state.Person, 0, len(s.persons))
	for _, p := range s.persons {
		persons = append(persons, p)
	}
	sort.Slice(persons, func(i, j int) bool { return persons[i].ID < persons[j].ID })
	companies := make([]state.Company, 0, len(s.companies))
	for _, c := range s.companies {
		companies = append(companies, c)
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].ID < companies[j].ID })
	return persons, companies, nil
}

func (s *memStore) ProcessedSourceFiles(_ context.Context, kind string) (map[string]bool, error) {
	files := make(map[string]bool)
	for _, p := range s.persons {
		if p.Provenance.SourceKind == kind {
			files[p.Provenance.SourceFile] = true
		}
	}
	for _, e := range s.roles {
		if e.Provenance.SourceKind == kind {
			files[e.Provenance.SourceFile] = true
		}
	}
	return files, nil
}

func (s *memStore) familyKeys() []string {
	keys := make([]string, 0, len(s.families))
	for k := range s.families {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var fixedNow = time.Date(2025, 7, 10, 8, 0, 0, 0, time.UTC)

func testOptions() Options {
	n := 0
	return Options{
		Logger: zap.NewNop(),
		Now:    func() time.Time { return fixedNow },
		IDGenerator: func(prefix string) string {
			n++
			return fmt.Sprintf("%s%04d", prefix, n)
		},
	}
}

func reportBatch() record.Batch {
	return record.Batch{
		SourceKind: constants.SourceAnnualReport,
		SourceFile: "venture_2023.json",
		Records: []record.Record{
			record.PersonMention{RawName: "Wong Ngit Liong"},
			record.CompanyMention{RawName: "Venture Corporation Limited"},
			record.RoleFact{
				Person:  record.PersonRef{Name: "WONG Ngit Liong"},
				Company: "Venture Corporation Limited",
				Role:    "Executive Chairman",
				Start:   "2023-03-01",
			},
			record.RoleFact{
				Person:  record.PersonRef{Name: "Mdm. Tan Bee Lian"},
				Company: "VENTURE CORPORATION LIMITED",
				Role:    "Director",
			},
			record.FamilyFact{
				PersonA:      record.PersonRef{Name: "Wong Ngit Liong"},
				PersonB:      record.PersonRef{Name: "Tan Bee Lian"},
				RelationType: "spouse_of",
			},
		},
	}
}

func TestRun_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	run := New(store, nil, testOptions())
	require.NoError(t, run.Process(ctx, reportBatch()))
	_, err := run.Finish(ctx)
	require.NoError(t, err)

	persons := len(store.persons)
	companies := len(store.companies)
	roles := len(store.roles)
	families := store.familyKeys()
	require.Equal(t, 2, persons)
	require.Equal(t, 1, companies)
	require.Equal(t, 2, roles)
	require.Len(t, families, 2)

	replay, err := Open(ctx, store, Files{}, testOptions())
	require.NoError(t, err)
	require.NoError(t, replay.Process(ctx, reportBatch()))
	summary, err := replay.Finish(ctx)
	require.NoError(t, err)

	assert.Equal(t, persons, len(store.persons))
	assert.Equal(t, companies, len(store.companies))
	assert.Equal(t, roles, len(store.roles))
	assert.Equal(t, families, store.familyKeys())
	assert.Zero(t, summary.PersonsCreated)
	assert.Zero(t, summary.CompaniesCreated)
}

func TestRun_ReplayKeepsTieBreakAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	// Ids count down so id order is the reverse of creation order.
	descending := func() Options {
		opts := testOptions()
		n := 10
		opts.IDGenerator = func(prefix string) string {
			n--
			return fmt.Sprintf("%s%04d", prefix, n)
		}
		return opts
	}
	batch := record.Batch{
		SourceKind: constants.SourceAnnualReport,
		SourceFile: "temasek_2024.json",
		Records: []record.Record{
			record.PersonMention{RawName: "Lee Hsien Loong"},
			record.PersonMention{RawName: "Lee Kuan Yew"},
			record.RoleFact{
				Person:  record.PersonRef{Name: "Lee"},
				Company: "Temasek Holdings",
				Role:    "Director",
			},
		},
	}

	run := New(store, nil, descending())
	require.NoError(t, run.Process(ctx, batch))
	_, err := run.Finish(ctx)
	require.NoError(t, err)

	require.Len(t, store.roles, 1)
	assert.Contains(t, store.roles, "person:0009|company:0007|Director")
	assert.Equal(t, int64(1), store.persons["person:0009"].Seq)
	assert.Equal(t, int64(2), store.persons["person:0008"].Seq)

	replay, err := Open(ctx, store, Files{}, descending())
	require.NoError(t, err)
	require.NoError(t, replay.Process(ctx, batch))
	summary, err := replay.Finish(ctx)
	require.NoError(t, err)

	assert.Len(t, store.roles, 1)
	assert.Contains(t, store.roles, "person:0009|company:0007|Director")
	assert.Len(t, store.persons, 2)
	assert.Zero(t, summary.PersonsCreated)
	assert.Equal(t, int64(1), store.persons["person:0009"].Seq)
}

func TestRun_CaseAndWhitespaceVariantsShareID(t *testing.T) {
	ctx := context.Background()
	run := New(newMemStore(), nil, testOptions())
	require.NoError(t, run.Process(ctx, record.Batch{
		SourceKind: constants.SourceMAS,
		SourceFile: "mas.csv",
		Records: []record.Record{
			record.PersonMention{RawName: "TAN Ah Kow"},
			record.PersonMention{RawName: "  tan   ah kow "},
		},
	}))

	persons := run.Registry().Persons()
	require.Len(t, persons, 1)
	assert.Equal(t, "TAN Ah Kow", persons[0].Canonical)
	assert.True(t, persons[0].HasAlias("tan   ah kow"))
}

func TestRun_AuthoritativeIDsNeverFuzzyMerge(t *testing.T) {
	ctx := context.Background()
	run := New(newMemStore(), nil, testOptions())
	require.NoError(t, run.Process(ctx, record.Batch{
		SourceKind: constants.SourceWikidata,
		SourceFile: "wd",
		Records: []record.Record{
			record.PersonMention{RawName: "Lee Kim Yew", ExternalID: "Q10"},
			record.PersonMention{RawName: "Lee Kim Yew", ExternalID: "Q11"},
			record.PersonMention{RawName: "Lee Kim Yew"},
		},
	}))

	ids := make([]string, 0)
	for _, p := range run.Registry().Persons() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"Q10", "Q11", "person:0001"}, ids)
}

func TestRun_MalformedRecordsSkipped(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	run := New(store, nil, testOptions())
	require.NoError(t, run.Process(ctx, record.Batch{
		SourceKind: constants.SourceMAS,
		SourceFile: "mas.csv",
		Records: []record.Record{
			record.RoleFact{Person: record.PersonRef{Name: "Ho Ching"}, Role: "CEO"},
			record.PersonMention{RawName: "!!!"},
			record.FamilyFact{PersonA: record.PersonRef{Name: "A Person"}, PersonB: record.PersonRef{Name: "B Person"}, RelationType: "cousin_of"},
			record.RoleFact{Person: record.PersonRef{Name: "Ho Ching"}, Company: "Temasek Holdings", Role: "CEO"},
		},
	}))
	summary, err := run.Finish(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Records)
	assert.Equal(t, 3, summary.Skipped)
	assert.Len(t, store.roles, 1)
	assert.Empty(t, store.families)
}

func TestRun_FamilyConsolidationAndFrontier(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	run := New(store, nil, testOptions())

	require.NoError(t, run.Process(ctx, record.Batch{
		SourceKind: constants.SourceWikidata,
		SourceFile: "wd-1",
		SeedIDs:    []string{"Q1"},
		Records: []record.Record{
			record.PersonMention{RawName: "Robert Kuok", ExternalID: "Q1", Attributes: map[string]string{"gender": "male"}},
			record.FamilyFact{
				PersonA:      record.PersonRef{ExternalID: "Q1"},
				PersonB:      record.PersonRef{ExternalID: "Q3", Name: "Kuok Khoon Ean"},
				RelationType: "child",
			},
			record.FamilyFact{
				PersonA:      record.PersonRef{ExternalID: "Q1"},
				PersonB:      record.PersonRef{ExternalID: "Q1"},
				RelationType: "spouse",
			},
		},
	}))
	require.NoError(t, run.Process(ctx, record.Batch{
		SourceKind: constants.SourceNeo4jExport,
		SourceFile: "export.json",
		Records: []record.Record{
			record.FamilyFact{
				PersonA:      record.PersonRef{ExternalID: "Q1"},
				PersonB:      record.PersonRef{ExternalID: "Q3"},
				RelationType: "mother_of",
			},
		},
	}))
	summary, err := run.Finish(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"Q1|Q3|parent_of", "Q3|Q1|child_of"}, store.familyKeys())
	assert.Equal(t, 1, summary.SelfLoopsDropped)
	assert.Equal(t, []string{"Q3"}, summary.Pending)
	assert.True(t, run.Frontier().Resolved("Q1"))
}

func TestRun_StoreFailureAbortsBatch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failOn = "company"
	run := New(store, nil, testOptions())

	err := run.Process(ctx, reportBatch())
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Len(t, store.persons, 1)
	assert.Empty(t, store.roles)
}

func TestRun_RoleDatesFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	run := New(store, nil, testOptions())

	fact := func(start, end string) record.Record {
		return record.RoleFact{Person: record.PersonRef{Name: "Lim Boon Heng"}, Company: "Temasek Holdings", Role: "Chairman", Start: start, End: end}
	}
	require.NoError(t, run.Process(ctx, record.Batch{SourceKind: constants.SourceMAS, SourceFile: "a.csv", Records: []record.Record{fact("2013", "")}}))
	require.NoError(t, run.Process(ctx, record.Batch{SourceKind: constants.SourceMAS, SourceFile: "b.csv", Records: []record.Record{fact("2015", "2024")}}))

	require.Len(t, store.roles, 1)
	for _, e := range store.roles {
		assert.Equal(t, "2013", e.Start)
		assert.Equal(t, "2024", e.End)
		assert.Equal(t, "b.csv", e.Provenance.SourceFile)
	}
}

func TestRun_ProcessAfterFinishFails(t *testing.T) {
	ctx := context.Background()
	run := New(newMemStore(), nil, testOptions())
	_, err := run.Finish(ctx)
	require.NoError(t, err)
	assert.Error(t, run.Process(ctx, reportBatch()))
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run := New(newMemStore(), nil, testOptions())
	err := run.Process(ctx, reportBatch())
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeContext))
}

func TestOpen_ResumesFromFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	files := Files{
		StatePath: filepath.Join(dir, "shared_state.json"),
		DataPath:  filepath.Join(dir, "data.json"),
	}
	batch := record.Batch{
		SourceKind: constants.SourceWikidata,
		SourceFile: "wd-1",
		SeedIDs:    []string{"Q1"},
		Records: []record.Record{
			record.PersonMention{RawName: "Robert Kuok", ExternalID: "Q1", Attributes: map[string]string{"gender": "male", "citizenshipLabel": "Malaysia"}},
			record.FamilyFact{PersonA: record.PersonRef{ExternalID: "Q1"}, PersonB: record.PersonRef{ExternalID: "Q2", Name: "Kuok Hock Swee"}, RelationType: "father"},
		},
	}

	run, err := Open(ctx, newMemStore(), files, testOptions())
	require.NoError(t, err)
	require.NoError(t, run.Process(ctx, batch))
	_, err = run.Finish(ctx)
	require.NoError(t, err)
	require.NoError(t, run.Save(files))

	resumed, err := Open(ctx, newMemStore(), files, testOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Q2"}, resumed.Frontier().PendingIDs())

	entry, ok := resumed.Registry().Person("Q1")
	require.True(t, ok)
	assert.Equal(t, constants.GenderMale, entry.Gender)
	assert.Equal(t, []string{"Malaysia"}, entry.Attributes()["citizenshipLabel"])

	snap := resumed.Snapshot()
	require.Len(t, snap.Edges, 2)
	assert.Equal(t, "Q1", snap.Edges[0].Seed)
	assert.Equal(t, constants.RelChildOf, snap.Edges[0].RelType)

	reset, err := Open(ctx, newMemStore(), Files{StatePath: files.StatePath, DataPath: files.DataPath, Reset: true}, testOptions())
	require.NoError(t, err)
	assert.Zero(t, reset.Frontier().Len())
}

func TestRun_AlreadyProcessed(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	run := New(store, nil, testOptions())
	require.NoError(t, run.Process(ctx, reportBatch()))

	next := New(store, nil, testOptions())
	require.NoError(t, next.LoadProcessed(ctx, store, constants.SourceAnnualReport))
	assert.True(t, next.AlreadyProcessed(constants.SourceAnnualReport, "venture_2023.json"))
	assert.False(t, next.AlreadyProcessed(constants.SourceAnnualReport, "other.json"))
}

func TestIngest_SkipsProcessedReportsAndSaves(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := newMemStore()
	files := Files{StatePath: filepath.Join(dir, "state.json")}

	first, err := Ingest(ctx, store, files, testOptions(), []record.Batch{reportBatch()})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Summary.Batches)

	second, err := Ingest(ctx, store, files, testOptions(), []record.Batch{reportBatch()})
	require.NoError(t, err)
	assert.Zero(t, second.Summary.Batches)
	assert.Zero(t, second.Summary.PersonsCreated)
}
