package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uhnw-graph/backend/internal/matcher"
	"uhnw-graph/backend/internal/state"
	apperrors "uhnw-graph/backend/pkg/errors"
)

func newTestRegistry(m matcher.Matcher) *Registry {
	r := New(m, m, zap.NewNop())
	n := 0
	r.SetIDGenerator(func(prefix string) string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	})
	return r
}

// tableMatcher scores a query against fixed per-key scores.
type tableMatcher map[string]float64

func (t tableMatcher) Similarity(a, b string) float64 {
	s, _ := t.Match(a, b)
	return s
}

func (t tableMatcher) Match(a, b string) (float64, bool) {
	s, ok := t[b]
	return s, ok
}

func TestResolvePerson_CaseAndWhitespace(t *testing.T) {
	r := newTestRegistry(matcher.DefaultPolicy())

	id1, entry, err := r.ResolvePerson(PersonQuery{RawName: "John Smith"})
	require.NoError(t, err)
	id2, _, err := r.ResolvePerson(PersonQuery{RawName: "  JOHN   SMITH"})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, "John Smith", entry.Canonical)
	assert.Equal(t, []string{"JOHN   SMITH"}, entry.Aliases())
	assert.Equal(t, 1, r.Stats().PersonsCreated)
	assert.Equal(t, 1, r.Stats().PersonsMerged)
}

func TestResolvePerson_FuzzyBoundary(t *testing.T) {
	// "tan_ah_kow" vs "tan_ah_kaw" scores 90 on token overlap.
	merging := newTestRegistry(matcher.TokenOnly(90))
	a, _, _ := merging.ResolvePerson(PersonQuery{RawName: "Tan Ah Kow"})
	b, _, _ := merging.ResolvePerson(PersonQuery{RawName: "Tan Ah Kaw"})
	assert.Equal(t, a, b)

	strict := newTestRegistry(matcher.TokenOnly(93))
	a, _, _ = strict.ResolvePerson(PersonQuery{RawName: "Tan Ah Kow"})
	b, _, _ = strict.ResolvePerson(PersonQuery{RawName: "Tan Ah Kaw"})
	assert.NotEqual(t, a, b)
	assert.Len(t, strict.Persons(), 2)
}

func TestResolvePerson_Authoritative(t *testing.T) {
	r := newTestRegistry(matcher.DefaultPolicy())

	id, entry, err := r.ResolvePerson(PersonQuery{RawName: "Lee Kuan Yew", ExternalID: "Q123"})
	require.NoError(t, err)
	assert.Equal(t, "Q123", id)
	assert.True(t, entry.Authoritative())

	id, entry, err = r.ResolvePerson(PersonQuery{RawName: "Harry Lee", ExternalID: "Q123", AliasHints: []string{"LKY"}})
	require.NoError(t, err)
	assert.Equal(t, "Q123", id)
	assert.Equal(t, "Lee Kuan Yew", entry.Canonical)
	assert.Equal(t, []string{"Harry Lee", "LKY"}, entry.Aliases())

	// A name-only mention never fuzzy-merges into an authoritative entry.
	other, _, err := r.ResolvePerson(PersonQuery{RawName: "Lee Kuan Yew"})
	require.NoError(t, err)
	assert.NotEqual(t, "Q123", other)
}

func TestResolvePerson_AuthoritativeWithoutName(t *testing.T) {
	r := newTestRegistry(matcher.DefaultPolicy())
	id, entry, err := r.ResolvePerson(PersonQuery{ExternalID: "Q42"})
	require.NoError(t, err)
	assert.Equal(t, "Q42", id)
	assert.Equal(t, "Q42", entry.Canonical)
}

func TestResolvePerson_FirstSeenWins(t *testing.T) {
	r := newTestRegistry(matcher.DefaultPolicy())

	id1, entry, _ := r.ResolvePerson(PersonQuery{RawName: "Robert Kuok"})
	id2, _, _ := r.ResolvePerson(PersonQuery{RawName: "Robert Kuok Hock Nien", AliasHints: []string{"Kuok Hock Nien", "Kuok Hock Nien"}})

	assert.Equal(t, id1, id2)
	assert.Equal(t, "Robert Kuok", entry.Canonical)
	assert.Equal(t, []string{"Kuok Hock Nien", "Robert Kuok Hock Nien"}, entry.Aliases())
}

func TestResolvePerson_TieBreakHighestThenEarliest(t *testing.T) {
	scores := tableMatcher{"alpha": 95, "beta": 97, "gamma": 97}

	r := newTestRegistry(scores)
	r.Rehydrate([]state.Person{
		{ID: "p1", Name: "Alpha"},
		{ID: "p2", Name: "Beta"},
		{ID: "p3", Name: "Gamma"},
	}, nil)
	var ambiguous *apperrors.ErrAmbiguousMatch
	r.OnAmbiguous(func(e *apperrors.ErrAmbiguousMatch) { ambiguous = e })

	id, _, err := r.ResolvePerson(PersonQuery{RawName: "Query Name"})
	require.NoError(t, err)
	assert.Equal(t, "p2", id)
	require.NotNil(t, ambiguous)
	assert.Equal(t, "p2", ambiguous.Chosen)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ambiguous.Candidates)

	// Same entries, different creation order: the earliest tied entry still wins.
	reordered := newTestRegistry(scores)
	reordered.Rehydrate([]state.Person{
		{ID: "p3", Name: "Gamma"},
		{ID: "p1", Name: "Alpha"},
		{ID: "p2", Name: "Beta"},
	}, nil)
	id, _, _ = reordered.ResolvePerson(PersonQuery{RawName: "Query Name"})
	assert.Equal(t, "p3", id)
}

func TestResolvePerson_AliasesDoNotChainFuzzyMerges(t *testing.T) {
	r := newTestRegistry(matcher.DefaultPolicy())

	robert, _, err := r.ResolvePerson(PersonQuery{RawName: "Robert Kuok"})
	require.NoError(t, err)
	short, entry, err := r.ResolvePerson(PersonQuery{RawName: "Kuok"})
	require.NoError(t, err)
	assert.Equal(t, robert, short)
	assert.True(t, entry.HasAlias("Kuok"))

	other, _, err := r.ResolvePerson(PersonQuery{RawName: "Kuok Khoon Hong"})
	require.NoError(t, err)
	assert.NotEqual(t, robert, other)

	again, _, _ := r.ResolvePerson(PersonQuery{RawName: "KUOK"})
	assert.Equal(t, robert, again)
}

func TestResolvePerson_ExactAliasBeatsFuzzyTie(t *testing.T) {
	r := newTestRegistry(matcher.DefaultPolicy())

	older, _, _ := r.ResolvePerson(PersonQuery{RawName: "Lee Kuan Yew"})
	younger, _, _ := r.ResolvePerson(PersonQuery{RawName: "Lee Hsien Loong", AliasHints: []string{"Lee"}})
	require.NotEqual(t, older, younger)

	// "Lee" ties on both canonical names; the recorded alias decides.
	id, _, err := r.ResolvePerson(PersonQuery{RawName: "lee"})
	require.NoError(t, err)
	assert.Equal(t, younger, id)
	assert.Zero(t, r.Stats().Ambiguous)
}

func TestRehydrate_RestoresCreationOrder(t *testing.T) {
	r := newTestRegistry(matcher.DefaultPolicy())
	r.Rehydrate([]state.Person{
		{ID: "person:0008", Name: "Lee Kuan Yew", Seq: 2},
		{ID: "person:0009", Name: "Lee Hsien Loong", Seq: 1},
		{ID: "person:legacy", Name: "Lee Wei Ling"},
	}, []state.Company{
		{ID: "company:b", Name: "Temasek Holdings", Seq: 4},
		{ID: "company:a", Name: "TEMASEK HOLDINGS", Seq: 3},
	})

	entry, ok := r.Person("person:0009")
	require.True(t, ok)
	assert.Equal(t, int64(1), entry.Seq())
	legacy, _ := r.Person("person:legacy")
	assert.Equal(t, int64(3), legacy.Seq(), "unsequenced entries follow the stored ones")

	id, _, err := r.ResolvePerson(PersonQuery{RawName: "Lee"})
	require.NoError(t, err)
	assert.Equal(t, "person:0009", id)

	cid, err := r.ResolveCompany("temasek holdings")
	require.NoError(t, err)
	assert.Equal(t, "company:a", cid)

	// fresh entries continue after the highest stored sequence
	_, fresh, err := r.ResolvePerson(PersonQuery{RawName: "Ho Ching"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), fresh.Seq())
}

func TestResolvePerson_Malformed(t *testing.T) {
	r := newTestRegistry(matcher.DefaultPolicy())
	_, _, err := r.ResolvePerson(PersonQuery{RawName: "  --- "})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeRecord))
}

func TestResolvePerson_GenderFilledOnce(t *testing.T) {
	r := newTestRegistry(matcher.DefaultPolicy())
	_, entry, _ := r.ResolvePerson(PersonQuery{ExternalID: "Q1", RawName: "Ng Teng Fong", Gender: "male"})
	_, _, _ = r.ResolvePerson(PersonQuery{ExternalID: "Q1", Gender: "female"})
	assert.Equal(t, "male", entry.Gender)
}

func TestResolveCompany(t *testing.T) {
	r := newTestRegistry(matcher.DefaultPolicy())

	a, err := r.ResolveCompany("Venture Corporation Limited")
	require.NoError(t, err)
	b, _ := r.ResolveCompany("VENTURE CORPORATION LIMITED")
	c, _ := r.ResolveCompany("Hongleong")
	d, _ := r.ResolveCompany("Hongloeng")
	e, _ := r.ResolveCompany("OCBC Bank")

	assert.Equal(t, a, b)
	assert.Equal(t, c, d, "edit-distance fallback merges near-misses")
	assert.NotEqual(t, a, e)
	assert.Len(t, r.Companies(), 3)

	entry, ok := r.Company(a)
	require.True(t, ok)
	assert.Equal(t, "Venture Corporation Limited", entry.Name)

	_, err = r.ResolveCompany("   ")
	assert.Error(t, err)
}

func TestRehydrate(t *testing.T) {
	r := newTestRegistry(matcher.DefaultPolicy())
	r.Rehydrate(
		[]state.Person{
			{ID: "person:abc", Name: "John Smith", Aliases: []string{"J. Smith"}},
			{ID: "Q99", Name: "Kwek Leng Beng", ExternalID: "Q99"},
			{ID: "person:abc", Name: "Duplicate"},
		},
		[]state.Company{{ID: "company:xyz", Name: "City Developments"}},
	)

	id, entry, err := r.ResolvePerson(PersonQuery{RawName: "john  smith"})
	require.NoError(t, err)
	assert.Equal(t, "person:abc", id)
	assert.True(t, entry.HasAlias("J. Smith"))

	id, _, _ = r.ResolvePerson(PersonQuery{ExternalID: "Q99"})
	assert.Equal(t, "Q99", id)

	cid, _ := r.ResolveCompany("City Developments")
	assert.Equal(t, "company:xyz", cid)
	assert.Len(t, r.Persons(), 2)
}

func TestGenerateID(t *testing.T) {
	id := GenerateID("person:")
	assert.Len(t, id, len("person:")+12)
	assert.NotEqual(t, id, GenerateID("person:"))
}
