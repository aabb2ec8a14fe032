package datafile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/state"
	apperrors "uhnw-graph/backend/pkg/errors"
)

func TestValues_SingleValueWrittenAsScalar(t *testing.T) {
	data, err := Values{"Kuok Khoon Hong", "Kuok Khoon Hong"}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"Kuok Khoon Hong"`, string(data))

	data, err = Values{"a", "b"}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(data))
}

func TestValues_ReadsScalarsAndLists(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Values
	}{
		{"string", `"male"`, Values{"male"}},
		{"list", `["a","b","a"]`, Values{"a", "b"}},
		{"number", `1949`, Values{"1949"}},
		{"null", `null`, Values{}},
		{"mixed list", `["x", 2, null]`, Values{"x", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Values
			require.NoError(t, v.UnmarshalJSON([]byte(tt.in)))
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	persons := []state.Person{
		{
			ID:         "Q2",
			Name:       "Robert Kuok",
			Aliases:    []string{"Kuok Hock Nien"},
			ExternalID: "Q2",
			Gender:     constants.GenderMale,
			Attributes: map[string][]string{"spouse": {"Q3"}, "child": {"Q4", "Q5"}},
			Provenance: state.Provenance{SourceKind: constants.SourceWikidata, SourceFile: "run-1", UpdatedAt: ts},
		},
		{ID: "Q1", Name: "Kuok Khoon Ean"},
	}
	edges := []state.FamilyEdge{
		{SourceID: "Q2", DestID: "Q1", Relation: constants.RelFatherOf, Provenance: state.Provenance{SourceKind: constants.SourceWikidata}},
	}

	require.NoError(t, SaveSnapshot(path, NewSnapshot(persons, edges)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"spouse": "Q3"`)
	assert.Contains(t, string(raw), `"relType": "father_of"`)

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)

	people := loaded.People()
	require.Len(t, people, 2)
	assert.Equal(t, "Q1", people[0].ID)
	assert.Equal(t, persons[0], people[1])
	assert.Equal(t, edges, loaded.FamilyEdges())
}

func TestSnapshot_FamilyEdgesSkipsInvalid(t *testing.T) {
	s := Snapshot{Edges: []EdgeRecord{
		{Seed: "Q1", Rel: "Q1", RelType: constants.RelSpouseOf},
		{Seed: "Q1", Rel: "Q2", RelType: "cousin_of"},
		{Seed: "Q1", Rel: "Q2", RelType: constants.RelSpouseOf},
		{Seed: "Q3", Rel: "Q1", RelType: "is father of"},
		{Seed: "Q3", Rel: "Q1", RelType: "father"},
	}}
	edges := s.FamilyEdges()
	require.Len(t, edges, 2)
	assert.Equal(t, "Q2", edges[0].DestID)
	assert.Equal(t, constants.RelFatherOf, edges[1].Relation)
}

func TestLoadSnapshot_Missing(t *testing.T) {
	s, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, s.Persons)
}

func TestLoadJSON_CorruptFileQuarantined(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shared_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var v map[string]any
	found, err := LoadJSON(path, &v)
	assert.False(t, found)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeState))
	assert.Nil(t, v)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	bak, readErr := os.ReadFile(filepath.Join(dir, "shared_state.bak"))
	require.NoError(t, readErr)
	assert.Equal(t, "{not json", string(bak))
}

func TestSaveJSON_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")
	require.NoError(t, SaveJSON(path, map[string]int{"a": 1}))

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}
