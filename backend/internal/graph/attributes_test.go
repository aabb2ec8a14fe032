package graph

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
)

func TestPersonAttributes(t *testing.T) {
	got := personAttributes(map[string][]string{
		"netWorth":       {"36200000000"},
		"occupation":     {"businessperson", "investor"},
		"name":           {"Overwritten"},
		"bad key":        {"x"},
		"emptyValues":    {},
		"citizenship_en": {"Brazil"},
		"created_seq":    {"1"},
	})
	assert.Equal(t, map[string]interface{}{
		"netWorth":       "36200000000",
		"occupation":     []string{"businessperson", "investor"},
		"citizenship_en": "Brazil",
	}, got)
}

func TestEdgeStatementsStampUpdated(t *testing.T) {
	for name, query := range map[string]string{"role": mergeRoleQuery, "family": mergeFamilyQuery} {
		assert.Contains(t, query, "r.updated = datetime($updated)", name)
	}
	assert.Contains(t, mergePersonQuery, "coalesce(p.created_seq, $seq)")
	assert.Contains(t, mergeCompanyQuery, "coalesce(c.created_seq, $seq)")
}

func TestGetInt64FromRecord(t *testing.T) {
	record := &neo4j.Record{Keys: []string{"seq", "missing", "text"}, Values: []any{int64(42), nil, "x"}}
	assert.Equal(t, int64(42), getInt64FromRecord(record, "seq"))
	assert.Zero(t, getInt64FromRecord(record, "missing"))
	assert.Zero(t, getInt64FromRecord(record, "text"))
	assert.Zero(t, getInt64FromRecord(record, "absent"))
	assert.Nil(t, nullableSeq(0))
	assert.Equal(t, int64(3), nullableSeq(3))
}
