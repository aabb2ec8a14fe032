package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"uhnw-graph/backend/internal/constants"
)

func TestFamilyEdge_Validate(t *testing.T) {
	tests := []struct {
		name    string
		edge    FamilyEdge
		wantErr bool
	}{
		{"valid", FamilyEdge{SourceID: "Q1", DestID: "Q2", Relation: constants.RelSpouseOf}, false},
		{"self loop", FamilyEdge{SourceID: "Q1", DestID: "Q1", Relation: constants.RelSpouseOf}, true},
		{"missing dest", FamilyEdge{SourceID: "Q1", Relation: constants.RelChildOf}, true},
		{"unknown relation", FamilyEdge{SourceID: "Q1", DestID: "Q2", Relation: "cousin_of"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.edge.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSortFamilyEdges(t *testing.T) {
	edges := []FamilyEdge{
		{SourceID: "b", DestID: "a", Relation: constants.RelChildOf},
		{SourceID: "a", DestID: "b", Relation: constants.RelSpouseOf},
		{SourceID: "a", DestID: "b", Relation: constants.RelFatherOf},
	}
	SortFamilyEdges(edges)
	assert.Equal(t, constants.RelFatherOf, edges[0].Relation)
	assert.Equal(t, constants.RelSpouseOf, edges[1].Relation)
	assert.Equal(t, "b", edges[2].SourceID)
}

func TestRoleEdge_Key(t *testing.T) {
	e := RoleEdge{PersonID: "person:1", CompanyID: "company:2", Role: "Director"}
	assert.Equal(t, "person:1|company:2|Director", e.Key())
	assert.Error(t, (&RoleEdge{PersonID: "person:1"}).Validate())
}
