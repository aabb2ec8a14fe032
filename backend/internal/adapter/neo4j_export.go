package adapter

import (
	"encoding/json"
	"io"
	"strings"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/record"
)

type exportEntity struct {
	Properties map[string]interface{} `json:"properties"`
}

func (e *exportEntity) prop(key string) string {
	if e == nil {
		return ""
	}
	switch v := e.Properties[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

type exportRow struct {
	N *exportEntity `json:"n"`
	M *exportEntity `json:"m"`
	R *exportEntity `json:"r"`
}

// ParseNeo4jExport reads a query-table export of (n:Person)-[r]->(m:Company)
// rows. Rows missing either node are dropped; a row without r still
// introduces both nodes.
func ParseNeo4jExport(r io.Reader, sourceFile string) (record.Batch, error) {
	var rows []exportRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return record.Batch{}, err
	}

	batch := record.Batch{SourceKind: constants.SourceNeo4jExport, SourceFile: sourceFile}
	for _, row := range rows {
		if row.N == nil || row.M == nil {
			continue
		}
		person := row.N.prop("name")
		company := row.M.prop("name")
		batch.Records = append(batch.Records,
			record.PersonMention{RawName: person},
			record.CompanyMention{RawName: company},
		)
		if row.R == nil {
			continue
		}
		batch.Records = append(batch.Records, record.RoleFact{
			Person:  record.PersonRef{Name: person},
			Company: company,
			Role:    row.R.prop("role"),
			Start:   row.R.prop("startDate"),
			End:     row.R.prop("endDate"),
		})
	}
	return batch, nil
}
