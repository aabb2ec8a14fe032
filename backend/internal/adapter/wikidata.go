package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/datafile"
	"uhnw-graph/backend/internal/record"
)

// Relation columns of a SPARQL person row. A value in column c on the row of
// person A names a person B who is A's c.
var familyColumns = []string{"spouse", "father", "mother", "child", "sibling", "relative"}

// Person row columns lifted into named attributes. Every other *Label column
// is kept under its own name.
var personColumns = map[string]string{
	"dateOfBirth":       "dateOfBirth",
	"citizenshipLabel":  "citizenship",
	"officialWebsite":   "officialWebsite",
	"netWorth":          "netWorth",
	"occupationLabel":   "occupation",
	"employerLabel":     "employer",
	"positionHeldLabel": "positionHeld",
}

type sparqlValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sparqlRow map[string]sparqlValue

func (r sparqlRow) get(col string) string {
	return strings.TrimSpace(r[col].Value)
}

type sparqlItem struct {
	QID     string `json:"qid"`
	Results struct {
		Bindings []sparqlRow `json:"bindings"`
	} `json:"results"`
	Bindings []sparqlRow `json:"bindings"`
}

func (it sparqlItem) rows() []sparqlRow {
	if len(it.Results.Bindings) > 0 {
		return it.Results.Bindings
	}
	return it.Bindings
}

// QIDFromURI returns the trailing Q-number of an entity URI such as
// http://www.wikidata.org/entity/Q42, or "" when there is none.
func QIDFromURI(uri string) string {
	uri = strings.TrimSpace(uri)
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		uri = uri[i+1:]
	}
	if len(uri) < 2 || uri[0] != 'Q' {
		return ""
	}
	for _, c := range uri[1:] {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return uri
}

// ParseWikidataBindings reads SPARQL result items, one per expanded seed:
// either a JSON list of {qid, results: {bindings}} objects or a single one.
// Seeds come back in SeedIDs; every related person is referenced by QID so
// the run can discover it.
func ParseWikidataBindings(r io.Reader, sourceFile string) (record.Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return record.Batch{}, err
	}
	items, err := decodeItems(data)
	if err != nil {
		return record.Batch{}, err
	}

	batch := record.Batch{SourceKind: constants.SourceWikidata, SourceFile: sourceFile}
	seeds := make(map[string]bool)
	for _, item := range items {
		rows := item.rows()
		seed := item.QID
		if seed == "" && len(rows) > 0 {
			seed = QIDFromURI(rows[0].get("person"))
		}
		if seed != "" && !seeds[seed] {
			seeds[seed] = true
			batch.SeedIDs = append(batch.SeedIDs, seed)
		}
		for _, row := range rows {
			batch.Records = append(batch.Records, rowRecords(row)...)
		}
	}
	return batch, nil
}

func decodeItems(data []byte) ([]sparqlItem, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	if data[0] == '[' {
		var items []sparqlItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var item sparqlItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return []sparqlItem{item}, nil
}

func rowRecords(row sparqlRow) []record.Record {
	qid := QIDFromURI(row.get("person"))
	if qid == "" {
		return nil
	}

	attrs := map[string]string{}
	if g := row.get("genderLabel"); g != "" {
		attrs[constants.AttrGender] = g
	}
	for col, attr := range personColumns {
		if v := row.get(col); v != "" {
			attrs[attr] = v
		}
	}
	for col := range row {
		if !strings.HasSuffix(col, "Label") || col == "personLabel" || col == "genderLabel" {
			continue
		}
		if _, known := personColumns[col]; known || isFamilyLabel(col) {
			continue
		}
		if v := row.get(col); v != "" {
			attrs[col] = v
		}
	}

	out := []record.Record{record.PersonMention{
		RawName:    row.get("personLabel"),
		ExternalID: qid,
		Attributes: attrs,
	}}

	seed := record.PersonRef{ExternalID: qid}
	for _, col := range familyColumns {
		target := QIDFromURI(row.get(col))
		if target == "" {
			continue
		}
		out = append(out, record.FamilyFact{
			PersonA:      seed,
			PersonB:      record.PersonRef{ExternalID: target, Name: row.get(col + "Label")},
			RelationType: col,
		})
	}
	return out
}

func isFamilyLabel(col string) bool {
	for _, c := range familyColumns {
		if col == c+"Label" {
			return true
		}
	}
	return false
}

type dumpPerson struct {
	ID         string                     `json:"id"`
	Props      map[string]datafile.Values `json:"props"`
	Attributes map[string]datafile.Values `json:"attributes"`
	Business   []struct {
		Company string `json:"company"`
		Role    string `json:"role"`
		Start   string `json:"start"`
		End     string `json:"end"`
	} `json:"business"`
}

type dumpFile struct {
	Persons []dumpPerson          `json:"persons"`
	Edges   []datafile.EdgeRecord `json:"edges"`
}

// ParseWikidataDump reads the simplified {persons, edges} dump produced by
// the crawler. Persons are keyed by QID; edges are directed "seed relType
// rel" facts; optional business entries become roles.
func ParseWikidataDump(r io.Reader, sourceFile string) (record.Batch, error) {
	var dump dumpFile
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return record.Batch{}, err
	}

	batch := record.Batch{SourceKind: constants.SourceWikidata, SourceFile: sourceFile}
	for _, p := range dump.Persons {
		if p.ID == "" {
			continue
		}
		names := p.Props[datafile.PropName].Unique()
		attrs := map[string]string{}
		if g := p.Props[datafile.PropGender].First(); g != "" {
			attrs[constants.AttrGender] = g
		}
		keys := make([]string, 0, len(p.Attributes))
		for k := range p.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := p.Attributes[k].First(); v != "" {
				attrs[k] = v
			}
		}
		var aliases []string
		if len(names) > 1 {
			aliases = names[1:]
		}
		batch.Records = append(batch.Records, record.PersonMention{
			RawName:    names.First(),
			ExternalID: p.ID,
			Aliases:    aliases,
			Attributes: attrs,
		})
	}

	for _, e := range dump.Edges {
		batch.Records = append(batch.Records, record.FamilyFact{
			PersonA:      record.PersonRef{ExternalID: e.Seed},
			PersonB:      record.PersonRef{ExternalID: e.Rel},
			RelationType: e.RelType,
		})
	}

	for _, p := range dump.Persons {
		if p.ID == "" {
			continue
		}
		for _, b := range p.Business {
			batch.Records = append(batch.Records, record.RoleFact{
				Person:  record.PersonRef{ExternalID: p.ID},
				Company: b.Company,
				Role:    b.Role,
				Start:   b.Start,
				End:     b.End,
			})
		}
	}
	return batch, nil
}
