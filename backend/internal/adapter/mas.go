package adapter

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/record"
)

// header maps lowercased CSV header names to their column index.
type header map[string]int

func readHeader(rdr *csv.Reader) (header, error) {
	cols, err := rdr.Read()
	if err != nil {
		return nil, err
	}
	h := make(header, len(cols))
	for i, c := range cols {
		c = strings.TrimPrefix(c, "\ufeff")
		h[strings.ToLower(strings.TrimSpace(c))] = i
	}
	return h, nil
}

func (h header) get(row []string, names ...string) string {
	for _, name := range names {
		if i, ok := h[name]; ok && i < len(row) {
			if v := strings.TrimSpace(row[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

// ParseMASCSV reads the MAS personnel register: one row per person holding
// a title at a regulated company.
func ParseMASCSV(r io.Reader, sourceFile string) (record.Batch, error) {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1
	rdr.LazyQuotes = true

	h, err := readHeader(rdr)
	if err != nil {
		return record.Batch{}, err
	}

	batch := record.Batch{SourceKind: constants.SourceMAS, SourceFile: sourceFile}
	for {
		row, err := rdr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return record.Batch{}, err
		}
		person := h.get(row, "person name")
		company := h.get(row, "company name")
		if person == "" && company == "" {
			continue
		}
		batch.Records = append(batch.Records, record.RoleFact{
			Person:  record.PersonRef{Name: person},
			Company: company,
			Role:    h.get(row, "person title"),
		})
	}
	return batch, nil
}
