package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/kinship"
	"uhnw-graph/backend/internal/record"
	apperrors "uhnw-graph/backend/pkg/errors"
)

const (
	entityPerson  = "Person"
	entityCompany = "Company"
)

type reportEntity struct {
	EntityID      string   `json:"entityId"`
	Type          string   `json:"type"`
	CanonicalName string   `json:"canonicalName"`
	Mentions      []string `json:"mentions"`
}

type reportRelationship struct {
	SourceEntityID string `json:"sourceEntityId"`
	TargetEntityID string `json:"targetEntityId"`
	Type           string `json:"type"`
	Role           *struct {
		Details string `json:"details"`
	} `json:"role"`
	EffectiveDate string `json:"effectiveDate"`
}

type reportDoc struct {
	Original struct {
		Entities      []reportEntity       `json:"entities"`
		Relationships []reportRelationship `json:"relationships"`
	} `json:"original"`
}

// ParseAnnualReport reads the entity/relationship extraction of one annual
// report. A file may hold one document or a list of them.
func ParseAnnualReport(r io.Reader, sourceFile string) (record.Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return record.Batch{}, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return record.Batch{}, fmt.Errorf("empty input")
	}

	var docs []reportDoc
	if data[0] == '[' {
		err = json.Unmarshal(data, &docs)
	} else {
		var doc reportDoc
		err = json.Unmarshal(data, &doc)
		docs = []reportDoc{doc}
	}
	if err != nil {
		return record.Batch{}, err
	}

	batch := record.Batch{SourceKind: constants.SourceAnnualReport, SourceFile: sourceFile}
	for _, doc := range docs {
		batch.Records = append(batch.Records, docRecords(doc)...)
	}
	return batch, nil
}

func docRecords(doc reportDoc) []record.Record {
	var out []record.Record
	entities := make(map[string]reportEntity, len(doc.Original.Entities))
	for _, e := range doc.Original.Entities {
		entities[e.EntityID] = e
		switch e.Type {
		case entityPerson:
			out = append(out, record.PersonMention{
				RawName:       e.CanonicalName,
				CanonicalName: e.CanonicalName,
				Aliases:       e.Mentions,
			})
		case entityCompany:
			out = append(out, record.CompanyMention{RawName: e.CanonicalName})
		}
	}

	for _, rel := range doc.Original.Relationships {
		src, okSrc := entities[rel.SourceEntityID]
		tgt, okTgt := entities[rel.TargetEntityID]
		if !okSrc || !okTgt || src.Type != entityPerson {
			continue
		}
		details := ""
		if rel.Role != nil {
			details = rel.Role.Details
		}
		switch tgt.Type {
		case entityCompany:
			out = append(out, record.RoleFact{
				Person:  record.PersonRef{Name: src.CanonicalName},
				Company: tgt.CanonicalName,
				Role:    details,
				Start:   rel.EffectiveDate,
			})
		case entityPerson:
			relation := rel.Type
			if _, ok := kinship.CanonicalRelation(relation); !ok {
				relation = details
			}
			if _, ok := kinship.CanonicalRelation(relation); !ok {
				continue
			}
			out = append(out, record.FamilyFact{
				PersonA:      record.PersonRef{Name: src.CanonicalName},
				PersonB:      record.PersonRef{Name: tgt.CanonicalName},
				RelationType: relation,
			})
		}
	}
	return out
}

type reportFile struct {
	path    string
	name    string
	modTime time.Time
}

// listReports finds every *.json under root, newest first. A plain file is
// returned on its own.
func listReports(root string) ([]reportFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []reportFile{{path: root, name: SourceName(root), modTime: info.ModTime()}}, nil
	}

	var files []reportFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, reportFile{path: path, name: d.Name(), modTime: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.After(files[j].modTime)
		}
		return files[i].path < files[j].path
	})
	return files, nil
}

// loadAnnualReports parses the report files under root in parallel and
// returns their batches in listing order. Files already processed are
// skipped; unreadable files are logged and skipped.
func loadAnnualReports(ctx context.Context, root string, opts Options) ([]record.Batch, error) {
	log := opts.logger()
	files, err := listReports(root)
	if err != nil {
		return nil, apperrors.NewAdapterParseFailed(KindAnnualReport, root, err)
	}

	selected := make([]reportFile, 0, len(files))
	for _, f := range files {
		if opts.Limit > 0 && len(selected) >= opts.Limit {
			log.Info("File limit reached", zap.Int("limit", opts.Limit))
			break
		}
		if opts.Skip != nil && opts.Skip(f.name) {
			log.Info("Skipping already processed annual report", zap.String("source_file", f.name))
			continue
		}
		selected = append(selected, f)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	parsed := make([]*record.Batch, len(selected))
	for i, f := range selected {
		idx := i
		file := f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			batch, err := parseFile(KindAnnualReport, file.path, ParseAnnualReport)
			if err != nil {
				log.Warn("Annual report unreadable, skipped",
					zap.String("path", file.path),
					zap.Error(err),
				)
				return nil
			}
			parsed[idx] = &batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.NewContextCancelled("load_annual_reports", err)
	}

	batches := make([]record.Batch, 0, len(parsed))
	for _, b := range parsed {
		if b != nil {
			batches = append(batches, *b)
		}
	}
	log.Info("Annual reports parsed",
		zap.Int("found", len(files)),
		zap.Int("parsed", len(batches)),
		zap.Int("workers", workers),
	)
	return batches, nil
}
