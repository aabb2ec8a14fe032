// Package adapter turns source-shaped input into record batches. Every
// source-specific quirk (column names, nesting, relation vocabulary) stays
// here; the ingestion core only sees the four record shapes.
package adapter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/record"
	apperrors "uhnw-graph/backend/pkg/errors"
	"uhnw-graph/backend/pkg/logger"
)

// Input kinds accepted by Load. They name the file layout; the provenance
// source kind of the resulting batch may be shared between layouts.
const (
	KindNeo4jExport    = constants.SourceNeo4jExport
	KindWikidataDump   = constants.SourceWikidata
	KindWikidataSPARQL = "wikidata_sparql"
	KindMASCSV         = constants.SourceMAS
	KindAnnualReport   = constants.SourceAnnualReport
	KindBillionaires   = constants.SourceBillionaires
)

// Kinds lists every accepted input kind.
var Kinds = []string{
	KindNeo4jExport,
	KindWikidataDump,
	KindWikidataSPARQL,
	KindMASCSV,
	KindAnnualReport,
	KindBillionaires,
}

// Options tunes Load.
type Options struct {
	// Workers bounds parallel parsing of multi-file sources.
	Workers int
	// Limit caps the number of files taken from a directory; 0 means all.
	Limit int
	// Skip reports files to leave out, by base name.
	Skip   func(sourceFile string) bool
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger.Named("adapter")
	}
	return logger.Get().Named("adapter")
}

// Load parses the source at path as kind. Annual reports accept a directory
// and yield one batch per file; every other kind reads one file.
func Load(ctx context.Context, kind, path string, opts Options) ([]record.Batch, error) {
	if kind == KindAnnualReport {
		return loadAnnualReports(ctx, path, opts)
	}

	parse, ok := fileParsers[kind]
	if !ok {
		return nil, apperrors.NewUnknownSourceKind(kind)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewContextCancelled("load_"+kind, err)
	}
	batch, err := parseFile(kind, path, parse)
	if err != nil {
		return nil, err
	}
	opts.logger().Info("Source parsed",
		zap.String("source_kind", batch.SourceKind),
		zap.String("source_file", batch.SourceFile),
		zap.Int("records", len(batch.Records)),
	)
	return []record.Batch{batch}, nil
}

type parseFunc func(r io.Reader, sourceFile string) (record.Batch, error)

var fileParsers = map[string]parseFunc{
	KindNeo4jExport:    ParseNeo4jExport,
	KindWikidataDump:   ParseWikidataDump,
	KindWikidataSPARQL: ParseWikidataBindings,
	KindMASCSV:         ParseMASCSV,
	KindBillionaires:   parseBillionaires,
}

func parseFile(kind, path string, parse parseFunc) (record.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return record.Batch{}, apperrors.NewAdapterParseFailed(kind, path, err)
	}
	defer f.Close()

	batch, err := parse(f, SourceName(path))
	if err != nil {
		return record.Batch{}, apperrors.NewAdapterParseFailed(kind, path, err)
	}
	return batch, nil
}

func parseBillionaires(r io.Reader, name string) (record.Batch, error) {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return ParseBillionairesCSV(r, name)
	}
	return ParseBillionairesHTML(r, name)
}

// SourceName is the provenance file name of path: its base name.
func SourceName(path string) string {
	return filepath.Base(path)
}
