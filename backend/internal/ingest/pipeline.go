package ingest

import (
	"context"

	"go.uber.org/zap"

	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/graph"
	"uhnw-graph/backend/internal/matcher"
	"uhnw-graph/backend/internal/metrics"
	"uhnw-graph/backend/internal/record"
	"uhnw-graph/backend/pkg/config"
)

// OptionsFromConfig builds run options from configuration. Persons merge on
// the token-set signal only; companies also accept small edit distances.
func OptionsFromConfig(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) Options {
	return Options{
		PersonMatcher: matcher.TokenOnly(cfg.PersonMatchThreshold),
		CompanyMatcher: matcher.Policy{
			TokenThreshold:  cfg.CompanyMatchThreshold,
			MaxEditDistance: cfg.MaxEditDistance,
			MinEditLength:   matcher.DefaultPolicy().MinEditLength,
		},
		Logger:  log,
		Metrics: m,
	}
}

// Result is what Ingest hands back to callers.
type Result struct {
	Run     *Run
	Summary Summary
}

// Ingest opens a run against store, feeds it batches in order, finishes it
// and saves the process-state files. Annual-report batches whose file is
// already in the store are skipped.
func Ingest(ctx context.Context, store graph.Store, files Files, opts Options, batches []record.Batch) (*Result, error) {
	run, err := Open(ctx, store, files, opts)
	if err != nil {
		return nil, err
	}
	if hasKind(batches, constants.SourceAnnualReport) {
		if err := run.LoadProcessed(ctx, store, constants.SourceAnnualReport); err != nil {
			return nil, err
		}
	}

	for _, b := range batches {
		if b.SourceKind == constants.SourceAnnualReport && run.AlreadyProcessed(b.SourceKind, b.SourceFile) {
			run.logger.Info("Skipping already processed annual report",
				zap.String("source_file", b.SourceFile),
			)
			continue
		}
		if err := run.Process(ctx, b); err != nil {
			return nil, err
		}
	}

	summary, err := run.Finish(ctx)
	if err != nil {
		return nil, err
	}
	if err := run.Save(files); err != nil {
		return nil, err
	}
	return &Result{Run: run, Summary: summary}, nil
}

func hasKind(batches []record.Batch, kind string) bool {
	for _, b := range batches {
		if b.SourceKind == kind {
			return true
		}
	}
	return false
}
