package ingest

import (
	"context"

	"go.uber.org/zap"

	"uhnw-graph/backend/internal/datafile"
	"uhnw-graph/backend/internal/frontier"
	"uhnw-graph/backend/internal/graph"
	apperrors "uhnw-graph/backend/pkg/errors"
)

// Files names the process-state files a run resumes from. Empty paths are
// not read or written.
type Files struct {
	StatePath string // crawl frontier, {"ids": {...}}
	DataPath  string // knowledge-base snapshot, {"persons": [...], "edges": [...]}
	Reset     bool   // start from empty state, ignoring both files
}

// Open prepares a run against store: it loads the frontier and snapshot
// files, reads the entities already in the store and rehydrates the run
// with all of it. Corrupt state files are quarantined and the run starts
// from empty state for that file.
func Open(ctx context.Context, store graph.Store, files Files, opts Options) (*Run, error) {
	tracker, snapshot := loadFiles(files, opts)
	run := New(store, tracker, opts)

	persons, companies, err := store.LoadRegistrySnapshot(ctx)
	if err != nil {
		return nil, err
	}
	// the snapshot goes first since it carries attributes the store does not
	run.Rehydrate(snapshot.People(), nil, snapshot.FamilyEdges())
	run.Rehydrate(persons, companies, nil)
	return run, nil
}

func loadFiles(files Files, opts Options) (*frontier.Tracker, datafile.Snapshot) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if files.Reset {
		log.Info("Process state reset requested")
		return frontier.New(log), datafile.Snapshot{}
	}

	tracker := frontier.New(log)
	if files.StatePath != "" {
		t, err := frontier.Load(files.StatePath, log)
		if err != nil && !apperrors.IsErrorType(err, apperrors.ErrorTypeState) {
			log.Warn("Frontier state unreadable", zap.Error(err))
		}
		tracker = t
	}

	var snapshot datafile.Snapshot
	if files.DataPath != "" {
		s, err := datafile.LoadSnapshot(files.DataPath)
		if err != nil {
			log.Warn("Data file quarantined, starting empty",
				zap.String("path", files.DataPath),
				zap.Error(err),
			)
		}
		snapshot = s
	}
	return tracker, snapshot
}

// LoadProcessed marks the store's already-ingested files of sourceKind so
// AlreadyProcessed can skip them.
func (r *Run) LoadProcessed(ctx context.Context, store graph.SnapshotReader, sourceKind string) error {
	files, err := store.ProcessedSourceFiles(ctx, sourceKind)
	if err != nil {
		return err
	}
	r.MarkProcessed(sourceKind, files)
	r.logger.Info("Previously processed files loaded",
		zap.String("source_kind", sourceKind),
		zap.Int("files", len(files)),
	)
	return nil
}

// Save writes the snapshot and frontier files. It should follow Finish.
func (r *Run) Save(files Files) error {
	if files.DataPath != "" {
		if err := datafile.SaveSnapshot(files.DataPath, r.Snapshot()); err != nil {
			return err
		}
	}
	if files.StatePath != "" {
		if err := r.frontier.Save(files.StatePath); err != nil {
			return err
		}
	}
	r.logger.Debug("Process state saved",
		zap.String("state_file", files.StatePath),
		zap.String("data_file", files.DataPath),
	)
	return nil
}
