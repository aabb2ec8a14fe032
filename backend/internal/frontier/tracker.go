// Package frontier tracks which external ids have been fully expanded. An id
// is pending until its own neighborhood has been fetched; once resolved it
// never goes back.
package frontier

import (
	"sort"

	"go.uber.org/zap"

	"uhnw-graph/backend/internal/datafile"
	"uhnw-graph/backend/pkg/logger"
)

// Tracker is the id → resolved map of the crawl. Not safe for concurrent use.
type Tracker struct {
	ids    map[string]bool
	logger *zap.Logger
}

// stateFile is the persisted shape. Seen is the legacy key and is only read.
type stateFile struct {
	IDs  map[string]bool `json:"ids"`
	Seen map[string]bool `json:"seen,omitempty"`
}

// New returns an empty tracker.
func New(log *zap.Logger) *Tracker {
	if log == nil {
		log = logger.Get()
	}
	return &Tracker{
		ids:    make(map[string]bool),
		logger: log.Named("frontier"),
	}
}

// Load reads the tracker from path. A missing file gives an empty tracker. A
// corrupt file is quarantined; the empty tracker is returned along with the
// corruption error so the caller can log it and continue.
func Load(path string, log *zap.Logger) (*Tracker, error) {
	t := New(log)
	var sf stateFile
	found, err := datafile.LoadJSON(path, &sf)
	if err != nil {
		t.logger.Warn("Frontier state quarantined, starting empty",
			zap.String("path", path),
			zap.Error(err),
		)
		return t, err
	}
	if !found {
		return t, nil
	}
	for id, resolved := range sf.Seen {
		t.set(id, resolved)
	}
	for id, resolved := range sf.IDs {
		t.set(id, resolved)
	}
	t.logger.Debug("Frontier state loaded",
		zap.String("path", path),
		zap.Int("ids", len(t.ids)),
	)
	return t, nil
}

// Save atomically writes the tracker to path.
func (t *Tracker) Save(path string) error {
	return datafile.SaveJSON(path, stateFile{IDs: t.ids})
}

func (t *Tracker) set(id string, resolved bool) {
	if id == "" {
		return
	}
	t.ids[id] = t.ids[id] || resolved
}

// MarkResolved flags id as expanded.
func (t *Tracker) MarkResolved(id string) {
	t.set(id, true)
}

// Discover registers id as pending unless it is already known.
func (t *Tracker) Discover(id string) {
	t.set(id, false)
}

// Resolved reports whether id has been expanded.
func (t *Tracker) Resolved(id string) bool {
	return t.ids[id]
}

// Known reports whether id has been seen at all.
func (t *Tracker) Known(id string) bool {
	_, ok := t.ids[id]
	return ok
}

// PendingIDs returns the ids still waiting to be expanded, sorted.
func (t *Tracker) PendingIDs() []string {
	out := make([]string, 0)
	for id, resolved := range t.ids {
		if !resolved {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of known ids.
func (t *Tracker) Len() int {
	return len(t.ids)
}

// Reset forgets every id.
func (t *Tracker) Reset() {
	t.ids = make(map[string]bool)
	t.logger.Info("Frontier reset")
}
