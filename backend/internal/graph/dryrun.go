package graph

import (
	"context"

	"go.uber.org/zap"

	"uhnw-graph/backend/internal/state"
	"uhnw-graph/backend/pkg/logger"
)

// DryRunCounts tallies the upserts a DryRunWriter was asked to perform.
type DryRunCounts struct {
	Persons   int
	Companies int
	Roles     int
	Families  int
}

// DryRunWriter logs every upsert and writes nothing. Reads return an empty
// graph.
type DryRunWriter struct {
	logger *zap.Logger
	counts DryRunCounts
}

// NewDryRunWriter creates a dry-run store. A nil logger uses the global one.
func NewDryRunWriter(log *zap.Logger) *DryRunWriter {
	if log == nil {
		log = logger.Get()
	}
	return &DryRunWriter{logger: log.Named("dry_run")}
}

// Counts returns the upserts seen so far.
func (w *DryRunWriter) Counts() DryRunCounts {
	return w.counts
}

func (w *DryRunWriter) UpsertPerson(_ context.Context, p state.Person) error {
	if err := p.Validate(); err != nil {
		return err
	}
	w.counts.Persons++
	w.logger.Info("MERGE Person",
		zap.String("person_id", p.ID),
		zap.String("name", p.Name),
		zap.Strings("aliases", p.Aliases),
		zap.String("source_kind", p.Provenance.SourceKind),
	)
	return nil
}

func (w *DryRunWriter) UpsertCompany(_ context.Context, c state.Company) error {
	if err := c.Validate(); err != nil {
		return err
	}
	w.counts.Companies++
	w.logger.Info("MERGE Company",
		zap.String("company_id", c.ID),
		zap.String("name", c.Name),
		zap.String("source_kind", c.Provenance.SourceKind),
	)
	return nil
}

func (w *DryRunWriter) UpsertRole(_ context.Context, e state.RoleEdge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	w.counts.Roles++
	w.logger.Info("MERGE Role",
		zap.String("person_id", e.PersonID),
		zap.String("company_id", e.CompanyID),
		zap.String("role", e.Role),
	)
	return nil
}

func (w *DryRunWriter) UpsertFamily(_ context.Context, e state.FamilyEdge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	w.counts.Families++
	w.logger.Info("MERGE Family",
		zap.String("source_id", e.SourceID),
		zap.String("dest_id", e.DestID),
		zap.String("relation", e.Relation),
	)
	return nil
}

func (w *DryRunWriter) LoadRegistrySnapshot(context.Context) ([]state.Person, []state.Company, error) {
	return nil, nil, nil
}

func (w *DryRunWriter) ProcessedSourceFiles(context.Context, string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*DryRunWriter)(nil)
)
