package graph

import (
	"context"

	"uhnw-graph/backend/internal/state"
)

// Writer is the upsert contract of the graph store. Every call is keyed by
// the entity's uniqueness key, so replaying the same facts converges.
type Writer interface {
	UpsertPerson(ctx context.Context, p state.Person) error
	UpsertCompany(ctx context.Context, c state.Company) error
	UpsertRole(ctx context.Context, e state.RoleEdge) error
	UpsertFamily(ctx context.Context, e state.FamilyEdge) error
}

// SnapshotReader exposes what a run needs to read back before writing.
type SnapshotReader interface {
	LoadRegistrySnapshot(ctx context.Context) ([]state.Person, []state.Company, error)
	ProcessedSourceFiles(ctx context.Context, sourceKind string) (map[string]bool, error)
}

// Store is a Writer that can also be read back.
type Store interface {
	Writer
	SnapshotReader
}
