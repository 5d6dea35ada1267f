// Package graphstore is the derived graph store (spec §4.7): nodes and
// edges projected from the entity model, written exclusively by the outbox
// processor (C5) the same way internal/vectorstore is.
//
// Grounded on the teacher's internal/storage/surrealdb_entities.go
// (CreateEntity/CreateRelationship/TraverseGraph), generalized from the
// teacher's single global entity space to per-repository isolation and from
// ad-hoc relationship-type tables to the typed edge/unresolved-buffer model
// spec §4.7 describes.
package graphstore

import (
	"context"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// ExternalEntityType marks a node synthesized for an edge target that has
// not (yet, or ever) resolved to a real indexed entity (spec §4.7's "Node
// model": "Unresolved edges target an External node keyed by qualified_name").
const ExternalEntityType = "External"

// Node is the graph's node model (spec §4.7).
type Node struct {
	RepositoryID  string
	EntityID      string
	QualifiedName string
	EntityType    string
	Name          string
	FilePath      string
	StartLine     int
	EndLine       int
	Visibility    string
}

// Edge is one directed relationship between two nodes in the same repository.
type Edge struct {
	RepositoryID   string
	SourceEntityID string
	TargetEntityID string
	RefType        entity.RefType
}

// UnresolvedEdge is a buffered reference whose target has not resolved to a
// real node yet (spec §4.7 "Edge creation" phase 1).
type UnresolvedEdge struct {
	ID                  int64
	RepositoryID        string
	SourceEntityID      string
	TargetQualifiedName string
	RefType             entity.RefType
}

// TraversalHit is one result of a bounded-depth traversal query, carrying
// the depth at which it was reached.
type TraversalHit struct {
	Node  Node
	Depth int
}

// ModuleDependency is one row of find_module_dependencies' aggregated
// import count (spec §4.7, "module granularity").
type ModuleDependency struct {
	Module string
	Count  int
}

// Store is the graph store adapter's public surface (spec §4.7).
type Store interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	UpsertNode(ctx context.Context, node Node) error
	DeleteNode(ctx context.Context, repositoryID, entityID string) error

	// AttemptEdges resolves each outgoing reference against the graph's own
	// name index; on a miss, both an edge to the synthesized External node
	// and an UnresolvedEdge row are recorded so the edge upgrades in place
	// once SweepUnresolved resolves it.
	AttemptEdges(ctx context.Context, repositoryID, sourceEntityID string, refs []entity.SourceReference) error

	// SweepUnresolved retries every buffered UnresolvedEdge for repositoryID,
	// upgrading resolved ones in place, and returns the count still unresolved.
	SweepUnresolved(ctx context.Context, repositoryID string) (remaining int, err error)

	FindFunctionCallers(ctx context.Context, repositoryID, qualifiedName string, maxDepth int) ([]TraversalHit, error)
	FindFunctionCallees(ctx context.Context, repositoryID, qualifiedName string, maxDepth int) ([]TraversalHit, error)
	FindTraitImplementations(ctx context.Context, repositoryID, qualifiedName string) ([]Node, error)
	FindClassHierarchy(ctx context.Context, repositoryID, qualifiedName string) ([]Node, error)
	FindModuleContents(ctx context.Context, repositoryID, qualifiedName string) ([]Node, error)
	FindModuleDependencies(ctx context.Context, repositoryID, qualifiedName string) ([]ModuleDependency, error)
	FindUnusedFunctions(ctx context.Context, repositoryID string, limit int) ([]Node, error)
	FindCircularDependencies(ctx context.Context, repositoryID string, limit int) ([][]string, error)
}

// clampDepth and clampLimit enforce spec §4.7's "All queries cap results and
// depth to configured limits" invariant at the one place every query
// primitive funnels through.
func clampDepth(d int) int {
	if d < 1 {
		return 1
	}
	if d > 10 {
		return 10
	}
	return d
}

func clampLimit(l int) int {
	if l < 1 {
		return 1
	}
	if l > 1000 {
		return 1000
	}
	return l
}
