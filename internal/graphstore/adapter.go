package graphstore

import (
	"context"

	"github.com/codesearch-core/codesearch/internal/outbox"
)

// OutboxAdapter satisfies outbox.GraphApplier over a Store. AttemptEdges,
// SweepUnresolved and DeleteNode already share the identical signature with
// Store, so embedding promotes them unchanged; only UpsertNode needs a type
// conversion between outbox's payload-envelope shape and graphstore.Node.
type OutboxAdapter struct {
	Store
}

func (a OutboxAdapter) UpsertNode(ctx context.Context, node outbox.GraphNode) error {
	return a.Store.UpsertNode(ctx, Node{
		RepositoryID:  node.RepositoryID,
		EntityID:      node.EntityID,
		QualifiedName: node.QualifiedName,
		EntityType:    node.EntityType,
		Name:          node.Name,
		FilePath:      node.FilePath,
		StartLine:     node.StartLine,
		EndLine:       node.EndLine,
		Visibility:    node.Visibility,
	})
}

var _ outbox.GraphApplier = OutboxAdapter{}
