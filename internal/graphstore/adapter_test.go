package graphstore_test

import (
	"context"
	"testing"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/graphstore"
	"github.com/codesearch-core/codesearch/internal/outbox"
)

func TestOutboxAdapter_UpsertNodeConvertsAndReachesStore(t *testing.T) {
	ctx := context.Background()
	store := graphstore.NewFakeStore()
	adapter := graphstore.OutboxAdapter{Store: store}

	err := adapter.UpsertNode(ctx, outbox.GraphNode{
		RepositoryID:  "r1",
		EntityID:      "e1",
		QualifiedName: "pkg::e1",
		EntityType:    "Function",
	})
	if err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}

	contents, err := store.FindModuleContents(ctx, "r1", "pkg::e1")
	if err != nil {
		t.Fatalf("FindModuleContents: %v", err)
	}
	if contents != nil {
		t.Fatalf("expected no module contents for a leaf function, got %+v", contents)
	}
}

func TestOutboxAdapter_PromotesAttemptEdgesAndSweepUnresolved(t *testing.T) {
	ctx := context.Background()
	store := graphstore.NewFakeStore()
	adapter := graphstore.OutboxAdapter{Store: store}

	_ = adapter.UpsertNode(ctx, outbox.GraphNode{RepositoryID: "r1", EntityID: "caller", QualifiedName: "pkg::caller"})

	if err := adapter.AttemptEdges(ctx, "r1", "caller", nil); err != nil {
		t.Fatalf("AttemptEdges: %v", err)
	}
	remaining, err := adapter.SweepUnresolved(ctx, "r1")
	if err != nil {
		t.Fatalf("SweepUnresolved: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected nothing pending, got %d", remaining)
	}

	if err := adapter.DeleteNode(ctx, "r1", "caller"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
}

// TestOutboxAdapter_ModuleContainsEdgesReachModuleContents exercises the
// scenario §8 scenario 3 describes: a module entity gains Contains edges to
// its members through the same AttemptEdges path Calls/UsesTypes/Imports
// already use, and find_module_contents returns them.
func TestOutboxAdapter_ModuleContainsEdgesReachModuleContents(t *testing.T) {
	ctx := context.Background()
	store := graphstore.NewFakeStore()
	adapter := graphstore.OutboxAdapter{Store: store}

	_ = adapter.UpsertNode(ctx, outbox.GraphNode{RepositoryID: "r1", EntityID: "crate", QualifiedName: "crate", EntityType: "Module"})
	_ = adapter.UpsertNode(ctx, outbox.GraphNode{RepositoryID: "r1", EntityID: "handler", QualifiedName: "crate::Handler", EntityType: "Trait"})
	_ = adapter.UpsertNode(ctx, outbox.GraphNode{RepositoryID: "r1", EntityID: "h", QualifiedName: "crate::H", EntityType: "Struct"})

	refs := []entity.SourceReference{
		entity.NewSourceReference("crate::Handler", entity.RefContains, entity.Location{}),
		entity.NewSourceReference("crate::H", entity.RefContains, entity.Location{}),
	}
	if err := adapter.AttemptEdges(ctx, "r1", "crate", refs); err != nil {
		t.Fatalf("AttemptEdges: %v", err)
	}

	contents, err := store.FindModuleContents(ctx, "r1", "crate")
	if err != nil {
		t.Fatalf("FindModuleContents: %v", err)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 module members, got %+v", contents)
	}
	if contents[0].QualifiedName != "crate::H" || contents[1].QualifiedName != "crate::Handler" {
		t.Fatalf("expected sorted [crate::H, crate::Handler], got %+v", contents)
	}
}

var _ outbox.GraphApplier = graphstore.OutboxAdapter{}
