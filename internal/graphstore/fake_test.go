package graphstore_test

import (
	"context"
	"testing"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/graphstore"
)

func mustUpsert(t *testing.T, s *graphstore.FakeStore, n graphstore.Node) {
	t.Helper()
	if err := s.UpsertNode(context.Background(), n); err != nil {
		t.Fatalf("UpsertNode(%s): %v", n.EntityID, err)
	}
}

func TestFakeStore_AttemptEdgesResolvesKnownTarget(t *testing.T) {
	ctx := context.Background()
	s := graphstore.NewFakeStore()
	mustUpsert(t, s, graphstore.Node{RepositoryID: "r1", EntityID: "caller", QualifiedName: "pkg::caller"})
	mustUpsert(t, s, graphstore.Node{RepositoryID: "r1", EntityID: "callee", QualifiedName: "pkg::callee"})

	err := s.AttemptEdges(ctx, "r1", "caller", []entity.SourceReference{{Target: "pkg::callee", RefType: entity.RefCalls}})
	if err != nil {
		t.Fatalf("AttemptEdges: %v", err)
	}

	hits, err := s.FindFunctionCallees(ctx, "r1", "pkg::caller", 1)
	if err != nil {
		t.Fatalf("FindFunctionCallees: %v", err)
	}
	if len(hits) != 1 || hits[0].Node.EntityID != "callee" {
		t.Fatalf("expected callee reachable, got %+v", hits)
	}
}

func TestFakeStore_AttemptEdgesBuffersUnresolvedThenSweepResolves(t *testing.T) {
	ctx := context.Background()
	s := graphstore.NewFakeStore()
	mustUpsert(t, s, graphstore.Node{RepositoryID: "r1", EntityID: "caller", QualifiedName: "pkg::caller"})

	if err := s.AttemptEdges(ctx, "r1", "caller", []entity.SourceReference{{Target: "pkg::later", RefType: entity.RefCalls}}); err != nil {
		t.Fatalf("AttemptEdges: %v", err)
	}

	remaining, err := s.SweepUnresolved(ctx, "r1")
	if err != nil {
		t.Fatalf("SweepUnresolved: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected 1 remaining before the target exists, got %d", remaining)
	}

	mustUpsert(t, s, graphstore.Node{RepositoryID: "r1", EntityID: "later", QualifiedName: "pkg::later"})
	remaining, err = s.SweepUnresolved(ctx, "r1")
	if err != nil {
		t.Fatalf("SweepUnresolved: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining after the target appears, got %d", remaining)
	}

	hits, err := s.FindFunctionCallees(ctx, "r1", "pkg::caller", 1)
	if err != nil {
		t.Fatalf("FindFunctionCallees: %v", err)
	}
	if len(hits) != 1 || hits[0].Node.EntityID != "later" {
		t.Fatalf("expected the edge to upgrade to the real node, got %+v", hits)
	}
}

func TestFakeStore_DeleteNodeRemovesItsEdges(t *testing.T) {
	ctx := context.Background()
	s := graphstore.NewFakeStore()
	mustUpsert(t, s, graphstore.Node{RepositoryID: "r1", EntityID: "caller", QualifiedName: "pkg::caller"})
	mustUpsert(t, s, graphstore.Node{RepositoryID: "r1", EntityID: "callee", QualifiedName: "pkg::callee"})
	_ = s.AttemptEdges(ctx, "r1", "caller", []entity.SourceReference{{Target: "pkg::callee", RefType: entity.RefCalls}})

	if err := s.DeleteNode(ctx, "r1", "callee"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	hits, err := s.FindFunctionCallees(ctx, "r1", "pkg::caller", 1)
	if err != nil {
		t.Fatalf("FindFunctionCallees: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no callees after deleting the target node, got %+v", hits)
	}
}
