package vectorstore_test

import (
	"context"
	"testing"

	"github.com/codesearch-core/codesearch/internal/outbox"
	"github.com/codesearch-core/codesearch/internal/vectorstore"
)

func TestOutboxAdapter_UpsertPointReachesUnderlyingStore(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewFakeStore()
	_ = store.EnsureCollection(ctx, "repo1", 2)
	adapter := vectorstore.OutboxAdapter{Store: store}

	err := adapter.UpsertPoint(ctx, "repo1", outbox.VectorPoint{
		PointID:  "p1",
		EntityID: "e1",
		Dense:    []float32{1, 0},
		Sparse:   []outbox.SparseTerm{{TokenID: 7, Weight: 0.5}},
	})
	if err != nil {
		t.Fatalf("UpsertPoint: %v", err)
	}

	results, err := store.SearchHybrid(ctx, "repo1", []float32{1, 0}, nil, 5, 4, vectorstore.Filters{})
	if err != nil {
		t.Fatalf("SearchHybrid: %v", err)
	}
	if len(results) != 1 || results[0].EntityID != "e1" {
		t.Fatalf("expected the adapted point to be searchable, got %+v", results)
	}
}

func TestOutboxAdapter_DeletePointsReachesUnderlyingStore(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewFakeStore()
	_ = store.EnsureCollection(ctx, "repo2", 2)
	adapter := vectorstore.OutboxAdapter{Store: store}
	_ = adapter.UpsertPoint(ctx, "repo2", outbox.VectorPoint{PointID: "p1", EntityID: "e1", Dense: []float32{1, 0}})

	if err := adapter.DeletePoints(ctx, "repo2", []string{"p1"}); err != nil {
		t.Fatalf("DeletePoints: %v", err)
	}

	results, err := store.SearchHybrid(ctx, "repo2", []float32{1, 0}, nil, 5, 4, vectorstore.Filters{})
	if err != nil {
		t.Fatalf("SearchHybrid: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected deletion to remove the point, got %+v", results)
	}
}
