package vectorstore_test

import (
	"context"
	"testing"

	"github.com/codesearch-core/codesearch/internal/vectorstore"
)

func TestFakeStore_UpsertThenSearchHybridFindsClosestByDense(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewFakeStore()
	if err := store.EnsureCollection(ctx, "repo1", 3); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	points := []vectorstore.Point{
		{PointID: "p1", EntityID: "e1", Dense: []float32{1, 0, 0}},
		{PointID: "p2", EntityID: "e2", Dense: []float32{0, 1, 0}},
		{PointID: "p3", EntityID: "e3", Dense: []float32{0.9, 0.1, 0}},
	}
	if err := store.UpsertPoints(ctx, "repo1", points); err != nil {
		t.Fatalf("UpsertPoints: %v", err)
	}

	results, err := store.SearchHybrid(ctx, "repo1", []float32{1, 0, 0}, nil, 2, 4, vectorstore.Filters{})
	if err != nil {
		t.Fatalf("SearchHybrid: %v", err)
	}
	if len(results) == 0 || results[0].EntityID != "e1" {
		t.Fatalf("expected e1 to rank first, got %+v", results)
	}
}

func TestFakeStore_DeletePointsRemovesFromSearch(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewFakeStore()
	_ = store.EnsureCollection(ctx, "repo2", 2)
	_ = store.UpsertPoints(ctx, "repo2", []vectorstore.Point{{PointID: "p1", EntityID: "e1", Dense: []float32{1, 0}}})

	if err := store.DeletePoints(ctx, "repo2", []string{"p1"}); err != nil {
		t.Fatalf("DeletePoints: %v", err)
	}

	results, err := store.SearchHybrid(ctx, "repo2", []float32{1, 0}, nil, 5, 4, vectorstore.Filters{})
	if err != nil {
		t.Fatalf("SearchHybrid: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results after delete, got %+v", results)
	}
}

func TestFakeStore_FiltersNarrowResults(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewFakeStore()
	_ = store.EnsureCollection(ctx, "repo3", 2)
	_ = store.UpsertPoints(ctx, "repo3", []vectorstore.Point{
		{PointID: "p1", EntityID: "e1", Dense: []float32{1, 0}, Language: "go"},
		{PointID: "p2", EntityID: "e2", Dense: []float32{1, 0}, Language: "rust"},
	})

	results, err := store.SearchHybrid(ctx, "repo3", []float32{1, 0}, nil, 5, 4, vectorstore.Filters{Language: "rust"})
	if err != nil {
		t.Fatalf("SearchHybrid: %v", err)
	}
	if len(results) != 1 || results[0].EntityID != "e2" {
		t.Fatalf("expected only e2 to match language filter, got %+v", results)
	}
}
