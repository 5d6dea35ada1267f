package reranker_test

import (
	"context"
	"testing"

	"github.com/codesearch-core/codesearch/pkg/reranker"
)

func TestMockReranker_SortsDescendingByScore(t *testing.T) {
	m := reranker.NewMockReranker()
	ids, err := m.Rerank(context.Background(), "q", []reranker.Candidate{
		{EntityID: "low", Score: 0.1},
		{EntityID: "high", Score: 0.9},
		{EntityID: "mid", Score: 0.5},
	})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	want := []string{"high", "mid", "low"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestMockReranker_DoesNotMutateInput(t *testing.T) {
	m := reranker.NewMockReranker()
	candidates := []reranker.Candidate{
		{EntityID: "a", Score: 0.1},
		{EntityID: "b", Score: 0.9},
	}
	_, err := m.Rerank(context.Background(), "q", candidates)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if candidates[0].EntityID != "a" || candidates[1].EntityID != "b" {
		t.Fatalf("input slice was mutated: %v", candidates)
	}
}
