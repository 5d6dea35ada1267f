package reranker

import (
	"context"
	"sort"
)

// MockReranker reorders candidates by their incoming hybrid score, the same
// no-network "mock" idiom pkg/embedder.MockEmbedder follows, for tests and
// local development without a rerank model server.
type MockReranker struct{}

func NewMockReranker() *MockReranker { return &MockReranker{} }

func (MockReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]string, error) {
	sorted := append([]Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	out := make([]string, len(sorted))
	for i, c := range sorted {
		out[i] = c.EntityID
	}
	return out, nil
}

var _ Reranker = MockReranker{}
