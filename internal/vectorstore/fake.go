package vectorstore

import (
	"context"
	"math"
	"sync"
)

// FakeStore is an in-memory Store, grounded the same way
// metadatastore.FakeStore is: the teacher has no equivalent, and C8/C9/C10's
// tests need a vector store that doesn't require a running SurrealDB.
type FakeStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Point // collection -> point_id -> point
}

func NewFakeStore() *FakeStore {
	return &FakeStore{collections: make(map[string]map[string]Point)}
}

func (f *FakeStore) Connect(ctx context.Context) error { return nil }
func (f *FakeStore) Close() error                       { return nil }
func (f *FakeStore) Ping(ctx context.Context) error     { return nil }

func (f *FakeStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]Point)
	}
	return nil
}

func (f *FakeStore) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.collections[collection]
	if m == nil {
		m = make(map[string]Point)
		f.collections[collection] = m
	}
	for _, p := range points {
		m[p.PointID] = p
	}
	return nil
}

func (f *FakeStore) DeletePoints(ctx context.Context, collection string, pointIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.collections[collection]
	for _, id := range pointIDs {
		delete(m, id)
	}
	return nil
}

func (f *FakeStore) SearchHybrid(ctx context.Context, collection string, dense []float32, sparse []SparseTerm, k, prefetchMultiplier int, filters Filters) ([]ScoredEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prefetchMultiplier <= 0 {
		prefetchMultiplier = 4
	}
	prefetch := k * prefetchMultiplier
	if prefetch <= 0 {
		prefetch = k
	}

	var denseHits, sparseHits []ScoredEntity
	for _, p := range f.collections[collection] {
		if !matchesFilters(p, filters) {
			continue
		}
		if len(dense) > 0 && len(p.Dense) > 0 {
			denseHits = append(denseHits, ScoredEntity{EntityID: p.EntityID, Score: cosineSimilarity(dense, p.Dense)})
		}
		if len(sparse) > 0 {
			sparseHits = append(sparseHits, ScoredEntity{EntityID: p.EntityID, Score: DotProduct(sparse, p.Sparse)})
		}
	}
	sortScoredDesc(denseHits)
	sortScoredDesc(sparseHits)
	if len(denseHits) > prefetch {
		denseHits = denseHits[:prefetch]
	}
	if len(sparseHits) > prefetch {
		sparseHits = sparseHits[:prefetch]
	}
	return fuseRRF(denseHits, sparseHits, DefaultRRFConstant, k), nil
}

func matchesFilters(p Point, f Filters) bool {
	if f.EntityType != "" && p.EntityType != f.EntityType {
		return false
	}
	if f.Language != "" && p.Language != f.Language {
		return false
	}
	if f.FilePath != "" && p.FilePath != f.FilePath {
		return false
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Store = (*FakeStore)(nil)
