// Package vectorstore is the derived dense+sparse vector store (spec §4.6).
// Every write arrives exclusively from the outbox processor (C5) replaying
// rows the metadata store (C4) appended; nothing in this package is
// writer-authoritative.
//
// Grounded on the teacher's internal/storage/surrealdb_vectors.go (point
// upsert/search over an MTREE index) and surrealdb_hybrid.go (fusing
// multiple result sets in application code rather than in-database).
package vectorstore

import "context"

// SparseTerm is one (token_id, weight) pair of a BM25-weighted sparse vector.
type SparseTerm struct {
	TokenID uint32
	Weight  float32
}

// Point is the payload one dense+sparse vector entry carries (spec §6.2).
type Point struct {
	PointID       string
	EntityID      string
	RepositoryID  string
	QualifiedName string
	Name          string
	EntityType    string
	Language      string
	FilePath      string
	StartLine     int
	EndLine       int
	Dense         []float32
	Sparse        []SparseTerm
}

// ScoredEntity is one hit of a hybrid search, fused across dense and sparse
// prefetch lists.
type ScoredEntity struct {
	EntityID string
	Score    float64
}

// Filters narrows a hybrid search by the fields spec §4.10 step 6 names.
type Filters struct {
	EntityType string
	Language   string
	FilePath   string
}

// Store is the vector store adapter's public surface (spec §4.6).
type Store interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// EnsureCollection creates the backing table/index for collection if it
	// does not already exist, sized for dense vectors of width dim.
	EnsureCollection(ctx context.Context, collection string, dim int) error

	UpsertPoints(ctx context.Context, collection string, points []Point) error
	DeletePoints(ctx context.Context, collection string, pointIDs []string) error

	// SearchHybrid prefetches k*prefetchMultiplier candidates from the dense
	// and sparse indexes independently and fuses them by Reciprocal Rank
	// Fusion (spec §4.6), returning the top k.
	SearchHybrid(ctx context.Context, collection string, dense []float32, sparse []SparseTerm, k, prefetchMultiplier int, filters Filters) ([]ScoredEntity, error)
}
