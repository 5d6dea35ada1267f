// Package search implements C10: the query-side counterpart to the
// indexer. It turns a query into a dense+sparse hybrid search against
// internal/vectorstore, hydrates hits into full entity rows from
// internal/metadatastore, optionally reranks them with pkg/reranker, and
// warns on graph queries run while internal/metadatastore reports the
// repository's graph as not yet ready.
//
// Grounded on the teacher's pkg/mcp_tools search handlers (fetch → filter →
// shape-response flow), restructured around this module's hybrid-retrieval
// and reranking pipeline, which the teacher's symbol search never had.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/graphstore"
	"github.com/codesearch-core/codesearch/internal/metadatastore"
	"github.com/codesearch-core/codesearch/internal/vectorstore"
	"github.com/codesearch-core/codesearch/pkg/embedder"
	"github.com/codesearch-core/codesearch/pkg/reranker"
)

// GraphIncompleteWarning is attached to a graph-query response when the
// repository's graph is still converging (spec §4.10 "Graph-query gate").
const GraphIncompleteWarning = "Graph is incomplete (indexing in progress). Results may be partial."

// Result is one hydrated hit: the full entity plus the score it was
// retrieved or reranked with.
type Result struct {
	EntityID string
	Entity   entity.CodeEntity
	Score    float64
}

// ResponseMetadata accompanies every search response (spec §6.4).
type ResponseMetadata struct {
	TotalResults int
	QueryTimeMs  int64
	Reranked     bool
	Warning      string
}

// RerankOptions configures the optional rerank step of a semantic search.
type RerankOptions struct {
	Enabled bool
	TopN    int // 0 means rerank every candidate returned by the hybrid search
}

// SemanticRequest is spec §6.4's semantic search request shape.
type SemanticRequest struct {
	RepositoryID       string
	QueryText          string
	QueryEmbedding     []float32 // optional precomputed embedding
	Instruction        string    // optional instruction prefix for providers that want one
	Filters            vectorstore.Filters
	Limit              int
	PrefetchMultiplier int
	Rerank             *RerankOptions
}

// UnifiedRequest adds full-text/semantic toggles and their own limits and
// fusion constant on top of a semantic request (spec §6.4's "Unified").
type UnifiedRequest struct {
	SemanticRequest
	EnableFulltext bool
	EnableSemantic bool
	FulltextLimit  int
	SemanticLimit  int
	RRFConstant    int
}

// Service wires the collaborators a search needs.
type Service struct {
	Metadata    metadatastore.Store
	Vectors     vectorstore.Store
	Graph       graphstore.Store
	Embeddings  embedder.Embedder
	Reranker    reranker.Reranker
	RRFConstant int // default fusion constant when a request doesn't set one
}

// NewService returns a Service with spec-default tunables filled in for any
// zero-valued field left unset by the caller.
func NewService(metadata metadatastore.Store, vectors vectorstore.Store, graph graphstore.Store, embeddings embedder.Embedder, rerank reranker.Reranker) *Service {
	return &Service{
		Metadata:    metadata,
		Vectors:     vectors,
		Graph:       graph,
		Embeddings:  embeddings,
		Reranker:    rerank,
		RRFConstant: 60,
	}
}

// Semantic implements spec §4.10's semantic search steps 1-6.
func (s *Service) Semantic(ctx context.Context, req SemanticRequest) ([]Result, ResponseMetadata, error) {
	start := time.Now()

	repo, err := s.Metadata.GetRepository(ctx, req.RepositoryID)
	if err != nil {
		return nil, ResponseMetadata{}, fmt.Errorf("failed to resolve repository: %w", err)
	}

	dense, err := s.resolveQueryEmbedding(ctx, req.QueryText, req.Instruction, req.QueryEmbedding)
	if err != nil {
		return nil, ResponseMetadata{}, fmt.Errorf("failed to embed query: %w", err)
	}

	avgdl, err := s.Metadata.GetBM25AverageDocLen(ctx, req.RepositoryID)
	if err != nil {
		return nil, ResponseMetadata{}, fmt.Errorf("failed to read bm25 average doc length: %w", err)
	}
	sparse := queryToSparseVector(req.QueryText, avgdl)

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	prefetch := req.PrefetchMultiplier
	if prefetch <= 0 {
		prefetch = 4
	}

	hits, err := s.Vectors.SearchHybrid(ctx, repo.CollectionName, dense, sparse, limit, prefetch, req.Filters)
	if err != nil {
		return nil, ResponseMetadata{}, fmt.Errorf("failed to search hybrid index: %w", err)
	}

	results, err := s.hydrate(ctx, req.RepositoryID, hits)
	if err != nil {
		return nil, ResponseMetadata{}, err
	}

	reranked := false
	if req.Rerank != nil && req.Rerank.Enabled && s.Reranker != nil {
		if r, err := s.rerank(ctx, req.QueryText, results, req.Rerank.TopN); err != nil {
			// Fall back to the hybrid-search order (spec §4.10 step 5:
			// "fall back to hybrid score on reranker failure").
		} else {
			results = r
			reranked = true
		}
	}

	results = applyFilters(results, req.Filters)

	return results, ResponseMetadata{
		TotalResults: len(results),
		QueryTimeMs:  time.Since(start).Milliseconds(),
		Reranked:     reranked,
	}, nil
}

// Unified implements spec §6.4's unified search: independent full-text and
// semantic hybrid queries, each capped by its own limit, fused at this
// layer by a second Reciprocal Rank Fusion pass with rrf_k (distinct from
// the dense/sparse fusion internal/vectorstore already performs inside each
// individual hybrid query).
func (s *Service) Unified(ctx context.Context, req UnifiedRequest) ([]Result, ResponseMetadata, error) {
	start := time.Now()

	if !req.EnableFulltext && !req.EnableSemantic {
		return nil, ResponseMetadata{QueryTimeMs: time.Since(start).Milliseconds()}, nil
	}

	kRRF := req.RRFConstant
	if kRRF <= 0 {
		kRRF = s.RRFConstant
	}

	var lists [][]Result

	if req.EnableSemantic {
		semReq := req.SemanticRequest
		semReq.Limit = orDefault(req.SemanticLimit, req.Limit)
		results, _, err := s.Semantic(ctx, semReq)
		if err != nil {
			return nil, ResponseMetadata{}, fmt.Errorf("semantic leg failed: %w", err)
		}
		lists = append(lists, results)
	}

	if req.EnableFulltext {
		ftReq := req.SemanticRequest
		ftReq.Limit = orDefault(req.FulltextLimit, req.Limit)
		// A fulltext-only leg passes a zero dense vector (instead of calling
		// the embedder) so the fused hybrid score is driven by BM25 sparse
		// overlap rather than a semantic signal.
		ftReq.QueryEmbedding = make([]float32, s.Embeddings.Dimension())
		results, _, err := s.Semantic(ctx, ftReq)
		if err != nil {
			return nil, ResponseMetadata{}, fmt.Errorf("fulltext leg failed: %w", err)
		}
		lists = append(lists, results)
	}

	fused := fuseByRRF(lists, kRRF)

	limit := req.Limit
	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}

	return fused, ResponseMetadata{
		TotalResults: len(fused),
		QueryTimeMs:  time.Since(start).Milliseconds(),
	}, nil
}

// GraphRequest is spec §6.4's graph query request shape.
type GraphRequest struct {
	RepositoryID  string
	QueryType     string // one of the eight query types Graph dispatches on
	QualifiedName string
	MaxDepth      int
	Limit         int
}

// GraphResponse wraps whichever result shape QueryType produced plus the
// shared metadata envelope.
type GraphResponse struct {
	TraversalHits      []graphstore.TraversalHit
	Nodes              []graphstore.Node
	ModuleDependencies []graphstore.ModuleDependency
	Cycles             [][]string
	Metadata           ResponseMetadata
}

// Graph implements spec §4.10's graph-query gate: consult is_graph_ready,
// execute the query regardless, and attach a warning if the graph was not
// yet ready when the query ran.
func (s *Service) Graph(ctx context.Context, req GraphRequest) (*GraphResponse, error) {
	start := time.Now()

	ready, err := s.Metadata.IsGraphReady(ctx, req.RepositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to check graph readiness: %w", err)
	}

	maxDepth := clamp(req.MaxDepth, 1, 10)
	limit := clamp(req.Limit, 1, 1000)

	resp := &GraphResponse{}
	var queryErr error

	switch req.QueryType {
	case "find_function_callers":
		resp.TraversalHits, queryErr = s.Graph.FindFunctionCallers(ctx, req.RepositoryID, req.QualifiedName, maxDepth)
	case "find_function_callees":
		resp.TraversalHits, queryErr = s.Graph.FindFunctionCallees(ctx, req.RepositoryID, req.QualifiedName, maxDepth)
	case "find_trait_implementations":
		resp.Nodes, queryErr = s.Graph.FindTraitImplementations(ctx, req.RepositoryID, req.QualifiedName)
	case "find_class_hierarchy":
		resp.Nodes, queryErr = s.Graph.FindClassHierarchy(ctx, req.RepositoryID, req.QualifiedName)
	case "find_module_contents":
		resp.Nodes, queryErr = s.Graph.FindModuleContents(ctx, req.RepositoryID, req.QualifiedName)
	case "find_module_dependencies":
		resp.ModuleDependencies, queryErr = s.Graph.FindModuleDependencies(ctx, req.RepositoryID, req.QualifiedName)
	case "find_unused_functions":
		resp.Nodes, queryErr = s.Graph.FindUnusedFunctions(ctx, req.RepositoryID, limit)
	case "find_circular_dependencies":
		resp.Cycles, queryErr = s.Graph.FindCircularDependencies(ctx, req.RepositoryID, limit)
	default:
		return nil, fmt.Errorf("unknown graph query type %q", req.QueryType)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("graph query %q failed: %w", req.QueryType, queryErr)
	}

	resp.Metadata = ResponseMetadata{
		TotalResults: graphResultCount(resp),
		QueryTimeMs:  time.Since(start).Milliseconds(),
	}
	if !ready {
		resp.Metadata.Warning = GraphIncompleteWarning
	}
	return resp, nil
}

func graphResultCount(r *GraphResponse) int {
	switch {
	case len(r.TraversalHits) > 0:
		return len(r.TraversalHits)
	case len(r.Nodes) > 0:
		return len(r.Nodes)
	case len(r.ModuleDependencies) > 0:
		return len(r.ModuleDependencies)
	default:
		return len(r.Cycles)
	}
}

func (s *Service) resolveQueryEmbedding(ctx context.Context, queryText, instruction string, precomputed []float32) ([]float32, error) {
	if len(precomputed) > 0 {
		return precomputed, nil
	}
	text := queryText
	if instruction != "" {
		text = instruction + " " + queryText
	}
	return s.Embeddings.EmbedQuery(ctx, text)
}

// queryToSparseVector computes the query's own BM25 sparse vector against
// the repository's avgdl, the same way the indexer computes one for every
// entity (spec §4.10 step 2).
func queryToSparseVector(queryText string, avgdl float64) []vectorstore.SparseTerm {
	termFreqs, docLen := vectorstore.TermFreqs(queryText)
	return vectorstore.BuildSparseVector(termFreqs, docLen, avgdl)
}

func (s *Service) hydrate(ctx context.Context, repoID string, hits []vectorstore.ScoredEntity) ([]Result, error) {
	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.EntityID
	}
	entities, err := s.Metadata.GetEntitiesByID(ctx, repoID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate hits: %w", err)
	}
	byID := make(map[string]entity.CodeEntity, len(entities))
	for _, e := range entities {
		byID[e.EntityID] = e
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		e, ok := byID[h.EntityID]
		if !ok {
			continue // hydrated away between the hybrid search and this lookup
		}
		results = append(results, Result{EntityID: h.EntityID, Entity: e, Score: h.Score})
	}
	return results, nil
}

// rerank reorders the top-N results by pkg/reranker.Reranker, using each
// entity's deterministic embedding text as the candidate's scoring text
// (spec §6.3's invariant that indexing and reranking embed byte-identical
// text). Results past topN keep their hybrid-search order and are appended
// after the reranked head.
func (s *Service) rerank(ctx context.Context, query string, results []Result, topN int) ([]Result, error) {
	if len(results) == 0 {
		return results, nil
	}
	n := topN
	if n <= 0 || n > len(results) {
		n = len(results)
	}

	candidates := make([]reranker.Candidate, n)
	for i, r := range results[:n] {
		candidates[i] = reranker.Candidate{
			EntityID: r.EntityID,
			Text:     embedder.BuildEmbeddingText(r.Entity),
			Score:    r.Score,
		}
	}

	order, err := s.Reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Result, n)
	for _, r := range results[:n] {
		byID[r.EntityID] = r
	}
	reordered := make([]Result, 0, len(results))
	for _, id := range order {
		if r, ok := byID[id]; ok {
			reordered = append(reordered, r)
		}
	}
	reordered = append(reordered, results[n:]...)
	return reordered, nil
}

func applyFilters(results []Result, f vectorstore.Filters) []Result {
	if f.EntityType == "" && f.Language == "" && f.FilePath == "" {
		return results
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if f.EntityType != "" && string(r.Entity.EntityType) != f.EntityType {
			continue
		}
		if f.Language != "" && string(r.Entity.Language) != f.Language {
			continue
		}
		if f.FilePath != "" && r.Entity.FilePath != f.FilePath {
			continue
		}
		out = append(out, r)
	}
	return out
}

// fuseByRRF merges independently-ranked result lists by Reciprocal Rank
// Fusion (spec §4.6's formula, reapplied here across whole search legs
// rather than across dense/sparse prefetch lists).
func fuseByRRF(lists [][]Result, kRRF int) []Result {
	scores := make(map[string]float64)
	byID := make(map[string]Result)
	for _, list := range lists {
		for rank, r := range list {
			scores[r.EntityID] += 1.0 / float64(kRRF+rank+1)
			if _, ok := byID[r.EntityID]; !ok {
				byID[r.EntityID] = r
			}
		}
	}

	fused := make([]Result, 0, len(scores))
	for id, score := range scores {
		r := byID[id]
		r.Score = score
		fused = append(fused, r)
	}
	sort.Slice(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return fused
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
