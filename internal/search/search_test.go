package search

import (
	"context"
	"testing"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/graphstore"
	"github.com/codesearch-core/codesearch/internal/metadatastore"
	"github.com/codesearch-core/codesearch/internal/vectorstore"
	"github.com/codesearch-core/codesearch/pkg/embedder"
	"github.com/codesearch-core/codesearch/pkg/reranker"
)

func newTestService(t *testing.T) (*Service, *metadatastore.FakeStore, *vectorstore.FakeStore, string) {
	t.Helper()
	meta := metadatastore.NewFakeStore()
	vectors := vectorstore.NewFakeStore()
	graph := graphstore.NewFakeStore()
	emb := embedder.NewMockEmbedder(8)

	svc := NewService(meta, vectors, graph, emb, reranker.NewMockReranker())

	ctx := context.Background()
	repoID, err := meta.EnsureRepository(ctx, "/repo", "repo_coll", "/repo")
	if err != nil {
		t.Fatalf("EnsureRepository: %v", err)
	}
	if err := vectors.EnsureCollection(ctx, "repo_coll", emb.Dimension()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	return svc, meta, vectors, repoID
}

func seedEntity(t *testing.T, ctx context.Context, svc *Service, meta *metadatastore.FakeStore, vectors *vectorstore.FakeStore, repoID, entityID, name, content string) {
	t.Helper()
	e := entity.CodeEntity{
		EntityID:      entityID,
		EntityType:    entity.EntityTypeFunction,
		Language:      entity.LanguageGo,
		FilePath:      "main.go",
		Name:          name,
		QualifiedName: "pkg." + name,
		Content:       content,
	}

	text := embedder.BuildEmbeddingText(e)
	dense, err := svc.Embeddings.EmbedDocuments(ctx, []string{text})
	if err != nil {
		t.Fatalf("EmbedDocuments: %v", err)
	}
	termFreqs, docLen := vectorstore.TermFreqs(text)
	sparse := vectorstore.BuildSparseVector(termFreqs, docLen, 10)

	if err := meta.StoreEntitiesWithOutboxBatch(ctx, repoID, []metadatastore.EntityWrite{{
		Entity:    e,
		Embedding: dense[0],
		Operation: metadatastore.OpInsert,
		PointID:   entityID,
	}}); err != nil {
		t.Fatalf("StoreEntitiesWithOutboxBatch: %v", err)
	}

	sparseTerms := make([]vectorstore.SparseTerm, len(sparse))
	copy(sparseTerms, sparse)
	if err := vectors.UpsertPoints(ctx, "repo_coll", []vectorstore.Point{{
		PointID:       entityID,
		EntityID:      entityID,
		RepositoryID:  repoID,
		QualifiedName: e.QualifiedName,
		Name:          e.Name,
		EntityType:    string(e.EntityType),
		Language:      string(e.Language),
		FilePath:      e.FilePath,
		Dense:         dense[0],
		Sparse:        sparseTerms,
	}}); err != nil {
		t.Fatalf("UpsertPoints: %v", err)
	}
}

func TestSemantic_ReturnsHydratedResults(t *testing.T) {
	ctx := context.Background()
	svc, meta, vectors, repoID := newTestService(t)

	seedEntity(t, ctx, svc, meta, vectors, repoID, "e1", "Greet", "func Greet() { fmt.Println(\"hi\") }")
	seedEntity(t, ctx, svc, meta, vectors, repoID, "e2", "Helper", "func Helper() int { return 1 }")

	results, md, err := svc.Semantic(ctx, SemanticRequest{
		RepositoryID: repoID,
		QueryText:    "Greet",
		Limit:        5,
	})
	if err != nil {
		t.Fatalf("Semantic: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if md.TotalResults != len(results) {
		t.Fatalf("TotalResults = %d, want %d", md.TotalResults, len(results))
	}
	if md.Reranked {
		t.Fatal("expected Reranked = false without rerank options")
	}
	found := false
	for _, r := range results {
		if r.Entity.EntityID == "e1" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected e1 to be hydrated into the result set")
	}
}

func TestSemantic_RerankEnabledMarksResponseReranked(t *testing.T) {
	ctx := context.Background()
	svc, meta, vectors, repoID := newTestService(t)

	seedEntity(t, ctx, svc, meta, vectors, repoID, "e1", "Greet", "func Greet() {}")
	seedEntity(t, ctx, svc, meta, vectors, repoID, "e2", "Helper", "func Helper() {}")

	results, md, err := svc.Semantic(ctx, SemanticRequest{
		RepositoryID: repoID,
		QueryText:    "Greet",
		Limit:        5,
		Rerank:       &RerankOptions{Enabled: true},
	})
	if err != nil {
		t.Fatalf("Semantic: %v", err)
	}
	if !md.Reranked {
		t.Fatal("expected Reranked = true")
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
}

func TestSemantic_FiltersByEntityType(t *testing.T) {
	ctx := context.Background()
	svc, meta, vectors, repoID := newTestService(t)
	seedEntity(t, ctx, svc, meta, vectors, repoID, "e1", "Greet", "func Greet() {}")

	results, _, err := svc.Semantic(ctx, SemanticRequest{
		RepositoryID: repoID,
		QueryText:    "Greet",
		Limit:        5,
		Filters:      vectorstore.Filters{EntityType: string(entity.EntityTypeStruct)},
	})
	if err != nil {
		t.Fatalf("Semantic: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected filter to exclude all results, got %d", len(results))
	}
}

func TestSemantic_UnknownRepositoryErrors(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, _, err := svc.Semantic(context.Background(), SemanticRequest{RepositoryID: "missing", QueryText: "x"})
	if err == nil {
		t.Fatal("expected an error for an unknown repository")
	}
}

func TestUnified_FusesFulltextAndSemanticLegs(t *testing.T) {
	ctx := context.Background()
	svc, meta, vectors, repoID := newTestService(t)
	seedEntity(t, ctx, svc, meta, vectors, repoID, "e1", "Greet", "func Greet() {}")
	seedEntity(t, ctx, svc, meta, vectors, repoID, "e2", "Helper", "func Helper() {}")

	results, md, err := svc.Unified(ctx, UnifiedRequest{
		SemanticRequest: SemanticRequest{RepositoryID: repoID, QueryText: "Greet", Limit: 5},
		EnableFulltext:  true,
		EnableSemantic:  true,
	})
	if err != nil {
		t.Fatalf("Unified: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected fused results")
	}
	if md.TotalResults != len(results) {
		t.Fatalf("TotalResults = %d, want %d", md.TotalResults, len(results))
	}
}

func TestUnified_NoLegsEnabledReturnsEmpty(t *testing.T) {
	svc, _, _, repoID := newTestService(t)
	results, _, err := svc.Unified(context.Background(), UnifiedRequest{
		SemanticRequest: SemanticRequest{RepositoryID: repoID, QueryText: "x"},
	})
	if err != nil {
		t.Fatalf("Unified: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestGraph_AttachesWarningWhenNotReady(t *testing.T) {
	svc, meta, _, repoID := newTestService(t)
	_ = meta.SetGraphReady(context.Background(), repoID, false)

	resp, err := svc.Graph(context.Background(), GraphRequest{
		RepositoryID:  repoID,
		QueryType:     "find_function_callers",
		QualifiedName: "pkg.Greet",
	})
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if resp.Metadata.Warning != GraphIncompleteWarning {
		t.Fatalf("Warning = %q, want %q", resp.Metadata.Warning, GraphIncompleteWarning)
	}
}

func TestGraph_NoWarningWhenReady(t *testing.T) {
	svc, meta, _, repoID := newTestService(t)
	_ = meta.SetGraphReady(context.Background(), repoID, true)

	resp, err := svc.Graph(context.Background(), GraphRequest{
		RepositoryID:  repoID,
		QueryType:     "find_unused_functions",
		Limit:         10,
	})
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if resp.Metadata.Warning != "" {
		t.Fatalf("expected no warning, got %q", resp.Metadata.Warning)
	}
}

func TestGraph_OutOfRangeDepthStillAnswers(t *testing.T) {
	svc, _, _, repoID := newTestService(t)
	resp, err := svc.Graph(context.Background(), GraphRequest{
		RepositoryID:  repoID,
		QueryType:     "find_function_callers",
		QualifiedName: "pkg.Greet",
		MaxDepth:      999,
	})
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if resp == nil {
		t.Fatal("expected a response")
	}
}

func TestGraph_UnknownQueryTypeErrors(t *testing.T) {
	svc, _, _, repoID := newTestService(t)
	_, err := svc.Graph(context.Background(), GraphRequest{RepositoryID: repoID, QueryType: "not_a_real_query"})
	if err == nil {
		t.Fatal("expected an error for an unknown query type")
	}
}

func TestFuseByRRF_PrefersItemsRankedHighInBothLists(t *testing.T) {
	a := []Result{{EntityID: "x"}, {EntityID: "y"}, {EntityID: "z"}}
	b := []Result{{EntityID: "y"}, {EntityID: "x"}, {EntityID: "w"}}

	fused := fuseByRRF([][]Result{a, b}, 60)
	if len(fused) != 4 {
		t.Fatalf("expected 4 distinct entities, got %d", len(fused))
	}
	if fused[0].EntityID != "x" && fused[0].EntityID != "y" {
		t.Fatalf("expected x or y to rank first, got %s", fused[0].EntityID)
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(0, 1, 10); got != 1 {
		t.Fatalf("clamp(0,1,10) = %d, want 1", got)
	}
	if got := clamp(50, 1, 10); got != 10 {
		t.Fatalf("clamp(50,1,10) = %d, want 10", got)
	}
	if got := clamp(5, 1, 10); got != 5 {
		t.Fatalf("clamp(5,1,10) = %d, want 5", got)
	}
}
