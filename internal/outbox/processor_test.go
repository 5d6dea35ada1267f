package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/metadatastore"
	"github.com/codesearch-core/codesearch/internal/outbox"
)

type fakeVector struct {
	mu      sync.Mutex
	upserts []outbox.VectorPoint
	deletes [][]string
	failNext bool
}

func (v *fakeVector) UpsertPoint(ctx context.Context, collection string, point outbox.VectorPoint) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failNext {
		v.failNext = false
		return errors.New("injected vector failure")
	}
	v.upserts = append(v.upserts, point)
	return nil
}

func (v *fakeVector) DeletePoints(ctx context.Context, collection string, pointIDs []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deletes = append(v.deletes, pointIDs)
	return nil
}

type fakeGraph struct {
	mu          sync.Mutex
	nodes       []outbox.GraphNode
	edgeCalls   []string
	sweptRepos  []string
	deletedNode []string
	remaining   int
}

func (g *fakeGraph) UpsertNode(ctx context.Context, node outbox.GraphNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = append(g.nodes, node)
	return nil
}

func (g *fakeGraph) AttemptEdges(ctx context.Context, repositoryID, sourceEntityID string, refs []entity.SourceReference) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edgeCalls = append(g.edgeCalls, sourceEntityID)
	return nil
}

func (g *fakeGraph) SweepUnresolved(ctx context.Context, repositoryID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweptRepos = append(g.sweptRepos, repositoryID)
	return g.remaining, nil
}

func (g *fakeGraph) DeleteNode(ctx context.Context, repositoryID, entityID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletedNode = append(g.deletedNode, entityID)
	return nil
}

func seedWrite(id, qualified string) metadatastore.EntityWrite {
	return metadatastore.EntityWrite{
		Entity: entity.CodeEntity{
			EntityID:      id,
			QualifiedName: qualified,
			Name:          qualified,
			EntityType:    entity.EntityTypeFunction,
			Language:      entity.LanguageGo,
		},
		Embedding: []float32{0.1, 0.2},
		Operation: metadatastore.OpInsert,
		PointID:   "point-" + id,
		GitCommit: "deadbeef",
	}
}

func TestProcessor_DrainsBothTargetsForOneInsert(t *testing.T) {
	store := metadatastore.NewFakeStore()
	ctx := context.Background()
	repoID, err := store.EnsureRepository(ctx, "/repo", "repo-collection", "/repo")
	if err != nil {
		t.Fatalf("EnsureRepository: %v", err)
	}
	if err := store.StoreEntitiesWithOutboxBatch(ctx, repoID, []metadatastore.EntityWrite{seedWrite("e1", "pkg.Foo")}); err != nil {
		t.Fatalf("StoreEntitiesWithOutboxBatch: %v", err)
	}

	vec := &fakeVector{}
	graph := &fakeGraph{}
	cfg := outbox.Config{PollInterval: 5 * time.Millisecond, EntriesPerPoll: 10, MaxRetries: 3, WorkersPerTarget: 1}
	p := outbox.NewProcessor(store, vec, graph, cfg, nil, nil)

	runCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	p.Start(runCtx)

	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		pending, _ := store.RepositoryHasPendingOutbox(ctx, repoID)
		if !pending {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	p.Stop()

	vec.mu.Lock()
	gotUpserts := len(vec.upserts)
	vec.mu.Unlock()
	if gotUpserts != 1 {
		t.Fatalf("expected 1 vector upsert, got %d", gotUpserts)
	}

	graph.mu.Lock()
	gotNodes := len(graph.nodes)
	gotEdgeCalls := len(graph.edgeCalls)
	graph.mu.Unlock()
	if gotNodes != 1 {
		t.Fatalf("expected 1 graph node upsert, got %d", gotNodes)
	}
	if gotEdgeCalls != 1 {
		t.Fatalf("expected AttemptEdges called once, got %d", gotEdgeCalls)
	}

	pending, err := store.RepositoryHasPendingOutbox(ctx, repoID)
	if err != nil {
		t.Fatalf("RepositoryHasPendingOutbox: %v", err)
	}
	if pending {
		t.Fatal("expected outbox fully drained")
	}

	ready, err := store.IsGraphReady(ctx, repoID)
	if err != nil {
		t.Fatalf("IsGraphReady: %v", err)
	}
	if !ready {
		t.Fatal("expected graph_ready true after a clean drain with no unresolved edges")
	}
}

func TestProcessor_GraphNotReadyWhileUnresolvedEdgesRemain(t *testing.T) {
	store := metadatastore.NewFakeStore()
	ctx := context.Background()
	repoID, _ := store.EnsureRepository(ctx, "/repo2", "repo2-collection", "/repo2")
	_ = store.StoreEntitiesWithOutboxBatch(ctx, repoID, []metadatastore.EntityWrite{seedWrite("e2", "pkg.Bar")})

	vec := &fakeVector{}
	graph := &fakeGraph{remaining: 1}
	cfg := outbox.Config{PollInterval: 5 * time.Millisecond, EntriesPerPoll: 10, MaxRetries: 3, WorkersPerTarget: 1}
	p := outbox.NewProcessor(store, vec, graph, cfg, nil, nil)

	runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	p.Start(runCtx)
	time.Sleep(250 * time.Millisecond)
	p.Stop()

	ready, err := store.IsGraphReady(ctx, repoID)
	if err != nil {
		t.Fatalf("IsGraphReady: %v", err)
	}
	if ready {
		t.Fatal("expected graph_ready to stay false while SweepUnresolved reports remaining > 0")
	}
}

func TestProcessor_RetriesThenMarksDeadAfterMaxRetries(t *testing.T) {
	store := metadatastore.NewFakeStore()
	ctx := context.Background()
	repoID, _ := store.EnsureRepository(ctx, "/repo3", "repo3-collection", "/repo3")
	_ = store.StoreEntitiesWithOutboxBatch(ctx, repoID, []metadatastore.EntityWrite{seedWrite("e3", "pkg.Baz")})

	vec := &fakeVector{}
	vec.failNext = true
	graph := &fakeGraph{}
	cfg := outbox.Config{PollInterval: 5 * time.Millisecond, EntriesPerPoll: 10, MaxRetries: 1, WorkersPerTarget: 1}
	p := outbox.NewProcessor(store, vec, graph, cfg, nil, nil)

	runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	p.Start(runCtx)
	time.Sleep(250 * time.Millisecond)
	p.Stop()

	rows := store.OutboxSnapshot()
	var sawDead bool
	for _, row := range rows {
		if row.TargetStore == metadatastore.TargetVector && row.Status == metadatastore.StatusDead {
			sawDead = true
		}
	}
	if !sawDead {
		t.Fatal("expected the failing vector row to end up dead after exhausting its retry budget")
	}
}
