package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang/all"
	"github.com/codesearch-core/codesearch/internal/metadatastore"
	"github.com/codesearch-core/codesearch/pkg/embedder"
)

func writeFixture(t *testing.T, dir, relPath, content string) {
	t.Helper()
	full := filepath.Join(dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestIndexer(store metadatastore.Store) *Indexer {
	cfg := DefaultConfig()
	return NewIndexer(store, embedder.NewMockEmbedder(8), all.NewRegistry(), cfg, nil)
}

const fixtureMain = `package main

func Greet(name string) string {
	return helper(name)
}
`

const fixtureHelper = `package main

func helper(name string) string {
	return "hello " + name
}
`

func TestIndexRepository_ExtractsEntitiesAndResolvesCalls(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "main.go", fixtureMain)
	writeFixture(t, dir, "helper.go", fixtureHelper)

	store := metadatastore.NewFakeStore()
	idx := newTestIndexer(store)

	repoID, err := idx.IndexRepository(context.Background(), dir, "test-collection")
	if err != nil {
		t.Fatalf("IndexRepository failed: %v", err)
	}
	if repoID == "" {
		t.Fatal("expected non-empty repository id")
	}

	outbox := store.OutboxSnapshot()
	if len(outbox) == 0 {
		t.Fatal("expected outbox rows to be written")
	}
	for _, row := range outbox {
		if row.Operation != metadatastore.OpInsert {
			t.Errorf("expected Insert on first index, got %s for entity %s", row.Operation, row.EntityID)
		}
	}

	progress := idx.GetProgress(repoID)
	if progress == nil {
		t.Fatal("expected progress to be tracked")
	}
	if progress.Status != StatusCompleted {
		t.Errorf("expected completed status, got %s", progress.Status)
	}
	if progress.FilesTotal != 2 {
		t.Errorf("expected 2 files scanned, got %d", progress.FilesTotal)
	}
	if progress.EntitiesFound == 0 {
		t.Error("expected at least one entity to be found")
	}
}

func TestIndexRepository_RerunOnUnchangedTreeWritesUpdatesNotInserts(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "main.go", fixtureMain)
	writeFixture(t, dir, "helper.go", fixtureHelper)

	store := metadatastore.NewFakeStore()
	idx := newTestIndexer(store)

	if _, err := idx.IndexRepository(context.Background(), dir, "test-collection"); err != nil {
		t.Fatalf("first index failed: %v", err)
	}
	firstCount := len(store.OutboxSnapshot())

	idx2 := newTestIndexer(store)
	if _, err := idx2.IndexRepository(context.Background(), dir, "test-collection"); err != nil {
		t.Fatalf("second index failed: %v", err)
	}
	secondCount := len(store.OutboxSnapshot())

	for _, row := range store.OutboxSnapshot()[firstCount:] {
		if row.Operation != metadatastore.OpUpdate {
			t.Errorf("expected second run's rows to be Update, got %s", row.Operation)
		}
	}
	if secondCount <= firstCount {
		t.Fatalf("expected second run to append Update rows, first=%d second=%d", firstCount, secondCount)
	}
}

func TestIndexRepository_DeletesStaleEntitiesWhenFileShrinks(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "main.go", fixtureMain)
	writeFixture(t, dir, "helper.go", fixtureHelper)

	store := metadatastore.NewFakeStore()
	idx := newTestIndexer(store)

	repoID, err := idx.IndexRepository(context.Background(), dir, "test-collection")
	if err != nil {
		t.Fatalf("first index failed: %v", err)
	}

	snapshotBefore, err := store.GetFileSnapshot(context.Background(), repoID, "helper.go")
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshotBefore) == 0 {
		t.Fatal("expected helper.go to have a non-empty snapshot")
	}

	// Remove the only entity in helper.go.
	writeFixture(t, dir, "helper.go", "package main\n")

	idx2 := newTestIndexer(store)
	if _, err := idx2.IndexRepository(context.Background(), dir, "test-collection"); err != nil {
		t.Fatalf("second index failed: %v", err)
	}

	var sawDelete bool
	for _, row := range store.OutboxSnapshot() {
		if row.Operation == metadatastore.OpDelete {
			sawDelete = true
		}
	}
	if !sawDelete {
		t.Error("expected a Delete outbox row once helper() was removed from helper.go")
	}

	snapshotAfter, err := store.GetFileSnapshot(context.Background(), repoID, "helper.go")
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshotAfter) != 0 {
		t.Errorf("expected helper.go's snapshot to be empty after its entity was removed, got %v", snapshotAfter)
	}
}

// TestIndexRepository_ResurrectedEntityGetsNewPointID covers spec §3.3: "if
// the entity is re-extracted later, a new row replaces the tombstone with a
// new point_id" — a re-extracted entity must not reuse its tombstoned
// point_id.
func TestIndexRepository_ResurrectedEntityGetsNewPointID(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "main.go", fixtureMain)
	writeFixture(t, dir, "helper.go", fixtureHelper)

	store := metadatastore.NewFakeStore()
	idx := newTestIndexer(store)

	repoID, err := idx.IndexRepository(context.Background(), dir, "test-collection")
	if err != nil {
		t.Fatalf("first index failed: %v", err)
	}

	snapshotBefore, err := store.GetFileSnapshot(context.Background(), repoID, "helper.go")
	if err != nil || len(snapshotBefore) == 0 {
		t.Fatalf("expected helper.go snapshot, err=%v snapshot=%v", err, snapshotBefore)
	}
	entityID := snapshotBefore[0]

	before, err := store.GetEntitiesMetadataBatch(context.Background(), repoID, []string{entityID})
	if err != nil {
		t.Fatal(err)
	}
	originalPointID := before[entityID].PointID
	if originalPointID == "" {
		t.Fatal("expected a non-empty original point_id")
	}

	// Shrink the file to tombstone the entity, then restore it so it is
	// re-extracted.
	writeFixture(t, dir, "helper.go", "package main\n")
	idx2 := newTestIndexer(store)
	if _, err := idx2.IndexRepository(context.Background(), dir, "test-collection"); err != nil {
		t.Fatalf("second index failed: %v", err)
	}

	writeFixture(t, dir, "helper.go", fixtureHelper)
	idx3 := newTestIndexer(store)
	if _, err := idx3.IndexRepository(context.Background(), dir, "test-collection"); err != nil {
		t.Fatalf("third index failed: %v", err)
	}

	after, err := store.GetEntitiesMetadataBatch(context.Background(), repoID, []string{entityID})
	if err != nil {
		t.Fatal(err)
	}
	key, ok := after[entityID]
	if !ok {
		t.Fatal("expected the resurrected entity's metadata to be present")
	}
	if key.DeletedAt != nil {
		t.Fatal("expected the resurrected entity to no longer be marked deleted")
	}
	if key.PointID == originalPointID {
		t.Fatalf("expected a fresh point_id for a resurrected entity, got the tombstoned one %q again", key.PointID)
	}
}

func TestNormalizeRelationships_DerivesContainsFromParentScope(t *testing.T) {
	parent := "pkg::Outer"
	allEntities := []entity.CodeEntity{
		{EntityID: "outer", EntityType: entity.EntityTypeStruct, QualifiedName: parent, FilePath: "f.go"},
		{EntityID: "field", EntityType: entity.EntityTypeProperty, QualifiedName: "pkg::Outer::field", ParentScope: &parent, FilePath: "f.go"},
	}
	idx := newTestIndexer(metadatastore.NewFakeStore())
	idx.normalizeRelationships(allEntities, []extractedFile{{path: "f.go", entities: allEntities}})

	if len(allEntities[0].Relationships.Contains) != 1 {
		t.Fatalf("expected outer to contain 1 member, got %+v", allEntities[0].Relationships.Contains)
	}
	if got := allEntities[0].Relationships.Contains[0].Target; got != "pkg::Outer::field" {
		t.Fatalf("Contains target = %q, want pkg::Outer::field", got)
	}
	if got := allEntities[0].Relationships.Contains[0].RefType; got != entity.RefContains {
		t.Fatalf("RefType = %q, want Contains", got)
	}
}

// TestNewIndexer_MergesConfiguredIgnorePatterns checks that Config.IgnorePatterns
// (spec §6.5 watcher.ignore_patterns) actually reaches the scanner's exclude
// list, not just the teacher's hardcoded defaults.
func TestNewIndexer_MergesConfiguredIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "main.go", fixtureMain)
	writeFixture(t, dir, "vendor_custom/helper.go", fixtureHelper)

	cfg := DefaultConfig()
	cfg.IgnorePatterns = []string{"vendor_custom"}
	idx := NewIndexer(metadatastore.NewFakeStore(), embedder.NewMockEmbedder(8), all.NewRegistry(), cfg, nil)

	repoID, err := idx.IndexRepository(context.Background(), dir, "test-collection")
	if err != nil {
		t.Fatalf("IndexRepository failed: %v", err)
	}
	progress := idx.GetProgress(repoID)
	if progress.FilesTotal != 1 {
		t.Fatalf("expected vendor_custom/helper.go to be excluded, scanned %d files", progress.FilesTotal)
	}
}

func TestDedupeLastWins(t *testing.T) {
	// Two CodeEntity values sharing an EntityID but differing in content;
	// the later one in slice order must survive.
	entities := []entity.CodeEntity{
		{EntityID: "e1", Content: "first"},
		{EntityID: "e1", Content: "second"},
		{EntityID: "e2", Content: "third"},
	}

	out := dedupeLastWins(entities)
	if len(out) != 2 {
		t.Fatalf("expected 2 deduped entities, got %d", len(out))
	}
	byID := make(map[string]string)
	for _, e := range out {
		byID[e.EntityID] = e.Content
	}
	if byID["e1"] != "second" {
		t.Errorf("expected last-wins content %q, got %q", "second", byID["e1"])
	}
}

func TestSubtract(t *testing.T) {
	old := []string{"a", "b", "c"}
	cur := []string{"b", "c", "d"}
	stale := subtract(old, cur)
	if len(stale) != 1 || stale[0] != "a" {
		t.Errorf("expected [a], got %v", stale)
	}
}
