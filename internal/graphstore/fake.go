package graphstore

import (
	"context"
	"sync"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// FakeStore is an in-memory Store used by the outbox processor's tests and
// by callers that want a graph store without a SurrealDB instance, the same
// role internal/metadatastore.FakeStore and internal/vectorstore.FakeStore
// play for their packages.
type FakeStore struct {
	mu sync.Mutex

	// nodes is keyed by (repositoryID, entityID).
	nodes map[string]map[string]Node
	// edges is keyed by repositoryID.
	edges map[string][]Edge
	// unresolved is keyed by repositoryID.
	unresolved map[string][]UnresolvedEdge
	nextID     int64
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		nodes:      make(map[string]map[string]Node),
		edges:      make(map[string][]Edge),
		unresolved: make(map[string][]UnresolvedEdge),
	}
}

func (s *FakeStore) Connect(ctx context.Context) error { return nil }
func (s *FakeStore) Close() error                      { return nil }
func (s *FakeStore) Ping(ctx context.Context) error     { return nil }

func (s *FakeStore) UpsertNode(ctx context.Context, node Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo := s.nodes[node.RepositoryID]
	if repo == nil {
		repo = make(map[string]Node)
		s.nodes[node.RepositoryID] = repo
	}
	repo[node.EntityID] = node
	return nil
}

func (s *FakeStore) DeleteNode(ctx context.Context, repositoryID, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes[repositoryID], entityID)

	kept := s.edges[repositoryID][:0]
	for _, e := range s.edges[repositoryID] {
		if e.SourceEntityID != entityID && e.TargetEntityID != entityID {
			kept = append(kept, e)
		}
	}
	s.edges[repositoryID] = kept
	return nil
}

// AttemptEdges resolves each reference's target qualified name against the
// repository's current nodes. A hit creates the edge directly; a miss
// creates the edge pointing at a synthesized External node and buffers an
// UnresolvedEdge for SweepUnresolved to retry later (spec §4.7).
func (s *FakeStore) AttemptEdges(ctx context.Context, repositoryID, sourceEntityID string, refs []entity.SourceReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ref := range refs {
		target, ok := s.findNodeByQualifiedNameLocked(repositoryID, ref.Target)
		if ok {
			s.edges[repositoryID] = append(s.edges[repositoryID], Edge{
				RepositoryID:   repositoryID,
				SourceEntityID: sourceEntityID,
				TargetEntityID: target.EntityID,
				RefType:        ref.RefType,
			})
			continue
		}

		external := s.externalNodeLocked(repositoryID, ref.Target)
		s.edges[repositoryID] = append(s.edges[repositoryID], Edge{
			RepositoryID:   repositoryID,
			SourceEntityID: sourceEntityID,
			TargetEntityID: external.EntityID,
			RefType:        ref.RefType,
		})
		s.nextID++
		s.unresolved[repositoryID] = append(s.unresolved[repositoryID], UnresolvedEdge{
			ID:                  s.nextID,
			RepositoryID:        repositoryID,
			SourceEntityID:      sourceEntityID,
			TargetQualifiedName: ref.Target,
			RefType:             ref.RefType,
		})
	}
	return nil
}

func (s *FakeStore) SweepUnresolved(ctx context.Context, repositoryID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.unresolved[repositoryID]
	var stillUnresolved []UnresolvedEdge

	for _, u := range pending {
		target, ok := s.findNodeByQualifiedNameLocked(repositoryID, u.TargetQualifiedName)
		if !ok {
			stillUnresolved = append(stillUnresolved, u)
			continue
		}
		externalID := externalEntityID(u.TargetQualifiedName)
		edges := s.edges[repositoryID]
		for i, e := range edges {
			if e.SourceEntityID == u.SourceEntityID && e.TargetEntityID == externalID && e.RefType == u.RefType {
				edges[i].TargetEntityID = target.EntityID
			}
		}
	}

	s.unresolved[repositoryID] = stillUnresolved
	return len(stillUnresolved), nil
}

func (s *FakeStore) externalNodeLocked(repositoryID, qualifiedName string) Node {
	id := externalEntityID(qualifiedName)
	repo := s.nodes[repositoryID]
	if repo == nil {
		repo = make(map[string]Node)
		s.nodes[repositoryID] = repo
	}
	if n, ok := repo[id]; ok {
		return n
	}
	n := Node{
		RepositoryID:  repositoryID,
		EntityID:      id,
		QualifiedName: qualifiedName,
		EntityType:    ExternalEntityType,
		Name:          qualifiedName,
	}
	repo[id] = n
	return n
}

func externalEntityID(qualifiedName string) string {
	return "external:" + qualifiedName
}

func (s *FakeStore) findNodeByQualifiedNameLocked(repositoryID, qualifiedName string) (Node, bool) {
	for _, n := range s.nodes[repositoryID] {
		if n.EntityType == ExternalEntityType {
			continue
		}
		if n.QualifiedName == qualifiedName {
			return n, true
		}
	}
	return Node{}, false
}

func (s *FakeStore) snapshotLocked(repositoryID string) snapshot {
	nodes := make([]Node, 0, len(s.nodes[repositoryID]))
	for _, n := range s.nodes[repositoryID] {
		nodes = append(nodes, n)
	}
	return buildSnapshot(nodes, s.edges[repositoryID])
}

func (s *FakeStore) FindFunctionCallers(ctx context.Context, repositoryID, qualifiedName string, maxDepth int) ([]TraversalHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findFunctionCallers(s.snapshotLocked(repositoryID), qualifiedName, maxDepth), nil
}

func (s *FakeStore) FindFunctionCallees(ctx context.Context, repositoryID, qualifiedName string, maxDepth int) ([]TraversalHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findFunctionCallees(s.snapshotLocked(repositoryID), qualifiedName, maxDepth), nil
}

func (s *FakeStore) FindTraitImplementations(ctx context.Context, repositoryID, qualifiedName string) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findTraitImplementations(s.snapshotLocked(repositoryID), qualifiedName), nil
}

func (s *FakeStore) FindClassHierarchy(ctx context.Context, repositoryID, qualifiedName string) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findClassHierarchy(s.snapshotLocked(repositoryID), qualifiedName), nil
}

func (s *FakeStore) FindModuleContents(ctx context.Context, repositoryID, qualifiedName string) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findModuleContents(s.snapshotLocked(repositoryID), qualifiedName), nil
}

func (s *FakeStore) FindModuleDependencies(ctx context.Context, repositoryID, qualifiedName string) ([]ModuleDependency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findModuleDependencies(s.snapshotLocked(repositoryID), qualifiedName), nil
}

func (s *FakeStore) FindUnusedFunctions(ctx context.Context, repositoryID string, limit int) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findUnusedFunctions(s.snapshotLocked(repositoryID), limit), nil
}

func (s *FakeStore) FindCircularDependencies(ctx context.Context, repositoryID string, limit int) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findCircularDependencies(s.snapshotLocked(repositoryID), limit), nil
}

var _ Store = (*FakeStore)(nil)
