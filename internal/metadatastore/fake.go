package metadatastore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/google/uuid"
)

// FakeStore is an in-memory Store + OutboxStore used by every other
// package's tests (outbox, indexer, search) so they can exercise the
// transactional-outbox contract without a running SurrealDB instance.
// Grounded on the teacher's style of keeping tests dependency-free (the
// teacher has no equivalent fake; this is new code needed because C4's
// consumers must be testable without the toolchain driving a real database).
type FakeStore struct {
	mu sync.Mutex

	repositories map[string]*Repository
	byPath       map[string]string // path -> repository_id

	metadata map[string]map[string]*EntityMetadataRow // repo_id -> entity_id -> row
	snapshots map[string]map[string]FileSnapshot       // repo_id -> file_path -> snapshot

	outbox   []*OutboxEntry
	nextID   int64
}

// NewFakeStore returns an empty FakeStore ready for use.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		repositories: make(map[string]*Repository),
		byPath:       make(map[string]string),
		metadata:     make(map[string]map[string]*EntityMetadataRow),
		snapshots:    make(map[string]map[string]FileSnapshot),
	}
}

func (f *FakeStore) Connect(ctx context.Context) error        { return nil }
func (f *FakeStore) Close() error                              { return nil }
func (f *FakeStore) Ping(ctx context.Context) error             { return nil }
func (f *FakeStore) InitializeSchema(ctx context.Context) error { return nil }

func (f *FakeStore) EnsureRepository(ctx context.Context, path, collectionName, gitRoot string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.byPath[path]; ok {
		return id, nil
	}
	id := uuid.NewString()
	f.repositories[id] = &Repository{
		RepositoryID:   id,
		Name:           collectionName,
		Path:           path,
		CollectionName: collectionName,
	}
	f.byPath[path] = id
	f.metadata[id] = make(map[string]*EntityMetadataRow)
	f.snapshots[id] = make(map[string]FileSnapshot)
	return id, nil
}

func (f *FakeStore) GetRepository(ctx context.Context, repoID string) (*Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repositories[repoID]
	if !ok {
		return nil, fmt.Errorf("repository %q not found", repoID)
	}
	cp := *repo
	return &cp, nil
}

func (f *FakeStore) GetEntitiesMetadataBatch(ctx context.Context, repoID string, entityIDs []string) (map[string]EntityMetadataKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]EntityMetadataKey)
	rows := f.metadata[repoID]
	for _, id := range entityIDs {
		if row, ok := rows[id]; ok {
			out[id] = EntityMetadataKey{PointID: row.PointID, DeletedAt: row.DeletedAt}
		}
	}
	return out, nil
}

func (f *FakeStore) GetEntitiesByID(ctx context.Context, repoID string, entityIDs []string) ([]entity.CodeEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []entity.CodeEntity
	rows := f.metadata[repoID]
	for _, id := range entityIDs {
		row, ok := rows[id]
		if !ok || row.DeletedAt != nil {
			continue
		}
		out = append(out, row.Entity)
	}
	return out, nil
}

func (f *FakeStore) StoreEntitiesWithOutboxBatch(ctx context.Context, repoID string, writes []EntityWrite) error {
	if len(writes) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := f.metadata[repoID]
	if rows == nil {
		rows = make(map[string]*EntityMetadataRow)
		f.metadata[repoID] = rows
	}

	deduped := dedupeByEntityID(writes)
	for _, w := range deduped {
		rows[w.Entity.EntityID] = &EntityMetadataRow{
			RepositoryID: repoID,
			EntityID:     w.Entity.EntityID,
			PointID:      w.PointID,
			Entity:       w.Entity,
			Content:      w.Entity.Content,
		}
		for _, target := range []TargetStore{TargetVector, TargetGraph} {
			f.nextID++
			f.outbox = append(f.outbox, &OutboxEntry{
				ID:            f.nextID,
				RepositoryID:  repoID,
				EntityID:      w.Entity.EntityID,
				Operation:     w.Operation,
				TargetStore:   target,
				Payload:       outboxPayload(repoID, w),
				Status:        StatusPending,
				NextAttemptAt: time.Now(),
				CreatedAt:     time.Now(),
			})
		}
	}
	if repo, ok := f.repositories[repoID]; ok {
		repo.GraphReady = false
	}
	return nil
}

func (f *FakeStore) MarkEntitiesDeletedWithOutbox(ctx context.Context, repoID string, entityIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := f.metadata[repoID]
	for _, id := range entityIDs {
		row, ok := rows[id]
		if !ok || row.DeletedAt != nil {
			continue
		}
		now := time.Now()
		row.DeletedAt = &now
		for _, target := range []TargetStore{TargetVector, TargetGraph} {
			f.nextID++
			f.outbox = append(f.outbox, &OutboxEntry{
				ID:           f.nextID,
				RepositoryID: repoID,
				EntityID:     id,
				Operation:    OpDelete,
				TargetStore:  target,
				Payload: map[string]interface{}{
					"entity_id": id, "repository_id": repoID, "point_id": row.PointID,
				},
				Status:        StatusPending,
				NextAttemptAt: now,
				CreatedAt:     now,
			})
		}
	}
	return nil
}

func (f *FakeStore) GetFileSnapshot(ctx context.Context, repoID, filePath string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snapshots[repoID][filePath]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), snap.EntityIDs...), nil
}

func (f *FakeStore) UpdateFileSnapshot(ctx context.Context, repoID, filePath string, entityIDs []string, gitCommit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.snapshots[repoID]
	if m == nil {
		m = make(map[string]FileSnapshot)
		f.snapshots[repoID] = m
	}
	commit := gitCommit
	m[filePath] = FileSnapshot{
		RepositoryID: repoID,
		FilePath:     filePath,
		EntityIDs:    append([]string(nil), entityIDs...),
		GitCommit:    &commit,
	}
	return nil
}

func (f *FakeStore) IsGraphReady(ctx context.Context, repoID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repositories[repoID]
	if !ok {
		return false, nil
	}
	return repo.GraphReady, nil
}

func (f *FakeStore) SetGraphReady(ctx context.Context, repoID string, ready bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repo, ok := f.repositories[repoID]; ok {
		repo.GraphReady = ready
	}
	return nil
}

func (f *FakeStore) GetBM25AverageDocLen(ctx context.Context, repoID string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repo, ok := f.repositories[repoID]; ok {
		return repo.BM25AverageDocLen, nil
	}
	return 0, nil
}

func (f *FakeStore) SetBM25AverageDocLen(ctx context.Context, repoID string, avgdl float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if repo, ok := f.repositories[repoID]; ok {
		repo.BM25AverageDocLen = avgdl
	}
	return nil
}

func (f *FakeStore) ClaimOutboxBatch(ctx context.Context, target TargetStore, n int) ([]OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var claimable []*OutboxEntry
	now := time.Now()
	for _, e := range f.outbox {
		if e.TargetStore == target && e.Status == StatusPending && !e.NextAttemptAt.After(now) {
			claimable = append(claimable, e)
		}
	}
	sort.Slice(claimable, func(i, j int) bool { return claimable[i].ID < claimable[j].ID })
	if len(claimable) > n {
		claimable = claimable[:n]
	}

	out := make([]OutboxEntry, 0, len(claimable))
	for _, e := range claimable {
		e.Status = StatusClaimed
		out = append(out, *e)
	}
	return out, nil
}

func (f *FakeStore) MarkOutboxDone(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idSet := make(map[int64]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	for _, e := range f.outbox {
		if idSet[e.ID] {
			e.Status = StatusDone
		}
	}
	return nil
}

func (f *FakeStore) MarkOutboxRetry(ctx context.Context, id int64, nextAttemptAt time.Time, lastErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.outbox {
		if e.ID == id {
			e.Status = StatusPending
			e.AttemptCount++
			e.NextAttemptAt = nextAttemptAt
			e.LastError = lastErr
			return nil
		}
	}
	return nil
}

func (f *FakeStore) MarkOutboxDead(ctx context.Context, id int64, lastErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.outbox {
		if e.ID == id {
			e.Status = StatusDead
			e.LastError = lastErr
			return nil
		}
	}
	return nil
}

func (f *FakeStore) RepositoryHasPendingOutbox(ctx context.Context, repoID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.outbox {
		if e.RepositoryID == repoID && (e.Status == StatusPending || e.Status == StatusClaimed) {
			return true, nil
		}
	}
	return false, nil
}

// OutboxSnapshot returns a copy of every outbox row, for assertions in tests
// belonging to other packages.
func (f *FakeStore) OutboxSnapshot() []OutboxEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]OutboxEntry, len(f.outbox))
	for i, e := range f.outbox {
		out[i] = *e
	}
	return out
}
