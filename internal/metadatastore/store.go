// Package metadatastore implements the authoritative metadata store (spec
// §4.4): the only writer-authoritative component in the system. Every other
// store (vector, graph) is written exclusively by the outbox processor
// replaying rows this package appended in the same transaction as the
// metadata write that produced them.
//
// Grounded on the teacher's internal/storage SurrealDBStorage: the
// exists-check-then-CREATE-or-UPDATE pattern, the query/create/update/delete
// helper split, and the versioned-migration schema bootstrap. Unlike the
// teacher, this package talks to SurrealDB in remote mode only — the
// teacher's embedded mode depends on github.com/madeindigio/surrealdb-embedded-golang,
// which its own go.mod resolves via a local filesystem `replace` directive
// and is therefore not a real fetchable module (see DESIGN.md).
package metadatastore

import (
	"context"
	"time"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// Operation is one of the three outbox operation kinds spec §6.1 enumerates.
type Operation string

const (
	OpInsert Operation = "Insert"
	OpUpdate Operation = "Update"
	OpDelete Operation = "Delete"
)

// TargetStore is one of the two derived stores an outbox row is destined for.
type TargetStore string

const (
	TargetVector TargetStore = "Vector"
	TargetGraph  TargetStore = "Graph"
)

// OutboxStatus is the lifecycle state of an outbox row (spec §4.5 step 3).
type OutboxStatus string

const (
	StatusPending OutboxStatus = "pending"
	StatusClaimed OutboxStatus = "claimed"
	StatusDone    OutboxStatus = "done"
	StatusDead    OutboxStatus = "dead"
)

// Repository is one row of the repositories table (spec §6.1).
type Repository struct {
	RepositoryID        string
	Name                string
	Path                string
	CollectionName      string
	LastIndexedCommit   *string
	GraphReady          bool
	BM25AverageDocLen   float64
}

// EntityMetadataRow is one row of entity_metadata (spec §6.1): the
// authoritative record for a single entity, pointed to by its derived-store
// projections via PointID.
type EntityMetadataRow struct {
	RepositoryID     string
	EntityID         string
	PointID          string
	Entity           entity.CodeEntity
	Content          string
	BM25TokenCount   *int
	DeletedAt        *time.Time
}

// EntityMetadataKey is the (point_id, deleted_at) projection
// get_entities_metadata_batch returns per spec §4.4.
type EntityMetadataKey struct {
	PointID   string
	DeletedAt *time.Time
}

// OutboxEntry is one row appended by store_entities_with_outbox_batch or
// mark_entities_deleted_with_outbox (spec §6.1's outbox table).
type OutboxEntry struct {
	ID            int64
	RepositoryID  string
	EntityID      string
	Operation     Operation
	TargetStore   TargetStore
	Payload       map[string]interface{}
	Status        OutboxStatus
	AttemptCount  int
	NextAttemptAt time.Time
	CreatedAt     time.Time
	LastError     string
}

// SparseTerm is one (token_id, weight) pair of a BM25-weighted sparse
// vector, duplicated from internal/vectorstore rather than imported so this
// package's outbox payload stays independent of C6's schema (the same
// narrow-surface rationale internal/outbox's own SparseTerm follows).
type SparseTerm struct {
	TokenID uint32
	Weight  float32
}

// EntityWrite is one element of the batch passed to
// store_entities_with_outbox_batch: an entity plus everything the two
// derived-store outbox rows need to carry (spec §4.4).
type EntityWrite struct {
	Entity      entity.CodeEntity
	Embedding   []float32
	Sparse      []SparseTerm
	Operation   Operation
	PointID     string
	GitCommit   string
}

// FileSnapshot is one row of file_snapshots (spec §6.1).
type FileSnapshot struct {
	RepositoryID string
	FilePath     string
	EntityIDs    []string
	GitCommit    *string
}

// Store is the metadata store's public surface: spec §4.4's six operations
// plus the connection lifecycle every derived-store adapter also exposes
// (grounded on the teacher's Storage interface: Connect/Close/Ping/InitializeSchema).
type Store interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error
	InitializeSchema(ctx context.Context) error

	// EnsureRepository returns the repository_id for path, creating the row
	// (with collection_name and git_root) if it does not already exist.
	EnsureRepository(ctx context.Context, path, collectionName, gitRoot string) (string, error)

	// GetRepository returns repoID's row, used by the search service to
	// resolve its collection_name and by callers reporting indexing state.
	GetRepository(ctx context.Context, repoID string) (*Repository, error)

	// GetEntitiesMetadataBatch returns, for every entity_id present, its
	// (point_id, deleted_at). Entity IDs absent from the map do not exist yet.
	GetEntitiesMetadataBatch(ctx context.Context, repoID string, entityIDs []string) (map[string]EntityMetadataKey, error)

	// GetEntitiesByID returns the full, non-deleted CodeEntity rows for the
	// given entity IDs, in no particular order. Used by the search service
	// (spec §4.10 step 4) to hydrate hybrid-search hits, which only carry
	// entity IDs and scores, into full entity rows.
	GetEntitiesByID(ctx context.Context, repoID string, entityIDs []string) ([]entity.CodeEntity, error)

	// StoreEntitiesWithOutboxBatch upserts metadata rows and appends outbox
	// rows for every derived store in a single transaction. Chunks the
	// batch internally to maxEntitiesPerOperation; empty batches are no-ops.
	StoreEntitiesWithOutboxBatch(ctx context.Context, repoID string, writes []EntityWrite) error

	// MarkEntitiesDeletedWithOutbox sets deleted_at = now for each entity_id
	// and appends a Delete outbox row per derived store.
	MarkEntitiesDeletedWithOutbox(ctx context.Context, repoID string, entityIDs []string) error

	GetFileSnapshot(ctx context.Context, repoID, filePath string) ([]string, error)
	UpdateFileSnapshot(ctx context.Context, repoID, filePath string, entityIDs []string, gitCommit string) error

	IsGraphReady(ctx context.Context, repoID string) (bool, error)
	SetGraphReady(ctx context.Context, repoID string, ready bool) error

	// GetBM25AverageDocLen and SetBM25AverageDocLen maintain the
	// repository-level normalization factor spec §4.6 sparse scoring reads.
	GetBM25AverageDocLen(ctx context.Context, repoID string) (float64, error)
	SetBM25AverageDocLen(ctx context.Context, repoID string, avgdl float64) error
}

// OutboxStore is the subset of Store the outbox processor (C5) drives: claim
// a batch of pending rows for one target store and resolve them. Kept
// separate from Store so C5 depends only on what it needs, not on indexing
// operations.
type OutboxStore interface {
	// ClaimOutboxBatch returns up to n pending rows for target whose
	// next_attempt_at has passed, ordered by id (spec §4.5 step 1).
	ClaimOutboxBatch(ctx context.Context, target TargetStore, n int) ([]OutboxEntry, error)
	MarkOutboxDone(ctx context.Context, ids []int64) error
	MarkOutboxRetry(ctx context.Context, id int64, nextAttemptAt time.Time, lastErr string) error
	MarkOutboxDead(ctx context.Context, id int64, lastErr string) error

	// RepositoryHasPendingOutbox reports whether repoID currently has at
	// least one non-terminal outbox row, used by the graph-ready gate.
	RepositoryHasPendingOutbox(ctx context.Context, repoID string) (bool, error)
}

var (
	_ Store       = (*SurrealDBStore)(nil)
	_ OutboxStore = (*SurrealDBStore)(nil)
	_ Store       = (*FakeStore)(nil)
	_ OutboxStore = (*FakeStore)(nil)
)
