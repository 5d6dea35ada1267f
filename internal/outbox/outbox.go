// Package outbox drains the transactional-outbox rows the metadata store
// (C4) appends into the derived vector and graph stores (spec §4.5). The
// teacher has no equivalent component — remembrances-mcp writes its vector
// and graph projections inline, synchronously, from the same call that
// writes the authoritative row. This package is new code, but built in the
// teacher's idiom: per-target polling workers driven by a ticker,
// context-first signatures, and log/slog. Retry delays are computed
// directly (capped exponential backoff with jitter) rather than through a
// backoff library.
package outbox

import (
	"context"
	"time"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// SparseTerm is one (token_id, weight) pair of a BM25 sparse vector (spec §6.2).
type SparseTerm struct {
	TokenID uint32
	Weight  float32
}

// VectorPoint is the payload a Vector-target Insert/Update applies (spec §6.2).
type VectorPoint struct {
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

// GraphNode is the node model spec §4.7 defines.
type GraphNode struct {
	RepositoryID  string
	EntityID      string
	QualifiedName string
	EntityType    string
	Name          string
	FilePath      string
	StartLine     int
	EndLine       int
	Visibility    string
}

// VectorApplier is the narrow surface the outbox needs from C6, kept local
// to this package (rather than importing internal/vectorstore directly) so
// the processor's tests can supply a fake without depending on C6's schema.
type VectorApplier interface {
	UpsertPoint(ctx context.Context, collection string, point VectorPoint) error
	DeletePoints(ctx context.Context, collection string, pointIDs []string) error
}

// GraphApplier is the narrow surface the outbox needs from C7.
type GraphApplier interface {
	UpsertNode(ctx context.Context, node GraphNode) error
	AttemptEdges(ctx context.Context, repositoryID, sourceEntityID string, refs []entity.SourceReference) error
	SweepUnresolved(ctx context.Context, repositoryID string) (remaining int, err error)
	DeleteNode(ctx context.Context, repositoryID, entityID string) error
}

// Config holds the outbox's tunables (spec §6.5's outbox.* options).
type Config struct {
	PollInterval      time.Duration
	EntriesPerPoll     int
	MaxRetries         int
	DrainTimeout       time.Duration
	WorkersPerTarget   int
	VectorCollectionOf func(repositoryID string) string
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.EntriesPerPoll <= 0 {
		c.EntriesPerPoll = 100
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 8
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 60 * time.Second
	}
	if c.WorkersPerTarget <= 0 {
		c.WorkersPerTarget = 1
	}
	if c.VectorCollectionOf == nil {
		c.VectorCollectionOf = func(repositoryID string) string { return repositoryID }
	}
	return c
}

// payloadEnvelope decodes the map[string]interface{} an outbox row's
// Payload carries (built by metadatastore.outboxPayload) back into typed
// fields, via a JSON round trip (the map was itself produced from a typed
// struct, so this never fails on well-formed rows).
type payloadEnvelope struct {
	EntityID      string                    `json:"entity_id"`
	RepositoryID  string                    `json:"repository_id"`
	QualifiedName string                    `json:"qualified_name"`
	Name          string                    `json:"name"`
	EntityType    string                    `json:"entity_type"`
	Language      string                    `json:"language"`
	FilePath      string                    `json:"file_path"`
	StartLine     int                       `json:"start_line"`
	EndLine       int                       `json:"end_line"`
	Visibility    string                    `json:"visibility"`
	PointID       string                    `json:"point_id"`
	GitCommit     string                    `json:"git_commit"`
	Embedding     []float32                 `json:"embedding"`
	Sparse        []SparseTerm              `json:"sparse"`
	Relationships []entity.SourceReference  `json:"relationships"`
}

func (p payloadEnvelope) toVectorPoint() VectorPoint {
	return VectorPoint{
		PointID:       p.PointID,
		EntityID:      p.EntityID,
		RepositoryID:  p.RepositoryID,
		QualifiedName: p.QualifiedName,
		Name:          p.Name,
		EntityType:    p.EntityType,
		Language:      p.Language,
		FilePath:      p.FilePath,
		StartLine:     p.StartLine,
		EndLine:       p.EndLine,
		Dense:         p.Embedding,
		Sparse:        p.Sparse,
	}
}

func (p payloadEnvelope) toGraphNode() GraphNode {
	return GraphNode{
		RepositoryID:  p.RepositoryID,
		EntityID:      p.EntityID,
		QualifiedName: p.QualifiedName,
		EntityType:    p.EntityType,
		Name:          p.Name,
		FilePath:      p.FilePath,
		StartLine:     p.StartLine,
		EndLine:       p.EndLine,
		Visibility:    p.Visibility,
	}
}

// decodePayload converts a raw outbox payload map to its typed envelope.
func decodePayload(raw map[string]interface{}) (payloadEnvelope, error) {
	var env payloadEnvelope
	if err := roundTripJSON(raw, &env); err != nil {
		return payloadEnvelope{}, err
	}
	return env, nil
}
