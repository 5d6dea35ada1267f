package outbox

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/codesearch-core/codesearch/internal/metadatastore"
)

// Processor drains outbox rows into the vector and graph stores, with
// config.WorkersPerTarget polling tasks per target store (spec §4.5's
// scheduling model).
// Grounded on internal/indexer/indexer.go's processFiles worker-pool shape,
// generalized from a fixed file-channel fan-out to a per-target polling
// loop since the outbox has no fixed input set to fan out over.
type Processor struct {
	store   metadatastore.OutboxStore
	vector  VectorApplier
	graph   GraphApplier
	config  Config
	logger  *slog.Logger
	metrics *Metrics

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewProcessor constructs a Processor. metrics may be nil to disable
// instrumentation (tests typically pass nil).
func NewProcessor(store metadatastore.OutboxStore, vector VectorApplier, graph GraphApplier, cfg Config, logger *slog.Logger, metrics *Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:   store,
		vector:  vector,
		graph:   graph,
		config:  cfg.withDefaults(),
		logger:  logger,
		metrics: metrics,
		stop:    make(chan struct{}),
	}
}

// Start launches config.WorkersPerTarget goroutines per target store. It
// returns immediately; call Stop (or cancel ctx) to shut down.
func (p *Processor) Start(ctx context.Context) {
	for _, target := range []metadatastore.TargetStore{metadatastore.TargetVector, metadatastore.TargetGraph} {
		for i := 0; i < p.config.WorkersPerTarget; i++ {
			p.wg.Add(1)
			go p.runTarget(ctx, target)
		}
	}
}

// Stop signals every worker to finish its current claim and exit, then
// blocks until they have (spec §4.5 "Cancellation").
func (p *Processor) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Processor) runTarget(ctx context.Context, target metadatastore.TargetStore) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.drainOnce(ctx, target)
		}
	}
}

// drainOnce claims one batch and applies it; for a graph-target batch it
// then re-checks the graph-ready gate of every repository the batch touched.
func (p *Processor) drainOnce(ctx context.Context, target metadatastore.TargetStore) {
	start := time.Now()
	entries, err := p.store.ClaimOutboxBatch(ctx, target, p.config.EntriesPerPoll)
	if err != nil {
		p.logger.Warn("claim outbox batch failed", "target_store", target, "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	touched := make(map[string]bool)
	for _, e := range entries {
		touched[e.RepositoryID] = true
		if err := p.apply(ctx, e); err != nil {
			p.scheduleRetry(ctx, e, err)
			continue
		}
		if err := p.store.MarkOutboxDone(ctx, []int64{e.ID}); err != nil {
			p.logger.Error("mark outbox done failed", "id", e.ID, "error", err)
			continue
		}
		p.metrics.incApplied(target, e.Operation)
	}

	if p.metrics != nil {
		p.metrics.DrainTime.WithLabelValues(string(target)).Observe(time.Since(start).Seconds())
	}

	if target == metadatastore.TargetGraph {
		for repoID := range touched {
			p.refreshGraphReady(ctx, repoID)
		}
	}
}

// apply dispatches one outbox row per spec §4.5 step 2.
func (p *Processor) apply(ctx context.Context, e metadatastore.OutboxEntry) error {
	env, err := decodePayload(e.Payload)
	if err != nil {
		return err
	}

	switch e.TargetStore {
	case metadatastore.TargetVector:
		return p.applyVector(ctx, e, env)
	case metadatastore.TargetGraph:
		return p.applyGraph(ctx, e, env)
	default:
		return nil
	}
}

func (p *Processor) applyVector(ctx context.Context, e metadatastore.OutboxEntry, env payloadEnvelope) error {
	collection := p.config.VectorCollectionOf(e.RepositoryID)
	switch e.Operation {
	case metadatastore.OpInsert, metadatastore.OpUpdate:
		return p.vector.UpsertPoint(ctx, collection, env.toVectorPoint())
	case metadatastore.OpDelete:
		return p.vector.DeletePoints(ctx, collection, []string{env.PointID})
	default:
		return nil
	}
}

func (p *Processor) applyGraph(ctx context.Context, e metadatastore.OutboxEntry, env payloadEnvelope) error {
	switch e.Operation {
	case metadatastore.OpInsert:
		if err := p.graph.UpsertNode(ctx, env.toGraphNode()); err != nil {
			return err
		}
		return p.graph.AttemptEdges(ctx, e.RepositoryID, e.EntityID, env.Relationships)
	case metadatastore.OpUpdate:
		if err := p.graph.UpsertNode(ctx, env.toGraphNode()); err != nil {
			return err
		}
		_, err := p.graph.SweepUnresolved(ctx, e.RepositoryID)
		return err
	case metadatastore.OpDelete:
		return p.graph.DeleteNode(ctx, e.RepositoryID, e.EntityID)
	default:
		return nil
	}
}

// scheduleRetry increments the attempt count with exponential backoff and
// jitter, or moves the row to dead after config.MaxRetries (spec §4.5 step 3).
func (p *Processor) scheduleRetry(ctx context.Context, e metadatastore.OutboxEntry, cause error) {
	attempt := e.AttemptCount + 1
	if attempt >= p.config.MaxRetries {
		if err := p.store.MarkOutboxDead(ctx, e.ID, cause.Error()); err != nil {
			p.logger.Error("mark outbox dead failed", "id", e.ID, "error", err)
		}
		p.metrics.incDead(e.TargetStore, e.Operation)
		p.logger.Error("outbox row exhausted retries", "id", e.ID, "target_store", e.TargetStore, "cause", cause)
		return
	}

	delay := backoffDelay(attempt)
	if err := p.store.MarkOutboxRetry(ctx, e.ID, time.Now().Add(delay), cause.Error()); err != nil {
		p.logger.Error("mark outbox retry failed", "id", e.ID, "error", err)
	}
	p.metrics.incFailed(e.TargetStore, e.Operation)
}

func backoffDelay(attempt int) time.Duration {
	base := time.Duration(1<<uint(min(attempt, 6))) * 100 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// refreshGraphReady implements spec §4.5's graph-ready gate: after a drain
// pass leaves no pending rows for repoID and the unresolved-edge sweep
// resolves everything resolvable, graph_ready flips true.
func (p *Processor) refreshGraphReady(ctx context.Context, repoID string) {
	pending, err := p.store.RepositoryHasPendingOutbox(ctx, repoID)
	if err != nil || pending {
		return
	}

	remaining, err := p.graph.SweepUnresolved(ctx, repoID)
	if err != nil {
		p.logger.Warn("unresolved-edge sweep failed", "repository_id", repoID, "error", err)
		return
	}
	if remaining > 0 {
		return
	}

	if err := p.store.SetGraphReady(ctx, repoID, true); err != nil {
		p.logger.Error("set graph ready failed", "repository_id", repoID, "error", err)
	}
}

func (m *Metrics) incApplied(target metadatastore.TargetStore, op metadatastore.Operation) {
	if m == nil {
		return
	}
	m.Applied.WithLabelValues(string(target), string(op)).Inc()
}

func (m *Metrics) incFailed(target metadatastore.TargetStore, op metadatastore.Operation) {
	if m == nil {
		return
	}
	m.Failed.WithLabelValues(string(target), string(op)).Inc()
}

func (m *Metrics) incDead(target metadatastore.TargetStore, op metadatastore.Operation) {
	if m == nil {
		return
	}
	m.Dead.WithLabelValues(string(target), string(op)).Inc()
}
