// Package indexer implements C8: the orchestrator that drives full and
// incremental indexing (spec §4.8). Grounded on the teacher's
// internal/indexer/indexer.go (IndexProject/processFiles/
// processFileWithParser), restructured from its direct symbol-upsert model
// to this module's entity+outbox model: instead of writing tree-sitter
// symbols straight into storage, a run extracts entities, resolves their
// references against the whole repository, batches them for embedding, and
// calls the metadata store's single outbox-writing transaction per batch.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/errs"
	"github.com/codesearch-core/codesearch/internal/lang"
	"github.com/codesearch-core/codesearch/internal/metadatastore"
	"github.com/codesearch-core/codesearch/internal/resolve"
	"github.com/codesearch-core/codesearch/internal/vectorstore"
	"github.com/codesearch-core/codesearch/pkg/embedder"
	"github.com/google/uuid"
)

// Indexer is the main indexing service.
type Indexer struct {
	store    metadatastore.Store
	embedder embedder.Embedder
	registry *lang.Registry
	config   Config
	logger   *slog.Logger

	mu       sync.RWMutex
	progress map[string]*Progress
}

// NewIndexer creates a new indexer instance.
func NewIndexer(store metadatastore.Store, emb embedder.Embedder, registry *lang.Registry, config Config, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Scanner == nil {
		config.Scanner = NewFileScanner()
	}
	if len(config.IgnorePatterns) > 0 {
		config.Scanner.MergeExcludePatterns(config.IgnorePatterns)
	}
	return &Indexer{
		store:    store,
		embedder: emb,
		registry: registry,
		config:   config,
		logger:   logger,
		progress: make(map[string]*Progress),
	}
}

// extractedFile is one file's extraction output, carried from the
// extraction phase into the resolve and store phases.
type extractedFile struct {
	path     string
	entities []entity.CodeEntity
	err      error
}

// IndexRepository runs a full index of repoPath (spec §4.8 "Full index").
// Entity IDs are derived solely from source text, so running it twice on an
// unchanged tree writes no Insert and no Delete outbox rows. Unchanged
// entities are not skipped: the second run writes Update outbox rows (one
// per target store) for every entity that is still present.
func (idx *Indexer) IndexRepository(ctx context.Context, repoPath, collectionName string) (string, error) {
	return idx.run(ctx, repoPath, collectionName, nil)
}

// IndexFiles re-runs the §4.8 pipeline for a changed-file subset (spec
// §4.9's "same per-file pipeline as §4.8"): it re-extracts and resolves
// references across the whole repository, since a changed file's callers
// elsewhere in the tree must still resolve against it, but only writes
// entity batches and snapshot reconciliation for the files named in
// relPaths. Entries of relPaths that no longer exist on disk are treated as
// deletions: their prior snapshot's entities are marked deleted and their
// snapshot is cleared.
func (idx *Indexer) IndexFiles(ctx context.Context, repoPath, collectionName string, relPaths []string) (string, error) {
	return idx.run(ctx, repoPath, collectionName, relPaths)
}

// run is shared by IndexRepository and IndexFiles. changedFiles == nil
// means "every scanned file", i.e. a full index.
func (idx *Indexer) run(ctx context.Context, repoPath, collectionName string, changedFiles []string) (string, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return "", fmt.Errorf("invalid repository path: %w", err)
	}

	repoID, err := idx.store.EnsureRepository(ctx, absPath, collectionName, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to ensure repository: %w", err)
	}

	idx.initProgress(repoID)

	scanResult, err := idx.config.Scanner.Scan(absPath)
	if err != nil {
		idx.setError(repoID, err)
		return repoID, fmt.Errorf("failed to scan repository: %w", err)
	}
	idx.updateProgress(repoID, func(p *Progress) { p.FilesTotal = scanResult.TotalFiles })

	gitCommit := currentGitCommit(absPath)

	extracted := idx.extractFiles(ctx, repoID, scanResult.Files)
	allEntities, byFile := flattenExtracted(extracted)

	idx.normalizeRelationships(allEntities, extracted)

	if err := idx.refreshAverageDocLen(ctx, repoID, allEntities); err != nil {
		idx.logger.Warn("failed to refresh bm25 average doc length", "repository_id", repoID, "error", err)
	}
	avgdl, err := idx.store.GetBM25AverageDocLen(ctx, repoID)
	if err != nil {
		idx.logger.Warn("failed to read bm25 average doc length, defaulting to 0", "repository_id", repoID, "error", err)
	}

	writeEntities, writeByFile := allEntities, byFile
	if changedFiles != nil {
		writeEntities, writeByFile = scopeToFiles(allEntities, byFile, changedFiles)
	}

	if err := idx.storeEntityBatches(ctx, repoID, writeEntities, gitCommit, avgdl); err != nil {
		idx.setError(repoID, err)
		return repoID, fmt.Errorf("failed to store entity batches: %w", err)
	}

	if err := idx.reconcileFileSnapshots(ctx, repoID, writeByFile, gitCommit); err != nil {
		idx.logger.Warn("failed to reconcile file snapshots", "repository_id", repoID, "error", err)
	}

	idx.updateProgress(repoID, func(p *Progress) { p.Status = StatusCompleted })
	return repoID, nil
}

// scopeToFiles narrows allEntities/byFile to the files named in
// changedFiles, keeping files that no longer exist on disk (and so have no
// byFile entry) as an explicit empty set so reconcileFileSnapshots deletes
// their stale entities instead of leaving them orphaned.
func scopeToFiles(allEntities []entity.CodeEntity, byFile map[string][]string, changedFiles []string) ([]entity.CodeEntity, map[string][]string) {
	wanted := make(map[string]bool, len(changedFiles))
	for _, p := range changedFiles {
		wanted[p] = true
	}

	scopedByFile := make(map[string][]string, len(changedFiles))
	for _, p := range changedFiles {
		scopedByFile[p] = byFile[p] // nil for files that no longer exist
	}

	scopedEntities := make([]entity.CodeEntity, 0, len(allEntities))
	for _, e := range allEntities {
		if wanted[e.FilePath] {
			scopedEntities = append(scopedEntities, e)
		}
	}
	return scopedEntities, scopedByFile
}

// extractFiles runs per-file extraction concurrently, bounded by
// config.MaxConcurrentFileExtractions. Each worker owns its own *lang.Parser
// since a *sitter.Parser is not safe for concurrent use across goroutines
// (the same reason the teacher's processFiles gives each worker its own
// *treesitter.Parser).
func (idx *Indexer) extractFiles(ctx context.Context, repoID string, files []ScannedFile) []extractedFile {
	results := make([]extractedFile, len(files))
	fileChan := make(chan int, len(files))
	for i := range files {
		fileChan <- i
	}
	close(fileChan)

	concurrency := idx.config.MaxConcurrentFileExtractions
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			parser := lang.NewParser()
			defer parser.Close()
			for i := range fileChan {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				f := files[i]
				idx.updateProgress(repoID, func(p *Progress) { p.CurrentFile = f.RelPath })
				ents, err := idx.extractOneFile(gctx, repoID, f, parser)
				results[i] = extractedFile{path: f.RelPath, entities: ents, err: err}
				if err != nil {
					idx.logger.Warn("failed to extract file", "file", f.RelPath, "error", err)
				}
				idx.updateProgress(repoID, func(p *Progress) {
					p.FilesIndexed++
					p.EntitiesFound += len(ents)
				})
			}
			return nil
		})
	}
	// context cancellation from one worker does not abort extraction of
	// files already queued to others; extraction errors are per-file
	// (spec §7 "Extraction: Skipped per match; other matches continue").
	_ = g.Wait()
	return results
}

func (idx *Indexer) extractOneFile(ctx context.Context, repoID string, f ScannedFile, parser *lang.Parser) ([]entity.CodeEntity, error) {
	source, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "readFile", err)
	}

	tree, err := parser.Parse(ctx, source, f.Language)
	if err != nil {
		return nil, errs.Wrap(errs.Parse, "parse", err)
	}

	fc := lang.FileContext{
		Source:       source,
		FilePath:     f.RelPath,
		RepositoryID: repoID,
		SourceRoot:   "",
		Language:     f.Language,
	}
	ents, err := idx.registry.ExtractFile(ctx, fc, f.Language, tree)
	if err != nil {
		return nil, errs.Wrap(errs.Extraction, "extractFile", err)
	}
	return ents, nil
}

// normalizeRelationships runs cross-file resolution (internal/resolve's six
// ordered strategies) over every reference in allEntities, rewriting
// resolved targets to their entity's qualified name so the lighter
// qualified-name-exact-match resolution internal/graphstore performs at
// outbox-sync time (a second, cheaper convergence pass per spec §4.3's "two
// phases: intra-file during extraction, cross-file during outbox Graph
// sync") always has an already-normalized target to match against. Genuinely
// external references are left as their raw written text, which graphstore
// represents with its external-node placeholder.
func (idx *Indexer) normalizeRelationships(allEntities []entity.CodeEntity, extracted []extractedFile) {
	resolver := resolve.NewResolver(idx.logger)
	resolver.BuildIndex(allEntities)

	qualifiedByID := make(map[string]string, len(allEntities))
	for _, e := range allEntities {
		qualifiedByID[e.EntityID] = e.QualifiedName
	}

	for _, f := range extracted {
		if f.err != nil {
			continue
		}
		im := resolve.NewImportMap()
		for _, e := range f.entities {
			for _, ref := range e.Relationships.Imports {
				im.AddImport("", ref.Target)
			}
		}
		resolver.SetImportMap(f.path, im)
	}

	byID := make(map[string]*entity.CodeEntity, len(allEntities))
	for i := range allEntities {
		byID[allEntities[i].EntityID] = &allEntities[i]
	}
	for _, e := range byID {
		e.Relationships.Calls = resolveRefs(resolver, e.Relationships.Calls, e.FilePath, qualifiedByID)
		e.Relationships.UsesTypes = resolveRefs(resolver, e.Relationships.UsesTypes, e.FilePath, qualifiedByID)
	}

	idByQualified := make(map[string]string, len(allEntities))
	for _, e := range allEntities {
		idByQualified[e.QualifiedName] = e.EntityID
	}
	for _, e := range byID {
		if e.ParentScope == nil {
			continue
		}
		parentID, ok := idByQualified[*e.ParentScope]
		if !ok || parentID == e.EntityID {
			continue
		}
		parent, ok := byID[parentID]
		if !ok {
			continue
		}
		parent.Relationships.Contains = append(parent.Relationships.Contains,
			entity.NewSourceReference(e.QualifiedName, entity.RefContains, e.Location))
	}
}

func resolveRefs(resolver *resolve.Resolver, refs []entity.SourceReference, filePath string, qualifiedByID map[string]string) []entity.SourceReference {
	if len(refs) == 0 {
		return refs
	}
	out := make([]entity.SourceReference, len(refs))
	for i, ref := range refs {
		resolved := resolver.Resolve(ref, filePath)
		if !resolved.IsExternal {
			if qn, ok := qualifiedByID[resolved.EntityID]; ok {
				ref.Target = qn
			}
		}
		out[i] = ref
	}
	return out
}

// refreshAverageDocLen recomputes and persists the repository's BM25
// average document length from the entities just extracted (spec §4.6
// "repository's avgdl"), so this run's sparse vectors and any query that
// follows score against up-to-date statistics.
func (idx *Indexer) refreshAverageDocLen(ctx context.Context, repoID string, allEntities []entity.CodeEntity) error {
	if len(allEntities) == 0 {
		return nil
	}
	var total int
	for _, e := range allEntities {
		_, docLen := vectorstore.TermFreqs(embedder.BuildEmbeddingText(e))
		total += docLen
	}
	avgdl := float64(total) / float64(len(allEntities))
	return idx.store.SetBM25AverageDocLen(ctx, repoID, avgdl)
}

// storeEntityBatches implements spec §4.8 step 3: batch entities across
// files up to EntitiesPerEmbeddingBatch, dedup by entity_id, embed, compute
// sparse vectors, determine Insert vs Update, and write in one transaction
// per batch.
func (idx *Indexer) storeEntityBatches(ctx context.Context, repoID string, allEntities []entity.CodeEntity, gitCommit string, avgdl float64) error {
	batchSize := idx.config.EntitiesPerEmbeddingBatch
	if batchSize <= 0 {
		batchSize = 64
	}
	apiLimit := idx.config.MaxConcurrentAPIRequests
	if apiLimit <= 0 {
		apiLimit = 1
	}
	sem := semaphore.NewWeighted(int64(apiLimit))

	for start := 0; start < len(allEntities); start += batchSize {
		end := start + batchSize
		if end > len(allEntities) {
			end = len(allEntities)
		}
		batch := dedupeLastWins(allEntities[start:end])
		if len(batch) == 0 {
			continue
		}

		ids := make([]string, len(batch))
		for i, e := range batch {
			ids[i] = e.EntityID
		}
		existing, err := idx.store.GetEntitiesMetadataBatch(ctx, repoID, ids)
		if err != nil {
			return fmt.Errorf("failed to fetch existing metadata: %w", err)
		}

		// Embedding calls run concurrently, bounded by sem (spec §5
		// "Embedding providers are shared behind a semaphore capping
		// concurrent requests"); slots preserves batch order so the write
		// set stays deterministic regardless of completion order.
		slots := make([]*metadatastore.EntityWrite, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, e := range batch {
			i, e := i, e
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)

				text := embedder.BuildEmbeddingText(e)
				if ml, ok := idx.embedder.(embedder.MaxSequenceLengther); ok && ml.MaxSequenceLength() > 0 && len(text) > ml.MaxSequenceLength() {
					idx.updateProgress(repoID, func(p *Progress) { p.SkippedBySize++ })
					return nil
				}
				dense, err := idx.embedder.EmbedDocuments(gctx, []string{text})
				if err != nil {
					idx.logger.Warn("failed to embed entity, skipping", "entity_id", e.EntityID, "error", err)
					return nil
				}

				termFreqs, docLen := vectorstore.TermFreqs(text)
				sparse := toMetadataSparse(vectorstore.BuildSparseVector(termFreqs, docLen, avgdl))

				// A resurrected, previously-tombstoned entity always gets a
				// fresh point_id (spec §3.3: "a new row replaces the
				// tombstone"); only a live, non-deleted row's point_id is
				// reused across an Update.
				op := metadatastore.OpInsert
				pointID := uuid.NewString()
				if key, ok := existing[e.EntityID]; ok && key.DeletedAt == nil {
					op = metadatastore.OpUpdate
					pointID = key.PointID
				}

				slots[i] = &metadatastore.EntityWrite{
					Entity:    e,
					Embedding: firstOrNil(dense),
					Sparse:    sparse,
					Operation: op,
					PointID:   pointID,
					GitCommit: gitCommit,
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("failed to embed entity batch: %w", err)
		}

		writes := make([]metadatastore.EntityWrite, 0, len(slots))
		for _, w := range slots {
			if w != nil {
				writes = append(writes, *w)
			}
		}
		if len(writes) == 0 {
			continue
		}
		if err := idx.store.StoreEntitiesWithOutboxBatch(ctx, repoID, writes); err != nil {
			return fmt.Errorf("failed to store entity batch: %w", err)
		}
	}
	return nil
}

// reconcileFileSnapshots implements spec §4.8 step 4: for each file
// processed, compute stale = old_snapshot - new_entity_ids, mark those
// deleted, then update the snapshot to the new set.
func (idx *Indexer) reconcileFileSnapshots(ctx context.Context, repoID string, byFile map[string][]string, gitCommit string) error {
	limit := idx.config.MaxConcurrentSnapshotUpdates
	if limit <= 0 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))
	g, gctx := errgroup.WithContext(ctx)
	for filePath, newIDs := range byFile {
		filePath, newIDs := filePath, newIDs
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			oldIDs, err := idx.store.GetFileSnapshot(gctx, repoID, filePath)
			if err != nil {
				idx.logger.Warn("failed to fetch file snapshot", "file_path", filePath, "error", err)
				return nil
			}
			stale := subtract(oldIDs, newIDs)
			if len(stale) > 0 {
				if err := idx.store.MarkEntitiesDeletedWithOutbox(gctx, repoID, stale); err != nil {
					idx.logger.Warn("failed to mark stale entities deleted", "file_path", filePath, "error", err)
				}
			}
			if err := idx.store.UpdateFileSnapshot(gctx, repoID, filePath, newIDs, gitCommit); err != nil {
				idx.logger.Warn("failed to update file snapshot", "file_path", filePath, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func flattenExtracted(extracted []extractedFile) ([]entity.CodeEntity, map[string][]string) {
	var all []entity.CodeEntity
	byFile := make(map[string][]string)
	for _, f := range extracted {
		if f.err != nil {
			continue
		}
		ids := make([]string, 0, len(f.entities))
		for _, e := range f.entities {
			all = append(all, e)
			ids = append(ids, e.EntityID)
		}
		byFile[f.path] = ids
	}
	return all, byFile
}

func dedupeLastWins(entities []entity.CodeEntity) []entity.CodeEntity {
	last := make(map[string]int, len(entities))
	order := make([]string, 0, len(entities))
	for i, e := range entities {
		if _, seen := last[e.EntityID]; !seen {
			order = append(order, e.EntityID)
		}
		last[e.EntityID] = i
	}
	out := make([]entity.CodeEntity, 0, len(order))
	for _, id := range order {
		out = append(out, entities[last[id]])
	}
	return out
}

func subtract(old, cur []string) []string {
	curSet := make(map[string]bool, len(cur))
	for _, id := range cur {
		curSet[id] = true
	}
	var stale []string
	for _, id := range old {
		if !curSet[id] {
			stale = append(stale, id)
		}
	}
	return stale
}

func toMetadataSparse(terms []vectorstore.SparseTerm) []metadatastore.SparseTerm {
	if terms == nil {
		return nil
	}
	out := make([]metadatastore.SparseTerm, len(terms))
	for i, t := range terms {
		out[i] = metadatastore.SparseTerm{TokenID: t.TokenID, Weight: t.Weight}
	}
	return out
}

func firstOrNil(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	return vectors[0]
}

// currentGitCommit returns repoRoot's HEAD commit, or "" if it is not a git
// repository (indexing a plain directory is not an error).
func currentGitCommit(repoRoot string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
