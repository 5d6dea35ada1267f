package indexer

// Config holds the indexer's batching and concurrency tunables (spec
// §6.5's indexer.* options), grounded on the teacher's IndexerConfig.
type Config struct {
	// MaxConcurrentFileExtractions bounds the per-file extraction worker
	// pool (spec §5 "max_concurrent_file_extractions").
	MaxConcurrentFileExtractions int

	// EntitiesPerEmbeddingBatch is the batch size entities are grouped
	// into for embedding/storage, spanning file boundaries (spec §4.8
	// step 3's max_entity_batch_size).
	EntitiesPerEmbeddingBatch int

	// MaxConcurrentAPIRequests bounds the number of in-flight embedding
	// calls within a batch (spec §5 "Embedding providers are shared behind
	// a semaphore capping concurrent requests").
	MaxConcurrentAPIRequests int

	// MaxConcurrentSnapshotUpdates bounds the number of files whose
	// snapshots are reconciled concurrently (spec §6.5
	// max_concurrent_snapshot_updates).
	MaxConcurrentSnapshotUpdates int

	// IgnorePatterns are user-configured exclude patterns (spec §6.5
	// watcher.ignore_patterns) merged on top of Scanner's defaults.
	IgnorePatterns []string

	// Scanner discovers and filters source files.
	Scanner *FileScanner
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentFileExtractions: 4,
		EntitiesPerEmbeddingBatch:    64,
		MaxConcurrentAPIRequests:     4,
		MaxConcurrentSnapshotUpdates: 4,
		Scanner:                      NewFileScanner(),
	}
}
