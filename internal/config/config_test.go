package config

import "testing"

func TestValidate_RejectsUnknownEmbeddingsProvider(t *testing.T) {
	cfg := &Config{
		Storage:    StorageConfig{SurrealDBURL: "ws://localhost:8000"},
		Embeddings: EmbeddingsConfig{Provider: "nonexistent"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unknown embeddings provider")
	}
}

func TestValidate_RequiresAPIBaseURLForLocalAPIProvider(t *testing.T) {
	cfg := &Config{
		Storage:    StorageConfig{SurrealDBURL: "ws://localhost:8000"},
		Embeddings: EmbeddingsConfig{Provider: "local-api"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when embeddings.api-base-url is empty")
	}
}

func TestValidate_RequiresSurrealDBURL(t *testing.T) {
	cfg := &Config{
		Embeddings: EmbeddingsConfig{Provider: "mock"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when storage.surrealdb-url is empty")
	}
}

func TestValidate_AcceptsMockProviderWithoutAPIBaseURL(t *testing.T) {
	cfg := &Config{
		Storage:    StorageConfig{SurrealDBURL: "ws://localhost:8000"},
		Embeddings: EmbeddingsConfig{Provider: "mock"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_RejectsUnknownRerankingProviderOnlyWhenEnabled(t *testing.T) {
	cfg := &Config{
		Storage:    StorageConfig{SurrealDBURL: "ws://localhost:8000"},
		Embeddings: EmbeddingsConfig{Provider: "mock"},
		Reranking:  RerankingConfig{Enabled: false, Provider: "nonexistent"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v, want nil since reranking is disabled", err)
	}

	cfg.Reranking.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unknown reranking provider once enabled")
	}
}

func TestApplyDefaults_FillsZeroValuedTunables(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Storage.MaxEntitiesPerDBOperation != 500 {
		t.Errorf("MaxEntitiesPerDBOperation = %d, want 500", cfg.Storage.MaxEntitiesPerDBOperation)
	}
	if cfg.Embeddings.Provider != "local-api" {
		t.Errorf("Embeddings.Provider = %q, want %q", cfg.Embeddings.Provider, "local-api")
	}
	if cfg.Outbox.PollIntervalMs != 250 {
		t.Errorf("Outbox.PollIntervalMs = %d, want 250", cfg.Outbox.PollIntervalMs)
	}
	if cfg.Watcher.DebounceMs != 500 {
		t.Errorf("Watcher.DebounceMs = %d, want 500", cfg.Watcher.DebounceMs)
	}
	if len(cfg.Watcher.MainBranches) != 2 {
		t.Errorf("Watcher.MainBranches = %v, want 2 defaults", cfg.Watcher.MainBranches)
	}
	if cfg.Indexer.EntitiesPerEmbeddingBatch != 64 {
		t.Errorf("Indexer.EntitiesPerEmbeddingBatch = %d, want 64", cfg.Indexer.EntitiesPerEmbeddingBatch)
	}
}

func TestDurationHelpers_ConvertFromConfiguredUnits(t *testing.T) {
	cfg := &Config{
		Outbox:    OutboxConfig{PollIntervalMs: 250, DrainTimeoutSecs: 60},
		Watcher:   WatcherConfig{DebounceMs: 500, MainBranchPollIntervalSecs: 30, MaxWaitMs: 2000},
		Reranking: RerankingConfig{TimeoutSecs: 10},
	}

	if got := cfg.OutboxPollInterval(); got.Milliseconds() != 250 {
		t.Errorf("OutboxPollInterval = %v, want 250ms", got)
	}
	if got := cfg.OutboxDrainTimeout(); got.Seconds() != 60 {
		t.Errorf("OutboxDrainTimeout = %v, want 60s", got)
	}
	if got := cfg.WatcherDebounce(); got.Milliseconds() != 500 {
		t.Errorf("WatcherDebounce = %v, want 500ms", got)
	}
	if got := cfg.WatcherMainBranchPollInterval(); got.Seconds() != 30 {
		t.Errorf("WatcherMainBranchPollInterval = %v, want 30s", got)
	}
	if got := cfg.RerankingTimeout(); got.Seconds() != 10 {
		t.Errorf("RerankingTimeout = %v, want 10s", got)
	}
	if got := cfg.WatcherMaxBatchWait(); got.Milliseconds() != 2000 {
		t.Errorf("WatcherMaxBatchWait = %v, want 2000ms", got)
	}
}
