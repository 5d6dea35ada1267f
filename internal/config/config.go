// Package config holds the configuration structures for the codesearch
// indexing and search service.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StorageConfig holds the metadata store's connection and batching settings
// (spec §6.5 storage.*).
type StorageConfig struct {
	SurrealDBURL                string `mapstructure:"surrealdb-url"`
	SurrealDBUser                string `mapstructure:"surrealdb-user"`
	SurrealDBPass                string `mapstructure:"surrealdb-pass"`
	SurrealDBNamespace           string `mapstructure:"surrealdb-namespace"`
	SurrealDBDatabase            string `mapstructure:"surrealdb-database"`
	MaxEntitiesPerDBOperation    int    `mapstructure:"max-entities-per-db-operation"`
}

// EmbeddingsConfig selects and configures the embedding provider (spec §6.5
// embeddings.*).
type EmbeddingsConfig struct {
	Provider   string `mapstructure:"provider"`
	APIBaseURL string `mapstructure:"api-base-url"`
	APIKey     string `mapstructure:"api-key"`
	Model      string `mapstructure:"model"`
	Dimension  int    `mapstructure:"dimension"`
	MaxSeqLen  int    `mapstructure:"max-seq-len"`
}

// RerankingConfig holds the optional reranking pass's settings (spec §6.5
// reranking.*).
type RerankingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Provider    string `mapstructure:"provider"`
	APIBaseURL  string `mapstructure:"api-base-url"`
	APIKey      string `mapstructure:"api-key"`
	Candidates  int    `mapstructure:"candidates"`
	TopK        int    `mapstructure:"top-k"`
	TimeoutSecs int    `mapstructure:"timeout-secs"`
}

// OutboxConfig holds the outbox processor's polling/retry tunables (spec
// §6.5 outbox.*).
type OutboxConfig struct {
	PollIntervalMs   int `mapstructure:"poll-interval-ms"`
	EntriesPerPoll   int `mapstructure:"entries-per-poll"`
	MaxRetries       int `mapstructure:"max-retries"`
	DrainTimeoutSecs int `mapstructure:"drain-timeout-secs"`
	WorkersPerTarget int `mapstructure:"workers-per-target"`
}

// WatcherConfig holds the file watcher's debounce and ignore settings (spec
// §6.5 watcher.*).
type WatcherConfig struct {
	DebounceMs                 int      `mapstructure:"debounce-ms"`
	IgnorePatterns             []string `mapstructure:"ignore-patterns"`
	MainBranchPollIntervalSecs int      `mapstructure:"main-branch-poll-interval-secs"`
	MainBranches               []string `mapstructure:"main-branches"`
	BatchSize                  int      `mapstructure:"batch-size"`
	MaxWaitMs                  int      `mapstructure:"max-wait-ms"`
}

// IndexerConfig holds the full/incremental indexer's batching and
// concurrency settings (spec §6.5 indexer.*).
type IndexerConfig struct {
	FilesPerDiscoveryBatch     int `mapstructure:"files-per-discovery-batch"`
	EntitiesPerEmbeddingBatch  int `mapstructure:"entities-per-embedding-batch"`
	PipelineChannelCapacity    int `mapstructure:"pipeline-channel-capacity"`
	MaxConcurrentFileExtractions int `mapstructure:"max-concurrent-file-extractions"`
	MaxConcurrentSnapshotUpdates int `mapstructure:"max-concurrent-snapshot-updates"`
	MaxConcurrentAPIRequests     int `mapstructure:"max-concurrent-api-requests"`
}

// Config holds the configuration for the codesearch service.
type Config struct {
	// MCPStreamableHTTP enables MCP over Streamable HTTP transport.
	MCPStreamableHTTP         bool   `mapstructure:"mcp-http"`
	MCPStreamableHTTPAddr     string `mapstructure:"mcp-http-addr"`
	MCPStreamableHTTPEndpoint string `mapstructure:"mcp-http-endpoint"`

	HTTP         bool   `mapstructure:"http"`
	HTTPAddr     string `mapstructure:"http-addr"`
	RestAPIServe bool   `mapstructure:"rest-api-serve"`

	Storage    StorageConfig    `mapstructure:"storage"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Reranking  RerankingConfig  `mapstructure:"reranking"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Watcher    WatcherConfig    `mapstructure:"watcher"`
	Indexer    IndexerConfig    `mapstructure:"indexer"`

	LogFile          string `mapstructure:"log"`
	DisableOutputLog bool   `mapstructure:"disable-output-log"`
	DisableCodeWatch bool   `mapstructure:"disable-code-watch"`
}

// Load loads the configuration from CLI flags, a YAML file, and environment
// variables (spec §6.6: a `CODESEARCH_` prefix with `__` as nested
// separator overrides any config key).
func Load() (*Config, error) {
	pflag.String("config", "", "Path to YAML configuration file")

	pflag.Bool("mcp-http", false, "Enable MCP Streamable HTTP transport")
	pflag.String("mcp-http-addr", "3000", "Port or address to bind MCP Streamable HTTP transport")
	pflag.String("mcp-http-endpoint", "/mcp", "HTTP path for the MCP Streamable HTTP endpoint")

	pflag.Bool("http", false, "Enable HTTP JSON API transport")
	pflag.String("http-addr", ":8080", "Address to bind HTTP transport (host:port)")
	pflag.Bool("rest-api-serve", false, "Enable REST API server")

	pflag.String("storage.surrealdb-url", "", "URL for the SurrealDB instance")
	pflag.String("storage.surrealdb-user", "root", "Username for SurrealDB")
	pflag.String("storage.surrealdb-pass", "root", "Password for SurrealDB")
	pflag.String("storage.surrealdb-namespace", "codesearch", "Namespace for SurrealDB")
	pflag.String("storage.surrealdb-database", "codesearch", "Database for SurrealDB")
	pflag.Int("storage.max-entities-per-db-operation", 500, "Chunk size for metadata/outbox batches")

	pflag.String("embeddings.provider", "local-api", "Embedding provider: local-api or mock")
	pflag.String("embeddings.api-base-url", "http://localhost:8081/v1", "Base URL for the embedding API")
	pflag.String("embeddings.api-key", "", "API key for the embedding API (or env EMBEDDING_API_KEY)")
	pflag.String("embeddings.model", "", "Embedding model name")
	pflag.Int("embeddings.dimension", 768, "Embedding vector dimension")
	pflag.Int("embeddings.max-seq-len", 8192, "Maximum sequence length the embedding provider accepts")

	pflag.Bool("reranking.enabled", false, "Enable cross-encoder reranking of search results")
	pflag.String("reranking.provider", "local-api", "Reranking provider: local-api or mock")
	pflag.String("reranking.api-base-url", "http://localhost:8082", "Base URL for the reranking API")
	pflag.String("reranking.api-key", "", "API key for the reranking API")
	pflag.Int("reranking.candidates", 50, "Number of candidates fetched for reranking")
	pflag.Int("reranking.top-k", 10, "Number of reranked results to return")
	pflag.Int("reranking.timeout-secs", 10, "Timeout for the reranking call")

	pflag.Int("outbox.poll-interval-ms", 250, "Outbox poll interval in milliseconds")
	pflag.Int("outbox.entries-per-poll", 100, "Outbox rows claimed per poll, per target store")
	pflag.Int("outbox.max-retries", 8, "Maximum retry attempts before an outbox row is marked dead")
	pflag.Int("outbox.drain-timeout-secs", 60, "Timeout waiting for the outbox to drain on shutdown")
	pflag.Int("outbox.workers-per-target", 1, "Worker goroutines per outbox target store")

	pflag.Int("watcher.debounce-ms", 500, "Filesystem-event debounce window in milliseconds")
	pflag.StringSlice("watcher.ignore-patterns", nil, "Additional glob patterns to ignore, beyond the built-in defaults")
	pflag.Int("watcher.main-branch-poll-interval-secs", 30, "Interval to poll configured main branches for HEAD advancement")
	pflag.StringSlice("watcher.main-branches", []string{"main", "master"}, "Branch names the git-aware catch-up strategy polls")
	pflag.Int("watcher.batch-size", 200, "Maximum number of debounced file events flushed together")
	pflag.Int("watcher.max-wait-ms", 2000, "Maximum time a partial batch of file events waits before flushing")

	pflag.Int("indexer.files-per-discovery-batch", 200, "Files processed per discovery batch")
	pflag.Int("indexer.entities-per-embedding-batch", 64, "Entities embedded per batch")
	pflag.Int("indexer.pipeline-channel-capacity", 256, "Buffer capacity of the file-processing pipeline channel")
	pflag.Int("indexer.max-concurrent-file-extractions", 4, "Maximum concurrent per-file extraction workers")
	pflag.Int("indexer.max-concurrent-snapshot-updates", 4, "Maximum concurrent file-snapshot updates")
	pflag.Int("indexer.max-concurrent-api-requests", 4, "Maximum concurrent embedding API requests")

	pflag.String("log", "", "Path to the log file (logs are written to both stdout and file)")
	pflag.Bool("disable-output-log", false, "Disable logging to stdout/stderr; only write to log file if configured")
	pflag.Bool("disable-code-watch", false, "Disable automatic file watching for indexed repositories")

	flag.Bool("version", false, "Print version and exit")
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	if ver := pflag.Lookup("version"); ver != nil && ver.Value.String() == "true" {
		fmt.Println("codesearch (dev)")
		os.Exit(0)
	}

	v := viper.New()

	configPath := pflag.Lookup("config").Value.String()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if standardPath, ok := standardConfigPath(); ok {
		if _, err := os.Stat(standardPath); err == nil {
			v.SetConfigFile(standardPath)
			if err := v.ReadInConfig(); err == nil {
				slog.Info("using configuration file from standard location", "path", standardPath)
			}
		}
	}

	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, fmt.Errorf("failed to bind pflags: %w", err)
	}

	v.SetEnvPrefix("CODESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "__"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Embeddings.APIKey == "" {
		cfg.Embeddings.APIKey = Getenv("EMBEDDING_API_KEY", "")
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func standardConfigPath() (string, bool) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(homeDir, "Library", "Application Support", "codesearch", "config.yaml"), true
	}
	return filepath.Join(homeDir, ".config", "codesearch", "config.yaml"), true
}

// applyDefaults fills in zero-valued tunables, so a Config built
// programmatically (without Load's flag defaults) still gets usable values.
func (c *Config) applyDefaults() {
	if c.Storage.MaxEntitiesPerDBOperation <= 0 {
		c.Storage.MaxEntitiesPerDBOperation = 500
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "local-api"
	}
	if c.Embeddings.Dimension <= 0 {
		c.Embeddings.Dimension = 768
	}
	if c.Outbox.PollIntervalMs <= 0 {
		c.Outbox.PollIntervalMs = 250
	}
	if c.Watcher.DebounceMs <= 0 {
		c.Watcher.DebounceMs = 500
	}
	if len(c.Watcher.MainBranches) == 0 {
		c.Watcher.MainBranches = []string{"main", "master"}
	}
	if c.Watcher.BatchSize <= 0 {
		c.Watcher.BatchSize = 200
	}
	if c.Watcher.MaxWaitMs <= 0 {
		c.Watcher.MaxWaitMs = 2000
	}
	if c.Indexer.FilesPerDiscoveryBatch <= 0 {
		c.Indexer.FilesPerDiscoveryBatch = 200
	}
	if c.Indexer.EntitiesPerEmbeddingBatch <= 0 {
		c.Indexer.EntitiesPerEmbeddingBatch = 64
	}
	if c.Indexer.PipelineChannelCapacity <= 0 {
		c.Indexer.PipelineChannelCapacity = 256
	}
	if c.Indexer.MaxConcurrentFileExtractions <= 0 {
		c.Indexer.MaxConcurrentFileExtractions = 4
	}
	if c.Indexer.MaxConcurrentAPIRequests <= 0 {
		c.Indexer.MaxConcurrentAPIRequests = 4
	}
	if c.Indexer.MaxConcurrentSnapshotUpdates <= 0 {
		c.Indexer.MaxConcurrentSnapshotUpdates = 4
	}
}

// Validate checks if the configuration is valid (spec §7's Config error
// kind: malformed config or missing required option is fatal at startup).
func (c *Config) Validate() error {
	if c.Embeddings.Provider != "local-api" && c.Embeddings.Provider != "mock" {
		return fmt.Errorf("embeddings.provider must be %q or %q, got %q", "local-api", "mock", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "local-api" && c.Embeddings.APIBaseURL == "" {
		return errors.New("embeddings.api-base-url is required when embeddings.provider is local-api")
	}
	if c.Storage.SurrealDBURL == "" {
		return errors.New("storage.surrealdb-url must be provided")
	}
	if c.Reranking.Enabled && c.Reranking.Provider != "local-api" && c.Reranking.Provider != "mock" {
		return fmt.Errorf("reranking.provider must be %q or %q, got %q", "local-api", "mock", c.Reranking.Provider)
	}
	return nil
}

// OutboxPollInterval returns the configured poll interval as a time.Duration.
func (c *Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.Outbox.PollIntervalMs) * time.Millisecond
}

// OutboxDrainTimeout returns the configured drain timeout as a time.Duration.
func (c *Config) OutboxDrainTimeout() time.Duration {
	return time.Duration(c.Outbox.DrainTimeoutSecs) * time.Second
}

// WatcherDebounce returns the configured debounce window as a time.Duration.
func (c *Config) WatcherDebounce() time.Duration {
	return time.Duration(c.Watcher.DebounceMs) * time.Millisecond
}

// WatcherMaxBatchWait returns the configured max-wait flush interval as a
// time.Duration.
func (c *Config) WatcherMaxBatchWait() time.Duration {
	return time.Duration(c.Watcher.MaxWaitMs) * time.Millisecond
}

// WatcherMainBranchPollInterval returns the configured git-catch-up poll
// interval as a time.Duration.
func (c *Config) WatcherMainBranchPollInterval() time.Duration {
	return time.Duration(c.Watcher.MainBranchPollIntervalSecs) * time.Second
}

// RerankingTimeout returns the configured reranking call timeout as a
// time.Duration.
func (c *Config) RerankingTimeout() time.Duration {
	return time.Duration(c.Reranking.TimeoutSecs) * time.Second
}

// Getenv reads an environment variable or returns a default value.
func Getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// SetupLogging configures slog output.
//
// Important: when running MCP over stdio, stdout must be reserved for
// protocol messages. Console logs default to stderr in stdio mode.
func (c *Config) SetupLogging() error {
	var writers []io.Writer

	if !c.DisableOutputLog {
		stdioMode := !c.MCPStreamableHTTP && !c.HTTP && !c.RestAPIServe
		if stdioMode {
			writers = append(writers, os.Stderr)
		} else {
			writers = append(writers, os.Stdout)
		}
	}

	if c.LogFile != "" {
		logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", c.LogFile, err)
		}
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	multiWriter := io.MultiWriter(writers...)
	handler := slog.NewTextHandler(multiWriter, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: false,
	})
	slog.SetDefault(slog.New(handler))

	return nil
}
