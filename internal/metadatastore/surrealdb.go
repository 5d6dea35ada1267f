package metadatastore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/codesearch-core/codesearch/internal/errs"
)

// ConnectionConfig holds the remote SurrealDB connection settings. Grounded
// on the teacher's storage.ConnectionConfig, trimmed to the remote-only
// fields this package actually dials (no DBPath/embedded fields: embedded
// mode's backing module is not genuinely fetchable, see DESIGN.md).
type ConnectionConfig struct {
	URL       string
	Username  string
	Password  string
	Namespace string
	Database  string
	Timeout   time.Duration

	// MaxEntitiesPerOperation chunks metadata/outbox batches (spec §4.4
	// "Input constraints"). Defaults to 500 when unset.
	MaxEntitiesPerOperation int
}

func (c *ConnectionConfig) withDefaults() *ConnectionConfig {
	cfg := *c
	if cfg.Namespace == "" {
		cfg.Namespace = "codesearch"
	}
	if cfg.Database == "" {
		cfg.Database = "codesearch"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxEntitiesPerOperation <= 0 {
		cfg.MaxEntitiesPerOperation = 500
	}
	return &cfg
}

// SurrealDBStore is the Store implementation backed by a remote SurrealDB
// instance. Grounded on the teacher's SurrealDBStorage, with the
// useEmbedded branch and every embedded-only field removed.
type SurrealDBStore struct {
	db     *surrealdb.DB
	config *ConnectionConfig
	logger *slog.Logger
}

// NewSurrealDBStore constructs a store from config. Connect must be called
// before any other method.
func NewSurrealDBStore(config ConnectionConfig, logger *slog.Logger) *SurrealDBStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SurrealDBStore{config: config.withDefaults(), logger: logger}
}

// Connect dials the remote SurrealDB instance, signs in if credentials are
// configured, and selects the namespace/database.
func (s *SurrealDBStore) Connect(ctx context.Context) error {
	if s.config.URL == "" {
		return errs.Wrap(errs.Config, "metadatastore.Connect", fmt.Errorf("surrealdb URL must be configured"))
	}

	db, err := surrealdb.New(s.config.URL)
	if err != nil {
		return errs.Wrap(errs.StorageTransient, "metadatastore.Connect", fmt.Errorf("dial surrealdb: %w", err))
	}
	s.db = db

	if s.config.Username != "" && s.config.Password != "" {
		if _, err := s.db.SignIn(map[string]interface{}{
			"user": s.config.Username,
			"pass": s.config.Password,
		}); err != nil {
			return errs.Wrap(errs.StorageFatal, "metadatastore.Connect", fmt.Errorf("sign in: %w", err))
		}
	}

	if err := s.db.Use(s.config.Namespace, s.config.Database); err != nil {
		return errs.Wrap(errs.StorageFatal, "metadatastore.Connect", fmt.Errorf("use namespace/database: %w", err))
	}

	s.logger.Info("connected to metadata store", "url", s.config.URL, "namespace", s.config.Namespace, "database", s.config.Database)
	return nil
}

// Close releases the underlying connection.
func (s *SurrealDBStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the connection is alive.
func (s *SurrealDBStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return errs.Wrap(errs.StorageFatal, "metadatastore.Ping", fmt.Errorf("not connected"))
	}
	_, err := surrealdb.Query[[]map[string]interface{}](ctx, s.db, "SELECT 1", nil)
	if err != nil {
		return errs.Wrap(errs.StorageTransient, "metadatastore.Ping", err)
	}
	return nil
}

// queryResult mirrors one statement's outcome within a multi-statement
// SurrealQL query (grounded on the teacher's QueryResult).
type queryResult struct {
	Status string                   `json:"status"`
	Time   string                   `json:"time,omitempty"`
	Result []map[string]interface{} `json:"result"`
}

// query runs query against the remote backend and returns every statement's
// result. Transient connection/transaction failures are tagged so
// withTxnRetry can distinguish them from fatal ones.
func (s *SurrealDBStore) query(ctx context.Context, query string, params map[string]interface{}) ([]queryResult, error) {
	if s.db == nil {
		return nil, errs.Wrap(errs.StorageFatal, "metadatastore.query", fmt.Errorf("not connected"))
	}

	result, err := surrealdb.Query[[]map[string]interface{}](ctx, s.db, query, params)
	if err != nil {
		return nil, errs.Wrap(errs.StorageTransient, "metadatastore.query", err)
	}

	out := make([]queryResult, 0, len(*result))
	for _, qr := range *result {
		if qr.Status != "" && qr.Status != "OK" {
			return nil, errs.Wrap(errs.StorageFatal, "metadatastore.query", fmt.Errorf("statement failed: %s", qr.Status))
		}
		out = append(out, queryResult{Status: qr.Status, Time: qr.Time, Result: qr.Result})
	}
	return out, nil
}

// queryOne runs a single-statement query and returns its flattened rows.
func (s *SurrealDBStore) queryOne(ctx context.Context, q string, params map[string]interface{}) ([]map[string]interface{}, error) {
	results, err := s.query(ctx, q, params)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[len(results)-1].Result, nil
}

func decodeRow(row map[string]interface{}, target interface{}) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal row: %w", err)
	}
	return nil
}
