package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/codesearch-core/codesearch/internal/errs"
)

// ConnectionConfig dials a remote SurrealDB instance, the same shape C4's
// metadatastore.ConnectionConfig uses (this package is deliberately isolated
// from it: the vector store's lifecycle is independent of the metadata
// store's, per repository and per collection).
type ConnectionConfig struct {
	URL       string
	Username  string
	Password  string
	Namespace string
	Database  string
	Timeout   time.Duration
}

func (c ConnectionConfig) withDefaults() ConnectionConfig {
	if c.Namespace == "" {
		c.Namespace = "codesearch"
	}
	if c.Database == "" {
		c.Database = "codesearch"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// SurrealDBStore is the SurrealDB-backed Store. Grounded on the teacher's
// internal/storage/surrealdb_vectors.go (MTREE point upsert/search) and
// surrealdb_query_helper.go (the query/create/update/delete helper split).
type SurrealDBStore struct {
	db     *surrealdb.DB
	config ConnectionConfig
	logger *slog.Logger
}

func NewSurrealDBStore(config ConnectionConfig, logger *slog.Logger) *SurrealDBStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SurrealDBStore{config: config.withDefaults(), logger: logger}
}

func (s *SurrealDBStore) Connect(ctx context.Context) error {
	db, err := surrealdb.New(s.config.URL)
	if err != nil {
		return errs.Wrap(errs.StorageFatal, "vectorstore: dial", err)
	}
	if s.config.Username != "" {
		if _, err := db.SignIn(&surrealdb.Auth{Username: s.config.Username, Password: s.config.Password}); err != nil {
			return errs.Wrap(errs.StorageFatal, "vectorstore: sign in", err)
		}
	}
	if err := db.Use(s.config.Namespace, s.config.Database); err != nil {
		return errs.Wrap(errs.StorageFatal, "vectorstore: select namespace/database", err)
	}
	s.db = db
	return nil
}

func (s *SurrealDBStore) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

func (s *SurrealDBStore) Ping(ctx context.Context) error {
	_, err := s.query(ctx, "SELECT 1;", nil)
	return err
}

// EnsureCollection defines the table and MTREE index collection backs, if
// they don't already exist. SurrealDB's DEFINE statements are idempotent, so
// no existence check is needed first (unlike the teacher's schema.go, which
// tracks a version counter across many tables at once — a single collection
// table has no migration history to replay).
func (s *SurrealDBStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	ddl := fmt.Sprintf(`
		DEFINE TABLE %[1]s SCHEMAFULL;
		DEFINE FIELD entity_id ON %[1]s TYPE string;
		DEFINE FIELD repository_id ON %[1]s TYPE string;
		DEFINE FIELD qualified_name ON %[1]s TYPE string;
		DEFINE FIELD name ON %[1]s TYPE string;
		DEFINE FIELD entity_type ON %[1]s TYPE string;
		DEFINE FIELD language ON %[1]s TYPE string;
		DEFINE FIELD file_path ON %[1]s TYPE string;
		DEFINE FIELD start_line ON %[1]s TYPE int;
		DEFINE FIELD end_line ON %[1]s TYPE int;
		DEFINE FIELD dense ON %[1]s TYPE array<float, %[2]d>;
		DEFINE FIELD sparse ON %[1]s FLEXIBLE TYPE option<array<object>>;
		DEFINE INDEX %[1]s_entity ON %[1]s FIELDS entity_id UNIQUE;
		DEFINE INDEX %[1]s_dense ON %[1]s FIELDS dense MTREE DIMENSION %[2]d DIST COSINE;
	`, collection, dim)
	_, err := s.query(ctx, ddl, nil)
	if err != nil {
		return errs.Wrap(errs.StorageFatal, "vectorstore: ensure collection", err)
	}
	return nil
}

func (s *SurrealDBStore) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	for i, p := range points {
		rid := fmt.Sprintf("rid%d", i)
		data := fmt.Sprintf("data%d", i)
		_, err := s.query(ctx, fmt.Sprintf(
			`UPSERT type::thing(%q, $%s) CONTENT $%s;`, collection, rid, data,
		), map[string]interface{}{
			rid:  p.PointID,
			data: pointContent(p),
		})
		if err != nil {
			return errs.Wrap(errs.StorageTransient, "vectorstore: upsert point", err)
		}
	}
	return nil
}

func (s *SurrealDBStore) DeletePoints(ctx context.Context, collection string, pointIDs []string) error {
	for _, id := range pointIDs {
		_, err := s.query(ctx, fmt.Sprintf(`DELETE type::thing(%q, $rid);`, collection), map[string]interface{}{"rid": id})
		if err != nil {
			return errs.Wrap(errs.StorageTransient, "vectorstore: delete point", err)
		}
	}
	return nil
}

// SearchHybrid prefetches dense candidates via the MTREE KNN operator and
// ranks sparse candidates by client-side dot product (SurrealDB has no
// native sparse-vector index for precomputed token/weight pairs — the
// teacher's own HybridSearch merges independently-fetched result sets in Go
// rather than in one database query, which is the idiom followed here), then
// fuses both lists by Reciprocal Rank Fusion.
func (s *SurrealDBStore) SearchHybrid(ctx context.Context, collection string, dense []float32, sparse []SparseTerm, k, prefetchMultiplier int, filters Filters) ([]ScoredEntity, error) {
	if prefetchMultiplier <= 0 {
		prefetchMultiplier = 4
	}
	prefetch := k * prefetchMultiplier
	if prefetch <= 0 {
		prefetch = k
	}

	denseHits, err := s.searchDense(ctx, collection, dense, prefetch, filters)
	if err != nil {
		return nil, err
	}
	sparseHits, err := s.searchSparse(ctx, collection, sparse, prefetch, filters)
	if err != nil {
		return nil, err
	}
	return fuseRRF(denseHits, sparseHits, DefaultRRFConstant, k), nil
}

func (s *SurrealDBStore) searchDense(ctx context.Context, collection string, dense []float32, limit int, filters Filters) ([]ScoredEntity, error) {
	where, params := filterClause(filters)
	params["query_dense"] = dense
	q := fmt.Sprintf(`
		SELECT entity_id, vector::similarity::cosine(dense, $query_dense) AS score
		FROM %s
		WHERE dense <|%d|> $query_dense%s
		ORDER BY score DESC;
	`, collection, limit, where)

	rows, err := s.queryOne(ctx, q, params)
	if err != nil {
		return nil, errs.Wrap(errs.StorageTransient, "vectorstore: dense search", err)
	}
	return rowsToScoredEntities(rows)
}

func (s *SurrealDBStore) searchSparse(ctx context.Context, collection string, sparse []SparseTerm, limit int, filters Filters) ([]ScoredEntity, error) {
	if len(sparse) == 0 {
		return nil, nil
	}
	where, params := filterClause(filters)
	q := fmt.Sprintf(`SELECT entity_id, sparse FROM %s%s;`, collection, withAnd(where))
	rows, err := s.queryOne(ctx, q, params)
	if err != nil {
		return nil, errs.Wrap(errs.StorageTransient, "vectorstore: sparse candidate fetch", err)
	}

	scored := make([]ScoredEntity, 0, len(rows))
	for _, row := range rows {
		entityID, _ := row["entity_id"].(string)
		var candidate []SparseTerm
		if raw, ok := row["sparse"]; ok {
			if err := roundTripJSON(raw, &candidate); err != nil {
				continue
			}
		}
		scored = append(scored, ScoredEntity{EntityID: entityID, Score: DotProduct(sparse, candidate)})
	}
	sortScoredDesc(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func filterClause(f Filters) (string, map[string]interface{}) {
	params := map[string]interface{}{}
	clause := ""
	if f.EntityType != "" {
		clause += " AND entity_type = $filter_entity_type"
		params["filter_entity_type"] = f.EntityType
	}
	if f.Language != "" {
		clause += " AND language = $filter_language"
		params["filter_language"] = f.Language
	}
	if f.FilePath != "" {
		clause += " AND file_path = $filter_file_path"
		params["filter_file_path"] = f.FilePath
	}
	return clause, params
}

func withAnd(clause string) string {
	if clause == "" {
		return ""
	}
	return " WHERE " + clause[len(" AND "):]
}

func pointContent(p Point) map[string]interface{} {
	return map[string]interface{}{
		"entity_id":      p.EntityID,
		"repository_id":  p.RepositoryID,
		"qualified_name": p.QualifiedName,
		"name":           p.Name,
		"entity_type":    p.EntityType,
		"language":       p.Language,
		"file_path":      p.FilePath,
		"start_line":     p.StartLine,
		"end_line":       p.EndLine,
		"dense":          p.Dense,
		"sparse":         p.Sparse,
	}
}

func rowsToScoredEntities(rows []map[string]interface{}) ([]ScoredEntity, error) {
	out := make([]ScoredEntity, 0, len(rows))
	for _, row := range rows {
		entityID, _ := row["entity_id"].(string)
		score, _ := row["score"].(float64)
		out = append(out, ScoredEntity{EntityID: entityID, Score: score})
	}
	return out, nil
}

func sortScoredDesc(s []ScoredEntity) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].Score < s[j].Score; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

type queryResult struct {
	Status string                   `json:"status"`
	Time   string                   `json:"time,omitempty"`
	Result []map[string]interface{} `json:"result"`
}

func (s *SurrealDBStore) query(ctx context.Context, q string, params map[string]interface{}) ([]queryResult, error) {
	if s.db == nil {
		return nil, errs.Wrap(errs.StorageFatal, "vectorstore: query", fmt.Errorf("not connected"))
	}
	result, err := surrealdb.Query[[]map[string]interface{}](ctx, s.db, q, params)
	if err != nil {
		return nil, errs.Wrap(errs.StorageTransient, "vectorstore: query", err)
	}
	if result == nil {
		return nil, nil
	}
	out := make([]queryResult, 0, len(*result))
	for _, qr := range *result {
		if qr.Status != "" && qr.Status != "OK" {
			return nil, errs.Wrap(errs.StorageFatal, "vectorstore: query", fmt.Errorf("statement failed: %s", qr.Status))
		}
		out = append(out, queryResult{Status: qr.Status, Time: qr.Time, Result: qr.Result})
	}
	return out, nil
}

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

func roundTripJSON(src, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

var _ Store = (*SurrealDBStore)(nil)
