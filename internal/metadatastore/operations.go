package metadatastore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/errs"
)

// EnsureRepository returns path's repository_id, creating the row (with
// collection_name and git_root) if absent (spec §4.4).
func (s *SurrealDBStore) EnsureRepository(ctx context.Context, path, collectionName, gitRoot string) (string, error) {
	var repoID string
	err := withTxnRetry(ctx, s.config.Timeout, func(ctx context.Context) error {
		rows, err := s.queryOne(ctx, `SELECT repository_id FROM repositories WHERE path = $path`, map[string]interface{}{
			"path": path,
		})
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			var row struct {
				RepositoryID string `json:"repository_id"`
			}
			if err := decodeRow(rows[0], &row); err != nil {
				return errs.Wrap(errs.StorageFatal, "EnsureRepository", err)
			}
			repoID = row.RepositoryID
			return nil
		}

		repoID = uuid.NewString()
		_, err = s.query(ctx, `
			CREATE repositories CONTENT {
				repository_id: $repository_id,
				name: $name,
				path: $path,
				collection_name: $collection_name,
				git_root: $git_root,
				graph_ready: false,
				bm25_avgdl: 0
			}
		`, map[string]interface{}{
			"repository_id":   repoID,
			"name":            collectionName,
			"path":            path,
			"collection_name": collectionName,
			"git_root":        gitRoot,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return repoID, nil
}

// GetRepository returns repoID's row.
func (s *SurrealDBStore) GetRepository(ctx context.Context, repoID string) (*Repository, error) {
	rows, err := s.queryOne(ctx, `SELECT * FROM repositories WHERE repository_id = $repository_id`, map[string]interface{}{
		"repository_id": repoID,
	})
	if err != nil {
		return nil, errs.Wrap(errs.StorageTransient, "GetRepository", err)
	}
	if len(rows) == 0 {
		return nil, errs.Wrap(errs.StorageFatal, "GetRepository", fmt.Errorf("repository %q not found", repoID))
	}

	var row struct {
		RepositoryID      string  `json:"repository_id"`
		Name              string  `json:"name"`
		Path              string  `json:"path"`
		CollectionName    string  `json:"collection_name"`
		LastIndexedCommit *string `json:"last_indexed_commit"`
		GraphReady        bool    `json:"graph_ready"`
		BM25AverageDocLen float64 `json:"bm25_avgdl"`
	}
	if err := decodeRow(rows[0], &row); err != nil {
		return nil, errs.Wrap(errs.StorageFatal, "GetRepository", err)
	}
	return &Repository{
		RepositoryID:      row.RepositoryID,
		Name:              row.Name,
		Path:              row.Path,
		CollectionName:    row.CollectionName,
		LastIndexedCommit: row.LastIndexedCommit,
		GraphReady:        row.GraphReady,
		BM25AverageDocLen: row.BM25AverageDocLen,
	}, nil
}

// GetEntitiesMetadataBatch returns (point_id, deleted_at) for every known
// entity_id in entityIDs (spec §4.4). Absent IDs are simply omitted.
func (s *SurrealDBStore) GetEntitiesMetadataBatch(ctx context.Context, repoID string, entityIDs []string) (map[string]EntityMetadataKey, error) {
	out := make(map[string]EntityMetadataKey)
	if len(entityIDs) == 0 {
		return out, nil
	}

	for _, chunk := range chunkStrings(entityIDs, s.config.MaxEntitiesPerOperation) {
		rows, err := s.queryOne(ctx, `
			SELECT entity_id, point_id, deleted_at FROM entity_metadata
			WHERE repository_id = $repository_id AND entity_id IN $entity_ids
		`, map[string]interface{}{
			"repository_id": repoID,
			"entity_ids":    chunk,
		})
		if err != nil {
			return nil, errs.Wrap(errs.StorageTransient, "GetEntitiesMetadataBatch", err)
		}
		for _, r := range rows {
			var row struct {
				EntityID  string     `json:"entity_id"`
				PointID   string     `json:"point_id"`
				DeletedAt *time.Time `json:"deleted_at"`
			}
			if err := decodeRow(r, &row); err != nil {
				return nil, errs.Wrap(errs.StorageFatal, "GetEntitiesMetadataBatch", err)
			}
			out[row.EntityID] = EntityMetadataKey{PointID: row.PointID, DeletedAt: row.DeletedAt}
		}
	}
	return out, nil
}

// GetEntitiesByID returns the full CodeEntity rows for entityIDs that exist
// and are not deleted (spec §4.10 step 4).
func (s *SurrealDBStore) GetEntitiesByID(ctx context.Context, repoID string, entityIDs []string) ([]entity.CodeEntity, error) {
	var out []entity.CodeEntity
	if len(entityIDs) == 0 {
		return out, nil
	}

	for _, chunk := range chunkStrings(entityIDs, s.config.MaxEntitiesPerOperation) {
		rows, err := s.queryOne(ctx, `
			SELECT entity_data FROM entity_metadata
			WHERE repository_id = $repository_id AND entity_id IN $entity_ids AND deleted_at IS NONE
		`, map[string]interface{}{
			"repository_id": repoID,
			"entity_ids":    chunk,
		})
		if err != nil {
			return nil, errs.Wrap(errs.StorageTransient, "GetEntitiesByID", err)
		}
		for _, r := range rows {
			var row struct {
				EntityData entity.CodeEntity `json:"entity_data"`
			}
			if err := decodeRow(r, &row); err != nil {
				return nil, errs.Wrap(errs.StorageFatal, "GetEntitiesByID", err)
			}
			out = append(out, row.EntityData)
		}
	}
	return out, nil
}

// StoreEntitiesWithOutboxBatch upserts metadata rows and appends Vector and
// Graph outbox rows, one transaction per chunk (spec §4.4). Empty batches
// are no-ops.
//
// Upsert uses SurrealDB's UPSERT statement (SurrealDB ≥2.0) rather than the
// teacher's exists-check-then-CREATE-or-UPDATE round trip: that pattern
// requires two queries outside a transaction to decide which statement to
// issue, which would break the single-transaction invariant this operation
// must uphold.
func (s *SurrealDBStore) StoreEntitiesWithOutboxBatch(ctx context.Context, repoID string, writes []EntityWrite) error {
	if len(writes) == 0 {
		return nil
	}

	deduped := dedupeByEntityID(writes)

	for _, chunk := range chunkWrites(deduped, s.config.MaxEntitiesPerOperation) {
		if err := s.storeChunk(ctx, repoID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *SurrealDBStore) storeChunk(ctx context.Context, repoID string, chunk []EntityWrite) error {
	return withTxnRetry(ctx, s.config.Timeout, func(ctx context.Context) error {
		var stmts []string
		params := map[string]interface{}{"repository_id": repoID}

		for i, w := range chunk {
			entityData, err := entityDataMap(w.Entity)
			if err != nil {
				return errs.Wrap(errs.StorageFatal, "StoreEntitiesWithOutboxBatch", err)
			}

			ridKey := "rid" + strconv.Itoa(i)
			dataKey := "data" + strconv.Itoa(i)
			params[ridKey] = repoID + "::" + w.Entity.EntityID
			params[dataKey] = map[string]interface{}{
				"repository_id":    repoID,
				"entity_id":        w.Entity.EntityID,
				"point_id":         w.PointID,
				"entity_data":      entityData,
				"content":          w.Entity.Content,
				"bm25_token_count": nil,
				"deleted_at":       nil,
			}
			stmts = append(stmts, fmt.Sprintf("UPSERT type::thing('entity_metadata', $%s) CONTENT $%s;", ridKey, dataKey))

			payload := outboxPayload(repoID, w)
			for _, target := range []TargetStore{TargetVector, TargetGraph} {
				payloadKey := "payload" + strconv.Itoa(i) + string(target)
				opKey := "op" + strconv.Itoa(i) + string(target)
				entIDKey := "ent" + strconv.Itoa(i) + string(target)
				targetKey := "target" + strconv.Itoa(i) + string(target)
				params[payloadKey] = payload
				params[opKey] = string(w.Operation)
				params[entIDKey] = w.Entity.EntityID
				params[targetKey] = string(target)
				stmts = append(stmts, fmt.Sprintf(`CREATE outbox CONTENT {
					repository_id: $repository_id,
					entity_id: $%s,
					operation: $%s,
					target_store: $%s,
					payload: $%s,
					status: "pending",
					attempt_count: 0,
					next_attempt_at: time::now()
				};`, entIDKey, opKey, targetKey, payloadKey))
			}
		}

		// Any Insert/Update flips graph_ready back to false on arrival (spec
		// §4.5); only the outbox processor, after a clean drain, sets it
		// true again.
		stmts = append(stmts, `UPDATE repositories SET graph_ready = false WHERE repository_id = $repository_id;`)

		txn := "BEGIN TRANSACTION;\n" + joinStatements(stmts) + "\nCOMMIT TRANSACTION;"
		_, err := s.query(ctx, txn, params)
		return err
	})
}

// MarkEntitiesDeletedWithOutbox sets deleted_at = now for each entity_id and
// appends a Delete outbox row per derived store (spec §4.4).
func (s *SurrealDBStore) MarkEntitiesDeletedWithOutbox(ctx context.Context, repoID string, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}

	existing, err := s.GetEntitiesMetadataBatch(ctx, repoID, entityIDs)
	if err != nil {
		return err
	}

	for _, chunk := range chunkStrings(entityIDs, s.config.MaxEntitiesPerOperation) {
		if err := s.markDeletedChunk(ctx, repoID, chunk, existing); err != nil {
			return err
		}
	}
	return nil
}

func (s *SurrealDBStore) markDeletedChunk(ctx context.Context, repoID string, chunk []string, existing map[string]EntityMetadataKey) error {
	return withTxnRetry(ctx, s.config.Timeout, func(ctx context.Context) error {
		var stmts []string
		params := map[string]interface{}{"repository_id": repoID}

		for i, entityID := range chunk {
			key, ok := existing[entityID]
			if !ok || key.DeletedAt != nil {
				continue // already absent/deleted: nothing to tombstone
			}

			ridKey := "rid" + strconv.Itoa(i)
			params[ridKey] = repoID + "::" + entityID
			stmts = append(stmts, fmt.Sprintf(`UPDATE type::thing('entity_metadata', $%s) SET deleted_at = time::now();`, ridKey))

			payload := map[string]interface{}{"entity_id": entityID, "repository_id": repoID, "point_id": key.PointID}
			for _, target := range []TargetStore{TargetVector, TargetGraph} {
				payloadKey := "payload" + strconv.Itoa(i) + string(target)
				entIDKey := "ent" + strconv.Itoa(i) + string(target)
				targetKey := "target" + strconv.Itoa(i) + string(target)
				params[payloadKey] = payload
				params[entIDKey] = entityID
				params[targetKey] = string(target)
				stmts = append(stmts, fmt.Sprintf(`CREATE outbox CONTENT {
					repository_id: $repository_id,
					entity_id: $%s,
					operation: "Delete",
					target_store: $%s,
					payload: $%s,
					status: "pending",
					attempt_count: 0,
					next_attempt_at: time::now()
				};`, entIDKey, targetKey, payloadKey))
			}
		}

		if len(stmts) == 0 {
			return nil
		}
		txn := "BEGIN TRANSACTION;\n" + joinStatements(stmts) + "\nCOMMIT TRANSACTION;"
		_, err := s.query(ctx, txn, params)
		return err
	})
}

// GetFileSnapshot returns the entity IDs last known to exist in filePath.
func (s *SurrealDBStore) GetFileSnapshot(ctx context.Context, repoID, filePath string) ([]string, error) {
	rows, err := s.queryOne(ctx, `
		SELECT entity_ids FROM file_snapshots WHERE repository_id = $repository_id AND file_path = $file_path
	`, map[string]interface{}{"repository_id": repoID, "file_path": filePath})
	if err != nil {
		return nil, errs.Wrap(errs.StorageTransient, "GetFileSnapshot", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	var row struct {
		EntityIDs []string `json:"entity_ids"`
	}
	if err := decodeRow(rows[0], &row); err != nil {
		return nil, errs.Wrap(errs.StorageFatal, "GetFileSnapshot", err)
	}
	return row.EntityIDs, nil
}

// UpdateFileSnapshot replaces the snapshot row for filePath.
func (s *SurrealDBStore) UpdateFileSnapshot(ctx context.Context, repoID, filePath string, entityIDs []string, gitCommit string) error {
	return withTxnRetry(ctx, s.config.Timeout, func(ctx context.Context) error {
		_, err := s.query(ctx, `
			UPSERT type::thing('file_snapshots', $rid) CONTENT {
				repository_id: $repository_id,
				file_path: $file_path,
				entity_ids: $entity_ids,
				git_commit: $git_commit
			}
		`, map[string]interface{}{
			"rid":           repoID + "::" + filePath,
			"repository_id": repoID,
			"file_path":     filePath,
			"entity_ids":    entityIDs,
			"git_commit":    nilIfEmpty(gitCommit),
		})
		return err
	})
}

// IsGraphReady reports the per-repository graph-ready gate (spec §4.5).
func (s *SurrealDBStore) IsGraphReady(ctx context.Context, repoID string) (bool, error) {
	rows, err := s.queryOne(ctx, `SELECT graph_ready FROM repositories WHERE repository_id = $repository_id`, map[string]interface{}{
		"repository_id": repoID,
	})
	if err != nil {
		return false, errs.Wrap(errs.StorageTransient, "IsGraphReady", err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	var row struct {
		GraphReady bool `json:"graph_ready"`
	}
	if err := decodeRow(rows[0], &row); err != nil {
		return false, errs.Wrap(errs.StorageFatal, "IsGraphReady", err)
	}
	return row.GraphReady, nil
}

// SetGraphReady flips the gate (spec §4.5: any Insert/Update sets it back to
// false on arrival; the outbox processor sets it true after a clean drain).
func (s *SurrealDBStore) SetGraphReady(ctx context.Context, repoID string, ready bool) error {
	return withTxnRetry(ctx, s.config.Timeout, func(ctx context.Context) error {
		_, err := s.query(ctx, `UPDATE repositories SET graph_ready = $ready WHERE repository_id = $repository_id`, map[string]interface{}{
			"repository_id": repoID,
			"ready":         ready,
		})
		return err
	})
}

// GetBM25AverageDocLen reads the repository's sparse-scoring normalization factor.
func (s *SurrealDBStore) GetBM25AverageDocLen(ctx context.Context, repoID string) (float64, error) {
	rows, err := s.queryOne(ctx, `SELECT bm25_avgdl FROM repositories WHERE repository_id = $repository_id`, map[string]interface{}{
		"repository_id": repoID,
	})
	if err != nil {
		return 0, errs.Wrap(errs.StorageTransient, "GetBM25AverageDocLen", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	var row struct {
		BM25AvgDL float64 `json:"bm25_avgdl"`
	}
	if err := decodeRow(rows[0], &row); err != nil {
		return 0, errs.Wrap(errs.StorageFatal, "GetBM25AverageDocLen", err)
	}
	return row.BM25AvgDL, nil
}

// SetBM25AverageDocLen updates the repository's avgdl, refreshed by the indexer (spec §4.6).
func (s *SurrealDBStore) SetBM25AverageDocLen(ctx context.Context, repoID string, avgdl float64) error {
	return withTxnRetry(ctx, s.config.Timeout, func(ctx context.Context) error {
		_, err := s.query(ctx, `UPDATE repositories SET bm25_avgdl = $avgdl WHERE repository_id = $repository_id`, map[string]interface{}{
			"repository_id": repoID,
			"avgdl":         avgdl,
		})
		return err
	})
}

// ClaimOutboxBatch claims up to n pending rows for target, oldest first
// (spec §4.5 step 1). The atomic UPDATE...LIMIT...RETURN AFTER stands in for
// the spec's "FOR UPDATE SKIP LOCKED-style primitive": SurrealDB executes
// the statement as a single atomic step, so concurrent claimers never
// observe the same row mid-transition.
func (s *SurrealDBStore) ClaimOutboxBatch(ctx context.Context, target TargetStore, n int) ([]OutboxEntry, error) {
	rows, err := s.queryOne(ctx, `
		UPDATE outbox SET status = "claimed"
		WHERE target_store = $target AND status = "pending" AND next_attempt_at <= time::now()
		ORDER BY id LIMIT $n
		RETURN AFTER
	`, map[string]interface{}{"target": string(target), "n": n})
	if err != nil {
		return nil, errs.Wrap(errs.StorageTransient, "ClaimOutboxBatch", err)
	}

	entries := make([]OutboxEntry, 0, len(rows))
	for _, r := range rows {
		var entry outboxRow
		if err := decodeRow(r, &entry); err != nil {
			return nil, errs.Wrap(errs.StorageFatal, "ClaimOutboxBatch", err)
		}
		entries = append(entries, entry.toOutboxEntry())
	}
	return entries, nil
}

// MarkOutboxDone marks every id as done after a successful apply.
func (s *SurrealDBStore) MarkOutboxDone(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return withTxnRetry(ctx, s.config.Timeout, func(ctx context.Context) error {
		_, err := s.query(ctx, `UPDATE outbox SET status = "done" WHERE id IN $ids`, map[string]interface{}{"ids": ids})
		return err
	})
}

// MarkOutboxRetry schedules id for retry with the given backoff delay.
func (s *SurrealDBStore) MarkOutboxRetry(ctx context.Context, id int64, nextAttemptAt time.Time, lastErr string) error {
	return withTxnRetry(ctx, s.config.Timeout, func(ctx context.Context) error {
		_, err := s.query(ctx, `
			UPDATE outbox SET status = "pending", attempt_count += 1, next_attempt_at = $next, last_error = $err
			WHERE id = $id
		`, map[string]interface{}{"id": id, "next": nextAttemptAt, "err": lastErr})
		return err
	})
}

// MarkOutboxDead moves id to the terminal dead state after exhausting retries.
func (s *SurrealDBStore) MarkOutboxDead(ctx context.Context, id int64, lastErr string) error {
	return withTxnRetry(ctx, s.config.Timeout, func(ctx context.Context) error {
		_, err := s.query(ctx, `UPDATE outbox SET status = "dead", last_error = $err WHERE id = $id`, map[string]interface{}{
			"id":  id,
			"err": lastErr,
		})
		return err
	})
}

// RepositoryHasPendingOutbox reports whether repoID has any non-terminal
// outbox row, used by the graph-ready gate's drain check.
func (s *SurrealDBStore) RepositoryHasPendingOutbox(ctx context.Context, repoID string) (bool, error) {
	rows, err := s.queryOne(ctx, `
		SELECT count() AS n FROM outbox WHERE repository_id = $repository_id AND status IN ["pending", "claimed"] GROUP ALL
	`, map[string]interface{}{"repository_id": repoID})
	if err != nil {
		return false, errs.Wrap(errs.StorageTransient, "RepositoryHasPendingOutbox", err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	var row struct {
		N int `json:"n"`
	}
	if err := decodeRow(rows[0], &row); err != nil {
		return false, errs.Wrap(errs.StorageFatal, "RepositoryHasPendingOutbox", err)
	}
	return row.N > 0, nil
}

type outboxRow struct {
	ID            int64                  `json:"id"`
	RepositoryID  string                 `json:"repository_id"`
	EntityID      string                 `json:"entity_id"`
	Operation     string                 `json:"operation"`
	TargetStore   string                 `json:"target_store"`
	Payload       map[string]interface{} `json:"payload"`
	Status        string                 `json:"status"`
	AttemptCount  int                    `json:"attempt_count"`
	NextAttemptAt time.Time              `json:"next_attempt_at"`
	CreatedAt     time.Time              `json:"created_at"`
	LastError     *string                `json:"last_error"`
}

func (r outboxRow) toOutboxEntry() OutboxEntry {
	e := OutboxEntry{
		ID:            r.ID,
		RepositoryID:  r.RepositoryID,
		EntityID:      r.EntityID,
		Operation:     Operation(r.Operation),
		TargetStore:   TargetStore(r.TargetStore),
		Payload:       r.Payload,
		Status:        OutboxStatus(r.Status),
		AttemptCount:  r.AttemptCount,
		NextAttemptAt: r.NextAttemptAt,
		CreatedAt:     r.CreatedAt,
	}
	if r.LastError != nil {
		e.LastError = *r.LastError
	}
	return e
}

// entityDataMap marshals a CodeEntity to the generic map SurrealDB's jsonb
// entity_data column stores (spec §6.1).
func entityDataMap(e entity.CodeEntity) (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// outboxPayload builds the shared payload both Vector and Graph outbox rows
// carry: enough of the entity's shape (spec §6.2's point payload plus the
// relationship list §4.7's edge creation needs) that the outbox processor
// never has to re-read entity_metadata mid-apply.
func outboxPayload(repoID string, w EntityWrite) map[string]interface{} {
	e := w.Entity
	return map[string]interface{}{
		"entity_id":      e.EntityID,
		"repository_id":  repoID,
		"qualified_name": e.QualifiedName,
		"name":           e.Name,
		"entity_type":    string(e.EntityType),
		"language":       string(e.Language),
		"file_path":      e.FilePath,
		"start_line":     e.Location.StartLine,
		"end_line":       e.Location.EndLine,
		"visibility":     string(e.Visibility),
		"point_id":       w.PointID,
		"git_commit":     w.GitCommit,
		"embedding":      w.Embedding,
		"sparse":         w.Sparse,
		"relationships":  e.Relationships.All(),
	}
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func dedupeByEntityID(writes []EntityWrite) []EntityWrite {
	last := make(map[string]int, len(writes))
	order := make([]string, 0, len(writes))
	for i, w := range writes {
		if _, seen := last[w.Entity.EntityID]; !seen {
			order = append(order, w.Entity.EntityID)
		}
		last[w.Entity.EntityID] = i
	}
	out := make([]EntityWrite, 0, len(order))
	for _, id := range order {
		out = append(out, writes[last[id]])
	}
	return out
}

func chunkWrites(writes []EntityWrite, size int) [][]EntityWrite {
	if size <= 0 {
		size = 500
	}
	var chunks [][]EntityWrite
	for i := 0; i < len(writes); i += size {
		end := i + size
		if end > len(writes) {
			end = len(writes)
		}
		chunks = append(chunks, writes[i:end])
	}
	return chunks
}

func chunkStrings(values []string, size int) [][]string {
	if size <= 0 {
		size = 500
	}
	var chunks [][]string
	for i := 0; i < len(values); i += size {
		end := i + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[i:end])
	}
	return chunks
}

func joinStatements(stmts []string) string {
	out := ""
	for _, s := range stmts {
		out += s + "\n"
	}
	return out
}
