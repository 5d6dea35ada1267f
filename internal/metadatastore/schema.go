package metadatastore

import (
	"context"
	"fmt"

	"github.com/codesearch-core/codesearch/internal/errs"
)

// schemaTargetVersion tracks the logical schema of spec §6.1. Grounded on
// the teacher's versioned-migration bootstrap (ensureSchemaVersionTable +
// getCurrentSchemaVersion + runMigrations up to a targetVersion constant).
const schemaTargetVersion = 1

// InitializeSchema creates the repositories/entity_metadata/file_snapshots/
// outbox tables (spec §6.1) if they do not already exist, tracking the
// applied version the way the teacher's schema_version table does.
func (s *SurrealDBStore) InitializeSchema(ctx context.Context) error {
	if err := s.ensureSchemaVersionTable(ctx); err != nil {
		return fmt.Errorf("ensure schema_version table: %w", err)
	}

	current, err := s.currentSchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current >= schemaTargetVersion {
		return nil
	}

	if _, err := s.query(ctx, schemaV1, nil); err != nil {
		return errs.Wrap(errs.StorageFatal, "metadatastore.InitializeSchema", err)
	}

	if _, err := s.query(ctx, `UPDATE schema_version:current SET version = $version`, map[string]interface{}{
		"version": schemaTargetVersion,
	}); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func (s *SurrealDBStore) ensureSchemaVersionTable(ctx context.Context) error {
	_, err := s.query(ctx, `
		DEFINE TABLE schema_version SCHEMAFULL;
		DEFINE FIELD version ON schema_version TYPE int;
		DEFINE FIELD applied_at ON schema_version TYPE datetime VALUE time::now();
		UPSERT schema_version:current SET version = 0 WHERE version IS NONE;
	`, nil)
	return err
}

func (s *SurrealDBStore) currentSchemaVersion(ctx context.Context) (int, error) {
	rows, err := s.queryOne(ctx, `SELECT version FROM schema_version:current`, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	var row struct {
		Version int `json:"version"`
	}
	if err := decodeRow(rows[0], &row); err != nil {
		return 0, err
	}
	return row.Version, nil
}

// schemaV1 defines the four tables of spec §6.1's logical schema.
const schemaV1 = `
DEFINE TABLE repositories SCHEMAFULL;
DEFINE FIELD name ON repositories TYPE string;
DEFINE FIELD path ON repositories TYPE string;
DEFINE FIELD collection_name ON repositories TYPE string;
DEFINE FIELD git_root ON repositories TYPE option<string>;
DEFINE FIELD last_indexed_commit ON repositories TYPE option<string>;
DEFINE FIELD graph_ready ON repositories TYPE bool DEFAULT false;
DEFINE FIELD bm25_avgdl ON repositories TYPE float DEFAULT 0;
DEFINE INDEX repositories_path_unique ON repositories FIELDS path UNIQUE;

DEFINE TABLE entity_metadata SCHEMAFULL;
DEFINE FIELD repository_id ON entity_metadata TYPE string;
DEFINE FIELD entity_id ON entity_metadata TYPE string;
DEFINE FIELD point_id ON entity_metadata TYPE string;
DEFINE FIELD entity_data ON entity_metadata TYPE object;
DEFINE FIELD content ON entity_metadata TYPE string;
DEFINE FIELD bm25_token_count ON entity_metadata TYPE option<int>;
DEFINE FIELD deleted_at ON entity_metadata TYPE option<datetime>;
DEFINE INDEX entity_metadata_repo_entity ON entity_metadata FIELDS repository_id, entity_id UNIQUE;

DEFINE TABLE file_snapshots SCHEMAFULL;
DEFINE FIELD repository_id ON file_snapshots TYPE string;
DEFINE FIELD file_path ON file_snapshots TYPE string;
DEFINE FIELD entity_ids ON file_snapshots TYPE array<string>;
DEFINE FIELD git_commit ON file_snapshots TYPE option<string>;
DEFINE INDEX file_snapshots_repo_path ON file_snapshots FIELDS repository_id, file_path UNIQUE;

DEFINE TABLE outbox SCHEMAFULL;
DEFINE FIELD repository_id ON outbox TYPE string;
DEFINE FIELD entity_id ON outbox TYPE string;
DEFINE FIELD operation ON outbox TYPE string ASSERT $value IN ["Insert", "Update", "Delete"];
DEFINE FIELD target_store ON outbox TYPE string ASSERT $value IN ["Vector", "Graph"];
DEFINE FIELD payload ON outbox TYPE object;
DEFINE FIELD status ON outbox TYPE string DEFAULT "pending";
DEFINE FIELD attempt_count ON outbox TYPE int DEFAULT 0;
DEFINE FIELD last_error ON outbox TYPE option<string>;
DEFINE FIELD next_attempt_at ON outbox TYPE datetime DEFAULT time::now();
DEFINE FIELD created_at ON outbox TYPE datetime VALUE time::now() READONLY;
DEFINE INDEX outbox_claim ON outbox FIELDS target_store, status, next_attempt_at;
`
