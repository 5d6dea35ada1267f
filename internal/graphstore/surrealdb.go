package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/errs"
)

// ConnectionConfig dials a remote SurrealDB instance, the same shape C4's and
// C6's ConnectionConfig use — each store's lifecycle is independent.
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
// internal/storage/surrealdb_entities.go (CreateEntity/CreateRelationship/
// TraverseGraph), generalized to three SCHEMAFULL tables shared across
// repositories (graph_nodes, graph_edges, graph_unresolved_edges) filtered
// by repository_id, rather than the teacher's single global "entities"
// table plus one ad-hoc table per relationship type.
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
		return errs.Wrap(errs.StorageFatal, "graphstore: dial", err)
	}
	if s.config.Username != "" {
		if _, err := db.SignIn(&surrealdb.Auth{Username: s.config.Username, Password: s.config.Password}); err != nil {
			return errs.Wrap(errs.StorageFatal, "graphstore: sign in", err)
		}
	}
	if err := db.Use(s.config.Namespace, s.config.Database); err != nil {
		return errs.Wrap(errs.StorageFatal, "graphstore: select namespace/database", err)
	}
	s.db = db
	return s.ensureSchema(ctx)
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

func (s *SurrealDBStore) ensureSchema(ctx context.Context) error {
	ddl := `
		DEFINE TABLE graph_nodes SCHEMAFULL;
		DEFINE FIELD repository_id ON graph_nodes TYPE string;
		DEFINE FIELD entity_id ON graph_nodes TYPE string;
		DEFINE FIELD qualified_name ON graph_nodes TYPE string;
		DEFINE FIELD entity_type ON graph_nodes TYPE string;
		DEFINE FIELD name ON graph_nodes TYPE string;
		DEFINE FIELD file_path ON graph_nodes TYPE string;
		DEFINE FIELD start_line ON graph_nodes TYPE int;
		DEFINE FIELD end_line ON graph_nodes TYPE int;
		DEFINE FIELD visibility ON graph_nodes TYPE string;
		DEFINE INDEX graph_nodes_entity ON graph_nodes FIELDS repository_id, entity_id UNIQUE;
		DEFINE INDEX graph_nodes_qname ON graph_nodes FIELDS repository_id, qualified_name;

		DEFINE TABLE graph_edges SCHEMAFULL;
		DEFINE FIELD repository_id ON graph_edges TYPE string;
		DEFINE FIELD source_entity_id ON graph_edges TYPE string;
		DEFINE FIELD target_entity_id ON graph_edges TYPE string;
		DEFINE FIELD ref_type ON graph_edges TYPE string;
		DEFINE INDEX graph_edges_source ON graph_edges FIELDS repository_id, source_entity_id;
		DEFINE INDEX graph_edges_target ON graph_edges FIELDS repository_id, target_entity_id;

		DEFINE TABLE graph_unresolved_edges SCHEMAFULL;
		DEFINE FIELD repository_id ON graph_unresolved_edges TYPE string;
		DEFINE FIELD source_entity_id ON graph_unresolved_edges TYPE string;
		DEFINE FIELD target_qualified_name ON graph_unresolved_edges TYPE string;
		DEFINE FIELD ref_type ON graph_unresolved_edges TYPE string;
		DEFINE INDEX graph_unresolved_repo ON graph_unresolved_edges FIELDS repository_id;
	`
	_, err := s.query(ctx, ddl, nil)
	if err != nil {
		return errs.Wrap(errs.StorageFatal, "graphstore: ensure schema", err)
	}
	return nil
}

func (s *SurrealDBStore) UpsertNode(ctx context.Context, node Node) error {
	q := `
		UPSERT type::thing("graph_nodes", $rid) CONTENT {
			repository_id: $repository_id, entity_id: $entity_id, qualified_name: $qualified_name,
			entity_type: $entity_type, name: $name, file_path: $file_path,
			start_line: $start_line, end_line: $end_line, visibility: $visibility
		};
	`
	_, err := s.query(ctx, q, map[string]interface{}{
		"rid":            nodeRecordID(node.RepositoryID, node.EntityID),
		"repository_id":  node.RepositoryID,
		"entity_id":      node.EntityID,
		"qualified_name": node.QualifiedName,
		"entity_type":    node.EntityType,
		"name":           node.Name,
		"file_path":      node.FilePath,
		"start_line":     node.StartLine,
		"end_line":       node.EndLine,
		"visibility":     node.Visibility,
	})
	if err != nil {
		return errs.Wrap(errs.StorageTransient, "graphstore: upsert node", err)
	}
	return nil
}

func (s *SurrealDBStore) DeleteNode(ctx context.Context, repositoryID, entityID string) error {
	_, err := s.query(ctx, `DELETE type::thing("graph_nodes", $rid);`, map[string]interface{}{
		"rid": nodeRecordID(repositoryID, entityID),
	})
	if err != nil {
		return errs.Wrap(errs.StorageTransient, "graphstore: delete node", err)
	}
	_, err = s.query(ctx, `
		DELETE graph_edges WHERE repository_id = $repository_id
			AND (source_entity_id = $entity_id OR target_entity_id = $entity_id);
	`, map[string]interface{}{"repository_id": repositoryID, "entity_id": entityID})
	if err != nil {
		return errs.Wrap(errs.StorageTransient, "graphstore: delete node edges", err)
	}
	return nil
}

func (s *SurrealDBStore) AttemptEdges(ctx context.Context, repositoryID, sourceEntityID string, refs []entity.SourceReference) error {
	for _, ref := range refs {
		target, ok, err := s.findNodeByQualifiedName(ctx, repositoryID, ref.Target)
		if err != nil {
			return err
		}
		if ok {
			if err := s.insertEdge(ctx, repositoryID, sourceEntityID, target.EntityID, ref.RefType); err != nil {
				return err
			}
			continue
		}

		external, err := s.ensureExternalNode(ctx, repositoryID, ref.Target)
		if err != nil {
			return err
		}
		if err := s.insertEdge(ctx, repositoryID, sourceEntityID, external.EntityID, ref.RefType); err != nil {
			return err
		}
		if err := s.insertUnresolved(ctx, repositoryID, sourceEntityID, ref.Target, ref.RefType); err != nil {
			return err
		}
	}
	return nil
}

func (s *SurrealDBStore) SweepUnresolved(ctx context.Context, repositoryID string) (int, error) {
	rows, err := s.queryOne(ctx, `SELECT id, source_entity_id, target_qualified_name, ref_type FROM graph_unresolved_edges WHERE repository_id = $repository_id;`,
		map[string]interface{}{"repository_id": repositoryID})
	if err != nil {
		return 0, errs.Wrap(errs.StorageTransient, "graphstore: sweep unresolved fetch", err)
	}

	remaining := 0
	for _, row := range rows {
		targetQName, _ := row["target_qualified_name"].(string)
		sourceEntityID, _ := row["source_entity_id"].(string)
		refType, _ := row["ref_type"].(string)
		recordID := extractRecordID(row["id"])

		target, ok, err := s.findNodeByQualifiedName(ctx, repositoryID, targetQName)
		if err != nil {
			return 0, err
		}
		if !ok {
			remaining++
			continue
		}

		externalID := externalEntityID(targetQName)
		_, err = s.query(ctx, `
			UPDATE graph_edges SET target_entity_id = $new_target
				WHERE repository_id = $repository_id AND source_entity_id = $source_entity_id
				AND target_entity_id = $external_id AND ref_type = $ref_type;
		`, map[string]interface{}{
			"repository_id":   repositoryID,
			"source_entity_id": sourceEntityID,
			"external_id":      externalID,
			"ref_type":         refType,
			"new_target":       target.EntityID,
		})
		if err != nil {
			return 0, errs.Wrap(errs.StorageTransient, "graphstore: sweep upgrade edge", err)
		}

		if recordID != "" {
			if _, err := s.query(ctx, "DELETE "+recordID+";", nil); err != nil {
				return 0, errs.Wrap(errs.StorageTransient, "graphstore: sweep delete resolved row", err)
			}
		}
	}
	return remaining, nil
}

func (s *SurrealDBStore) insertEdge(ctx context.Context, repositoryID, source, target string, refType entity.RefType) error {
	_, err := s.query(ctx, `
		INSERT INTO graph_edges { repository_id: $repository_id, source_entity_id: $source, target_entity_id: $target, ref_type: $ref_type };
	`, map[string]interface{}{"repository_id": repositoryID, "source": source, "target": target, "ref_type": string(refType)})
	if err != nil {
		return errs.Wrap(errs.StorageTransient, "graphstore: insert edge", err)
	}
	return nil
}

func (s *SurrealDBStore) insertUnresolved(ctx context.Context, repositoryID, source, targetQName string, refType entity.RefType) error {
	_, err := s.query(ctx, `
		INSERT INTO graph_unresolved_edges {
			repository_id: $repository_id, source_entity_id: $source,
			target_qualified_name: $target_qname, ref_type: $ref_type
		};
	`, map[string]interface{}{
		"repository_id": repositoryID, "source": source, "target_qname": targetQName, "ref_type": string(refType),
	})
	if err != nil {
		return errs.Wrap(errs.StorageTransient, "graphstore: insert unresolved edge", err)
	}
	return nil
}

func (s *SurrealDBStore) ensureExternalNode(ctx context.Context, repositoryID, qualifiedName string) (Node, error) {
	id := externalEntityID(qualifiedName)
	node := Node{RepositoryID: repositoryID, EntityID: id, QualifiedName: qualifiedName, EntityType: ExternalEntityType, Name: qualifiedName}
	if err := s.UpsertNode(ctx, node); err != nil {
		return Node{}, err
	}
	return node, nil
}

func (s *SurrealDBStore) findNodeByQualifiedName(ctx context.Context, repositoryID, qualifiedName string) (Node, bool, error) {
	rows, err := s.queryOne(ctx, `
		SELECT entity_id, qualified_name, entity_type, name, file_path, start_line, end_line, visibility
		FROM graph_nodes WHERE repository_id = $repository_id AND qualified_name = $qualified_name AND entity_type != $external;
	`, map[string]interface{}{"repository_id": repositoryID, "qualified_name": qualifiedName, "external": ExternalEntityType})
	if err != nil {
		return Node{}, false, errs.Wrap(errs.StorageTransient, "graphstore: find node by qualified name", err)
	}
	if len(rows) == 0 {
		return Node{}, false, nil
	}
	return rowToNode(repositoryID, rows[0]), true, nil
}

// snapshotFromDB fetches every node and edge for repositoryID, the shared
// in-memory view internal/graphstore's traversal.go operates over (the
// teacher's HybridSearch fans out and merges in Go rather than pushing graph
// algorithms into SurrealQL; bounded BFS/SCC over one repository's graph
// follows the same idiom here).
func (s *SurrealDBStore) snapshotFromDB(ctx context.Context, repositoryID string) (snapshot, error) {
	nodeRows, err := s.queryOne(ctx, `
		SELECT entity_id, qualified_name, entity_type, name, file_path, start_line, end_line, visibility
		FROM graph_nodes WHERE repository_id = $repository_id;
	`, map[string]interface{}{"repository_id": repositoryID})
	if err != nil {
		return snapshot{}, errs.Wrap(errs.StorageTransient, "graphstore: snapshot nodes", err)
	}
	edgeRows, err := s.queryOne(ctx, `
		SELECT source_entity_id, target_entity_id, ref_type FROM graph_edges WHERE repository_id = $repository_id;
	`, map[string]interface{}{"repository_id": repositoryID})
	if err != nil {
		return snapshot{}, errs.Wrap(errs.StorageTransient, "graphstore: snapshot edges", err)
	}

	nodes := make([]Node, 0, len(nodeRows))
	for _, row := range nodeRows {
		nodes = append(nodes, rowToNode(repositoryID, row))
	}
	edges := make([]Edge, 0, len(edgeRows))
	for _, row := range edgeRows {
		source, _ := row["source_entity_id"].(string)
		target, _ := row["target_entity_id"].(string)
		refType, _ := row["ref_type"].(string)
		edges = append(edges, Edge{RepositoryID: repositoryID, SourceEntityID: source, TargetEntityID: target, RefType: entity.RefType(refType)})
	}
	return buildSnapshot(nodes, edges), nil
}

func (s *SurrealDBStore) FindFunctionCallers(ctx context.Context, repositoryID, qualifiedName string, maxDepth int) ([]TraversalHit, error) {
	snap, err := s.snapshotFromDB(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	return findFunctionCallers(snap, qualifiedName, maxDepth), nil
}

func (s *SurrealDBStore) FindFunctionCallees(ctx context.Context, repositoryID, qualifiedName string, maxDepth int) ([]TraversalHit, error) {
	snap, err := s.snapshotFromDB(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	return findFunctionCallees(snap, qualifiedName, maxDepth), nil
}

func (s *SurrealDBStore) FindTraitImplementations(ctx context.Context, repositoryID, qualifiedName string) ([]Node, error) {
	snap, err := s.snapshotFromDB(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	return findTraitImplementations(snap, qualifiedName), nil
}

func (s *SurrealDBStore) FindClassHierarchy(ctx context.Context, repositoryID, qualifiedName string) ([]Node, error) {
	snap, err := s.snapshotFromDB(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	return findClassHierarchy(snap, qualifiedName), nil
}

func (s *SurrealDBStore) FindModuleContents(ctx context.Context, repositoryID, qualifiedName string) ([]Node, error) {
	snap, err := s.snapshotFromDB(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	return findModuleContents(snap, qualifiedName), nil
}

func (s *SurrealDBStore) FindModuleDependencies(ctx context.Context, repositoryID, qualifiedName string) ([]ModuleDependency, error) {
	snap, err := s.snapshotFromDB(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	return findModuleDependencies(snap, qualifiedName), nil
}

func (s *SurrealDBStore) FindUnusedFunctions(ctx context.Context, repositoryID string, limit int) ([]Node, error) {
	snap, err := s.snapshotFromDB(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	return findUnusedFunctions(snap, limit), nil
}

func (s *SurrealDBStore) FindCircularDependencies(ctx context.Context, repositoryID string, limit int) ([][]string, error) {
	snap, err := s.snapshotFromDB(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	return findCircularDependencies(snap, limit), nil
}

func rowToNode(repositoryID string, row map[string]interface{}) Node {
	startLine, _ := row["start_line"].(float64)
	endLine, _ := row["end_line"].(float64)
	entityID, _ := row["entity_id"].(string)
	qualifiedName, _ := row["qualified_name"].(string)
	entityType, _ := row["entity_type"].(string)
	name, _ := row["name"].(string)
	filePath, _ := row["file_path"].(string)
	visibility, _ := row["visibility"].(string)
	return Node{
		RepositoryID:  repositoryID,
		EntityID:      entityID,
		QualifiedName: qualifiedName,
		EntityType:    entityType,
		Name:          name,
		FilePath:      filePath,
		StartLine:     int(startLine),
		EndLine:       int(endLine),
		Visibility:    visibility,
	}
}

func nodeRecordID(repositoryID, entityID string) string {
	return repositoryID + ":" + entityID
}

func extractRecordID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case fmt.Stringer:
		return id.String()
	default:
		return ""
	}
}

type queryResult struct {
	Status string                   `json:"status"`
	Time   string                   `json:"time,omitempty"`
	Result []map[string]interface{} `json:"result"`
}

func (s *SurrealDBStore) query(ctx context.Context, q string, params map[string]interface{}) ([]queryResult, error) {
	if s.db == nil {
		return nil, errs.Wrap(errs.StorageFatal, "graphstore: query", fmt.Errorf("not connected"))
	}
	result, err := surrealdb.Query[[]map[string]interface{}](ctx, s.db, q, params)
	if err != nil {
		return nil, errs.Wrap(errs.StorageTransient, "graphstore: query", err)
	}
	if result == nil {
		return nil, nil
	}
	out := make([]queryResult, 0, len(*result))
	for _, qr := range *result {
		if qr.Status != "" && qr.Status != "OK" {
			return nil, errs.Wrap(errs.StorageFatal, "graphstore: query", fmt.Errorf("statement failed: %s", qr.Status))
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
