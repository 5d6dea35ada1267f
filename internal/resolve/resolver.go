package resolve

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// ResolvedReference is the outcome of resolving a SourceReference: either a
// repo-local target entity ID, or a mark that the reference points outside
// the indexed repository (spec §4.3: "ResolvedReference{target, is_external}").
type ResolvedReference struct {
	Target     entity.SourceReference
	EntityID   string
	IsExternal bool
	Strategy   string
	Ambiguous  bool
}

// Resolver holds the per-repository indexes spec §4.3 describes, built
// once from a full entity set and then queried per reference. Grounded on
// the teacher's CallResolver (package index / global function registry /
// qualified-function index), generalized from Go-only identifiers to any
// language's qualified names via PathConfig.
type Resolver struct {
	mu sync.RWMutex

	byQualifiedName map[string]string   // qualified name -> entity ID
	byCallAlias     map[string]string   // call alias -> entity ID
	bySimpleName    map[string][]string // simple name -> entity IDs (ambiguity set)
	importMaps      map[string]*ImportMap

	edgeCases []EdgeCaseHandler
	logger    *slog.Logger
}

// NewResolver returns an empty Resolver with the default edge-case handlers.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		byQualifiedName: make(map[string]string),
		byCallAlias:     make(map[string]string),
		bySimpleName:    make(map[string][]string),
		importMaps:      make(map[string]*ImportMap),
		edgeCases:       DefaultEdgeCaseHandlers(),
		logger:          logger,
	}
}

// BuildIndex populates the resolver's lookup tables from a full set of
// entities (spec §4.3's "global function registry" equivalent, generalized
// to every entity kind since references may target types as well as
// functions).
func (r *Resolver) BuildIndex(entities []entity.CodeEntity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entities {
		r.byQualifiedName[e.QualifiedName] = e.EntityID
		r.bySimpleName[e.Name] = append(r.bySimpleName[e.Name], e.EntityID)
		for _, alias := range e.CallAliases() {
			r.byCallAlias[alias] = e.EntityID
		}
	}
}

// SetImportMap attaches a file's ImportMap, used by the PathEntityIdentifier
// strategy.
func (r *Resolver) SetImportMap(filePath string, m *ImportMap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.importMaps[filePath] = m
}

// Resolve implements the six ordered strategies of spec §4.3 for a single
// reference extracted from sourceFilePath.
func (r *Resolver) Resolve(ref entity.SourceReference, sourceFilePath string) ResolvedReference {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target := ref.Target

	// 1. QualifiedName: already absolute.
	if id, ok := r.byQualifiedName[target]; ok {
		return ResolvedReference{Target: ref, EntityID: id, Strategy: "QualifiedName"}
	}

	// 2. Edge-case handlers.
	for _, h := range r.edgeCases {
		if !h.Applies(target) {
			continue
		}
		normalized, external := h.Resolve(target)
		if external {
			return ResolvedReference{Target: ref, IsExternal: true, Strategy: "EdgeCase:" + h.Name}
		}
		if normalized != target {
			if resolved, ok := r.resolveNormalized(normalized, sourceFilePath); ok {
				resolved.Target = ref
				return resolved
			}
			target = normalized
		}
	}

	if resolved, ok := r.resolveNormalized(target, sourceFilePath); ok {
		resolved.Target = ref
		return resolved
	}

	return ResolvedReference{Target: ref, IsExternal: true, Strategy: "unresolved"}
}

// resolveNormalized runs strategies 3-6 against a (possibly edge-case
// normalized) target string.
func (r *Resolver) resolveNormalized(target, sourceFilePath string) (ResolvedReference, bool) {
	// 3. CallAliases.
	if id, ok := r.byCallAlias[target]; ok {
		return ResolvedReference{EntityID: id, Strategy: "CallAliases"}, true
	}

	// 4. PathEntityIdentifier: split on the last separator, resolve the
	// qualifier through the file's ImportMap, and retry QualifiedName on
	// the rejoined absolute path.
	if id, ok := r.resolvePathEntityIdentifier(target, sourceFilePath); ok {
		return ResolvedReference{EntityID: id, Strategy: "PathEntityIdentifier"}, true
	}

	simpleName := lastSegment(target)
	candidates := r.bySimpleName[simpleName]

	// 5. UniqueSimpleName.
	if len(candidates) == 1 {
		return ResolvedReference{EntityID: candidates[0], Strategy: "UniqueSimpleName"}, true
	}

	// 6. SimpleName: ambiguous, first match wins, logged.
	if len(candidates) > 1 {
		sorted := append([]string(nil), candidates...)
		sort.Strings(sorted)
		r.logger.Warn("ambiguous simple-name reference resolved to first match",
			"target", target, "chosen_entity_id", sorted[0], "candidate_count", len(sorted),
			"nearest_alternative_distance", nearestAlternativeDistance(simpleName, sorted))
		return ResolvedReference{EntityID: sorted[0], Strategy: "SimpleName", Ambiguous: true}, true
	}

	return ResolvedReference{}, false
}

func (r *Resolver) resolvePathEntityIdentifier(target, sourceFilePath string) (string, bool) {
	im, ok := r.importMaps[sourceFilePath]
	if !ok {
		return "", false
	}
	for _, sep := range []string{"::", "."} {
		idx := strings.LastIndex(target, sep)
		if idx < 0 {
			continue
		}
		qualifier, member := target[:idx], target[idx+len(sep):]
		if abs, ok := im.Resolve(qualifier); ok {
			candidate := abs + sep + member
			if id, ok := r.byQualifiedName[candidate]; ok {
				return id, true
			}
		}
	}
	for _, glob := range im.GlobSources {
		for _, sep := range []string{"::", "."} {
			candidate := glob + sep + target
			if id, ok := r.byQualifiedName[candidate]; ok {
				return id, true
			}
		}
	}
	return "", false
}

// nearestAlternativeDistance is a diagnostic aid logged alongside an
// ambiguous SimpleName resolution: the Levenshtein distance from the chosen
// candidate's entity ID to the runner-up, so operators can judge how
// confusable the pair is.
func nearestAlternativeDistance(_ string, sorted []string) int {
	if len(sorted) < 2 {
		return -1
	}
	return levenshtein.ComputeDistance(sorted[0], sorted[1])
}
