// Package lang implements C2: a per-language registry of declarative
// handlers mapping AST node kinds to CodeEntity constructors, grounded on
// the teacher's pkg/treesitter package. Where the teacher's extractors
// switch on node.Type() inline, this package generalizes that dispatch into
// an explicit registry so adding a language or entity kind is purely
// additive (spec §9 "Polymorphism over handlers").
package lang

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// FileContext carries the per-file parameters a Handler needs to build
// entities with correctly scoped qualified names (§4.2's extraction
// function signature).
type FileContext struct {
	Source       []byte
	FilePath     string
	RepositoryID string
	PackageName  string
	SourceRoot   string
	Language     entity.Language
}

// ExtractFunc is the per-handler extraction function of §4.2: given the
// matched node and its file context plus the enclosing qualified-name
// scope, it returns zero or more entities (a struct handler also returns
// its fields; an enum handler also returns its variants).
type ExtractFunc func(ctx context.Context, fc FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity

// SkipFunc reports whether a node should be suppressed because a parent
// handler already covers it (§4.2 "nested extractions that would
// duplicate work are suppressed").
type SkipFunc func(node *sitter.Node) bool

// Handler is one entry of the registry: language, the AST node kind that
// triggers it ("primary_capture" in spec terms), the entity kind it
// produces, and its extraction function.
type Handler struct {
	Language   entity.Language
	NodeType   string
	EntityType entity.EntityType
	Extract    ExtractFunc
	Skip       SkipFunc
}

// Registry is the read-only-after-init, process-wide handler map (spec §9
// "the only process-wide state is the handler registry").
type Registry struct {
	mu       sync.RWMutex
	handlers map[entity.Language]map[string]Handler
}

// NewRegistry returns an empty registry; callers compose it with one or
// more language packages' Register functions.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[entity.Language]map[string]Handler)}
}

// RegisterHandler adds h to the registry. Registering two handlers for the
// same (language, node type) is a programming error: the second
// registration replaces the first, since handlers are meant to be
// one-per-node-kind within a language.
func (r *Registry) RegisterHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byType, ok := r.handlers[h.Language]
	if !ok {
		byType = make(map[string]Handler)
		r.handlers[h.Language] = byType
	}
	byType[h.NodeType] = h
}

// HandlersFor returns the handler set registered for a language, or nil if
// none are registered (callers fall back to the generic handler set).
func (r *Registry) HandlersFor(lang entity.Language) map[string]Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[lang]
}

// SupportsLanguage reports whether any handler is registered for lang.
func (r *Registry) SupportsLanguage(lang entity.Language) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[lang]
	return ok
}

// ExtractFile walks tree in depth-first order, dispatching each node to the
// registered handler for its type (§4.2 "iterate matches of the union of
// language queries, route to handlers by capture name"). Handlers whose
// Skip reports true for a node are not invoked for it — this is how nested
// extractions are suppressed (e.g. a free-function handler does not also
// fire for functions already covered by an impl-block handler).
func (r *Registry) ExtractFile(ctx context.Context, fc FileContext, lang entity.Language, tree *sitter.Tree) ([]entity.CodeEntity, error) {
	if tree == nil {
		return nil, fmt.Errorf("lang: nil syntax tree for %s", fc.FilePath)
	}
	byType := r.HandlersFor(lang)
	if byType == nil {
		byType = r.HandlersFor(entity.LanguageUnknown)
	}
	if byType == nil {
		return nil, fmt.Errorf("lang: no handlers registered for language %q", lang)
	}

	var entities []entity.CodeEntity
	walker := &fileWalker{fc: fc, handlers: byType, ctx: ctx}
	walker.walk(tree.RootNode(), nil, "")
	entities = append(entities, walker.entities...)
	if lang == entity.LanguageRust {
		entities = synthesizeCrateRoot(fc, entities)
	}
	return entities, nil
}

// synthesizeCrateRoot gives Rust's top-level items (whose ParentScope is nil
// because they have no enclosing mod_item) a real Module entity to belong
// to, named "crate" per rootQualified's own qualified-name convention (§8
// scenario 3: find_module_contents("crate") must return the file's
// top-level trait/struct/impl once it is extracted). Nested mod_item trees
// already carry a non-nil ParentScope from their enclosing module and need
// no synthetic parent.
func synthesizeCrateRoot(fc FileContext, entities []entity.CodeEntity) []entity.CodeEntity {
	const crateQualified = "crate"
	hasTopLevel := false
	for i := range entities {
		if entities[i].ParentScope == nil {
			hasTopLevel = true
			break
		}
	}
	if !hasTopLevel {
		return entities
	}
	root := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, crateQualified, crateQualified, entity.EntityTypeModule, entity.LanguageRust)
	root.Visibility = entity.VisibilityPublic
	qn := crateQualified
	for i := range entities {
		if entities[i].ParentScope == nil {
			entities[i].ParentScope = &qn
		}
	}
	return append([]entity.CodeEntity{root}, entities...)
}

type fileWalker struct {
	fc       FileContext
	handlers map[string]Handler
	ctx      context.Context
	entities []entity.CodeEntity
}

func (w *fileWalker) walk(node *sitter.Node, parentScope *string, parentQualified string) {
	if node == nil {
		return
	}
	h, ok := w.handlers[node.Type()]
	if ok && (h.Skip == nil || !h.Skip(node)) {
		produced := h.Extract(w.ctx, w.fc, node, parentScope, parentQualified)
		w.entities = append(w.entities, produced...)
		for i := range produced {
			w.descendInto(node, &produced[i].QualifiedName)
		}
		return
	}
	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		w.walk(node.NamedChild(i), parentScope, parentQualified)
	}
}

// descendInto continues the walk under node once a handler has consumed
// it, so e.g. a struct handler's own fields (already emitted by that
// handler) are not re-visited, but nested declarations the handler did not
// cover (a closure body, a nested function) still are.
func (w *fileWalker) descendInto(node *sitter.Node, qualified *string) {
	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if _, handled := w.handlers[child.Type()]; handled {
			w.walk(child, qualified, *qualified)
			continue
		}
		w.descendInto(child, qualified)
	}
}
