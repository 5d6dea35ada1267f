// Package entity defines the typed code-entity model shared by every other
// package: the tree-sitter handler registry produces these values, the
// metadata store persists them, and the outbox carries them to the vector
// and graph stores.
package entity

import (
	"strconv"
	"time"
)

// EntityType enumerates the kinds of CodeEntity a language handler can produce.
type EntityType string

const (
	EntityTypeModule      EntityType = "Module"
	EntityTypeFunction    EntityType = "Function"
	EntityTypeMethod      EntityType = "Method"
	EntityTypeStruct      EntityType = "Struct"
	EntityTypeClass       EntityType = "Class"
	EntityTypeEnum        EntityType = "Enum"
	EntityTypeEnumVariant EntityType = "EnumVariant"
	EntityTypeTrait       EntityType = "Trait"
	EntityTypeInterface   EntityType = "Interface"
	EntityTypeImpl        EntityType = "Impl"
	EntityTypeTypeAlias   EntityType = "TypeAlias"
	EntityTypeConstant    EntityType = "Constant"
	EntityTypeVariable    EntityType = "Variable"
	EntityTypeProperty    EntityType = "Property"
	EntityTypeMacro       EntityType = "Macro"
	EntityTypePackage     EntityType = "Package"
	EntityTypeExternBlock EntityType = "ExternBlock"
	EntityTypeStatic      EntityType = "Static"
)

// Language enumerates the languages a handler registry entry may target.
type Language string

const (
	LanguageGo         Language = "go"
	LanguageRust       Language = "rust"
	LanguagePython     Language = "python"
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
	LanguageJava       Language = "java"
	LanguageUnknown    Language = "unknown"
)

// Visibility mirrors spec §3.1: Public, Internal (crate/package-scoped),
// Private, and None for trait/interface member definitions that carry no
// visibility of their own.
type Visibility string

const (
	VisibilityPublic   Visibility = "Public"
	VisibilityInternal Visibility = "Internal"
	VisibilityPrivate  Visibility = "Private"
	VisibilityNone     Visibility = "None"
)

// RefType enumerates the edge kinds of spec §3.2.
type RefType string

const (
	RefCalls            RefType = "Calls"
	RefContains         RefType = "Contains"
	RefImplements       RefType = "Implements"
	RefAssociates       RefType = "Associates"
	RefExtendsInterface RefType = "ExtendsInterface"
	RefInheritsFrom     RefType = "InheritsFrom"
	RefUses             RefType = "Uses"
	RefImports          RefType = "Imports"
)

// Location is a byte- and line-addressed span within a source file.
// Columns and byte offsets are computed over UTF-8 bytes, not runes, so
// multi-byte identifiers never shift downstream spans.
type Location struct {
	StartLine   int `json:"start_line"`
	EndLine     int `json:"end_line"`
	StartColumn int `json:"start_column"`
	EndColumn   int `json:"end_column"`
	StartByte   int `json:"start_byte"`
	EndByte     int `json:"end_byte"`
}

// Parameter is one entry of a Signature's ordered parameter list.
type Parameter struct {
	Name string  `json:"name"`
	Type *string `json:"type,omitempty"`
}

// Generics captures the generic-parameter metadata supplementing §3.1's
// is_generic/generic_params/generic_bounds flags (original_source carries
// these per-entity; the distilled spec only names the flags).
type Generics struct {
	Params []string `json:"params,omitempty"`
	Bounds []string `json:"bounds,omitempty"`
}

// Signature is the optional callable shape of a Function/Method/Macro entity.
type Signature struct {
	Parameters []Parameter `json:"parameters"`
	ReturnType *string     `json:"return_type,omitempty"`
	IsAsync    bool        `json:"is_async"`
	Generics   Generics    `json:"generics"`
}

// Metadata is the free-form attribute map plus the typed flags spec §3.1
// requires every entity to carry regardless of language.
type Metadata struct {
	IsAsync        bool              `json:"is_async"`
	IsConst        bool              `json:"is_const"`
	IsStatic       bool              `json:"is_static"`
	IsAbstract     bool              `json:"is_abstract"`
	IsGeneric      bool              `json:"is_generic"`
	GenericParams  []string          `json:"generic_params,omitempty"`
	GenericBounds  []string          `json:"generic_bounds,omitempty"`
	Decorators     []string          `json:"decorators,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// SourceReference is an outgoing reference collected at extraction time,
// before cross-file resolution runs (see internal/resolve).
type SourceReference struct {
	Target   string  `json:"target"`
	RefType  RefType `json:"ref_type"`
	Location Location `json:"location"`
}

// EntityRelationshipData groups the references an entity emits, keyed the
// way C3's resolution strategies consume them.
type EntityRelationshipData struct {
	Calls     []SourceReference `json:"calls,omitempty"`
	UsesTypes []SourceReference `json:"uses_types,omitempty"`
	Imports   []SourceReference `json:"imports,omitempty"`
	Contains  []SourceReference `json:"contains,omitempty"`
}

// All flattens the relationship buckets into a single slice, the shape the
// graph store and outbox operate on (§4.5, §4.7 do not distinguish bucket
// kind, only RefType).
func (r EntityRelationshipData) All() []SourceReference {
	total := make([]SourceReference, 0, len(r.Calls)+len(r.UsesTypes)+len(r.Imports)+len(r.Contains))
	total = append(total, r.Calls...)
	total = append(total, r.UsesTypes...)
	total = append(total, r.Imports...)
	total = append(total, r.Contains...)
	return total
}

// CodeEntity is the immutable-by-convention record spec §3.1 describes.
// Entities compare by EntityID only; every other field is an update
// condition, never an identity condition (§4.1).
type CodeEntity struct {
	EntityID             string                  `json:"entity_id"`
	RepositoryID         string                  `json:"repository_id"`
	Name                 string                  `json:"name"`
	QualifiedName        string                  `json:"qualified_name"`
	ParentScope          *string                 `json:"parent_scope,omitempty"`
	EntityType           EntityType              `json:"entity_type"`
	Language             Language                `json:"language"`
	FilePath             string                  `json:"file_path"`
	Location             Location                `json:"location"`
	Visibility           Visibility              `json:"visibility"`
	Signature            *Signature              `json:"signature,omitempty"`
	Metadata             Metadata                `json:"metadata"`
	Content              string                  `json:"content"`
	DocumentationSummary string                  `json:"documentation_summary,omitempty"`
	Relationships        EntityRelationshipData  `json:"relationships"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

// CallAliases returns the extra names (beyond QualifiedName) a caller may
// use to reach this entity, e.g. `T::method` and `<T as Trait>::method` for
// a method defined in `impl Trait for T` (§4.3 strategy 3). Populated by the
// language handler at extraction time via Metadata.Attributes["call_alias_n"].
func (e CodeEntity) CallAliases() []string {
	var aliases []string
	for i := 0; ; i++ {
		v, ok := e.Metadata.Attributes["call_alias_"+strconv.Itoa(i)]
		if !ok {
			break
		}
		aliases = append(aliases, v)
	}
	return aliases
}
