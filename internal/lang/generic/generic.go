// Package generic implements a best-effort fallback handler set for any
// Language value without a first-class package, adapted from the teacher's
// pkg/treesitter.GenericExtractor.
package generic

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang"
)

// symbolNodes mirrors the teacher's GenericExtractor.ExtractSymbols map of
// node type to entity kind: the common denominator across grammars.
var symbolNodes = map[string]entity.EntityType{
	"function_definition":     entity.EntityTypeFunction,
	"function_declaration":    entity.EntityTypeFunction,
	"method_definition":       entity.EntityTypeMethod,
	"method_declaration":      entity.EntityTypeMethod,
	"class_definition":        entity.EntityTypeClass,
	"class_declaration":       entity.EntityTypeClass,
	"struct_definition":       entity.EntityTypeStruct,
	"struct_declaration":      entity.EntityTypeStruct,
	"interface_definition":    entity.EntityTypeInterface,
	"interface_declaration":   entity.EntityTypeInterface,
	"enum_definition":         entity.EntityTypeEnum,
	"enum_declaration":        entity.EntityTypeEnum,
	"type_definition":         entity.EntityTypeTypeAlias,
	"type_declaration":        entity.EntityTypeTypeAlias,
	"const_declaration":       entity.EntityTypeConstant,
	"variable_declaration":    entity.EntityTypeVariable,
	"function_item":           entity.EntityTypeFunction,
	"impl_item":               entity.EntityTypeClass,
	"trait_definition":        entity.EntityTypeTrait,
	"package_declaration":     entity.EntityTypePackage,
	"constructor_declaration": entity.EntityTypeMethod,
}

// Register adds the generic handler set to r under entity.LanguageUnknown.
// Registry.ExtractFile falls back to this set whenever the detected language
// has no first-class handlers registered.
func Register(r *lang.Registry) {
	for nodeType, entityType := range symbolNodes {
		nodeType, entityType := nodeType, entityType
		r.RegisterHandler(lang.Handler{
			Language:   entity.LanguageUnknown,
			NodeType:   nodeType,
			EntityType: entityType,
			Extract: func(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
				name := findNodeName(node, fc.Source)
				if name == "" {
					return nil
				}
				qualified := lang.BuildQualifiedName(parentQualified, "/", name)
				e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entityType, fc.Language)
				e.ParentScope = parentScope
				e.Location = lang.NodeLocation(node)
				e.Content = lang.NodeContent(node, fc.Source)
				e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)
				return []entity.CodeEntity{e}
			},
		})
	}
}

// findNodeName mirrors the teacher's findNodeName: try common name fields,
// unwrap pointer/function declarators, then fall back to the first
// identifier-like child.
func findNodeName(node *sitter.Node, source []byte) string {
	for _, field := range []string{"name", "identifier", "declarator"} {
		child := node.ChildByFieldName(field)
		if child == nil {
			continue
		}
		if child.Type() == "pointer_declarator" || child.Type() == "function_declarator" {
			if nested := child.ChildByFieldName("declarator"); nested != nil {
				return lang.NodeContent(nested, source)
			}
		}
		return lang.NodeContent(child, source)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && (child.Type() == "identifier" || child.Type() == "type_identifier") {
			return lang.NodeContent(child, source)
		}
	}
	return ""
}
