// Package java implements the Java entity handler set, adapted from the
// teacher's pkg/treesitter/java_extractor.go.
package java

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang"
)

// Register adds the Java handler set to r.
func Register(r *lang.Registry) {
	r.RegisterHandler(lang.Handler{Language: entity.LanguageJava, NodeType: "class_declaration", EntityType: entity.EntityTypeClass, Extract: extractClass})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageJava, NodeType: "interface_declaration", EntityType: entity.EntityTypeInterface, Extract: extractInterface})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageJava, NodeType: "enum_declaration", EntityType: entity.EntityTypeEnum, Extract: extractEnum})
}

func modifierVisibility(node *sitter.Node, source []byte) entity.Visibility {
	mods := lang.FindChildByType(node, "modifiers")
	if mods == nil {
		return entity.VisibilityInternal
	}
	text := lang.NodeContent(mods, source)
	switch {
	case contains(text, "public"):
		return entity.VisibilityPublic
	case contains(text, "private"):
		return entity.VisibilityPrivate
	case contains(text, "protected"):
		return entity.VisibilityInternal
	default:
		return entity.VisibilityInternal
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func extractClass(ctx context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, ".", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeClass, entity.LanguageJava)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = modifierVisibility(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)

	if super := node.ChildByFieldName("superclass"); super != nil {
		e.Relationships.UsesTypes = append(e.Relationships.UsesTypes,
			entity.NewSourceReference(lang.NodeContent(super, fc.Source), entity.RefInheritsFrom, lang.NodeLocation(super)))
	}
	if interfaces := node.ChildByFieldName("interfaces"); interfaces != nil {
		list := interfaces
		if typeList := lang.FindChildByType(interfaces, "type_list"); typeList != nil {
			list = typeList
		}
		for i := 0; i < int(list.NamedChildCount()); i++ {
			iface := list.NamedChild(i)
			if iface != nil {
				e.Relationships.UsesTypes = append(e.Relationships.UsesTypes,
					entity.NewSourceReference(lang.NodeContent(iface, fc.Source), entity.RefImplements, lang.NodeLocation(iface)))
			}
		}
	}

	out := []entity.CodeEntity{e}
	body := node.ChildByFieldName("body")
	if body == nil {
		return out
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member == nil {
			continue
		}
		switch member.Type() {
		case "method_declaration", "constructor_declaration":
			if me := extractMethod(fc, member, &qualified, qualified); me != nil {
				out = append(out, *me)
			}
		case "field_declaration":
			out = append(out, extractFields(fc, member, &qualified, qualified)...)
		}
	}
	_ = ctx
	return out
}

func extractMethod(fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) *entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, ".", name)
	entityType := entity.EntityTypeMethod

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entityType, entity.LanguageJava)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = modifierVisibility(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)
	e.Relationships.Calls = lang.ScanCalls(node.ChildByFieldName("body"), fc.Source, "method_invocation", "name")
	return &e
}

func extractFields(fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	var out []entity.CodeEntity
	for i := 0; i < int(node.NamedChildCount()); i++ {
		declarator := node.NamedChild(i)
		if declarator == nil || declarator.Type() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := lang.NodeContent(nameNode, fc.Source)
		qualified := lang.BuildQualifiedName(parentQualified, ".", name)
		e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeProperty, entity.LanguageJava)
		e.ParentScope = parentScope
		e.Location = lang.NodeLocation(node)
		e.Visibility = modifierVisibility(node, fc.Source)
		e.Content = lang.NodeContent(node, fc.Source)
		out = append(out, e)
	}
	return out
}

func extractInterface(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, ".", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeInterface, entity.LanguageJava)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = modifierVisibility(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)

	out := []entity.CodeEntity{e}
	body := node.ChildByFieldName("body")
	if body == nil {
		return out
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member != nil && member.Type() == "method_declaration" {
			if me := extractMethod(fc, member, &qualified, qualified); me != nil {
				me.Visibility = entity.VisibilityNone
				out = append(out, *me)
			}
		}
	}
	return out
}

func extractEnum(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, ".", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeEnum, entity.LanguageJava)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = modifierVisibility(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)

	out := []entity.CodeEntity{e}
	body := lang.FindChildByType(node, "enum_body")
	if body == nil {
		return out
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		constant := body.NamedChild(i)
		if constant == nil || constant.Type() != "enum_constant" {
			continue
		}
		nameNode := constant.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		vname := lang.NodeContent(nameNode, fc.Source)
		vqualified := lang.BuildQualifiedName(qualified, ".", vname)
		ve := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, vqualified, vname, entity.EntityTypeEnumVariant, entity.LanguageJava)
		ve.ParentScope = &qualified
		ve.Location = lang.NodeLocation(constant)
		out = append(out, ve)
	}
	return out
}
