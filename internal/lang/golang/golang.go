// Package golang implements the Go entity handler set, adapted from the
// teacher's pkg/treesitter/go_extractor.go: the same node-type switch, now
// producing entity.CodeEntity values with qualified names and relationship
// data instead of free-standing CodeSymbol records.
package golang

import (
	"context"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang"
)

// Register adds the Go handler set to r.
func Register(r *lang.Registry) {
	r.RegisterHandler(lang.Handler{Language: entity.LanguageGo, NodeType: "function_declaration", EntityType: entity.EntityTypeFunction, Extract: extractFunction})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageGo, NodeType: "method_declaration", EntityType: entity.EntityTypeMethod, Extract: extractMethod})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageGo, NodeType: "type_declaration", EntityType: entity.EntityTypeStruct, Extract: extractTypeDeclaration})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageGo, NodeType: "const_declaration", EntityType: entity.EntityTypeConstant, Extract: extractVarOrConst})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageGo, NodeType: "var_declaration", EntityType: entity.EntityTypeVariable, Extract: extractVarOrConst})
}

func visibilityOf(name string) entity.Visibility {
	if name == "" {
		return entity.VisibilityPrivate
	}
	r := []rune(name)[0]
	if unicode.IsUpper(r) {
		return entity.VisibilityPublic
	}
	return entity.VisibilityPrivate
}

func extractFunction(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, ".", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeFunction, entity.LanguageGo)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = visibilityOf(name)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)
	e.Signature = functionSignature(node, fc.Source)
	e.Relationships.Calls = lang.ScanCalls(node.ChildByFieldName("body"), fc.Source, "call_expression", "function")
	return []entity.CodeEntity{e}
}

func extractMethod(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)

	receiverType := ""
	if receiver := node.ChildByFieldName("receiver"); receiver != nil {
		for i := 0; i < int(receiver.NamedChildCount()); i++ {
			param := receiver.NamedChild(i)
			if param != nil && param.Type() == "parameter_declaration" {
				if typeNode := param.ChildByFieldName("type"); typeNode != nil {
					receiverType = receiverTypeName(typeNode, fc.Source)
					break
				}
			}
		}
	}

	qualifiedLocal := name
	if receiverType != "" {
		qualifiedLocal = receiverType + "." + name
	}
	qualified := lang.BuildQualifiedName(parentQualified, ".", qualifiedLocal)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeMethod, entity.LanguageGo)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = visibilityOf(name)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)
	e.Signature = functionSignature(node, fc.Source)
	e.Relationships.Calls = lang.ScanCalls(node.ChildByFieldName("body"), fc.Source, "call_expression", "function")
	if receiverType != "" {
		e.Metadata.Attributes = map[string]string{
			"receiver_type": receiverType,
			"call_alias_0":  receiverType + "." + name,
		}
	}
	return []entity.CodeEntity{e}
}

func receiverTypeName(node *sitter.Node, source []byte) string {
	if node.Type() == "pointer_type" {
		if child := node.NamedChild(0); child != nil {
			return receiverTypeName(child, source)
		}
	}
	return lang.NodeContent(node, source)
}

func extractTypeDeclaration(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	var out []entity.CodeEntity
	for i := 0; i < int(node.NamedChildCount()); i++ {
		spec := node.NamedChild(i)
		if spec == nil || spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		name := lang.NodeContent(nameNode, fc.Source)
		qualified := lang.BuildQualifiedName(parentQualified, ".", name)

		var entityType entity.EntityType
		switch typeNode.Type() {
		case "struct_type":
			entityType = entity.EntityTypeStruct
		case "interface_type":
			entityType = entity.EntityTypeInterface
		default:
			entityType = entity.EntityTypeTypeAlias
		}

		e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entityType, entity.LanguageGo)
		e.ParentScope = parentScope
		e.Location = lang.NodeLocation(spec)
		e.Visibility = visibilityOf(name)
		e.Content = lang.NodeContent(spec, fc.Source)
		e.DocumentationSummary = lang.ExtractDocString(spec, fc.Source)
		out = append(out, e)

		switch entityType {
		case entity.EntityTypeStruct:
			out = append(out, structFields(fc, typeNode, &qualified, qualified)...)
		case entity.EntityTypeInterface:
			out = append(out, interfaceMethods(fc, typeNode, &qualified, qualified)...)
		}
	}
	return out
}

func structFields(fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	fieldList := lang.FindChildByType(node, "field_declaration_list")
	if fieldList == nil {
		return nil
	}
	var out []entity.CodeEntity
	for i := 0; i < int(fieldList.NamedChildCount()); i++ {
		field := fieldList.NamedChild(i)
		if field == nil || field.Type() != "field_declaration" {
			continue
		}
		for j := 0; j < int(field.NamedChildCount()); j++ {
			nameNode := field.NamedChild(j)
			if nameNode == nil || nameNode.Type() != "field_identifier" {
				continue
			}
			name := lang.NodeContent(nameNode, fc.Source)
			qualified := lang.BuildQualifiedName(parentQualified, ".", name)
			e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeProperty, entity.LanguageGo)
			e.ParentScope = parentScope
			e.Location = lang.NodeLocation(field)
			e.Visibility = visibilityOf(name)
			e.Content = lang.NodeContent(field, fc.Source)
			out = append(out, e)
		}
	}
	return out
}

func interfaceMethods(fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	var out []entity.CodeEntity
	for i := 0; i < int(node.NamedChildCount()); i++ {
		spec := node.NamedChild(i)
		if spec == nil || spec.Type() != "method_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := lang.NodeContent(nameNode, fc.Source)
		qualified := lang.BuildQualifiedName(parentQualified, ".", name)
		e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeMethod, entity.LanguageGo)
		e.ParentScope = parentScope
		e.Location = lang.NodeLocation(spec)
		e.Visibility = entity.VisibilityNone
		e.Content = lang.NodeContent(spec, fc.Source)
		out = append(out, e)
	}
	return out
}

func extractVarOrConst(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	entityType := entity.EntityTypeVariable
	if node.Type() == "const_declaration" {
		entityType = entity.EntityTypeConstant
	}
	var out []entity.CodeEntity
	for i := 0; i < int(node.NamedChildCount()); i++ {
		spec := node.NamedChild(i)
		if spec == nil {
			continue
		}
		if spec.Type() != "const_spec" && spec.Type() != "var_spec" {
			continue
		}
		for j := 0; j < int(spec.NamedChildCount()); j++ {
			nameNode := spec.NamedChild(j)
			if nameNode == nil || nameNode.Type() != "identifier" {
				continue
			}
			name := lang.NodeContent(nameNode, fc.Source)
			qualified := lang.BuildQualifiedName(parentQualified, ".", name)
			e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entityType, entity.LanguageGo)
			e.ParentScope = parentScope
			e.Location = lang.NodeLocation(spec)
			e.Visibility = visibilityOf(name)
			e.Content = lang.NodeContent(spec, fc.Source)
			e.DocumentationSummary = lang.ExtractDocString(spec, fc.Source)
			out = append(out, e)
		}
	}
	return out
}

func functionSignature(node *sitter.Node, source []byte) *entity.Signature {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	sig := &entity.Signature{}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p == nil || p.Type() != "parameter_declaration" {
			continue
		}
		typeNode := p.ChildByFieldName("type")
		var typ *string
		if typeNode != nil {
			t := lang.NodeContent(typeNode, source)
			typ = &t
		}
		names := lang.FindChildrenByType(p, "identifier")
		if len(names) == 0 {
			sig.Parameters = append(sig.Parameters, entity.Parameter{Type: typ})
			continue
		}
		for _, n := range names {
			sig.Parameters = append(sig.Parameters, entity.Parameter{Name: lang.NodeContent(n, source), Type: typ})
		}
	}
	if result := node.ChildByFieldName("result"); result != nil {
		r := strings.TrimSpace(lang.NodeContent(result, source))
		if r != "" {
			sig.ReturnType = &r
		}
	}
	return sig
}
