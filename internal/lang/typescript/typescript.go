// Package typescript implements the TypeScript/JavaScript entity handler
// set, adapted from the teacher's pkg/treesitter/typescript_extractor.go
// and javascript_extractor.go (the two grammars share enough node shape
// that one handler set, registered under both languages, covers both).
package typescript

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang"
)

// Register adds the handler set to r under both LanguageTypeScript and
// LanguageJavaScript.
func Register(r *lang.Registry) {
	for _, l := range []entity.Language{entity.LanguageTypeScript, entity.LanguageJavaScript} {
		r.RegisterHandler(lang.Handler{Language: l, NodeType: "class_declaration", EntityType: entity.EntityTypeClass, Extract: extractClass})
		r.RegisterHandler(lang.Handler{Language: l, NodeType: "interface_declaration", EntityType: entity.EntityTypeInterface, Extract: extractInterface})
		r.RegisterHandler(lang.Handler{Language: l, NodeType: "function_declaration", EntityType: entity.EntityTypeFunction, Extract: extractFunction})
		r.RegisterHandler(lang.Handler{Language: l, NodeType: "type_alias_declaration", EntityType: entity.EntityTypeTypeAlias, Extract: extractTypeAlias})
	}
}

func extractClass(ctx context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, ".", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeClass, fc.Language)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = exportVisibility(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)

	if heritage := lang.FindChildByType(node, "class_heritage"); heritage != nil {
		for i := 0; i < int(heritage.NamedChildCount()); i++ {
			clause := heritage.NamedChild(i)
			if clause == nil {
				continue
			}
			refType := entity.RefImplements
			if clause.Type() == "extends_clause" {
				refType = entity.RefExtendsInterface
			}
			for j := 0; j < int(clause.NamedChildCount()); j++ {
				target := clause.NamedChild(j)
				if target != nil {
					e.Relationships.UsesTypes = append(e.Relationships.UsesTypes,
						entity.NewSourceReference(lang.NodeContent(target, fc.Source), refType, lang.NodeLocation(target)))
				}
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
		if member == nil || member.Type() != "method_definition" {
			continue
		}
		nameNode := member.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		mname := lang.NodeContent(nameNode, fc.Source)
		mqualified := lang.BuildQualifiedName(qualified, ".", mname)
		me := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, mqualified, mname, entity.EntityTypeMethod, fc.Language)
		me.ParentScope = &qualified
		me.Location = lang.NodeLocation(member)
		me.Content = lang.NodeContent(member, fc.Source)
		me.Relationships.Calls = lang.ScanCalls(member.ChildByFieldName("body"), fc.Source, "call_expression", "function")
		out = append(out, me)
		_ = ctx
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

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeInterface, fc.Language)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = exportVisibility(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)

	if extends := lang.FindChildByType(node, "extends_type_clause"); extends != nil {
		for i := 0; i < int(extends.NamedChildCount()); i++ {
			target := extends.NamedChild(i)
			if target != nil {
				e.Relationships.UsesTypes = append(e.Relationships.UsesTypes,
					entity.NewSourceReference(lang.NodeContent(target, fc.Source), entity.RefExtendsInterface, lang.NodeLocation(target)))
			}
		}
	}
	return []entity.CodeEntity{e}
}

func extractFunction(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, ".", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeFunction, fc.Language)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = exportVisibility(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)
	e.Signature = functionSignature(node, fc.Source)
	e.Relationships.Calls = lang.ScanCalls(node.ChildByFieldName("body"), fc.Source, "call_expression", "function")
	return []entity.CodeEntity{e}
}

func extractTypeAlias(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, ".", name)
	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeTypeAlias, fc.Language)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = exportVisibility(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	return []entity.CodeEntity{e}
}

// exportVisibility walks up to the nearest export_statement ancestor;
// TypeScript/JavaScript visibility is a module-export concept, not a
// per-declaration keyword.
func exportVisibility(node *sitter.Node, _ []byte) entity.Visibility {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Type() == "export_statement" {
			return entity.VisibilityPublic
		}
	}
	return entity.VisibilityPrivate
}

func functionSignature(node *sitter.Node, source []byte) *entity.Signature {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	sig := &entity.Signature{}
	if child := node.Child(0); child != nil && lang.NodeContent(child, source) == "async" {
		sig.IsAsync = true
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p == nil {
			continue
		}
		switch p.Type() {
		case "identifier":
			sig.Parameters = append(sig.Parameters, entity.Parameter{Name: lang.NodeContent(p, source)})
		case "required_parameter", "optional_parameter":
			patternNode := p.ChildByFieldName("pattern")
			typeNode := p.ChildByFieldName("type")
			var typ *string
			if typeNode != nil {
				t := lang.NodeContent(typeNode, source)
				typ = &t
			}
			if patternNode != nil {
				sig.Parameters = append(sig.Parameters, entity.Parameter{Name: lang.NodeContent(patternNode, source), Type: typ})
			}
		}
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		r := strings.TrimPrefix(lang.NodeContent(ret, source), ":")
		r = strings.TrimSpace(r)
		sig.ReturnType = &r
	}
	return sig
}
