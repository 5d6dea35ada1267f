// Package python implements the Python entity handler set, adapted from
// the teacher's pkg/treesitter/python_extractor.go.
package python

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang"
)

// Register adds the Python handler set to r.
func Register(r *lang.Registry) {
	r.RegisterHandler(lang.Handler{Language: entity.LanguagePython, NodeType: "class_definition", EntityType: entity.EntityTypeClass, Extract: extractClass})
	r.RegisterHandler(lang.Handler{Language: entity.LanguagePython, NodeType: "function_definition", EntityType: entity.EntityTypeFunction, Extract: extractFunction})
	r.RegisterHandler(lang.Handler{Language: entity.LanguagePython, NodeType: "decorated_definition", EntityType: entity.EntityTypeFunction, Extract: extractDecorated})
}

func visibilityOf(name string) entity.Visibility {
	if strings.HasPrefix(name, "_") {
		return entity.VisibilityPrivate
	}
	return entity.VisibilityPublic
}

func decorators(node *sitter.Node, source []byte) []string {
	if node.Type() != "decorated_definition" {
		return nil
	}
	var out []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child != nil && child.Type() == "decorator" {
			out = append(out, strings.TrimPrefix(lang.NodeContent(child, source), "@"))
		}
	}
	return out
}

func extractDecorated(ctx context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	defNode := lang.FindChildByType(node, "function_definition")
	if defNode == nil {
		defNode = lang.FindChildByType(node, "class_definition")
	}
	if defNode == nil {
		return nil
	}
	var out []entity.CodeEntity
	if defNode.Type() == "class_definition" {
		out = extractClass(ctx, fc, defNode, parentScope, parentQualified)
	} else {
		out = extractFunction(ctx, fc, defNode, parentScope, parentQualified)
	}
	decs := decorators(node, fc.Source)
	for i := range out {
		out[i].Metadata.Decorators = decs
	}
	return out
}

func extractClass(ctx context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, ".", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeClass, entity.LanguagePython)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = visibilityOf(name)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = docString(node, fc.Source)

	if superclasses := node.ChildByFieldName("superclasses"); superclasses != nil {
		for i := 0; i < int(superclasses.NamedChildCount()); i++ {
			arg := superclasses.NamedChild(i)
			if arg != nil {
				e.Relationships.UsesTypes = append(e.Relationships.UsesTypes,
					entity.NewSourceReference(lang.NodeContent(arg, fc.Source), entity.RefInheritsFrom, lang.NodeLocation(arg)))
			}
		}
	}

	out := []entity.CodeEntity{e}
	body := node.ChildByFieldName("body")
	if body == nil {
		return out
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_definition":
			methods := extractFunction(ctx, fc, child, &qualified, qualified)
			for j := range methods {
				methods[j].EntityType = entity.EntityTypeMethod
			}
			out = append(out, methods...)
		case "decorated_definition":
			out = append(out, extractDecorated(ctx, fc, child, &qualified, qualified)...)
		}
	}
	return out
}

func extractFunction(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, ".", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeFunction, entity.LanguagePython)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = visibilityOf(name)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = docString(node, fc.Source)
	e.Signature = functionSignature(node, fc.Source)
	e.Relationships.Calls = lang.ScanCalls(node.ChildByFieldName("body"), fc.Source, "call", "function")
	return []entity.CodeEntity{e}
}

// docString reads PEP 257's convention: the first statement of the body
// being a bare string_literal expression, rather than the teacher's
// comment-sibling heuristic (Python doesn't use comment docstrings).
func docString(node *sitter.Node, source []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Type() != "expression_statement" {
		return ""
	}
	if first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str == nil || str.Type() != "string" {
		return ""
	}
	return strings.Trim(lang.NodeContent(str, source), "\"'")
}

func functionSignature(node *sitter.Node, source []byte) *entity.Signature {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	sig := &entity.Signature{}
	if lang.FindChildByType(node, "async") != nil {
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
		case "typed_parameter":
			nameNode := p.NamedChild(0)
			typeNode := p.ChildByFieldName("type")
			var typ *string
			if typeNode != nil {
				t := lang.NodeContent(typeNode, source)
				typ = &t
			}
			if nameNode != nil {
				sig.Parameters = append(sig.Parameters, entity.Parameter{Name: lang.NodeContent(nameNode, source), Type: typ})
			}
		case "default_parameter", "typed_default_parameter":
			nameNode := p.ChildByFieldName("name")
			if nameNode != nil {
				sig.Parameters = append(sig.Parameters, entity.Parameter{Name: lang.NodeContent(nameNode, source)})
			}
		}
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		r := lang.NodeContent(ret, source)
		sig.ReturnType = &r
	}
	return sig
}
