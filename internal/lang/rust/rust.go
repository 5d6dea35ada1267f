// Package rust implements the Rust entity handler set, adapted from the
// teacher's pkg/treesitter/rust_extractor.go. Impl-block methods carry
// call-alias metadata (`T::method`, `<T as Trait>::method`) so C3's
// CallAliases resolution strategy (§4.3) can match both forms, and the
// qualified name itself embeds the disambiguating impl token the spec's
// trait-impl scenario (§8, scenario 3) expects:
// `crate::<crate::H as crate::Handler>`.
package rust

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang"
)

// Register adds the Rust handler set to r.
func Register(r *lang.Registry) {
	r.RegisterHandler(lang.Handler{Language: entity.LanguageRust, NodeType: "struct_item", EntityType: entity.EntityTypeStruct, Extract: extractStruct})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageRust, NodeType: "enum_item", EntityType: entity.EntityTypeEnum, Extract: extractEnum})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageRust, NodeType: "trait_item", EntityType: entity.EntityTypeTrait, Extract: extractTrait})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageRust, NodeType: "impl_item", EntityType: entity.EntityTypeImpl, Extract: extractImpl})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageRust, NodeType: "function_item", EntityType: entity.EntityTypeFunction, Extract: extractFreeFunction, Skip: insideImpl})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageRust, NodeType: "const_item", EntityType: entity.EntityTypeConstant, Extract: extractConst})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageRust, NodeType: "static_item", EntityType: entity.EntityTypeStatic, Extract: extractStatic})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageRust, NodeType: "type_item", EntityType: entity.EntityTypeTypeAlias, Extract: extractTypeAlias})
	r.RegisterHandler(lang.Handler{Language: entity.LanguageRust, NodeType: "mod_item", EntityType: entity.EntityTypeModule, Extract: extractModule})
}

// insideImpl reports whether a function_item sits directly in an impl
// block's declaration_list; extractImpl already emits those as methods.
func insideImpl(node *sitter.Node) bool {
	p := node.Parent()
	return p != nil && p.Type() == "declaration_list" && p.Parent() != nil && p.Parent().Type() == "impl_item"
}

func rootQualified(parentQualified string) string {
	if parentQualified == "" {
		return "crate"
	}
	return parentQualified
}

func visibilityOf(node *sitter.Node, source []byte) entity.Visibility {
	vis := lang.FindChildByType(node, "visibility_modifier")
	if vis == nil {
		return entity.VisibilityPrivate
	}
	text := lang.NodeContent(vis, source)
	if text == "pub" {
		return entity.VisibilityPublic
	}
	return entity.VisibilityInternal
}

func extractStruct(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	root := rootQualified(parentQualified)
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(root, "::", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeStruct, entity.LanguageRust)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = visibilityOf(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)
	out := []entity.CodeEntity{e}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			field := body.NamedChild(i)
			if field == nil || field.Type() != "field_declaration" {
				continue
			}
			if fieldName := field.ChildByFieldName("name"); fieldName != nil {
				fname := lang.NodeContent(fieldName, fc.Source)
				fqualified := lang.BuildQualifiedName(qualified, "::", fname)
				fe := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, fqualified, fname, entity.EntityTypeProperty, entity.LanguageRust)
				fe.ParentScope = &qualified
				fe.Location = lang.NodeLocation(field)
				fe.Visibility = visibilityOf(field, fc.Source)
				fe.Content = lang.NodeContent(field, fc.Source)
				out = append(out, fe)
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
	root := rootQualified(parentQualified)
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(root, "::", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeEnum, entity.LanguageRust)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = visibilityOf(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)
	out := []entity.CodeEntity{e}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			variant := body.NamedChild(i)
			if variant == nil || variant.Type() != "enum_variant" {
				continue
			}
			if vn := variant.ChildByFieldName("name"); vn != nil {
				vname := lang.NodeContent(vn, fc.Source)
				vqualified := lang.BuildQualifiedName(qualified, "::", vname)
				ve := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, vqualified, vname, entity.EntityTypeEnumVariant, entity.LanguageRust)
				ve.ParentScope = &qualified
				ve.Location = lang.NodeLocation(variant)
				out = append(out, ve)
			}
		}
	}
	return out
}

func extractTrait(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	root := rootQualified(parentQualified)
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(root, "::", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeTrait, entity.LanguageRust)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = visibilityOf(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)

	out := []entity.CodeEntity{e}
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(i)
			if child == nil || child.Type() != "function_signature_item" {
				continue
			}
			if mn := child.ChildByFieldName("name"); mn != nil {
				mname := lang.NodeContent(mn, fc.Source)
				mqualified := lang.BuildQualifiedName(qualified, "::", mname)
				me := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, mqualified, mname, entity.EntityTypeMethod, entity.LanguageRust)
				me.ParentScope = &qualified
				me.Location = lang.NodeLocation(child)
				me.Visibility = entity.VisibilityNone
				me.Content = lang.NodeContent(child, fc.Source)
				out = append(out, me)
			}
		}
	}
	return out
}

// extractImpl produces the Impl entity itself plus its methods, with a
// qualified name of the form `crate::<crate::Type as crate::Trait>` for
// trait impls (matching §8 scenario 3) or `crate::Type` for inherent
// impls, and attaches call-alias metadata to each method.
func extractImpl(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return nil
	}
	root := rootQualified(parentQualified)
	typeName := lang.NodeContent(typeNode, fc.Source)
	traitNode := node.ChildByFieldName("trait")

	var implQualified, implLocalDisambiguator string
	if traitNode != nil {
		traitName := lang.NodeContent(traitNode, fc.Source)
		implLocalDisambiguator = "<" + root + "::" + typeName + " as " + root + "::" + traitName + ">"
		implQualified = lang.BuildQualifiedName(root, "::", implLocalDisambiguator)
	} else {
		implLocalDisambiguator = typeName
		implQualified = lang.BuildQualifiedName(root, "::", typeName)
	}

	implEntity := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, implQualified, implLocalDisambiguator, entity.EntityTypeImpl, entity.LanguageRust)
	implEntity.ParentScope = parentScope
	implEntity.Location = lang.NodeLocation(node)
	implEntity.Content = lang.NodeContent(node, fc.Source)
	if traitNode != nil {
		implEntity.Relationships.UsesTypes = append(implEntity.Relationships.UsesTypes,
			entity.NewSourceReference(root+"::"+lang.NodeContent(traitNode, fc.Source), entity.RefImplements, lang.NodeLocation(node)))
	}
	implEntity.Relationships.UsesTypes = append(implEntity.Relationships.UsesTypes,
		entity.NewSourceReference(root+"::"+typeName, entity.RefAssociates, lang.NodeLocation(node)))

	out := []entity.CodeEntity{implEntity}

	body := node.ChildByFieldName("body")
	if body == nil {
		return out
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child == nil || child.Type() != "function_item" {
			continue
		}
		methods := extractFreeFunction(nil, fc, child, &implQualified, implQualified)
		for j := range methods {
			m := &methods[j]
			m.EntityType = entity.EntityTypeMethod
			if m.Metadata.Attributes == nil {
				m.Metadata.Attributes = map[string]string{}
			}
			m.Metadata.Attributes["impl_type"] = typeName
			m.Metadata.Attributes["call_alias_0"] = typeName + "::" + m.Name
			if traitNode != nil {
				m.Metadata.Attributes["call_alias_1"] = "<" + typeName + " as " + lang.NodeContent(traitNode, fc.Source) + ">::" + m.Name
			}
		}
		out = append(out, methods...)
	}
	return out
}

func extractFreeFunction(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, "::", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeFunction, entity.LanguageRust)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = visibilityOf(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)
	e.Signature = functionSignature(node, fc.Source)
	e.Relationships.Calls = lang.ScanCalls(node.ChildByFieldName("body"), fc.Source, "call_expression", "function")
	return []entity.CodeEntity{e}
}

func extractConst(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	return extractSimpleNamed(fc, node, parentScope, parentQualified, entity.EntityTypeConstant)
}

func extractStatic(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	return extractSimpleNamed(fc, node, parentScope, parentQualified, entity.EntityTypeStatic)
}

func extractTypeAlias(_ context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	return extractSimpleNamed(fc, node, parentScope, parentQualified, entity.EntityTypeTypeAlias)
}

func extractSimpleNamed(fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string, et entity.EntityType) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(parentQualified, "::", name)
	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, et, entity.LanguageRust)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = visibilityOf(node, fc.Source)
	e.Content = lang.NodeContent(node, fc.Source)
	e.DocumentationSummary = lang.ExtractDocString(node, fc.Source)
	return []entity.CodeEntity{e}
}

func extractModule(ctx context.Context, fc lang.FileContext, node *sitter.Node, parentScope *string, parentQualified string) []entity.CodeEntity {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	root := rootQualified(parentQualified)
	name := lang.NodeContent(nameNode, fc.Source)
	qualified := lang.BuildQualifiedName(root, "::", name)

	e := entity.NewCodeEntity(fc.RepositoryID, fc.FilePath, qualified, name, entity.EntityTypeModule, entity.LanguageRust)
	e.ParentScope = parentScope
	e.Location = lang.NodeLocation(node)
	e.Visibility = visibilityOf(node, fc.Source)
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
		case "struct_item":
			out = append(out, extractStruct(ctx, fc, child, &qualified, qualified)...)
		case "enum_item":
			out = append(out, extractEnum(ctx, fc, child, &qualified, qualified)...)
		case "trait_item":
			out = append(out, extractTrait(ctx, fc, child, &qualified, qualified)...)
		case "impl_item":
			out = append(out, extractImpl(ctx, fc, child, &qualified, qualified)...)
		case "function_item":
			out = append(out, extractFreeFunction(ctx, fc, child, &qualified, qualified)...)
		case "mod_item":
			out = append(out, extractModule(ctx, fc, child, &qualified, qualified)...)
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
		if p == nil || p.Type() != "parameter" {
			continue
		}
		pattern := p.ChildByFieldName("pattern")
		typeNode := p.ChildByFieldName("type")
		var nm string
		if pattern != nil {
			nm = lang.NodeContent(pattern, source)
		}
		var typ *string
		if typeNode != nil {
			t := lang.NodeContent(typeNode, source)
			typ = &t
		}
		sig.Parameters = append(sig.Parameters, entity.Parameter{Name: nm, Type: typ})
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		r := strings.TrimSpace(lang.NodeContent(ret, source))
		if r != "" {
			sig.ReturnType = &r
		}
	}
	return sig
}
