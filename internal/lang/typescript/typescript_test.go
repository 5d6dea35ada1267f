package typescript_test

import (
	"context"
	"testing"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang"
	"github.com/codesearch-core/codesearch/internal/lang/typescript"
)

func extractTS(t *testing.T, source string, language entity.Language) []entity.CodeEntity {
	t.Helper()
	r := lang.NewRegistry()
	typescript.Register(r)
	p := lang.NewParser()
	t.Cleanup(p.Close)

	tree, err := p.Parse(context.Background(), []byte(source), language)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fc := lang.FileContext{Source: []byte(source), FilePath: "mod.ts", RepositoryID: "repo1", Language: language}
	entities, err := r.ExtractFile(context.Background(), fc, language, tree)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return entities
}

func find(entities []entity.CodeEntity, qualified string) *entity.CodeEntity {
	for i := range entities {
		if entities[i].QualifiedName == qualified {
			return &entities[i]
		}
	}
	return nil
}

func TestExportedVsUnexportedVisibility(t *testing.T) {
	entities := extractTS(t, `
export function doThing() {}
function hidden() {}
`, entity.LanguageTypeScript)

	pub := find(entities, "doThing")
	if pub == nil || pub.Visibility != entity.VisibilityPublic {
		t.Fatalf("expected doThing Public, got %+v", pub)
	}
	priv := find(entities, "hidden")
	if priv == nil || priv.Visibility != entity.VisibilityPrivate {
		t.Fatalf("expected hidden Private, got %+v", priv)
	}
}

func TestClassHeritageRelationships(t *testing.T) {
	entities := extractTS(t, `
interface Shape {}

class Circle extends Base implements Shape {
	area() {}
}
`, entity.LanguageTypeScript)

	cls := find(entities, "Circle")
	if cls == nil {
		t.Fatalf("expected class Circle")
	}
	var hasExtends, hasImplements bool
	for _, ref := range cls.Relationships.UsesTypes {
		if ref.RefType == entity.RefExtendsInterface && ref.Target == "Base" {
			hasExtends = true
		}
		if ref.RefType == entity.RefImplements && ref.Target == "Shape" {
			hasImplements = true
		}
	}
	if !hasExtends || !hasImplements {
		t.Fatalf("expected extends Base + implements Shape, got %+v", cls.Relationships.UsesTypes)
	}
	if find(entities, "Circle.area") == nil {
		t.Fatalf("expected method Circle.area")
	}
}

func TestSameHandlersServeJavaScript(t *testing.T) {
	entities := extractTS(t, `
function plain() {}
`, entity.LanguageJavaScript)
	fn := find(entities, "plain")
	if fn == nil || fn.Language != entity.LanguageJavaScript {
		t.Fatalf("expected plain tagged as JavaScript, got %+v", fn)
	}
}
