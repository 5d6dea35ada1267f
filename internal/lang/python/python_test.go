package python_test

import (
	"context"
	"testing"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang"
	"github.com/codesearch-core/codesearch/internal/lang/python"
)

func extractPython(t *testing.T, source string) []entity.CodeEntity {
	t.Helper()
	r := lang.NewRegistry()
	python.Register(r)
	p := lang.NewParser()
	t.Cleanup(p.Close)

	tree, err := p.Parse(context.Background(), []byte(source), entity.LanguagePython)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fc := lang.FileContext{Source: []byte(source), FilePath: "mod.py", RepositoryID: "repo1", Language: entity.LanguagePython}
	entities, err := r.ExtractFile(context.Background(), fc, entity.LanguagePython, tree)
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

func TestVisibilityByLeadingUnderscore(t *testing.T) {
	entities := extractPython(t, `
def public_fn():
    pass

def _private_fn():
    pass
`)
	pub := find(entities, "public_fn")
	if pub == nil || pub.Visibility != entity.VisibilityPublic {
		t.Fatalf("expected public_fn Public, got %+v", pub)
	}
	priv := find(entities, "_private_fn")
	if priv == nil || priv.Visibility != entity.VisibilityPrivate {
		t.Fatalf("expected _private_fn Private, got %+v", priv)
	}
}

func TestClassMethodsNested(t *testing.T) {
	entities := extractPython(t, `
class Widget:
    def render(self):
        pass
`)
	m := find(entities, "Widget.render")
	if m == nil || m.EntityType != entity.EntityTypeMethod {
		t.Fatalf("expected method Widget.render")
	}
}

func TestDocstringExtraction(t *testing.T) {
	entities := extractPython(t, `
def greet():
    """Say hello."""
    pass
`)
	fn := find(entities, "greet")
	if fn == nil {
		t.Fatalf("expected function greet")
	}
	if fn.DocumentationSummary != "Say hello." {
		t.Errorf("docstring = %q, want %q", fn.DocumentationSummary, "Say hello.")
	}
}

func TestDecoratorsCaptured(t *testing.T) {
	entities := extractPython(t, `
@staticmethod
def helper():
    pass
`)
	fn := find(entities, "helper")
	if fn == nil {
		t.Fatalf("expected function helper")
	}
	if len(fn.Metadata.Decorators) != 1 || fn.Metadata.Decorators[0] != "staticmethod" {
		t.Fatalf("expected decorator staticmethod, got %v", fn.Metadata.Decorators)
	}
}
