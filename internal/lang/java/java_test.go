package java_test

import (
	"context"
	"testing"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang"
	"github.com/codesearch-core/codesearch/internal/lang/java"
)

func extractJava(t *testing.T, source string) []entity.CodeEntity {
	t.Helper()
	r := lang.NewRegistry()
	java.Register(r)
	p := lang.NewParser()
	t.Cleanup(p.Close)

	tree, err := p.Parse(context.Background(), []byte(source), entity.LanguageJava)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fc := lang.FileContext{Source: []byte(source), FilePath: "Widget.java", RepositoryID: "repo1", Language: entity.LanguageJava}
	entities, err := r.ExtractFile(context.Background(), fc, entity.LanguageJava, tree)
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

func TestClassMembersExtracted(t *testing.T) {
	entities := extractJava(t, `
public class Widget {
    private int count;

    public void render() {}
}
`)
	cls := find(entities, "Widget")
	if cls == nil || cls.Visibility != entity.VisibilityPublic {
		t.Fatalf("expected public class Widget, got %+v", cls)
	}
	field := find(entities, "Widget.count")
	if field == nil || field.Visibility != entity.VisibilityPrivate {
		t.Fatalf("expected private field Widget.count, got %+v", field)
	}
	method := find(entities, "Widget.render")
	if method == nil || method.EntityType != entity.EntityTypeMethod {
		t.Fatalf("expected method Widget.render")
	}
}

func TestInterfaceAndMethods(t *testing.T) {
	entities := extractJava(t, `
public interface Shape {
    double area();
}
`)
	iface := find(entities, "Shape")
	if iface == nil || iface.EntityType != entity.EntityTypeInterface {
		t.Fatalf("expected interface Shape")
	}
	if find(entities, "Shape.area") == nil {
		t.Fatalf("expected interface method Shape.area")
	}
}

func TestEnumVariants(t *testing.T) {
	entities := extractJava(t, `
public enum Color {
    RED,
    GREEN,
    BLUE
}
`)
	if find(entities, "Color") == nil {
		t.Fatalf("expected enum Color")
	}
	for _, v := range []string{"RED", "GREEN", "BLUE"} {
		if find(entities, "Color."+v) == nil {
			t.Fatalf("expected enum variant Color.%s", v)
		}
	}
}

func TestClassImplementsInterface(t *testing.T) {
	entities := extractJava(t, `
public class Circle implements Shape {
    public double area() { return 0; }
}
`)
	cls := find(entities, "Circle")
	if cls == nil {
		t.Fatalf("expected class Circle")
	}
	var implementsShape bool
	for _, ref := range cls.Relationships.UsesTypes {
		if ref.RefType == entity.RefImplements && ref.Target == "Shape" {
			implementsShape = true
		}
	}
	if !implementsShape {
		t.Fatalf("expected Circle implements Shape, got %+v", cls.Relationships.UsesTypes)
	}
}
