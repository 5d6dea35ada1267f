package golang_test

import (
	"context"
	"testing"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang"
	"github.com/codesearch-core/codesearch/internal/lang/golang"
)

func extractGo(t *testing.T, source string) []entity.CodeEntity {
	t.Helper()
	r := lang.NewRegistry()
	golang.Register(r)
	p := lang.NewParser()
	t.Cleanup(p.Close)

	tree, err := p.Parse(context.Background(), []byte(source), entity.LanguageGo)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fc := lang.FileContext{Source: []byte(source), FilePath: "main.go", RepositoryID: "repo1", Language: entity.LanguageGo}
	entities, err := r.ExtractFile(context.Background(), fc, entity.LanguageGo, tree)
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

func TestFunctionVisibilityByCase(t *testing.T) {
	entities := extractGo(t, `package main

func Exported() {}
func unexported() {}
`)
	ex := find(entities, "Exported")
	if ex == nil || ex.Visibility != entity.VisibilityPublic {
		t.Fatalf("expected Exported to be Public, got %+v", ex)
	}
	un := find(entities, "unexported")
	if un == nil || un.Visibility != entity.VisibilityPrivate {
		t.Fatalf("expected unexported to be Private, got %+v", un)
	}
}

func TestMethodReceiverQualifiedName(t *testing.T) {
	entities := extractGo(t, `package main

type Server struct{}

func (s *Server) Start() {}
`)
	m := find(entities, "Server.Start")
	if m == nil {
		t.Fatalf("expected method qualified as Server.Start")
	}
	if got := m.CallAliases(); len(got) != 1 || got[0] != "Server.Start" {
		t.Fatalf("expected call alias Server.Start, got %v", got)
	}
}

func TestStructFieldsAndInterfaceMethods(t *testing.T) {
	entities := extractGo(t, `package main

type Point struct {
	X int
	Y int
}

type Shape interface {
	Area() float64
}
`)
	if find(entities, "Point.X") == nil {
		t.Fatalf("expected field Point.X")
	}
	if find(entities, "Shape.Area") == nil {
		t.Fatalf("expected interface method Shape.Area")
	}
}

func TestCallsCollected(t *testing.T) {
	entities := extractGo(t, `package main

func helper() {}

func caller() {
	helper()
}
`)
	c := find(entities, "caller")
	if c == nil {
		t.Fatalf("expected function caller")
	}
	if len(c.Relationships.Calls) != 1 || c.Relationships.Calls[0].Target != "helper" {
		t.Fatalf("expected call to helper, got %+v", c.Relationships.Calls)
	}
}
