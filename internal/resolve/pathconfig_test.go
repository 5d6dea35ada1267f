package resolve_test

import (
	"testing"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/resolve"
)

func TestPathConfigFor_Rust(t *testing.T) {
	pc := resolve.PathConfigFor(entity.LanguageRust)
	if pc.Separator != "::" {
		t.Fatalf("expected :: separator, got %q", pc.Separator)
	}
	if got := pc.ModulePath("src/handlers/mod.rs"); got != "crate::src::handlers" {
		t.Errorf("ModulePath = %q", got)
	}
}

func TestPathConfigFor_Go(t *testing.T) {
	pc := resolve.PathConfigFor(entity.LanguageGo)
	if pc.Separator != "." {
		t.Fatalf("expected . separator, got %q", pc.Separator)
	}
	if got := pc.ModulePath("internal/handlers/user.go"); got != "internal.handlers" {
		t.Errorf("ModulePath = %q", got)
	}
}

func TestPathConfigFor_UnknownLanguageFallsBack(t *testing.T) {
	pc := resolve.PathConfigFor(entity.LanguageUnknown)
	if pc.Separator != "." {
		t.Fatalf("expected default . separator for unknown language")
	}
}
