package resolve_test

import (
	"testing"

	"github.com/codesearch-core/codesearch/internal/resolve"
)

func TestImportMap_DefaultAliasFromLastSegment(t *testing.T) {
	im := resolve.NewImportMap()
	im.AddImport("", "internal.handlers")
	if target, ok := im.Resolve("handlers"); !ok || target != "internal.handlers" {
		t.Fatalf("expected default alias 'handlers', got %q ok=%v", target, ok)
	}
}

func TestImportMap_BlankImportSkipped(t *testing.T) {
	im := resolve.NewImportMap()
	im.AddImport("_", "internal.sideeffect")
	if _, ok := im.Resolve("sideeffect"); ok {
		t.Fatalf("expected blank import to be skipped")
	}
}

func TestImportMap_GlobSourceRecorded(t *testing.T) {
	im := resolve.NewImportMap()
	im.AddImport(".", "internal.dotimported")
	paths := im.ImportedPathsNormalized()
	if len(paths) != 1 || paths[0] != "internal.dotimported" {
		t.Fatalf("expected glob source recorded, got %v", paths)
	}
}
