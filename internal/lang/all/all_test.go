package all_test

import (
	"testing"

	"github.com/codesearch-core/codesearch/internal/entity"
	"github.com/codesearch-core/codesearch/internal/lang/all"
)

func TestNewRegistrySupportsEveryFirstClassLanguage(t *testing.T) {
	r := all.NewRegistry()
	for _, l := range []entity.Language{
		entity.LanguageGo,
		entity.LanguageRust,
		entity.LanguagePython,
		entity.LanguageTypeScript,
		entity.LanguageJavaScript,
		entity.LanguageJava,
	} {
		if !r.SupportsLanguage(l) {
			t.Errorf("expected registry to support %s", l)
		}
	}
	if !r.SupportsLanguage(entity.LanguageUnknown) {
		t.Errorf("expected generic fallback registered under LanguageUnknown")
	}
}
