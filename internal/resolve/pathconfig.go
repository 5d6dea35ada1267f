// Package resolve implements C3: per-language path configuration, import
// maps, and the six-strategy reference resolution order of spec §4.3.
// Grounded on the vjache-cie teacher's pkg/ingestion.CallResolver
// (package index, global function registry, qualified-function index,
// interface-dispatch-via-fields/params, external-type stubs), generalized
// from Go-only to the PathConfig abstraction every language handler
// supplies.
package resolve

import (
	"path"
	"strings"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// PathConfig captures a language's qualified-name conventions: the
// separator used to join scope segments, and how a file path maps onto a
// module path (spec §4.3).
type PathConfig struct {
	Separator string

	// ModulePath derives a module-qualified path fragment from a file path
	// relative to the repository root, e.g. Go's directory-is-package rule
	// or Rust's mod-per-file rule.
	ModulePath func(filePath string) string
}

var pathConfigs = map[entity.Language]PathConfig{
	entity.LanguageGo:         {Separator: ".", ModulePath: dirModulePath},
	entity.LanguageRust:       {Separator: "::", ModulePath: rustModulePath},
	entity.LanguagePython:     {Separator: ".", ModulePath: pythonModulePath},
	entity.LanguageTypeScript: {Separator: ".", ModulePath: dirModulePath},
	entity.LanguageJavaScript: {Separator: ".", ModulePath: dirModulePath},
	entity.LanguageJava:       {Separator: ".", ModulePath: dirModulePath},
}

// PathConfigFor returns the PathConfig for a language, falling back to the
// dot-separated, directory-is-module default for unrecognized languages.
func PathConfigFor(language entity.Language) PathConfig {
	if pc, ok := pathConfigs[language]; ok {
		return pc
	}
	return PathConfig{Separator: ".", ModulePath: dirModulePath}
}

func dirModulePath(filePath string) string {
	dir := path.Dir(filePath)
	if dir == "." {
		return ""
	}
	return strings.ReplaceAll(dir, "/", ".")
}

func rustModulePath(filePath string) string {
	trimmed := strings.TrimSuffix(filePath, ".rs")
	trimmed = strings.TrimSuffix(trimmed, "/mod")
	trimmed = strings.TrimSuffix(trimmed, "/lib")
	trimmed = strings.TrimSuffix(trimmed, "/main")
	if trimmed == "" || trimmed == "." {
		return "crate"
	}
	return "crate::" + strings.ReplaceAll(trimmed, "/", "::")
}

func pythonModulePath(filePath string) string {
	trimmed := strings.TrimSuffix(filePath, ".py")
	trimmed = strings.TrimSuffix(trimmed, "/__init__")
	return strings.ReplaceAll(trimmed, "/", ".")
}
