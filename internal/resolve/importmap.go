package resolve

import "strings"

// ImportMap is one file's import/use table: local alias to absolute target
// path, plus glob/re-export sources (spec §4.3: "walking its import/use
// nodes, recording (local name -> absolute path) and (glob source path)").
type ImportMap struct {
	// Aliases maps a local name (the identifier a call site uses) to the
	// absolute module path it refers to.
	Aliases map[string]string

	// GlobSources lists module paths imported wholesale (Go dot-imports,
	// Python `from x import *`, Rust `use x::*`), searched by the
	// PathEntityIdentifier strategy, before the simple-name strategies.
	GlobSources []string
}

// NewImportMap returns an empty ImportMap.
func NewImportMap() *ImportMap {
	return &ImportMap{Aliases: make(map[string]string)}
}

// AddImport records one import/use statement. alias is the local name a
// caller writes (defaults to the last path segment when empty); target is
// the absolute module path it resolves to.
func (m *ImportMap) AddImport(alias, target string) {
	if alias == "" {
		alias = lastSegment(target)
	}
	if alias == "_" {
		return
	}
	if alias == "*" || alias == "." {
		m.GlobSources = append(m.GlobSources, target)
		return
	}
	m.Aliases[alias] = target
}

// Resolve looks up a local alias, returning the absolute module path it
// maps to.
func (m *ImportMap) Resolve(alias string) (string, bool) {
	target, ok := m.Aliases[alias]
	return target, ok
}

// ImportedPathsNormalized returns every absolute target path this map
// references, including glob sources — the candidate set C3's
// PathEntityIdentifier strategy searches (spec §4.3:
// "imported_paths_normalized(package, current_module)").
func (m *ImportMap) ImportedPathsNormalized() []string {
	out := make([]string, 0, len(m.Aliases)+len(m.GlobSources))
	seen := make(map[string]bool)
	for _, target := range m.Aliases {
		if !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	}
	for _, target := range m.GlobSources {
		if !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	}
	return out
}

func lastSegment(path string) string {
	for _, sep := range []string{"::", "."} {
		if idx := strings.LastIndex(path, sep); idx >= 0 {
			return path[idx+len(sep):]
		}
	}
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
