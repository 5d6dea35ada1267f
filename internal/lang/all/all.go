// Package all composes the process-wide handler registry out of every
// language package under internal/lang. It exists as a separate package
// from internal/lang itself so that lang stays free of a dependency on its
// own subpackages (each of which imports lang).
package all

import (
	"github.com/codesearch-core/codesearch/internal/lang"
	"github.com/codesearch-core/codesearch/internal/lang/generic"
	"github.com/codesearch-core/codesearch/internal/lang/golang"
	"github.com/codesearch-core/codesearch/internal/lang/java"
	"github.com/codesearch-core/codesearch/internal/lang/python"
	"github.com/codesearch-core/codesearch/internal/lang/rust"
	"github.com/codesearch-core/codesearch/internal/lang/typescript"
)

// NewRegistry builds the registry with all five first-class language
// handler sets plus the generic fallback (spec §4.2: "Five first-class
// language handlers are implemented fully... A sixth 'generic' handler set
// provides best-effort extraction for any other Language value").
func NewRegistry() *lang.Registry {
	r := lang.NewRegistry()
	golang.Register(r)
	rust.Register(r)
	python.Register(r)
	typescript.Register(r)
	java.Register(r)
	generic.Register(r)
	return r
}
