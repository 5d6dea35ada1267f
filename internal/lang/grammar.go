package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// grammars maps a Language to its tree-sitter grammar. The teacher's own
// languages.go imports an unreleased fork (github.com/madeindigio/go-tree-sitter)
// that is absent from its go.mod; this package uses the declared, fetchable
// github.com/smacker/go-tree-sitter module instead (see DESIGN.md).
var grammars = map[entity.Language]func() *sitter.Language{
	entity.LanguageGo:         golang.GetLanguage,
	entity.LanguageRust:       rust.GetLanguage,
	entity.LanguagePython:     python.GetLanguage,
	entity.LanguageTypeScript: typescript.GetLanguage,
	entity.LanguageJavaScript: javascript.GetLanguage,
	entity.LanguageJava:       java.GetLanguage,
}

// extensions maps a file extension (without the dot) to the Language it
// implies.
var extensions = map[string]entity.Language{
	"go":   entity.LanguageGo,
	"rs":   entity.LanguageRust,
	"py":   entity.LanguagePython,
	"ts":   entity.LanguageTypeScript,
	"tsx":  entity.LanguageTypeScript,
	"js":   entity.LanguageJavaScript,
	"jsx":  entity.LanguageJavaScript,
	"mjs":  entity.LanguageJavaScript,
	"java": entity.LanguageJava,
}

// GrammarFor returns the tree-sitter grammar for lang, if one is built in.
func GrammarFor(language entity.Language) (func() *sitter.Language, bool) {
	g, ok := grammars[language]
	return g, ok
}

// LanguageByExtension detects a Language from a bare file extension (no
// leading dot).
func LanguageByExtension(ext string) (entity.Language, bool) {
	l, ok := extensions[ext]
	return l, ok
}
