package lang

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// Parser is a thread-safe, per-language cache of tree-sitter parsers,
// grounded on the teacher's pkg/treesitter.Parser. A *sitter.Parser is not
// safe for concurrent use by multiple goroutines, so internal/indexer hands
// out one Parser per worker rather than sharing a single instance (same
// rationale the teacher documents in indexer.go's worker-pool comment).
type Parser struct {
	mu      sync.Mutex
	parsers map[entity.Language]*sitter.Parser
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{parsers: make(map[entity.Language]*sitter.Parser)}
}

func (p *Parser) getParser(language entity.Language) (*sitter.Parser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sp, ok := p.parsers[language]; ok {
		return sp, nil
	}
	grammar, ok := GrammarFor(language)
	if !ok {
		return nil, fmt.Errorf("lang: unsupported language %q", language)
	}
	sp := sitter.NewParser()
	sp.SetLanguage(grammar())
	p.parsers[language] = sp
	return sp, nil
}

// Parse parses source with the grammar for language.
func (p *Parser) Parse(ctx context.Context, source []byte, language entity.Language) (*sitter.Tree, error) {
	sp, err := p.getParser(language)
	if err != nil {
		return nil, err
	}
	tree, err := sp.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("lang: parse error: %w", err)
	}
	return tree, nil
}

// Close releases every cached parser.
func (p *Parser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sp := range p.parsers {
		sp.Close()
	}
	p.parsers = make(map[entity.Language]*sitter.Parser)
}

// DetectLanguage infers a Language from a file's extension.
func DetectLanguage(filePath string) (entity.Language, bool) {
	ext := strings.TrimPrefix(filepath.Ext(filePath), ".")
	return LanguageByExtension(ext)
}

// IsSupportedFile reports whether filePath's extension maps to a known
// Language.
func IsSupportedFile(filePath string) bool {
	_, ok := DetectLanguage(filePath)
	return ok
}
