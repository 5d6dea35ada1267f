// Package embedder provides the dense-embedding collaborator (spec §2, §6.3):
// a small interface any HTTP-backed or in-process embedding provider
// satisfies, plus the deterministic embedding-text builder both the indexer
// and the search service call so their inputs stay byte-identical.
package embedder

import (
	"context"
	"strings"

	"github.com/codesearch-core/codesearch/internal/entity"
)

// Embedder creates dense vector embeddings for text. Grounded on the
// teacher's pkg/embedder.Embedder; the method set is unchanged, since it
// already matches spec §4.8/§4.10's needs exactly.
type Embedder interface {
	// EmbedDocuments embeds a batch of texts, one vector per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query text, which some providers treat
	// differently from document text (e.g. an instruction prefix).
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector length this embedder produces, used to
	// size vector-store collections (internal/vectorstore.EnsureCollection).
	Dimension() int
}

// MaxSequenceLengther is implemented by providers with a known input-size
// limit, so the indexer can skip oversized entities (spec §4.8 step 3b:
// "skip entities whose text exceeds the provider's max sequence length;
// count as skipped by size") without a failed round trip.
type MaxSequenceLengther interface {
	MaxSequenceLength() int
}

// BuildEmbeddingText implements spec §6.3's deterministic concatenation:
//
//	"{entity_type} {name} {qualified_name} [documentation_summary] [param_name[: type]]* [-> return_type] [content]"
//
// delimited by U+2423 (␣), so indexing and reranking always embed
// byte-identical text for the same entity (spec §9 invariant 5).
func BuildEmbeddingText(e entity.CodeEntity) string {
	const delim = "␣"
	parts := []string{string(e.EntityType), e.Name, e.QualifiedName}

	if e.DocumentationSummary != "" {
		parts = append(parts, e.DocumentationSummary)
	}

	if e.Signature != nil {
		for _, p := range e.Signature.Parameters {
			if p.Type != nil && *p.Type != "" {
				parts = append(parts, p.Name+": "+*p.Type)
			} else {
				parts = append(parts, p.Name)
			}
		}
		if e.Signature.ReturnType != nil && *e.Signature.ReturnType != "" {
			parts = append(parts, "-> "+*e.Signature.ReturnType)
		}
	}

	if e.Content != "" {
		parts = append(parts, e.Content)
	}

	return strings.Join(parts, delim)
}
