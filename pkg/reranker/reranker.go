// Package reranker provides the optional cross-encoder reranking
// collaborator (spec §4.10 step 5, §6.5's reranking.* options). No example
// repository in the pack reranks, so this package is new code built in the
// same HTTP-client idiom as pkg/embedder's local-api provider — a small
// interface, a local-api implementation, and a mock for tests.
package reranker

import "context"

// Candidate is one item to be reranked: its entity_id, the hybrid-search
// score it arrived with, and the text to score it against the query by
// (spec §4.10: "a cross-encoder over (query, entity's embedding text)").
type Candidate struct {
	EntityID string
	Text     string
	Score    float64
}

// Reranker reorders candidates by relevance to query, returning entity IDs
// in descending relevance order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]string, error)
}
