package vectorstore

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// BM25 tuning constants (Okapi BM25's conventional defaults).
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// TokenID hashes a term to the uint32 token space sparse vectors key on.
// There is no shared vocabulary table to assign sequential IDs from (entities
// are indexed independently, across repositories, without a central
// tokenizer service), so terms are hashed with FNV-1a the way a sparse
// bag-of-words representation commonly avoids maintaining one.
func TokenID(term string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(term))
	return h.Sum32()
}

// BuildSparseVector BM25-weights a document's term frequencies against the
// repository's average document length (spec §4.6, §6.2). termFreqs maps
// each term to its count within the document; docLen is the document's total
// term count (Σ termFreqs).
func BuildSparseVector(termFreqs map[string]int, docLen int, avgdl float64) []SparseTerm {
	if len(termFreqs) == 0 {
		return nil
	}
	if avgdl <= 0 {
		avgdl = float64(docLen)
		if avgdl <= 0 {
			avgdl = 1
		}
	}

	lengthNorm := bm25K1 * (1 - bm25B + bm25B*float64(docLen)/avgdl)
	out := make([]SparseTerm, 0, len(termFreqs))
	for term, freq := range termFreqs {
		tf := float64(freq)
		weight := (tf * (bm25K1 + 1)) / (tf + lengthNorm)
		out = append(out, SparseTerm{TokenID: TokenID(term), Weight: float32(weight)})
	}
	return out
}

// Tokenize splits text into lowercase terms on non-alphanumeric boundaries
// and on camelCase/snake_case/kebab-case identifier splits, so
// "HybridSearch" and "hybrid_search" hash to the same term. There is no
// NLP/tokenizer library anywhere in the pack to ground this on (the teacher
// never does BM25 at all); it's deliberately the simplest splitter that
// makes identifier-heavy source text tokenize sensibly.
func Tokenize(text string) []string {
	var terms []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			terms = append(terms, strings.ToLower(b.String()))
			b.Reset()
		}
	}
	runes := []rune(text)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if i > 0 && b.Len() > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
				flush()
			}
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return terms
}

// TermFreqs tallies Tokenize's output into a term-frequency map, the shape
// BuildSparseVector consumes.
func TermFreqs(text string) (map[string]int, int) {
	freqs := make(map[string]int)
	terms := Tokenize(text)
	for _, t := range terms {
		freqs[t]++
	}
	return freqs, len(terms)
}

// DotProduct scores a candidate's sparse vector against a query's sparse
// vector, the similarity SearchHybrid's sparse prefetch ranks candidates by.
func DotProduct(a, b []SparseTerm) float64 {
	weights := make(map[uint32]float32, len(a))
	for _, t := range a {
		weights[t.TokenID] = t.Weight
	}
	var sum float64
	for _, t := range b {
		if w, ok := weights[t.TokenID]; ok {
			sum += float64(w) * float64(t.Weight)
		}
	}
	return sum
}
