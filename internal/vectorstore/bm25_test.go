package vectorstore

import "testing"

func TestBuildSparseVector_EmptyTermsReturnsNil(t *testing.T) {
	if got := BuildSparseVector(nil, 0, 10); got != nil {
		t.Fatalf("expected nil for empty term frequencies, got %v", got)
	}
}

func TestBuildSparseVector_LongerThanAverageDocumentDampensWeight(t *testing.T) {
	terms := map[string]int{"foo": 3}
	short := BuildSparseVector(terms, 5, 5)
	long := BuildSparseVector(terms, 50, 5)
	if len(short) != 1 || len(long) != 1 {
		t.Fatalf("expected exactly one sparse term each")
	}
	if !(long[0].Weight < short[0].Weight) {
		t.Fatalf("expected longer document to dampen BM25 weight: short=%v long=%v", short[0].Weight, long[0].Weight)
	}
}

func TestTokenID_IsDeterministic(t *testing.T) {
	if TokenID("hello") != TokenID("hello") {
		t.Fatal("expected TokenID to be deterministic for the same term")
	}
	if TokenID("hello") == TokenID("world") {
		t.Fatal("expected distinct terms to hash to distinct token ids (collision, extremely unlikely for this pair)")
	}
}

func TestTokenize_SplitsCamelCaseAndSnakeCase(t *testing.T) {
	got := Tokenize("HybridSearch hybrid_search")
	want := []string{"hybrid", "search", "hybrid", "search"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTermFreqs_CountsAndDocLen(t *testing.T) {
	freqs, docLen := TermFreqs("foo foo bar")
	if docLen != 3 {
		t.Fatalf("expected docLen 3, got %d", docLen)
	}
	if freqs["foo"] != 2 || freqs["bar"] != 1 {
		t.Fatalf("unexpected term frequencies: %v", freqs)
	}
}

func TestDotProduct_OnlyOverlappingTokensContribute(t *testing.T) {
	a := []SparseTerm{{TokenID: 1, Weight: 2}, {TokenID: 2, Weight: 3}}
	b := []SparseTerm{{TokenID: 2, Weight: 4}, {TokenID: 3, Weight: 5}}
	got := DotProduct(a, b)
	want := 3.0 * 4.0
	if got != want {
		t.Fatalf("DotProduct = %v, want %v", got, want)
	}
}
