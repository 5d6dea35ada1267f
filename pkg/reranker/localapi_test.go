package reranker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codesearch-core/codesearch/pkg/reranker"
)

func TestLocalAPIReranker_SortsByRelevanceScore(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Documents) != 3 {
			t.Fatalf("expected 3 documents, got %d", len(req.Documents))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.9},
				{"index": 0, "relevance_score": 0.5},
				{"index": 1, "relevance_score": 0.1},
			},
		})
	}))
	defer srv.Close()

	r := reranker.NewLocalAPIReranker(reranker.LocalAPIConfig{BaseURL: srv.URL, APIKey: "secret"})
	ids, err := r.Rerank(context.Background(), "how do i parse json", []reranker.Candidate{
		{EntityID: "a", Text: "doc a"},
		{EntityID: "b", Text: "doc b"},
		{EntityID: "c", Text: "doc c"},
	})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	want := []string{"c", "a", "b"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestLocalAPIReranker_EmptyCandidatesShortCircuits(t *testing.T) {
	r := reranker.NewLocalAPIReranker(reranker.LocalAPIConfig{BaseURL: "http://unused.invalid"})
	ids, err := r.Rerank(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids, got %v", ids)
	}
}

func TestLocalAPIReranker_NonOKStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := reranker.NewLocalAPIReranker(reranker.LocalAPIConfig{BaseURL: srv.URL})
	_, err := r.Rerank(context.Background(), "q", []reranker.Candidate{{EntityID: "a", Text: "x"}})
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
