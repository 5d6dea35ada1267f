package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// LocalAPIReranker calls a locally hosted cross-encoder HTTP endpoint,
// generalizing pkg/embedder.LocalAPIEmbedder's "api_base_url" shape to a
// rerank request/response instead of an embeddings one (no existing
// pack dependency speaks a rerank protocol, so this is a plain net/http
// JSON client rather than a vendored SDK).
type LocalAPIReranker struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type LocalAPIConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewLocalAPIReranker(cfg LocalAPIConfig) *LocalAPIReranker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LocalAPIReranker{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (r *LocalAPIReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Text
	}

	body, err := json.Marshal(rerankRequest{Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("reranker: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("reranker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reranker: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reranker: unexpected status %d", resp.StatusCode)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("reranker: decode response: %w", err)
	}

	sort.Slice(parsed.Results, func(i, j int) bool {
		return parsed.Results[i].RelevanceScore > parsed.Results[j].RelevanceScore
	})

	out := make([]string, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		out = append(out, candidates[r.Index].EntityID)
	}
	return out, nil
}

var _ Reranker = (*LocalAPIReranker)(nil)
