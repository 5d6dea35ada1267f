package embedder

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// LocalAPIEmbedder implements Embedder against any OpenAI-embeddings-API-
// compatible HTTP endpoint (spec §6.5's "local-api" provider) — grounded on
// the teacher's OpenAIEmbedder, generalized from "OpenAI or an OpenAI-
// compatible API" to "a configurable api_base_url pointed at a locally
// hosted model server," since the model itself is out of scope (spec §1).
type LocalAPIEmbedder struct {
	client    *openai.LLM
	model     string
	dimension int
	maxSeqLen int
}

// LocalAPIConfig holds the constructor parameters spec §6.5 names:
// embeddings.api_base_url, embeddings.api_key.
type LocalAPIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	MaxSeqLen int
}

func NewLocalAPIEmbedder(cfg LocalAPIConfig) (*LocalAPIEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedder: model name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedder: dimension must be positive")
	}

	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("embedder: create client: %w", err)
	}

	return &LocalAPIEmbedder{
		client:    client,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		maxSeqLen: cfg.MaxSeqLen,
	}, nil
}

func (e *LocalAPIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	lc, err := embeddings.NewEmbedder(e.client)
	if err != nil {
		return nil, fmt.Errorf("embedder: create langchain embedder: %w", err)
	}
	vectors, err := lc.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedder: embed documents: %w", err)
	}
	return toFloat32Batch(vectors), nil
}

func (e *LocalAPIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedder: text cannot be empty")
	}
	lc, err := embeddings.NewEmbedder(e.client)
	if err != nil {
		return nil, fmt.Errorf("embedder: create langchain embedder: %w", err)
	}
	vector, err := lc.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedder: embed query: %w", err)
	}
	return toFloat32(vector), nil
}

func (e *LocalAPIEmbedder) Dimension() int { return e.dimension }

func (e *LocalAPIEmbedder) MaxSequenceLength() int { return e.maxSeqLen }

var _ MaxSequenceLengther = (*LocalAPIEmbedder)(nil)

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat32Batch(vs [][]float64) [][]float32 {
	out := make([][]float32, len(vs))
	for i, v := range vs {
		out[i] = toFloat32(v)
	}
	return out
}
