package embedder

import "fmt"

// Config selects and configures an embedding provider (spec §6.5:
// embeddings.provider ∈ {"local-api", "mock"}).
type Config struct {
	Provider  string
	APIBaseURL string
	APIKey    string
	Model     string
	Dimension int
	MaxSeqLen int
}

// New builds the Embedder named by cfg.Provider. Grounded on the teacher's
// NewEmbedderFromConfig, narrowed from its GGUF/Ollama/OpenAI three-way
// switch to the two providers this module actually names.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", "local-api":
		return NewLocalAPIEmbedder(LocalAPIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.APIBaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			MaxSeqLen: cfg.MaxSeqLen,
		})
	case "mock":
		return NewMockEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("embedder: unknown provider %q", cfg.Provider)
	}
}
