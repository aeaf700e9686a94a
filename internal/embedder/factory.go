// Package embedder provides implementations of the rag.Embedder interface
// for converting question text into dense vector embeddings. Ollama and
// OpenAI/Azure speak plain HTTP; Gemini uses the official genai client.
//
// The embedding dimension is a deployment-wide constant agreed with the
// document store — it is configured once, never negotiated per call.
package embedder

import (
	"context"
	"fmt"

	"github.com/kbqa-dev/kbqa-go/internal/config"
	"github.com/kbqa-dev/kbqa-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "text-embedding-004"
)

// New constructs a rag.Embedder from the resolved embedding configuration.
func New(ctx context.Context, cfg *config.EmbeddingConfig) (rag.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaEmbedder(host, model), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai backend requires an API key (EMBEDDING_API_KEY)")
		}
		baseURL := cfg.Endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
		}), nil

	case "azure":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure backend requires an API key (EMBEDDING_API_KEY)")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure backend requires an endpoint (EMBEDDING_ENDPOINT)")
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: "2025-04-01-preview",
		}), nil

	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: gemini backend requires an API key (EMBEDDING_API_KEY)")
		}
		model := cfg.Model
		if model == "" {
			model = defaultGeminiModel
		}
		return NewGeminiEmbedder(ctx, cfg.APIKey, model, cfg.Dimensions)

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure, gemini)", cfg.Provider)
	}
}
