package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/democoach/internal/cache"
)

// DefaultEmbeddingModel is the model reference collections are built with
const DefaultEmbeddingModel = "text-embedding-3-small"

// Embedder turns text into vectors
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderConfig configures the OpenAI embedder
type EmbedderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIEmbedder embeds text with the OpenAI embeddings API. Vectors are
// cached by model and text.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	cache  cache.Cache
	logger *slog.Logger
}

// NewOpenAIEmbedder creates an embedder. A nil cache disables caching.
func NewOpenAIEmbedder(cfg EmbedderConfig, c cache.Cache, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for embeddings")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		cache:  c,
		logger: logger,
	}, nil
}

// Model returns the embedding model name
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Embed generates an embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in order, calling the API only for cache misses
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if v, ok := e.cached(text); ok {
			results[i] = v
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		e.logger.Debug("embedding cache hit", "texts", len(texts))
		return results, nil
	}

	input := make([]string, len(missing))
	for j, i := range missing {
		input[j] = texts[i]
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(input), len(resp.Data))
	}

	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(missing) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		i := missing[data.Index]
		results[i] = data.Embedding
		e.store(texts[i], data.Embedding)
	}

	return results, nil
}

func (e *OpenAIEmbedder) cached(text string) ([]float32, bool) {
	raw, ok := e.cache.Get(cache.EmbeddingKey(e.model, text))
	if !ok {
		return nil, false
	}
	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil || len(v) == 0 {
		return nil, false
	}
	return v, true
}

func (e *OpenAIEmbedder) store(text string, v []float32) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := e.cache.Set(cache.EmbeddingKey(e.model, text), raw, 0); err != nil {
		e.logger.Warn("failed to cache embedding", "error", err)
	}
}
