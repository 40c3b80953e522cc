// Package vectordb stores reference passages with their embeddings and
// answers nearest-neighbour queries over them.
package vectordb

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"github.com/ppiankov/democoach/internal/model"
)

// DefaultDimension matches OpenAI text-embedding-3-small
const DefaultDimension = 1536

// Passage is one stored chunk of reference material
type Passage struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store is a collection-scoped vector store
type Store interface {
	// Add stores passages with their embeddings; the slices must be the same length
	Add(ctx context.Context, collection string, passages []Passage, embeddings [][]float32) error

	// Query returns up to limit passages closest to embedding, closest first.
	// Every filter entry must match the passage metadata exactly.
	Query(ctx context.Context, collection string, embedding []float32, limit int, filter map[string]string) ([]Passage, error)

	// Count reports how many passages a collection holds
	Count(ctx context.Context, collection string) (int, error)

	Close() error
}

// Open builds the store named by cfg.Driver
func Open(ctx context.Context, cfg model.VectorStoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.DSN, cfg.Dimension)
	case "postgres", "pgvector":
		return NewPostgresStore(ctx, cfg.DSN, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown vector store driver: %s", cfg.Driver)
	}
}

var metadataKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func validateFilter(filter map[string]string) error {
	for k := range filter {
		if !metadataKeyPattern.MatchString(k) {
			return fmt.Errorf("invalid metadata key %q", k)
		}
	}
	return nil
}

func validateEmbedding(embedding []float32, dimension int) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is empty")
	}
	if dimension > 0 && len(embedding) != dimension {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), dimension)
	}
	for _, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("embedding contains invalid values")
		}
	}
	return nil
}

func validateBatch(passages []Passage, embeddings [][]float32, dimension int) error {
	if len(passages) != len(embeddings) {
		return fmt.Errorf("got %d passages but %d embeddings", len(passages), len(embeddings))
	}
	for i, e := range embeddings {
		if err := validateEmbedding(e, dimension); err != nil {
			return fmt.Errorf("passage %d: %w", i, err)
		}
	}
	return nil
}

// cosineSimilarity returns 0 for mismatched or zero vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
