package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/democoach/internal/vectordb"
)

// FrameworkKeyField is the metadata field scoring queries filter on
const FrameworkKeyField = "framework_key"

// ChunkerConfig controls how reference text is split
type ChunkerConfig struct {
	ChunkSize    int // target characters per chunk
	ChunkOverlap int // characters carried over from the previous chunk
}

// DefaultChunkerConfig suits book-excerpt paragraphs
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 150}
}

// Chunk splits text on paragraph breaks and packs paragraphs into chunks of
// about ChunkSize characters. Paragraphs longer than ChunkSize are split on
// word boundaries. Each chunk after the first starts with the tail of the
// previous one.
func Chunk(text string, cfg ChunkerConfig) []string {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkerConfig().ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	var pieces []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		pieces = append(pieces, splitLong(para, cfg.ChunkSize)...)
	}

	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		current.Reset()
		if cfg.ChunkOverlap > 0 {
			current.WriteString(tail(chunk, cfg.ChunkOverlap))
		}
	}

	fresh := 0 // characters added since the last flush
	for _, p := range pieces {
		if fresh > 0 && current.Len()+len(p)+2 > cfg.ChunkSize {
			flush()
			fresh = 0
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
		fresh += len(p)
	}
	if fresh > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func splitLong(para string, size int) []string {
	if len(para) <= size {
		return []string{para}
	}
	var (
		out     []string
		current strings.Builder
	)
	for _, word := range strings.Fields(para) {
		if current.Len() > 0 && current.Len()+1+len(word) > size {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// tail returns about n trailing characters of s, starting at a word boundary
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	t := s[start:]
	if i := strings.IndexAny(t, " \n"); i >= 0 && i < len(t)-1 {
		t = t[i+1:]
	}
	return strings.TrimSpace(t)
}

// Ingester loads reference text into a collection, tagged with the
// framework key it illustrates
type Ingester struct {
	embedder Embedder
	store    vectordb.Store
	chunker  ChunkerConfig
}

// NewIngester creates an ingester
func NewIngester(embedder Embedder, store vectordb.Store, cfg ChunkerConfig) *Ingester {
	return &Ingester{embedder: embedder, store: store, chunker: cfg}
}

// Ingest chunks text, embeds the chunks in one batch and stores them.
// It returns the number of chunks stored.
func (in *Ingester) Ingest(ctx context.Context, collection, frameworkKey, text string) (int, error) {
	if collection == "" {
		return 0, fmt.Errorf("collection is required")
	}
	if strings.TrimSpace(frameworkKey) == "" {
		return 0, fmt.Errorf("framework key is required")
	}

	chunks := Chunk(text, in.chunker)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no text to ingest")
	}

	vectors, err := in.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	passages := make([]vectordb.Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = vectordb.Passage{
			Content:  c,
			Metadata: map[string]string{FrameworkKeyField: frameworkKey},
		}
	}

	if err := in.store.Add(ctx, collection, passages, vectors); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chunks), nil
}
