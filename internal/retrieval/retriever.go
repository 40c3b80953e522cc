// Package retrieval finds reference passages relevant to a query and loads
// reference material into the vector store.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/democoach/internal/vectordb"
)

// DefaultLimit is the number of passages returned when a query names none
const DefaultLimit = 3

// Query describes one retrieval request
type Query struct {
	Collection string
	Text       string
	Limit      int
	Filter     map[string]string // exact-match metadata filter, optional
}

// Retriever embeds a query and looks up the nearest stored passages
type Retriever struct {
	embedder Embedder
	store    vectordb.Store
	timeout  time.Duration
}

// NewRetriever creates a retriever. timeout bounds each Retrieve call; zero
// means no bound beyond the caller's context.
func NewRetriever(embedder Embedder, store vectordb.Store, timeout time.Duration) *Retriever {
	return &Retriever{embedder: embedder, store: store, timeout: timeout}
}

// Retrieve returns passage texts, closest first. No match is an empty slice,
// not an error.
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]string, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("retrieval query has no collection")
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	vector, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	passages, err := r.store.Query(ctx, q.Collection, vector, q.Limit, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, p.Content)
	}
	return texts, nil
}
