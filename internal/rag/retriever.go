package rag

import (
	"context"
	"fmt"
	"sync"
)

// SessionRetriever implements the Retriever interface by combining an
// Embedder and a VectorStore. It embeds the query at retrieval time and
// delegates similarity search to the store.
//
// Each instance additionally tracks its own retrieval statistics (call count
// and the distances of every returned chunk) for telemetry. One instance
// belongs to exactly one agent run or evaluation pass; construct a fresh one
// per session so concurrent queries never pollute each other's statistics.
type SessionRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int

	// mu guards the statistics below. The agent loop is single-flow, but the
	// stats are also read by telemetry finalisation, so cheap locking keeps
	// the type safe without imposing anything on callers.
	mu sync.Mutex

	// callCount is the number of Retrieve calls made through this instance.
	callCount int

	// distances accumulates the distance of every chunk returned so far.
	distances []float32
}

// NewSessionRetriever constructs a SessionRetriever from the given Embedder
// and VectorStore. defaultTopK sets the fallback result count when Retrieve
// is called with topK=0.
func NewSessionRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*SessionRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 10
	}
	return &SessionRetriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the query and returns the top-k most relevant documents,
// ordered ascending by distance. If topK is 0 the defaultTopK configured at
// construction time is used. An embedding failure propagates as a retrieval
// failure with no partial result and no statistics recorded.
func (r *SessionRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	docs, err := r.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	r.mu.Lock()
	r.callCount++
	for _, d := range docs {
		r.distances = append(r.distances, d.Distance)
	}
	r.mu.Unlock()

	return docs, nil
}

// Stats returns the number of Retrieve calls made through this instance and
// the mean distance across every chunk returned. The mean is 0 when nothing
// has been retrieved yet.
func (r *SessionRetriever) Stats() (calls int, meanDistance float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.distances) == 0 {
		return r.callCount, 0
	}
	var sum float64
	for _, d := range r.distances {
		sum += float64(d)
	}
	return r.callCount, sum / float64(len(r.distances))
}
