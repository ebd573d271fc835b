// Package rag defines the interfaces for retrieval-augmented generation
// components: vector storage, document retrieval, and embedding.
// Concrete implementations (Qdrant, etc.) satisfy these interfaces so the
// agent layer never depends on a specific backend.
package rag

import (
	"context"
)

// Document represents a unit of retrieved or stored knowledge: one chunk of
// an ingested source document together with its provenance.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the file name of the source document the chunk came from.
	Source string

	// Metadata holds arbitrary key-value pairs (category, chunk index, etc.).
	Metadata map[string]string

	// Distance is the vector-space distance between this chunk and the query
	// embedding, assigned during retrieval. Lower means more similar.
	// Zero value means the distance was not computed (e.g. on upsert).
	Distance float32
}

// VectorStore is the interface for persisting and searching document embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed
	// embeddings as one atomic unit. The embeddings slice must be parallel to
	// docs — embeddings[i] is the vector for docs[i]. Callers rely on batch
	// atomicity: a failed Upsert must leave none of the batch visible.
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns the top-k documents nearest to the query embedding,
	// ordered ascending by distance. If the store holds fewer than k rows,
	// all rows are returned.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the agent and the evaluation
// harness to fetch relevant context for a given query. It combines embedding
// and vector search.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents for the given query,
	// ordered ascending by distance.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
