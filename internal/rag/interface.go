// Package rag defines the retrieval side of the question-answering pipeline:
// query embedding, vector similarity search, and the retriever that combines
// the two. Concrete store clients (Qdrant, Postgres/pgvector) satisfy the
// VectorStore read contract; the orchestrator never depends on a specific
// backend. Writing to the store (chunking, ingestion) is owned by the
// deployment's ingestion tooling, not by this service.
package rag

import (
	"context"
)

// Document is a unit of retrieved knowledge, read-only to this service.
type Document struct {
	// Content is the raw text content of the passage.
	Content string

	// Source is the origin label of the passage (e.g. a file path or
	// publication name), surfaced to callers for provenance.
	Source string

	// Score is the similarity score assigned during retrieval.
	// Zero value means the backend did not report one.
	Score float32
}

// VectorStore is the read contract with the document store collaborator.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Search returns the topK documents nearest to the query embedding,
	// ordered most-similar first. An empty result is a normal outcome,
	// not an error.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store client.
	Close() error
}

// Embedder converts text into a dense vector embedding of the
// deployment-wide dimension agreed with the document store.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches the context bundle for a question. It combines
// embedding and vector search, preserving the store's relevance order.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the topK most relevant documents for the question.
	// topK <= 0 selects the configured default.
	Retrieve(ctx context.Context, question string, topK int) ([]Document, error)
}
