package server

import (
	"context"
	"fmt"

	"github.com/kbqa-dev/kbqa-go/internal/rag"
)

// VectorStorePinger probes the retrieval backend via its own Ping method.
// It satisfies the Pinger interface and is used by GET /api/ready.
type VectorStorePinger struct {
	// store is the vector store to probe.
	store rag.VectorStore
	// name identifies the backend in readiness responses (e.g. "qdrant").
	name string
}

// NewVectorStorePinger constructs a VectorStorePinger for the given store
// and backend name.
func NewVectorStorePinger(s rag.VectorStore, name string) *VectorStorePinger {
	return &VectorStorePinger{store: s, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *VectorStorePinger) Name() string { return p.name }

// Ping checks that the retrieval backend is reachable.
func (p *VectorStorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
