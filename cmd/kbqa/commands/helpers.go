package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbqa-dev/kbqa-go/internal/config"
	"github.com/kbqa-dev/kbqa-go/internal/embedder"
	"github.com/kbqa-dev/kbqa-go/internal/llm"
	"github.com/kbqa-dev/kbqa-go/internal/orchestrator"
	"github.com/kbqa-dev/kbqa-go/internal/rag"
	"github.com/kbqa-dev/kbqa-go/internal/registry"
)

// buildVectorStore constructs the configured retrieval backend.
// The caller owns the returned store and must Close it.
func buildVectorStore(ctx context.Context, rc *config.RetrievalConfig) (rag.VectorStore, error) {
	switch rc.Backend {
	case "qdrant", "":
		store, err := rag.NewQdrantStore(&rag.QdrantConfig{
			Host:       rc.Qdrant.Host,
			Port:       rc.Qdrant.Port,
			Collection: rc.Qdrant.Collection,
			APIKey:     rc.Qdrant.APIKey,
			UseTLS:     rc.Qdrant.TLS,
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant store: %w", err)
		}
		return store, nil
	case "pgvector":
		store, err := rag.NewPGVectorStore(ctx, &rag.PGVectorConfig{
			URL:   rc.Postgres.URL,
			Table: rc.Postgres.Table,
		})
		if err != nil {
			return nil, fmt.Errorf("pgvector store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown retrieval backend %q (valid values: qdrant, pgvector)", rc.Backend)
	}
}

// buildPipeline wires the embedder, vector store, registry and invoker into
// an orchestrator. The returned cleanup releases everything in reverse order
// and must be called even when err is nil.
func buildPipeline(ctx context.Context, cfg *config.Config, reg *prometheus.Registry, log *slog.Logger) (*orchestrator.Orchestrator, rag.VectorStore, func(), error) {
	cleanup := func() {}

	embedder.Validate(&cfg.Embedding, log)
	emb, err := embedder.New(ctx, &cfg.Embedding)
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("provider", cfg.Embedding.Provider),
		slog.String("model", cfg.Embedding.Model),
	)

	store, err := buildVectorStore(ctx, &cfg.Retrieval)
	if err != nil {
		return nil, nil, cleanup, err
	}
	log.Info("vector store initialised", slog.String("backend", cfg.Retrieval.Backend))

	retriever, err := rag.NewRetriever(emb, store, cfg.Retrieval.TopK)
	if err != nil {
		_ = store.Close()
		return nil, nil, cleanup, fmt.Errorf("initialise retriever: %w", err)
	}

	modelReg, err := registry.New(&cfg.AI)
	if err != nil {
		_ = store.Close()
		return nil, nil, cleanup, err
	}

	invoker := llm.NewInvoker(&cfg.Generation, reg)
	cleanup = func() {
		invoker.Close()
		_ = store.Close()
	}

	orch := orchestrator.New(retriever, modelReg, invoker, cfg.Retrieval.MaxContextTokens)
	return orch, store, cleanup, nil
}
