package rag

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// PGVectorConfig holds connection parameters for a Postgres/pgvector
// document store.
type PGVectorConfig struct {
	// URL is the Postgres connection string.
	URL string

	// Table is the documents table (default: knowledge_documents). The
	// table schema — content, source_document, embedding vector(N) — is
	// owned by the deployment's ingestion tooling.
	Table string
}

// PGVectorStore implements the VectorStore read contract against a Postgres
// table with a pgvector embedding column. The distance operator (<=>,
// cosine) is fixed at store-schema time, matching the index the deployment
// created.
type PGVectorStore struct {
	// pool is the shared connection pool, safe for concurrent use.
	pool *pgxpool.Pool

	// tableIdent is the sanitized SQL identifier for the documents table.
	tableIdent string
}

// NewPGVectorStore connects to Postgres and returns a ready-to-use store
// client. pgvector's types are registered on every pooled connection so
// query embeddings can be bound as native vector values.
func NewPGVectorStore(ctx context.Context, cfg *PGVectorConfig) (*PGVectorStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("pgvector: connection URL must not be empty")
	}
	table := cfg.Table
	if table == "" {
		table = "knowledge_documents"
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("pgvector: parse connection URL: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}

	return &PGVectorStore{
		pool:       pool,
		tableIdent: pgx.Identifier{table}.Sanitize(),
	}, nil
}

// Search returns the topK documents nearest to the query embedding, ordered
// by ascending cosine distance (most similar first). Score is reported as
// 1 - distance so higher means more similar, matching the Qdrant client.
func (s *PGVectorStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	query := fmt.Sprintf(
		`SELECT content, source_document, embedding <=> $1 AS distance
		 FROM %s ORDER BY distance ASC LIMIT $2`, s.tableIdent)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search failed: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var distance float64
		if err := rows.Scan(&doc.Content, &doc.Source, &distance); err != nil {
			return nil, fmt.Errorf("pgvector: scan row: %w", err)
		}
		doc.Score = float32(1 - distance)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: read rows: %w", err)
	}

	return docs, nil
}

// Ping checks connectivity to Postgres.
func (s *PGVectorStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pgvector: ping failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PGVectorStore) Close() error {
	s.pool.Close()
	return nil
}
