package rag

import (
	"context"
	"fmt"
	"testing"
)

// fakeEmbedder returns a fixed vector for every text, or a canned error.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

// fakeStore returns a fixed document sequence, or a canned error.
type fakeStore struct {
	docs      []Document
	err       error
	lastTopK  int
	lastQuery []float32
}

func (f *fakeStore) Search(_ context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	f.lastQuery = queryEmbedding
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func TestRetrieve_PreservesStoreOrder(t *testing.T) {
	t.Parallel()
	docs := []Document{
		{Content: "first", Source: "a.md", Score: 0.9},
		{Content: "second", Source: "b.md", Score: 0.7},
		{Content: "third", Source: "c.md", Score: 0.5},
	}
	r, err := NewRetriever(&fakeEmbedder{vector: []float32{0.1, 0.2}}, &fakeStore{docs: docs}, 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	// Repeated retrievals against a fixed store return the same sequence
	// in the same order.
	for range 3 {
		got, err := r.Retrieve(context.Background(), "question", 0)
		if err != nil {
			t.Fatalf("retrieve: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("want 3 docs, got %d", len(got))
		}
		for i := range docs {
			if got[i].Content != docs[i].Content {
				t.Errorf("doc[%d]: want %q, got %q", i, docs[i].Content, got[i].Content)
			}
		}
	}
}

func TestRetrieve_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()
	r, err := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, &fakeStore{}, 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	got, err := r.Retrieve(context.Background(), "question", 0)
	if err != nil {
		t.Fatalf("empty store must not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty bundle, got %d docs", len(got))
	}
}

func TestRetrieve_EmbedFailureIsFatal(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{err: fmt.Errorf("embedding backend down")}
	r, err := NewRetriever(emb, &fakeStore{}, 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "question", 0); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestRetrieve_SearchFailureIsFatal(t *testing.T) {
	t.Parallel()
	store := &fakeStore{err: fmt.Errorf("store unreachable")}
	r, err := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, store, 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "question", 0); err == nil {
		t.Fatal("expected error when search fails")
	}
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	r, err := NewRetriever(&fakeEmbedder{vector: []float32{0.1}}, store, 7)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "question", 0); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if store.lastTopK != 7 {
		t.Errorf("want default topK 7, got %d", store.lastTopK)
	}

	if _, err := r.Retrieve(context.Background(), "question", 2); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if store.lastTopK != 2 {
		t.Errorf("want explicit topK 2, got %d", store.lastTopK)
	}
}

func TestRetrieve_EmbedsQuestionOnce(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vector: []float32{0.1}}
	r, err := NewRetriever(emb, &fakeStore{}, 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "question", 0); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("want exactly 1 embed call per retrieval, got %d", emb.calls)
	}
}
