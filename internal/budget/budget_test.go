package budget

import (
	"strings"
	"testing"

	"github.com/kbqa-dev/kbqa-go/internal/rag"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	if got := Estimate(""); got != 0 {
		t.Errorf("empty string: want 0, got %d", got)
	}
	if got := Estimate("ab"); got != 1 {
		t.Errorf("short string rounds up to 1, got %d", got)
	}
	if got := Estimate(strings.Repeat("x", 400)); got != 100 {
		t.Errorf("400 chars: want 100, got %d", got)
	}
}

func TestTrimDocuments_KeepsAllWithinBudget(t *testing.T) {
	t.Parallel()

	docs := []rag.Document{
		{Content: strings.Repeat("a", 40)},
		{Content: strings.Repeat("b", 40)},
	}
	got := TrimDocuments(docs, "question", 1000)
	if len(got) != 2 {
		t.Errorf("want 2 docs kept, got %d", len(got))
	}
}

func TestTrimDocuments_DropsTailFirst(t *testing.T) {
	t.Parallel()

	docs := []rag.Document{
		{Content: strings.Repeat("a", 400), Source: "most-relevant"},
		{Content: strings.Repeat("b", 400), Source: "less-relevant"},
		{Content: strings.Repeat("c", 400), Source: "least-relevant"},
	}
	// Budget fits the question (2 tokens) plus two 100-token documents.
	got := TrimDocuments(docs, "question", 220)
	if len(got) != 2 {
		t.Fatalf("want 2 docs kept, got %d", len(got))
	}
	if got[0].Source != "most-relevant" || got[1].Source != "less-relevant" {
		t.Errorf("trimming must preserve relevance order, got %v", got)
	}
}

func TestTrimDocuments_ZeroBudgetDisablesTrimming(t *testing.T) {
	t.Parallel()

	docs := []rag.Document{{Content: strings.Repeat("a", 100000)}}
	if got := TrimDocuments(docs, "q", 0); len(got) != 1 {
		t.Errorf("maxTokens 0 must disable trimming, got %d docs", len(got))
	}
}
