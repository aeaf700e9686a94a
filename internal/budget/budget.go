// Package budget provides token estimation and context trimming for the
// retrieval pipeline. Because kbqa supports multiple generation backends
// with different tokenizers, it uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model overhead.
package budget

import (
	"github.com/kbqa-dev/kbqa-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English text; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default budget for retrieved context
	// within a single prompt. Conservative enough to fit within 8k-context
	// models while leaving room for the question and the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimDocuments drops trailing documents from the bundle until the combined
// estimated token count of question plus document contents fits within
// maxTokens. Documents arrive most-relevant first, so trimming from the
// tail discards the least relevant passages.
//
// maxTokens <= 0 disables trimming. The question itself is never trimmed;
// if it alone exceeds the budget, an empty bundle is returned.
func TrimDocuments(docs []rag.Document, question string, maxTokens int) []rag.Document {
	if maxTokens <= 0 || len(docs) == 0 {
		return docs
	}

	remaining := maxTokens - Estimate(question)
	kept := 0
	for _, doc := range docs {
		cost := Estimate(doc.Content)
		if cost > remaining {
			break
		}
		remaining -= cost
		kept++
	}
	return docs[:kept]
}
