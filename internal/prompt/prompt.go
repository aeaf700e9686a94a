// Package prompt assembles grounded prompts from retrieved context.
package prompt

import (
	"fmt"
	"strings"

	"github.com/kbqa-dev/kbqa-go/internal/rag"
)

// separator delimits individual context passages inside the prompt. The
// blank lines around the rule keep passages visually distinct for the model.
const separator = "\n\n---\n\n"

// template wraps the context block and the question with instructions that
// keep the model grounded: answer from the supplied context, and say so
// when the context does not contain the answer.
const template = `Based on the following context, please provide a comprehensive answer to the user's question. If the context does not contain the answer, state that you do not have enough information.

CONTEXT:
%s

QUESTION:
%s`

// Source is a citation attached to an answer, pairing the originating
// document identifier with the passage that was placed in the prompt.
type Source struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Assemble builds the generation prompt from a question and its retrieved
// context bundle, returning the prompt and the citations in bundle order.
//
// An empty bundle returns the question verbatim: the model then answers
// from its own knowledge rather than an instruction block wrapped around
// no context at all.
func Assemble(question string, docs []rag.Document) (string, []Source) {
	if len(docs) == 0 {
		return question, nil
	}

	parts := make([]string, 0, len(docs))
	sources := make([]Source, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
		sources = append(sources, Source{Source: doc.Source, Content: doc.Content})
	}

	contextBlock := strings.Join(parts, separator)
	return fmt.Sprintf(template, contextBlock, question), sources
}
