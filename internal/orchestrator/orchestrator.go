// Package orchestrator runs the full question-answering pipeline: retrieve
// context, assemble the prompt, route to the configured provider, and shape
// failures into answer text a caller can always display.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/kbqa-dev/kbqa-go/internal/budget"
	"github.com/kbqa-dev/kbqa-go/internal/llm"
	"github.com/kbqa-dev/kbqa-go/internal/logging"
	"github.com/kbqa-dev/kbqa-go/internal/prompt"
	"github.com/kbqa-dev/kbqa-go/internal/rag"
	"github.com/kbqa-dev/kbqa-go/internal/registry"
)

// RetrievalError reports that the context bundle could not be fetched,
// either because embedding the question or searching the store failed.
// Callers map it to an upstream-dependency failure, distinct from the
// credential deployment fault.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("orchestrator: retrieve context: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Invoker sends an assembled prompt to a provider. Satisfied by *llm.Invoker.
type Invoker interface {
	Invoke(ctx context.Context, pc registry.ProviderConfig, apiKey string, req llm.GenerationRequest) (string, error)
}

// QueryResult is the outcome of one question. Sources always reflects what
// was retrieved, even when Answer carries an error message instead of a
// model response: the caller can still show the user what was found.
type QueryResult struct {
	Answer  string          `json:"answer"`
	Sources []prompt.Source `json:"sources"`
}

// Orchestrator wires the retriever, registry and invoker into one pipeline.
type Orchestrator struct {
	retriever        rag.Retriever
	registry         *registry.Registry
	invoker          Invoker
	maxContextTokens int
}

// New constructs an Orchestrator. maxContextTokens <= 0 disables context
// trimming.
func New(retriever rag.Retriever, reg *registry.Registry, inv Invoker, maxContextTokens int) *Orchestrator {
	return &Orchestrator{
		retriever:        retriever,
		registry:         reg,
		invoker:          inv,
		maxContextTokens: maxContextTokens,
	}
}

// Answer runs the pipeline for one question. An empty model selects the
// configured default.
//
// Failure handling is deliberately asymmetric. Provider failures (unknown
// model, exhausted retries, rejected calls) come back as answer text with
// the retrieved sources intact, because the query itself was serviceable.
// A missing credential is a deployment fault and is returned as an error
// (*registry.CredentialError) so callers can distinguish it. Retrieval
// failures are also errors: answering without the knowledge base would be
// silently ungrounded.
func (o *Orchestrator) Answer(ctx context.Context, question, model string) (*QueryResult, error) {
	log := logging.FromContext(ctx)

	if model == "" {
		model = o.registry.DefaultModel()
	}

	docs, err := o.retriever.Retrieve(ctx, question, 0)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}
	docs = budget.TrimDocuments(docs, question, o.maxContextTokens)

	assembled, sources := prompt.Assemble(question, docs)
	if sources == nil {
		// Callers serialise Sources; an absent bundle is an empty list,
		// never null.
		sources = []prompt.Source{}
	}
	log.Debug("assembled prompt", "model", model, "documents", len(docs), "prompt_chars", len(assembled))

	pc, ok := o.registry.Resolve(model)
	if !ok {
		log.Warn("requested model is not configured", "model", model)
		return &QueryResult{
			Answer:  fmt.Sprintf("Error: Model '%s' is not configured.", model),
			Sources: sources,
		}, nil
	}

	apiKey, err := o.registry.Credential(pc)
	if err != nil {
		return nil, err
	}

	answer, err := o.invoker.Invoke(ctx, pc, apiKey, llm.GenerationRequest{Model: model, Prompt: assembled})
	if err != nil {
		var ex *llm.ExhaustedError
		if errors.As(err, &ex) {
			log.Error("generation retries exhausted", "model", model, "attempts", ex.Attempts, "error", ex.Last)
			return &QueryResult{
				Answer:  fmt.Sprintf("Error: API call failed after %d attempts.", ex.Attempts),
				Sources: sources,
			}, nil
		}
		log.Error("generation failed", "model", model, "error", err)
		return &QueryResult{
			Answer:  fmt.Sprintf("Error: API call failed: %v", err),
			Sources: sources,
		}, nil
	}

	return &QueryResult{Answer: answer, Sources: sources}, nil
}
