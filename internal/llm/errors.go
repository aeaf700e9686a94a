package llm

import (
	"fmt"
	"net/http"
)

// ErrorKind partitions provider failures by whether a retry can help.
type ErrorKind string

const (
	// KindTransient marks failures that may succeed on retry: rate limits,
	// server-side errors, network faults, and malformed success payloads
	// (which in practice come from overloaded gateways returning partial
	// bodies with a 200 status).
	KindTransient ErrorKind = "transient"

	// KindPermanent marks failures that retrying cannot fix: client-side
	// request errors such as an invalid API key or a malformed prompt.
	KindPermanent ErrorKind = "permanent"
)

// ProviderError is a failed call to a generation backend, classified so the
// invoker can decide whether to retry.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Kind       ErrorKind
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm: %s call for model %q failed with status %d: %s", e.Provider, e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm: %s call for model %q failed: %s", e.Provider, e.Model, e.Message)
}

// Transient reports whether retrying the call might succeed.
func (e *ProviderError) Transient() bool { return e.Kind == KindTransient }

// classifyStatus maps an HTTP status code to an error kind. 429 and all 5xx
// are transient; every other non-2xx status is permanent.
func classifyStatus(status int) ErrorKind {
	if status == http.StatusTooManyRequests || status >= 500 {
		return KindTransient
	}
	return KindPermanent
}

// ExhaustedError reports that the retry budget ran out without a successful
// generation. Last carries the final attempt's failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("llm: call failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
