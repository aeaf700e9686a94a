package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-retry"

	"github.com/kbqa-dev/kbqa-go/internal/config"
	"github.com/kbqa-dev/kbqa-go/internal/logging"
	"github.com/kbqa-dev/kbqa-go/internal/registry"
)

// maxResponseBytes caps how much of a provider response body is read.
// Generation answers are text; anything beyond this is a broken backend.
const maxResponseBytes = 10 << 20 // 10 MiB

// Invoker routes generation requests to the right wire adapter and wraps
// each call in bounded exponential-backoff retry. It owns the shared HTTP
// client so that every provider call inherits the same overall timeout.
type Invoker struct {
	client      *http.Client
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	metrics     *invokerMetrics
}

// NewInvoker builds an Invoker from generation settings. Metrics are
// registered against reg; pass a fresh prometheus.NewRegistry in tests.
func NewInvoker(cfg *config.GenerationConfig, reg prometheus.Registerer) *Invoker {
	return &Invoker{
		client:      &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		maxAttempts: cfg.MaxAttempts,
		backoffBase: time.Duration(cfg.BackoffBaseSeconds) * time.Second,
		backoffCap:  time.Duration(cfg.BackoffCapSeconds) * time.Second,
		metrics:     newInvokerMetrics(reg),
	}
}

// Close releases idle HTTP connections.
func (inv *Invoker) Close() {
	inv.client.CloseIdleConnections()
}

// Invoke sends req to the provider using its wire format, retrying transient
// failures with exponential backoff (base doubles per attempt, capped, with
// jitter). Permanent failures abort immediately. When the attempt budget is
// spent, the returned error is an *ExhaustedError wrapping the last failure.
func (inv *Invoker) Invoke(ctx context.Context, pc registry.ProviderConfig, apiKey string, req GenerationRequest) (string, error) {
	log := logging.FromContext(ctx)

	var ad adapter
	switch pc.Wire {
	case registry.WireGenerate:
		ad = newGeminiAdapter(pc.Name, pc.Endpoint, apiKey, inv.client)
	case registry.WireChat:
		ad = newChatAdapter(pc.Name, pc.Endpoint, apiKey, inv.client)
	default:
		return "", fmt.Errorf("llm: provider %q has unsupported wire format %q", pc.Name, pc.Wire)
	}

	backoff := retry.NewExponential(inv.backoffBase)
	backoff = retry.WithCappedDuration(inv.backoffCap, backoff)
	backoff = retry.WithJitterPercent(10, backoff)
	// MaxRetries counts retries after the first attempt.
	backoff = retry.WithMaxRetries(uint64(inv.maxAttempts-1), backoff)

	attempt := 0
	var answer string
	start := time.Now()
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		text, callErr := ad.Generate(ctx, req)
		if callErr != nil {
			var pe *ProviderError
			if errors.As(callErr, &pe) && pe.Transient() {
				log.Warn("provider call failed, will retry",
					"provider", pc.Name, "model", req.Model,
					"attempt", attempt, "status", pe.StatusCode, "error", pe.Message)
				inv.metrics.attemptsTotal.WithLabelValues(pc.Name, "transient").Inc()
				return retry.RetryableError(callErr)
			}
			inv.metrics.attemptsTotal.WithLabelValues(pc.Name, "permanent").Inc()
			return callErr
		}
		inv.metrics.attemptsTotal.WithLabelValues(pc.Name, "ok").Inc()
		answer = text
		return nil
	})
	inv.metrics.durationSeconds.WithLabelValues(pc.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		inv.metrics.callsTotal.WithLabelValues(pc.Name, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("llm: call cancelled after %d attempts: %w", attempt, err)
		}
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Transient() {
			// Retry budget exhausted on a transient failure.
			return "", &ExhaustedError{Attempts: attempt, Last: err}
		}
		return "", err
	}
	inv.metrics.callsTotal.WithLabelValues(pc.Name, "ok").Inc()
	return answer, nil
}
