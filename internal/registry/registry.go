// Package registry maps model names to generation provider configurations.
// The registry is built once from configuration at process start and is
// immutable afterwards, so it is safe for concurrent use without locking.
// Credential values are resolved lazily from the environment at query time;
// a missing credential for an otherwise-resolved provider is a deployment
// fault, not a caller error.
package registry

import (
	"fmt"
	"os"
	"sort"

	"github.com/kbqa-dev/kbqa-go/internal/config"
)

// Wire identifies a provider wire family. It is a closed enum: every
// dispatch site switches exhaustively over the constants below, so an
// unsupported provider family is impossible to construct past New.
type Wire string

const (
	// WireGenerate is the key-in-URL single-shot generation shape
	// (POST .../models/{model}:generateContent?key=K).
	WireGenerate Wire = "generate"
	// WireChat is the bearer-token chat-completion shape
	// (POST endpoint with Authorization: Bearer).
	WireChat Wire = "chat"
)

// ProviderConfig is the resolved, immutable description of one generation
// backend. Models listed here resolve to exactly this provider.
type ProviderConfig struct {
	// Name is the provider identity (e.g. "gemini", "deepseek").
	Name string
	// Wire selects the request/response shape for this provider family.
	Wire Wire
	// APIKeyEnv is the env var name holding the provider credential.
	APIKeyEnv string
	// Endpoint is the API endpoint. Required for chat-wire providers;
	// empty means "provider default" for generate-wire ones.
	Endpoint string
	// Models is the set of model names served by this provider.
	Models []string
}

// CredentialError reports a provider whose credential env var is unset.
// It is the one failure the orchestrator raises to its boundary rather than
// degrading into answer text, because it indicates a deployment error.
type CredentialError struct {
	// Provider is the provider whose credential is missing.
	Provider string
	// EnvVar is the unset environment variable name.
	EnvVar string
}

// Error implements the error interface.
func (e *CredentialError) Error() string {
	return fmt.Sprintf("registry: credential env var %q for provider %q is not set", e.EnvVar, e.Provider)
}

// Registry resolves model names to provider configurations.
// It is read-only after construction.
type Registry struct {
	// byModel maps each configured model name to its provider.
	byModel map[string]ProviderConfig
	// providers holds all configured providers, sorted by name.
	providers []ProviderConfig
	// defaultModel is substituted when a request names no model.
	defaultModel string
}

// New builds a Registry from the configured provider table. It rejects
// unknown wire values, providers without models or a credential env var,
// and any model name claimed by more than one provider — model resolution
// must be unambiguous.
func New(cfg *config.AIConfig) (*Registry, error) {
	if cfg == nil || len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("registry: no providers configured")
	}
	if cfg.DefaultModel == "" {
		return nil, fmt.Errorf("registry: default model must not be empty")
	}

	r := &Registry{
		byModel:      make(map[string]ProviderConfig),
		defaultModel: cfg.DefaultModel,
	}

	// Sort provider names so validation errors are deterministic.
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pc := cfg.Providers[name]

		wire := Wire(pc.Wire)
		switch wire {
		case WireGenerate, WireChat:
		default:
			return nil, fmt.Errorf("registry: provider %q has unknown wire %q (valid values: generate, chat)", name, pc.Wire)
		}
		if wire == WireChat && pc.Endpoint == "" {
			return nil, fmt.Errorf("registry: provider %q uses the chat wire and must set api_endpoint", name)
		}
		if pc.APIKeyEnv == "" {
			return nil, fmt.Errorf("registry: provider %q must set api_key_env", name)
		}
		if len(pc.Models) == 0 {
			return nil, fmt.Errorf("registry: provider %q lists no models", name)
		}

		resolved := ProviderConfig{
			Name:      name,
			Wire:      wire,
			APIKeyEnv: pc.APIKeyEnv,
			Endpoint:  pc.Endpoint,
			Models:    append([]string(nil), pc.Models...),
		}

		for _, model := range pc.Models {
			if prev, dup := r.byModel[model]; dup {
				return nil, fmt.Errorf("registry: model %q is claimed by both %q and %q; model sets must be disjoint", model, prev.Name, name)
			}
			r.byModel[model] = resolved
		}
		r.providers = append(r.providers, resolved)
	}

	return r, nil
}

// Resolve returns the provider serving the given model name. An unknown
// model returns ok=false — the caller surfaces this as an explanatory
// answer, never as a hard failure. Matching is exact, never by prefix.
func (r *Registry) Resolve(model string) (ProviderConfig, bool) {
	pc, ok := r.byModel[model]
	return pc, ok
}

// DefaultModel returns the process-wide default model name, substituted
// when a request carries no model selector.
func (r *Registry) DefaultModel() string {
	return r.defaultModel
}

// Providers returns all configured providers sorted by name.
// The returned slice is a copy; mutating it does not affect the registry.
func (r *Registry) Providers() []ProviderConfig {
	return append([]ProviderConfig(nil), r.providers...)
}

// Credential resolves the API key for the given provider from the
// environment. A missing value returns a *CredentialError, reported at
// resolution time rather than on the first request to the backend.
func (r *Registry) Credential(pc ProviderConfig) (string, error) {
	key := os.Getenv(pc.APIKeyEnv)
	if key == "" {
		return "", &CredentialError{Provider: pc.Name, EnvVar: pc.APIKeyEnv}
	}
	return key, nil
}
