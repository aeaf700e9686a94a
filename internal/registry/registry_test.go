package registry

import (
	"errors"
	"testing"

	"github.com/kbqa-dev/kbqa-go/internal/config"
)

// testAIConfig returns a two-provider table mirroring the default deployment.
func testAIConfig() *config.AIConfig {
	return &config.AIConfig{
		DefaultModel: "gemini-1.5-flash",
		Providers: map[string]config.ProviderConfig{
			"gemini": {
				Wire:      "generate",
				APIKeyEnv: "GEMINI_API_KEY",
				Models:    []string{"gemini-1.5-flash", "gemini-1.5-pro"},
			},
			"deepseek": {
				Wire:      "chat",
				APIKeyEnv: "DEEPSEEK_API_KEY",
				Endpoint:  "https://api.deepseek.com/chat/completions",
				Models:    []string{"deepseek-chat"},
			},
		},
	}
}

func TestResolve_KnownModels(t *testing.T) {
	t.Parallel()
	r, err := New(testAIConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	pc, ok := r.Resolve("gemini-1.5-pro")
	if !ok {
		t.Fatal("expected gemini-1.5-pro to resolve")
	}
	if pc.Name != "gemini" || pc.Wire != WireGenerate {
		t.Errorf("want gemini/generate, got %s/%s", pc.Name, pc.Wire)
	}

	pc, ok = r.Resolve("deepseek-chat")
	if !ok {
		t.Fatal("expected deepseek-chat to resolve")
	}
	if pc.Name != "deepseek" || pc.Wire != WireChat {
		t.Errorf("want deepseek/chat, got %s/%s", pc.Name, pc.Wire)
	}
}

func TestResolve_UnknownModelIsNotFound(t *testing.T) {
	t.Parallel()
	r, err := New(testAIConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := r.Resolve("unknown-model"); ok {
		t.Error("unknown-model must not resolve")
	}
	// Resolution is exact-match only — a prefix of a configured model name
	// must not resolve either.
	if _, ok := r.Resolve("gemini-1.5"); ok {
		t.Error("partial model name must not resolve")
	}
}

func TestNew_RejectsOverlappingModelSets(t *testing.T) {
	t.Parallel()
	cfg := testAIConfig()
	p := cfg.Providers["deepseek"]
	p.Models = append(p.Models, "gemini-1.5-flash")
	cfg.Providers["deepseek"] = p

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for model claimed by two providers")
	}
}

func TestNew_RejectsUnknownWire(t *testing.T) {
	t.Parallel()
	cfg := testAIConfig()
	p := cfg.Providers["gemini"]
	p.Wire = "grpc"
	cfg.Providers["gemini"] = p

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown wire")
	}
}

func TestNew_RejectsChatWireWithoutEndpoint(t *testing.T) {
	t.Parallel()
	cfg := testAIConfig()
	p := cfg.Providers["deepseek"]
	p.Endpoint = ""
	cfg.Providers["deepseek"] = p

	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for chat wire without endpoint")
	}
}

func TestDefaultModel(t *testing.T) {
	t.Parallel()
	r, err := New(testAIConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := r.DefaultModel(); got != "gemini-1.5-flash" {
		t.Errorf("want gemini-1.5-flash, got %q", got)
	}
}

func TestCredential_Missing(t *testing.T) {
	r, err := New(testAIConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Setenv("GEMINI_API_KEY", "")

	pc, _ := r.Resolve("gemini-1.5-flash")
	_, err = r.Credential(pc)
	if err == nil {
		t.Fatal("expected error for missing credential")
	}
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected *CredentialError, got %T", err)
	}
	if credErr.EnvVar != "GEMINI_API_KEY" {
		t.Errorf("want GEMINI_API_KEY, got %q", credErr.EnvVar)
	}
}

func TestCredential_Present(t *testing.T) {
	r, err := New(testAIConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Setenv("GEMINI_API_KEY", "test-key")

	pc, _ := r.Resolve("gemini-1.5-flash")
	key, err := r.Credential(pc)
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	if key != "test-key" {
		t.Errorf("want test-key, got %q", key)
	}
}
