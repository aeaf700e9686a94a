// Package config provides YAML-based configuration for kbqa.
// Configuration is resolved with a layered precedence: defaults → YAML file →
// env vars. Environment variables always win, so existing workflows keep
// working when a config file is introduced later.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. KBQA_CONFIG environment variable
//  3. ~/.kbqa/config.yaml
//  4. ./kbqa.yaml
//
// If no file is found the system runs entirely from defaults plus env vars.
//
// The provider table (ai.providers) is a dynamic map keyed by provider name,
// so unlike scalar settings it has no env var projection — it can only be
// changed via the YAML file. The built-in defaults mirror the standard
// deployment (gemini + deepseek).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
type Config struct {
	// AI configures the generation providers and the default model.
	AI AIConfig `yaml:"ai"`

	// Retrieval configures the vector document store and search limits.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Embedding configures the query-embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Generation configures the resilient invoker (retry/backoff/timeout).
	Generation GenerationConfig `yaml:"generation"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures the query-history log.
	History HistoryConfig `yaml:"history"`
}

// AIConfig holds the provider table and the process-wide default model.
type AIConfig struct {
	// DefaultModel is substituted when a request names no model.
	DefaultModel string `yaml:"default_model"`

	// Providers maps provider name to its configuration. Model sets must be
	// disjoint across providers; the registry enforces this at startup.
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one generation backend.
type ProviderConfig struct {
	// Wire selects the request/response shape: "generate" (key-in-URL
	// single-shot) or "chat" (bearer-token chat completion).
	Wire string `yaml:"wire"`

	// APIKeyEnv is the env var name holding the provider credential.
	// The value itself never appears in config files or logs.
	APIKeyEnv string `yaml:"api_key_env"`

	// Endpoint overrides the provider's default API endpoint. Required for
	// chat-wire providers; optional for generate-wire ones.
	Endpoint string `yaml:"api_endpoint"`

	// Models is the list of model names served by this provider.
	Models []string `yaml:"models"`
}

// RetrievalConfig holds vector store settings.
type RetrievalConfig struct {
	// Backend selects the vector store: qdrant or pgvector.
	Backend string `yaml:"backend"`
	// TopK is the nearest-neighbor result limit per query.
	TopK int `yaml:"top_k"`
	// MaxContextTokens caps the estimated token footprint of the retrieved
	// context included in a prompt. 0 disables trimming.
	MaxContextTokens int `yaml:"max_context_tokens"`
	// Qdrant holds Qdrant connection settings (backend: qdrant).
	Qdrant QdrantConfig `yaml:"qdrant"`
	// Postgres holds Postgres/pgvector settings (backend: pgvector).
	Postgres PostgresConfig `yaml:"postgres"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// PostgresConfig holds Postgres/pgvector document store settings.
type PostgresConfig struct {
	// URL is the Postgres connection string. Prefer env var KBQA_DATABASE_URL.
	URL string `yaml:"url"`
	// Table is the documents table name.
	Table string `yaml:"table"`
}

// EmbeddingConfig holds query-embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: ollama, openai, azure, gemini.
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions is the deployment-wide embedding vector size agreed with
	// the document store. It is fixed per deployment, never per call.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// GenerationConfig holds resilient invoker settings.
type GenerationConfig struct {
	// MaxAttempts is the maximum number of generation attempts per query.
	MaxAttempts int `yaml:"max_attempts"`
	// TimeoutSeconds is the overall per-attempt HTTP timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// BackoffBaseSeconds is the first retry delay; doubles per attempt.
	BackoffBaseSeconds int `yaml:"backoff_base_seconds"`
	// BackoffCapSeconds bounds a single retry delay.
	BackoffCapSeconds int `yaml:"backoff_cap_seconds"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the static X-API-KEY value required on /api/v1 routes.
	// Prefer env var KBQA_API_KEY. Empty disables authentication.
	APIKey string `yaml:"api_key"`
	// RateLimit is the sustained per-IP request rate (requests/second).
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the maximum instantaneous per-IP burst.
	RateBurst int `yaml:"rate_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds query-history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// Defaults returns the built-in configuration mirroring the standard
// deployment: gemini and deepseek providers, Qdrant retrieval, 5 neighbors,
// 3 generation attempts with a 2s exponential backoff capped at 60s.
func Defaults() *Config {
	return &Config{
		AI: AIConfig{
			DefaultModel: "gemini-1.5-flash",
			Providers: map[string]ProviderConfig{
				"gemini": {
					Wire:      "generate",
					APIKeyEnv: "GEMINI_API_KEY",
					Models:    []string{"gemini-1.5-flash", "gemini-1.5-pro"},
				},
				"deepseek": {
					Wire:      "chat",
					APIKeyEnv: "DEEPSEEK_API_KEY",
					Endpoint:  "https://api.deepseek.com/chat/completions",
					Models:    []string{"deepseek-chat", "deepseek-coder"},
				},
			},
		},
		Retrieval: RetrievalConfig{
			Backend: "qdrant",
			TopK:    5,
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "knowledge_documents",
			},
			Postgres: PostgresConfig{
				Table: "knowledge_documents",
			},
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Generation: GenerationConfig{
			MaxAttempts:        3,
			TimeoutSeconds:     180,
			BackoffBaseSeconds: 2,
			BackoffCapSeconds:  60,
		},
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8080,
			RateLimit: 10,
			RateBurst: 20,
		},
	}
}

// Load resolves the full configuration: defaults, then the YAML file (if one
// is found), then env var overrides. Returns the resolved config and the
// path that was loaded (empty string if no file was found).
func Load(explicitPath string, log *slog.Logger) (*Config, string, error) {
	cfg := Defaults()

	path := resolveConfigPath(explicitPath)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		// A file-level provider table replaces the built-in one wholesale —
		// merging the two maps would leave phantom default providers behind.
		var probe struct {
			AI struct {
				Providers map[string]yaml.Node `yaml:"providers"`
			} `yaml:"ai"`
		}
		if err := yaml.Unmarshal(data, &probe); err != nil {
			return nil, "", fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
		if len(probe.AI.Providers) > 0 {
			cfg.AI.Providers = nil
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
		log.Info("config: loaded YAML config", slog.String("path", path))
	} else {
		log.Debug("config: no YAML config file found, using defaults and env vars")
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

// applyEnv overrides scalar config fields from environment variables.
// Env vars always win over YAML values.
func (c *Config) applyEnv() {
	c.AI.DefaultModel = envStr("KBQA_DEFAULT_MODEL", c.AI.DefaultModel)

	c.Retrieval.Backend = envStr("RETRIEVAL_BACKEND", c.Retrieval.Backend)
	c.Retrieval.TopK = envInt("RETRIEVAL_TOP_K", c.Retrieval.TopK)
	c.Retrieval.MaxContextTokens = envInt("RETRIEVAL_MAX_CONTEXT_TOKENS", c.Retrieval.MaxContextTokens)
	c.Retrieval.Qdrant.Host = envStr("QDRANT_HOST", c.Retrieval.Qdrant.Host)
	c.Retrieval.Qdrant.Port = envInt("QDRANT_PORT", c.Retrieval.Qdrant.Port)
	c.Retrieval.Qdrant.Collection = envStr("QDRANT_COLLECTION", c.Retrieval.Qdrant.Collection)
	c.Retrieval.Qdrant.APIKey = envStr("QDRANT_API_KEY", c.Retrieval.Qdrant.APIKey)
	c.Retrieval.Qdrant.TLS = envBool("QDRANT_TLS", c.Retrieval.Qdrant.TLS)
	c.Retrieval.Postgres.URL = envStr("KBQA_DATABASE_URL", c.Retrieval.Postgres.URL)
	c.Retrieval.Postgres.Table = envStr("KBQA_DOCUMENTS_TABLE", c.Retrieval.Postgres.Table)

	c.Embedding.Provider = envStr("EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.Model = envStr("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Dimensions = envInt("EMBEDDING_DIMENSIONS", c.Embedding.Dimensions)
	c.Embedding.APIKey = envStr("EMBEDDING_API_KEY", c.Embedding.APIKey)
	c.Embedding.Endpoint = envStr("EMBEDDING_ENDPOINT", c.Embedding.Endpoint)

	c.Generation.MaxAttempts = envInt("GENERATION_MAX_ATTEMPTS", c.Generation.MaxAttempts)
	c.Generation.TimeoutSeconds = envInt("GENERATION_TIMEOUT_SECONDS", c.Generation.TimeoutSeconds)

	c.Server.Host = envStr("KBQA_HOST", c.Server.Host)
	c.Server.Port = envInt("KBQA_PORT", c.Server.Port)
	c.Server.APIKey = envStr("KBQA_API_KEY", c.Server.APIKey)

	c.History.DBPath = envStr("KBQA_HISTORY_DB", c.History.DBPath)

	// The logging package reads LOG_LEVEL / LOG_FORMAT directly from the
	// environment, so YAML logging settings are projected the other way:
	// file values are applied only when the env var is unset.
	if c.Logging.Level != "" && os.Getenv("LOG_LEVEL") == "" {
		os.Setenv("LOG_LEVEL", c.Logging.Level)
	}
	if c.Logging.Format != "" && os.Getenv("LOG_FORMAT") == "" {
		os.Setenv("LOG_FORMAT", c.Logging.Format)
	}
}

// validate rejects configurations that cannot possibly serve a query.
// Provider-table consistency (disjoint models, known wire values) is owned
// by the registry, which produces richer errors.
func (c *Config) validate() error {
	if c.AI.DefaultModel == "" {
		return fmt.Errorf("config: ai.default_model must not be empty")
	}
	if len(c.AI.Providers) == 0 {
		return fmt.Errorf("config: ai.providers must configure at least one provider")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("config: retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	switch c.Retrieval.Backend {
	case "qdrant", "pgvector":
	default:
		return fmt.Errorf("config: unknown retrieval.backend %q — valid values: qdrant, pgvector", c.Retrieval.Backend)
	}
	if c.Generation.MaxAttempts <= 0 {
		return fmt.Errorf("config: generation.max_attempts must be positive, got %d", c.Generation.MaxAttempts)
	}
	return nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("KBQA_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".kbqa", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("kbqa.yaml"); err == nil {
		return "kbqa.yaml"
	}

	return ""
}

// envStr returns the named env var value, or fallback when unset or empty.
func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the integer value of the named env var, or fallback when
// unset, empty, or not parseable.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// envBool returns the boolean value of the named env var, or fallback when
// unset, empty, or not parseable.
func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
