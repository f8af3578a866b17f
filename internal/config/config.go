// Package config provides configuration loading and structs for the Breadcrumbs server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend is "sqlite" (default) or "postgres".
	Backend      string `yaml:"backend"`
	DatabasePath string `yaml:"database_path"`
	// DatabaseURL is the Postgres connection string; usually supplied via the
	// DATABASE_URL environment variable rather than the config file.
	DatabaseURL string `yaml:"database_url"`
}

// EmbeddingConfig holds embedding provider settings. APIKey comes from the
// environment only; when empty the null provider is used (all-zero vectors).
type EmbeddingConfig struct {
	APIKey            string `yaml:"-"`
	Model             string `yaml:"model"`
	Dimensions        int    `yaml:"dimensions"`
	MaxBatchSize      int    `yaml:"max_batch_size"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	MaxRetries        int    `yaml:"max_retries"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds"`
}

// ChunkingConfig selects the chunking strategy.
type ChunkingConfig struct {
	// Strategy is "single" (default: whole conversation as one chunk) or
	// "window" (fixed windows of WindowSize messages).
	Strategy   string `yaml:"strategy"`
	WindowSize int    `yaml:"window_size"`
}

// SearchConfig holds search settings.
type SearchConfig struct {
	DefaultLimit        int     `yaml:"default_limit"`
	MaxLimit            int     `yaml:"max_limit"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// Load reads and parses the config file at path, applies environment overrides,
// then defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg)

	return &cfg, cfg.Validate()
}

// Default returns a config built from environment variables and defaults only,
// for running without a config file.
func Default() (*Config, error) {
	var cfg Config
	applyEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg, cfg.Validate()
}

// Validate checks cross-field constraints not covered by defaults.
func (c *Config) Validate() error {
	if c.Search.SimilarityThreshold < 0 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("search similarity_threshold must be 0-1, got %f", c.Search.SimilarityThreshold)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		return fmt.Errorf("embedding timeout_seconds must be positive, got %d", c.Embedding.TimeoutSeconds)
	}
	if c.Embedding.RetryDelaySeconds <= 0 {
		return fmt.Errorf("embedding retry_delay_seconds must be positive, got %d", c.Embedding.RetryDelaySeconds)
	}
	if c.Storage.Backend == "postgres" && c.Storage.DatabaseURL == "" {
		return fmt.Errorf("storage backend postgres requires DATABASE_URL")
	}
	return nil
}

// applyEnv overlays environment variables onto cfg. Secrets (the embedding API
// key, the database URL) are environment-only.
func applyEnv(cfg *Config) {
	cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("BREADCRUMBS_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("BREADCRUMBS_DB_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv("BREADCRUMBS_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := getEnvInt("BREADCRUMBS_EMBEDDING_DIMENSIONS"); v > 0 {
		cfg.Embedding.Dimensions = v
	}
	if v := getEnvInt("PORT"); v > 0 {
		cfg.Server.Port = v
	}
	if v := os.Getenv("BREADCRUMBS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("BREADCRUMBS_CHUNKING_STRATEGY"); v != "" {
		cfg.Chunking.Strategy = v
	}
}

func getEnvInt(key string) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return 0
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
