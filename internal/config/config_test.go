package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8000 {
		t.Errorf("server defaults: got %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("storage backend: got %s", cfg.Storage.Backend)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" || cfg.Embedding.Dimensions != 1536 {
		t.Errorf("embedding defaults: got %s/%d", cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.MaxBatchSize != 2048 {
		t.Errorf("max_batch_size: got %d, want 2048", cfg.Embedding.MaxBatchSize)
	}
	if cfg.Chunking.Strategy != "single" {
		t.Errorf("chunking strategy: got %s", cfg.Chunking.Strategy)
	}
	if cfg.Search.SimilarityThreshold != 0.7 {
		t.Errorf("similarity_threshold: got %f", cfg.Search.SimilarityThreshold)
	}
	if cfg.Search.DefaultLimit != 10 || cfg.Search.MaxLimit != 100 {
		t.Errorf("limits: got %d/%d", cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		t.Error("allowed_origins default missing")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  port: 9001
storage:
  database_path: /tmp/test.db
embedding:
  dimensions: 256
chunking:
  strategy: window
  window_size: 6
search:
  similarity_threshold: 0.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug: got false")
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("port: got %d", cfg.Server.Port)
	}
	if cfg.Storage.DatabasePath != "/tmp/test.db" {
		t.Errorf("database_path: got %s", cfg.Storage.DatabasePath)
	}
	if cfg.Embedding.Dimensions != 256 {
		t.Errorf("dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Chunking.Strategy != "window" || cfg.Chunking.WindowSize != 6 {
		t.Errorf("chunking: got %s/%d", cfg.Chunking.Strategy, cfg.Chunking.WindowSize)
	}
	if cfg.Search.SimilarityThreshold != 0.5 {
		t.Errorf("threshold: got %f", cfg.Search.SimilarityThreshold)
	}
	// Unset fields still get defaults.
	if cfg.Server.Host != "localhost" {
		t.Errorf("host default: got %s", cfg.Server.Host)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("model default: got %s", cfg.Embedding.Model)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir() + "/nope.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("PORT", "7777")
	t.Setenv("BREADCRUMBS_STORAGE_BACKEND", "sqlite")
	t.Setenv("BREADCRUMBS_ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("BREADCRUMBS_CHUNKING_STRATEGY", "window")

	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.APIKey != "sk-env" {
		t.Errorf("api key: got %q", cfg.Embedding.APIKey)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("port: got %d", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("origins: got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Chunking.Strategy != "window" {
		t.Errorf("strategy: got %s", cfg.Chunking.Strategy)
	}
}

func TestValidate(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.Search.SimilarityThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for threshold > 1")
	}

	ApplyDefaults(&cfg)
	cfg.Search.SimilarityThreshold = 0.7
	cfg.Embedding.Dimensions = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero dimensions")
	}

	var pg Config
	ApplyDefaults(&pg)
	pg.Storage.Backend = "postgres"
	pg.Storage.DatabaseURL = ""
	if err := pg.Validate(); err == nil {
		t.Error("expected error for postgres without DATABASE_URL")
	}
}

func TestValidateRejectsNonPositiveRetrySettings(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.Embedding.RetryDelaySeconds = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative retry_delay_seconds")
	}

	ApplyDefaults(&cfg)
	cfg.Embedding.RetryDelaySeconds = 2
	cfg.Embedding.TimeoutSeconds = -5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative timeout_seconds")
	}
}

func TestLoadRejectsNegativeRetryDelay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
embedding:
  retry_delay_seconds: -1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for retry_delay_seconds: -1")
	}
}

func TestMaxRetriesDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.Embedding.MaxRetries != 3 {
		t.Errorf("unset max_retries: got %d, want 3", cfg.Embedding.MaxRetries)
	}

	var disabled Config
	disabled.Embedding.MaxRetries = -1
	ApplyDefaults(&disabled)
	if disabled.Embedding.MaxRetries != 0 {
		t.Errorf("max_retries -1: got %d, want 0 (retries disabled)", disabled.Embedding.MaxRetries)
	}

	var explicit Config
	explicit.Embedding.MaxRetries = 5
	ApplyDefaults(&explicit)
	if explicit.Embedding.MaxRetries != 5 {
		t.Errorf("max_retries 5: got %d, want 5", explicit.Embedding.MaxRetries)
	}
}
