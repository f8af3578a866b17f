// Package embedding provides vector embeddings for chunk and query text.
package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/Rhinks/Breadcrumbs/internal/config"
)

// Embedder produces fixed-length vector embeddings for text. EmbedBatch is
// order-preserving: one vector per input, output[i] corresponds to input[i].
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New selects the provider once at construction time: OpenAI when an API key
// is configured, otherwise the null provider so the pipeline runs
// deterministically without network access. Call sites never branch on
// credential presence.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) Embedder {
	if cfg.APIKey == "" {
		if logger != nil {
			logger.Warn("no embedding API key configured; using null embedder (all-zero vectors)",
				zap.Int("dimensions", cfg.Dimensions))
		}
		return NewNullEmbedder(cfg.Dimensions)
	}
	return NewOpenAIEmbedder(cfg)
}
