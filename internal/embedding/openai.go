package embedding

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Rhinks/Breadcrumbs/internal/apperr"
	"github.com/Rhinks/Breadcrumbs/internal/config"
	"github.com/Rhinks/Breadcrumbs/internal/util"
)

// embeddingsAPI is the slice of the OpenAI client used here, extracted so
// tests can substitute a fake provider.
type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder generates embeddings via the OpenAI API with retry and
// batch splitting.
type OpenAIEmbedder struct {
	client       embeddingsAPI
	model        openai.EmbeddingModel
	dimensions   int
	maxBatchSize int
	timeout      time.Duration
	maxRetries   int
	retryDelay   time.Duration
}

// NewOpenAIEmbedder creates an embedder for the configured model and dimensionality.
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client:       openai.NewClient(cfg.APIKey),
		model:        openai.EmbeddingModel(cfg.Model),
		dimensions:   cfg.Dimensions,
		maxBatchSize: cfg.MaxBatchSize,
		timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}
}

// EmbedOne generates a single embedding (used for search queries).
func (e *OpenAIEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates one embedding per input, in input order. Inputs beyond
// the provider's maximum batch size are split into multiple calls; a failure
// in any one call fails the whole batch with a ProviderError identifying it.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for batchNum, batch := range splitBatches(texts, e.maxBatchSize) {
		vecs, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, &apperr.ProviderError{Batch: batchNum, Err: err}
		}
		vectors = append(vectors, vecs...)
	}
	return vectors, nil
}

// embedBatch runs one provider call with retry. len(batch) must be within the
// provider's batch limit.
func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(util.Backoff(e.retryDelay, attempt)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		resp, err := e.client.CreateEmbeddings(callCtx, openai.EmbeddingRequestStrings{
			Input:      batch,
			Model:      e.model,
			Dimensions: e.dimensions,
		})
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Data) != len(batch) {
			lastErr = fmt.Errorf("attempt %d: provider returned %d embeddings for %d inputs",
				attempt+1, len(resp.Data), len(batch))
			continue
		}

		vectors := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if len(d.Embedding) != e.dimensions {
				return nil, &apperr.DimensionMismatchError{Want: e.dimensions, Got: len(d.Embedding)}
			}
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("provider returned out-of-range index %d", d.Index)
			}
			vectors[d.Index] = d.Embedding
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.maxRetries+1, lastErr)
}

// splitBatches splits texts into consecutive slices of at most max elements.
func splitBatches(texts []string, max int) [][]string {
	if max <= 0 {
		max = 1
	}
	batches := make([][]string, 0, (len(texts)+max-1)/max)
	for start := 0; start < len(texts); start += max {
		end := start + max
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[start:end])
	}
	return batches
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for OpenAIEmbedder.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
