package embedding

import "context"

// NullEmbedder returns all-zero vectors of the configured dimensionality for
// every input. It stands in for the real provider when no credential is
// configured, keeping the rest of the pipeline runnable offline.
type NullEmbedder struct {
	dimensions int
}

// NewNullEmbedder returns an embedder producing zero vectors of the given dimensions.
func NewNullEmbedder(dimensions int) *NullEmbedder {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &NullEmbedder{dimensions: dimensions}
}

// EmbedOne returns an all-zero vector.
func (e *NullEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, e.dimensions), nil
}

// EmbedBatch returns one all-zero vector per input.
func (e *NullEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, e.dimensions)
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *NullEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for NullEmbedder.
func (e *NullEmbedder) Close() error {
	return nil
}
