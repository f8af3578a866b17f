package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Rhinks/Breadcrumbs/internal/apperr"
	"github.com/Rhinks/Breadcrumbs/internal/config"
)

func TestNullEmbedder(t *testing.T) {
	e := NewNullEmbedder(8)
	defer e.Close()

	vec, err := e.EmbedOne(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 8 {
		t.Fatalf("dimensions: got %d, want 8", len(vec))
	}
	for i, v := range vec {
		if v != 0 {
			t.Errorf("vec[%d]: got %f, want 0", i, v)
		}
	}

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("batch: got %d vectors, want 3", len(vecs))
	}
	for _, v := range vecs {
		if len(v) != 8 {
			t.Errorf("batch vector dimensions: got %d, want 8", len(v))
		}
	}
}

func TestNewSelectsNullWithoutKey(t *testing.T) {
	e := New(&config.EmbeddingConfig{Dimensions: 4}, nil)
	defer e.Close()
	if _, ok := e.(*NullEmbedder); !ok {
		t.Fatalf("expected NullEmbedder, got %T", e)
	}
	if e.Dimensions() != 4 {
		t.Errorf("dimensions: got %d, want 4", e.Dimensions())
	}
}

func TestNewSelectsOpenAIWithKey(t *testing.T) {
	e := New(&config.EmbeddingConfig{APIKey: "sk-test", Model: "text-embedding-3-small", Dimensions: 4}, nil)
	defer e.Close()
	if _, ok := e.(*OpenAIEmbedder); !ok {
		t.Fatalf("expected OpenAIEmbedder, got %T", e)
	}
}

func TestSplitBatches(t *testing.T) {
	texts := make([]string, 5000)
	for i := range texts {
		texts[i] = "t"
	}
	batches := splitBatches(texts, 2048)
	if len(batches) != 3 {
		t.Fatalf("batches: got %d, want 3", len(batches))
	}
	if len(batches[0]) != 2048 || len(batches[1]) != 2048 || len(batches[2]) != 904 {
		t.Errorf("batch sizes: got %d, %d, %d", len(batches[0]), len(batches[1]), len(batches[2]))
	}
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if total != 5000 {
		t.Errorf("total inputs: got %d, want 5000", total)
	}
}

func TestSplitBatchesSmall(t *testing.T) {
	batches := splitBatches([]string{"a", "b"}, 2048)
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Errorf("got %d batches", len(batches))
	}
}

// fakeAPI returns canned responses, recording inputs per call.
type fakeAPI struct {
	dimensions int
	calls      [][]string
	failAfter  int // fail calls numbered >= failAfter (1-based); 0 = never
	shuffle    bool
}

func (f *fakeAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	req := conv.Convert()
	inputs := req.Input.([]string)
	f.calls = append(f.calls, inputs)
	if f.failAfter > 0 && len(f.calls) >= f.failAfter {
		return openai.EmbeddingResponse{}, errors.New("rate limited")
	}

	data := make([]openai.Embedding, len(inputs))
	for i := range inputs {
		vec := make([]float32, f.dimensions)
		vec[0] = float32(i + 1)
		data[i] = openai.Embedding{Index: i, Embedding: vec}
	}
	if f.shuffle && len(data) > 1 {
		data[0], data[len(data)-1] = data[len(data)-1], data[0]
	}
	return openai.EmbeddingResponse{Data: data}, nil
}

func newTestEmbedder(api embeddingsAPI, dimensions, maxBatch int) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client:       api,
		model:        "text-embedding-3-small",
		dimensions:   dimensions,
		maxBatchSize: maxBatch,
		timeout:      time.Second,
		maxRetries:   0,
		retryDelay:   time.Millisecond,
	}
}

func TestOpenAIEmbedBatchSplits(t *testing.T) {
	api := &fakeAPI{dimensions: 4}
	e := newTestEmbedder(api, 4, 2)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 5 {
		t.Fatalf("vectors: got %d, want 5", len(vecs))
	}
	if len(api.calls) != 3 {
		t.Fatalf("provider calls: got %d, want 3", len(api.calls))
	}
	if api.calls[0][0] != "a" || api.calls[2][0] != "e" {
		t.Errorf("batch contents out of order: %v", api.calls)
	}
}

func TestOpenAIEmbedBatchIndexOrder(t *testing.T) {
	// Response order must not matter: vectors are placed by the Index field.
	api := &fakeAPI{dimensions: 4, shuffle: true}
	e := newTestEmbedder(api, 4, 10)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vecs {
		if v[0] != float32(i+1) {
			t.Errorf("vecs[%d][0]: got %f, want %d", i, v[0], i+1)
		}
	}
}

func TestOpenAIEmbedBatchProviderError(t *testing.T) {
	api := &fakeAPI{dimensions: 4, failAfter: 2}
	e := newTestEmbedder(api, 4, 2)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d"})
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *apperr.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if pe.Batch != 1 {
		t.Errorf("failed batch: got %d, want 1", pe.Batch)
	}
}

func TestOpenAIEmbedBatchDimensionMismatch(t *testing.T) {
	api := &fakeAPI{dimensions: 3}
	e := newTestEmbedder(api, 4, 10)

	_, err := e.EmbedBatch(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected error")
	}
	var dm *apperr.DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatalf("expected DimensionMismatchError, got %T: %v", err, err)
	}
	if dm.Want != 4 || dm.Got != 3 {
		t.Errorf("mismatch: got want=%d got=%d", dm.Want, dm.Got)
	}
}

func TestOpenAIEmbedBatchRetries(t *testing.T) {
	// First call fails, second succeeds.
	api := &retryAPI{failFirst: 1, dimensions: 4}
	e := newTestEmbedder(api, 4, 10)
	e.maxRetries = 2

	vecs, err := e.EmbedBatch(context.Background(), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 1 {
		t.Fatalf("vectors: got %d, want 1", len(vecs))
	}
	if api.calls != 2 {
		t.Errorf("provider calls: got %d, want 2", api.calls)
	}
}

type retryAPI struct {
	failFirst  int
	dimensions int
	calls      int
}

func (f *retryAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	f.calls++
	if f.calls <= f.failFirst {
		return openai.EmbeddingResponse{}, errors.New("transient")
	}
	req := conv.Convert()
	inputs := req.Input.([]string)
	data := make([]openai.Embedding, len(inputs))
	for i := range inputs {
		data[i] = openai.Embedding{Index: i, Embedding: make([]float32, f.dimensions)}
	}
	return openai.EmbeddingResponse{Data: data}, nil
}

func TestOpenAIEmbedBatchEmpty(t *testing.T) {
	api := &fakeAPI{dimensions: 4}
	e := newTestEmbedder(api, 4, 10)
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 0 {
		t.Errorf("vectors: got %d, want 0", len(vecs))
	}
	if len(api.calls) != 0 {
		t.Errorf("provider calls: got %d, want 0", len(api.calls))
	}
}
