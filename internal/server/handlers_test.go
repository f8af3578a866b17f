package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/Rhinks/Breadcrumbs/internal/chunking"
	"github.com/Rhinks/Breadcrumbs/internal/config"
	"github.com/Rhinks/Breadcrumbs/internal/importer"
	"github.com/Rhinks/Breadcrumbs/internal/models"
	"github.com/Rhinks/Breadcrumbs/internal/search"
	"github.com/Rhinks/Breadcrumbs/internal/storage"
)

const testDims = 4

// fixedEmbedder returns the same vector for every input so stored chunks and
// queries always match exactly.
type fixedEmbedder struct{}

func (fixedEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (fixedEmbedder) Dimensions() int { return testDims }
func (fixedEmbedder) Close() error    { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(t.TempDir()+"/db.sqlite", testDims)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	embedder := fixedEmbedder{}
	imp := importer.New(store, embedder, chunking.NewSingleChunk())
	cfg := &config.Config{
		Server:    config.ServerConfig{Port: 8000},
		Storage:   config.StorageConfig{Backend: "sqlite"},
		Embedding: config.EmbeddingConfig{Model: "text-embedding-3-small", Dimensions: testDims},
		Chunking:  config.ChunkingConfig{Strategy: "single"},
		Search:    config.SearchConfig{DefaultLimit: 10, MaxLimit: 100, SimilarityThreshold: 0.7},
	}
	engine := search.NewEngine(store, embedder, &cfg.Search)

	return NewServer(imp, engine, store, cfg, zap.NewNop())
}

func importFixture(t *testing.T, srv *Server) string {
	t.Helper()
	body, _ := json.Marshal(models.ImportRequest{
		Title:  "Test conversation",
		Source: models.SourceClaude,
		Messages: []models.MessageInput{
			{Role: models.RoleUser, Content: "hello"},
			{Role: models.RoleAssistant, Content: "hi"},
		},
	})
	r := httptest.NewRequest(http.MethodPost, "/api/conversations/import", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.handleImport(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("import status: got %d, body: %s", w.Code, w.Body.String())
	}
	var summary models.ConversationSummary
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatal(err)
	}
	return summary.ID
}

func TestHandleImport(t *testing.T) {
	srv := newTestServer(t)
	id := importFixture(t, srv)
	if id == "" {
		t.Fatal("import response missing id")
	}
}

func TestHandleImportInvalidBody(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodPost, "/api/conversations/import", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	srv.handleImport(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleImportInvalidSource(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(models.ImportRequest{
		Title:    "T",
		Source:   "telegram",
		Messages: []models.MessageInput{{Role: models.RoleUser, Content: "x"}},
	})
	r := httptest.NewRequest(http.MethodPost, "/api/conversations/import", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleImport(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Error == "" {
		t.Error("expected error message in body")
	}
}

func TestHandleGetConversation(t *testing.T) {
	srv := newTestServer(t)
	id := importFixture(t, srv)

	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/conversations/" + id)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var out struct {
		Conversation models.Conversation `json:"conversation"`
		Messages     []models.Message    `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Conversation.ID != id {
		t.Errorf("conversation id: got %s, want %s", out.Conversation.ID, id)
	}
	if len(out.Messages) != 2 {
		t.Errorf("messages: got %d, want 2", len(out.Messages))
	}
}

func TestHandleGetConversationNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/conversations/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestHandleListConversations(t *testing.T) {
	srv := newTestServer(t)
	importFixture(t, srv)

	r := httptest.NewRequest(http.MethodGet, "/api/conversations?limit=10&offset=0", nil)
	w := httptest.NewRecorder()
	srv.handleListConversations(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Conversations) != 1 {
		t.Errorf("conversations: got %d, want 1", len(out.Conversations))
	}
	if out.Conversations[0].MessageCount != 2 {
		t.Errorf("message_count: got %d, want 2", out.Conversations[0].MessageCount)
	}
}

func TestHandleSearch(t *testing.T) {
	srv := newTestServer(t)
	importFixture(t, srv)

	body, _ := json.Marshal(models.SearchQuery{Query: "hello"})
	r := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Results []models.SearchResult `json:"results"`
		Count   int                   `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 1 || len(out.Results) != 1 {
		t.Fatalf("results: got count=%d len=%d, want 1", out.Count, len(out.Results))
	}
	if out.Results[0].ConversationTitle != "Test conversation" {
		t.Errorf("result: got %+v", out.Results[0])
	}
}

func TestHandleSearchEmptyQuery(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(models.SearchQuery{Query: ""})
	r := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleReindex(t *testing.T) {
	srv := newTestServer(t)
	id := importFixture(t, srv)

	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/embeddings/reindex/"+id, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var out struct {
		ConversationID string `json:"conversation_id"`
		Chunks         int    `json:"chunks"`
		Status         string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ConversationID != id || out.Chunks != 1 || out.Status != "reindexed" {
		t.Errorf("response: got %+v", out)
	}
}

func TestHandleReindexNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/embeddings/reindex/missing", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t)
	importFixture(t, srv)

	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Conversations int            `json:"conversations"`
		Chunks        int            `json:"chunks"`
		Version       string         `json:"version"`
		Config        map[string]any `json:"config"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Conversations != 1 || out.Chunks != 1 {
		t.Errorf("counts: got %+v", out)
	}
	if out.Version == "" {
		t.Error("expected version in status response")
	}
	if out.Config["chunking_strategy"] != "single" {
		t.Errorf("config echo: got %v", out.Config)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "ok" {
		t.Errorf("body: got %v", out)
	}
}
