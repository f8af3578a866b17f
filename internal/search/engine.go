// Package search implements the semantic search pipeline over stored chunks.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Rhinks/Breadcrumbs/internal/apperr"
	"github.com/Rhinks/Breadcrumbs/internal/config"
	"github.com/Rhinks/Breadcrumbs/internal/embedding"
	"github.com/Rhinks/Breadcrumbs/internal/models"
	"github.com/Rhinks/Breadcrumbs/internal/storage"
)

// Engine turns a text query into a vector and retrieves the most similar
// chunks from storage.
type Engine struct {
	store    storage.Storage
	embedder embedding.Embedder
	cfg      *config.SearchConfig
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a search engine.
func NewEngine(store storage.Storage, embedder embedding.Embedder, cfg *config.SearchConfig, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search embeds the query text and returns the most similar stored chunks,
// ordered by score descending. Results below the configured similarity
// threshold are dropped. Never returns nil results on success.
func (e *Engine) Search(ctx context.Context, q *models.SearchQuery) ([]models.SearchResult, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, &apperr.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if q.Source != "" && !q.Source.Valid() {
		return nil, &apperr.ValidationError{Field: "source", Reason: fmt.Sprintf("unknown source %q", q.Source)}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}

	vector, err := e.embedder.EmbedOne(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("search embedding: %w", err)
	}

	results, err := e.store.SearchChunks(ctx, vector, limit, e.cfg.SimilarityThreshold, storage.SearchFilter{
		ProjectID: q.ProjectID,
		Source:    q.Source,
	})
	if err != nil {
		return nil, fmt.Errorf("search retrieval: %w", err)
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	e.logger.Debug("search completed",
		zap.String("query", q.Query),
		zap.Int("limit", limit),
		zap.Int("results", len(results)))
	return results, nil
}
