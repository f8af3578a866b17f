// Package server provides the HTTP API for Breadcrumbs.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Rhinks/Breadcrumbs/internal/config"
	"github.com/Rhinks/Breadcrumbs/internal/importer"
	"github.com/Rhinks/Breadcrumbs/internal/search"
	"github.com/Rhinks/Breadcrumbs/internal/storage"
)

// Version is the server version reported by the health endpoint.
const Version = "0.2.0"

// Server is the HTTP server for the Breadcrumbs API.
type Server struct {
	importer *importer.Importer
	engine   *search.Engine
	storage  storage.Storage
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	imp *importer.Importer,
	engine *search.Engine,
	storage storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		importer: imp,
		engine:   engine,
		storage:  storage,
		config:   cfg,
		logger:   logger,
	}
}

// routes builds the router. Extracted from Start so tests can exercise the
// full middleware and routing stack without a listener.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Post("/api/conversations/import", s.handleImport)
	r.Get("/api/conversations", s.handleListConversations)
	r.Get("/api/conversations/{id}", s.handleGetConversation)
	r.Post("/api/search", s.handleSearch)
	r.Post("/api/embeddings/reindex/{conversationID}", s.handleReindex)
	r.Get("/api/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
