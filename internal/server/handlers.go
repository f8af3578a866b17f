package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Rhinks/Breadcrumbs/internal/apperr"
	"github.com/Rhinks/Breadcrumbs/internal/models"
)

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req models.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("import request",
		zap.String("title", req.Title),
		zap.String("source", string(req.Source)),
		zap.Int("messages", len(req.Messages)))

	summary, err := s.importer.Import(r.Context(), &req)
	if err != nil {
		s.respondAppError(w, "import failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, msgs, err := s.storage.GetConversation(r.Context(), id)
	if err != nil {
		s.respondAppError(w, "get conversation failed", err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     msgs,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	summaries, err := s.storage.ListConversations(r.Context(), limit, offset)
	if err != nil {
		s.respondAppError(w, "list conversations failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": summaries,
		"limit":         limit,
		"offset":        offset,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))

	results, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.respondAppError(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	s.logger.Debug("reindex request", zap.String("conversation_id", id))

	count, err := s.importer.Reindex(r.Context(), id)
	if err != nil {
		s.respondAppError(w, "reindex failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": id,
		"chunks":          count,
		"status":          "reindexed",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convCount, err := s.storage.CountConversations(ctx)
	if err != nil {
		s.logger.Error("status: count conversations failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": convCount,
		"chunks":        chunkCount,
		"version":       Version,
		"config": map[string]interface{}{
			"storage_backend":      s.config.Storage.Backend,
			"embedding_model":      s.config.Embedding.Model,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"chunking_strategy":    s.config.Chunking.Strategy,
			"similarity_threshold": s.config.Search.SimilarityThreshold,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}

// respondAppError maps the error taxonomy to HTTP statuses: validation
// failures are 400, missing resources 404, everything else 500.
func (s *Server) respondAppError(w http.ResponseWriter, context string, err error) {
	switch {
	case apperr.IsValidation(err):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case apperr.IsNotFound(err):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error(context, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, context+": "+err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
