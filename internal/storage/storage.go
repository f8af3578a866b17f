// Package storage provides persistence gateways for conversations, messages,
// chunks, and embeddings, with vector similarity search.
package storage

import (
	"context"

	"github.com/Rhinks/Breadcrumbs/internal/models"
)

// SearchFilter narrows a similarity search to a project and/or source.
// Zero values mean no filtering.
type SearchFilter struct {
	ProjectID string
	Source    models.Source
}

// Storage is the persistence gateway. Implementations own their schema and
// their vector representation; callers see only domain types. Batch writes
// (messages, chunks) are atomic: all rows or none.
type Storage interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	// GetConversation returns the conversation and its messages ordered by
	// position. Returns a NotFoundError for an unknown id.
	GetConversation(ctx context.Context, id string) (*models.Conversation, []models.Message, error)
	// ListConversations returns summaries newest-first.
	ListConversations(ctx context.Context, limit, offset int) ([]models.ConversationSummary, error)

	// CreateMessages persists msgs in one transaction, preserving order.
	CreateMessages(ctx context.Context, msgs []models.Message) error

	CreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunksByConversationID(ctx context.Context, conversationID string) ([]*models.Chunk, error)
	DeleteChunksByConversationID(ctx context.Context, conversationID string) error
	// UpdateChunkEmbedding stores the vector for one chunk. Returns a
	// NotFoundError for an unknown chunk id and a DimensionMismatchError for
	// a vector of the wrong length.
	UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error

	// SearchChunks returns the chunks most similar to the query vector, scored
	// by cosine similarity, filtered to score >= threshold, ordered by score
	// descending, at most limit results. Chunks with no stored embedding are
	// never returned.
	SearchChunks(ctx context.Context, query []float32, limit int, threshold float64, filter SearchFilter) ([]models.SearchResult, error)

	CountConversations(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)

	Close() error
}
