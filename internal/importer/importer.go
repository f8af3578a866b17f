// Package importer implements the conversation import pipeline: validate,
// persist, chunk, embed.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rhinks/Breadcrumbs/internal/chunking"
	"github.com/Rhinks/Breadcrumbs/internal/embedding"
	"github.com/Rhinks/Breadcrumbs/internal/models"
	"github.com/Rhinks/Breadcrumbs/internal/storage"
)

// Importer runs the import pipeline against injected collaborators.
type Importer struct {
	store    storage.Storage
	embedder embedding.Embedder
	strategy chunking.Strategy
	logger   *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Importer) {
		i.logger = logger
	}
}

// New creates an Importer.
func New(store storage.Storage, embedder embedding.Embedder, strategy chunking.Strategy, opts ...Option) *Importer {
	i := &Importer{
		store:    store,
		embedder: embedder,
		strategy: strategy,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import runs the full pipeline for one conversation: validate, persist the
// conversation and its messages, chunk, embed, store vectors. Validation
// failures cause no writes. An embedding failure after persistence returns an
// error but leaves the conversation and messages stored; chunks without
// vectors can be filled in later via Reindex.
func (i *Importer) Import(ctx context.Context, req *models.ImportRequest) (*models.ConversationSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	// Always a copy: the stored conversation must not alias the request map.
	meta := cloneMetadata(req.Metadata)
	if req.ScrapedAt != "" {
		meta["scraped_at"] = req.ScrapedAt
	}
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Source:    req.Source,
		SourceURL: req.SourceURL,
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Metadata:  meta,
		CreatedAt: now,
	}
	if err := i.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("import conversation: %w", err)
	}

	msgs := make([]models.Message, len(req.Messages))
	for pos, m := range req.Messages {
		msgs[pos] = models.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Role:           m.Role,
			Content:        m.Content,
			Position:       pos,
			Metadata:       m.Metadata,
			CreatedAt:      now,
		}
	}
	if err := i.store.CreateMessages(ctx, msgs); err != nil {
		return nil, fmt.Errorf("import messages: %w", err)
	}

	chunkCount, err := i.embedConversation(ctx, conv.ID, msgs)
	if err != nil {
		return nil, fmt.Errorf("import embeddings: %w", err)
	}

	i.logger.Info("conversation imported",
		zap.String("conversation_id", conv.ID),
		zap.String("source", string(conv.Source)),
		zap.Int("messages", len(msgs)),
		zap.Int("chunks", chunkCount))

	return &models.ConversationSummary{
		ID:           conv.ID,
		Title:        conv.Title,
		Source:       conv.Source,
		MessageCount: len(msgs),
		CreatedAt:    conv.CreatedAt,
		ProjectID:    conv.ProjectID,
	}, nil
}

// Reindex deletes a conversation's chunks and rebuilds them with the current
// chunking strategy and embedding provider. Returns the new chunk count.
func (i *Importer) Reindex(ctx context.Context, conversationID string) (int, error) {
	_, msgs, err := i.store.GetConversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if err := i.store.DeleteChunksByConversationID(ctx, conversationID); err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}

	count, err := i.embedConversation(ctx, conversationID, msgs)
	if err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}

	i.logger.Info("conversation reindexed",
		zap.String("conversation_id", conversationID),
		zap.Int("chunks", count))
	return count, nil
}

// embedConversation chunks msgs, persists the chunks, then embeds and stores
// one vector per chunk. Chunks are stored before vectors so a provider
// failure leaves them queryable for a later reindex.
func (i *Importer) embedConversation(ctx context.Context, conversationID string, msgs []models.Message) (int, error) {
	chunks := i.strategy.Chunk(conversationID, msgs)
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := i.store.CreateChunks(ctx, chunks); err != nil {
		return 0, err
	}

	texts := make([]string, len(chunks))
	for n, c := range chunks {
		texts[n] = c.Content
	}
	vectors, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}
	for n, c := range chunks {
		if err := i.store.UpdateChunkEmbedding(ctx, c.ID, vectors[n]); err != nil {
			return 0, err
		}
	}
	return len(chunks), nil
}

func cloneMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
