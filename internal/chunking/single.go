package chunking

import "github.com/Rhinks/Breadcrumbs/internal/models"

// SingleChunk is the default strategy: the whole conversation becomes one
// chunk (index 0, spanning every message position).
type SingleChunk struct{}

// NewSingleChunk returns the single-chunk strategy.
func NewSingleChunk() SingleChunk {
	return SingleChunk{}
}

// Name returns the strategy identifier.
func (SingleChunk) Name() string { return "single" }

// Chunk groups all messages into exactly one chunk.
func (SingleChunk) Chunk(conversationID string, msgs []models.Message) []*models.Chunk {
	if len(msgs) == 0 {
		return nil
	}
	return []*models.Chunk{newChunk(conversationID, 0, msgs)}
}
