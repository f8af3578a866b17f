// Package chunking splits a conversation's ordered messages into embeddable chunks.
package chunking

import (
	"strings"

	"github.com/google/uuid"

	"github.com/Rhinks/Breadcrumbs/internal/models"
)

// Strategy segments an ordered message list into chunks. Implementations must
// be pure functions of their input: messages are never reordered or dropped,
// and the chunks' position spans cover 0..len(msgs)-1 exactly once, in order.
// An empty message list yields an empty chunk list.
type Strategy interface {
	Name() string
	Chunk(conversationID string, msgs []models.Message) []*models.Chunk
}

// renderContent renders messages as "ROLE: content" lines in position order.
func renderContent(msgs []models.Message) string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = strings.ToUpper(string(m.Role)) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

// newChunk builds a chunk covering msgs, which must be non-empty and in
// position order. The embedding is left nil; it is attached after the
// provider call.
func newChunk(conversationID string, index int, msgs []models.Message) *models.Chunk {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return &models.Chunk{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		ChunkIndex:     index,
		MessageIDs:     ids,
		Content:        renderContent(msgs),
		StartMessage:   msgs[0].Position,
		EndMessage:     msgs[len(msgs)-1].Position,
	}
}
