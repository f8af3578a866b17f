package models

import "time"

// Chunk is a contiguous span of a conversation's messages treated as one
// embeddable unit. The spans of a conversation's chunks, ordered by ChunkIndex,
// cover every message position exactly once with no overlap.
type Chunk struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	ChunkIndex     int       `json:"chunk_index"`
	MessageIDs     []string  `json:"message_ids"`
	Content        string    `json:"content"`
	StartMessage   int       `json:"start_message"`
	EndMessage     int       `json:"end_message"`
	Embedding      []float32 `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
