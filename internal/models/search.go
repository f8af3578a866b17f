package models

// SearchQuery represents a semantic search request with optional filters.
type SearchQuery struct {
	Query     string `json:"query"`
	ProjectID string `json:"project_id,omitempty"`
	Source    Source `json:"source,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// SearchResult is a single search hit: a chunk joined with its conversation and
// a similarity score. Never persisted; built per query.
type SearchResult struct {
	ChunkID           string  `json:"chunk_id"`
	ConversationID    string  `json:"conversation_id"`
	ConversationTitle string  `json:"conversation_title"`
	ChunkContent      string  `json:"chunk_content"`
	ChunkIndex        int     `json:"chunk_index"`
	Score             float64 `json:"score"`
	Source            Source  `json:"source"`
}
