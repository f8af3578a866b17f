// Package models defines core data structures for conversations, chunks, and search results.
package models

import "time"

// Source identifies the platform a conversation transcript was captured from.
type Source string

const (
	SourceChatGPT    Source = "chatgpt"
	SourceClaude     Source = "claude"
	SourceGemini     Source = "gemini"
	SourcePerplexity Source = "perplexity"
	SourceManual     Source = "manual"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceChatGPT, SourceClaude, SourceGemini, SourcePerplexity, SourceManual:
		return true
	}
	return false
}

// Role identifies the author of a message within a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Conversation represents an imported conversation transcript.
// Rows are immutable after import except for metadata edits.
type Conversation struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Source    Source                 `json:"source"`
	SourceURL string                 `json:"source_url,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	ProjectID string                 `json:"project_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Message is a single utterance within a conversation. Position is the zero-based
// order index; positions within a conversation are contiguous from 0.
type Message struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Role           Role                   `json:"role"`
	Content        string                 `json:"content"`
	Position       int                    `json:"position"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
