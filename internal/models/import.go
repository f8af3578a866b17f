package models

import (
	"fmt"
	"time"

	"github.com/Rhinks/Breadcrumbs/internal/apperr"
)

// MessageInput is a single message in an import payload.
type MessageInput struct {
	Role      Role                   `json:"role"`
	Content   string                 `json:"content"`
	Timestamp string                 `json:"timestamp,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ImportRequest is the payload from the browser extension or a manual import.
type ImportRequest struct {
	Title     string                 `json:"title"`
	Source    Source                 `json:"source"`
	SourceURL string                 `json:"source_url,omitempty"`
	Messages  []MessageInput         `json:"messages"`
	ScrapedAt string                 `json:"scraped_at,omitempty"`
	ProjectID string                 `json:"project_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the request shape and enums. It runs before any write: a
// request that fails validation causes no side effects anywhere.
func (r *ImportRequest) Validate() error {
	if r.Title == "" {
		return &apperr.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !r.Source.Valid() {
		return &apperr.ValidationError{Field: "source", Reason: fmt.Sprintf("unknown source %q", r.Source)}
	}
	for i, m := range r.Messages {
		if !m.Role.Valid() {
			return &apperr.ValidationError{
				Field:  fmt.Sprintf("messages[%d].role", i),
				Reason: fmt.Sprintf("unknown role %q", m.Role),
			}
		}
	}
	return nil
}

// ConversationSummary is the import response: the new conversation's identity
// and message count. Per-chunk embedding status is not exposed.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Source       Source    `json:"source"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	ProjectID    string    `json:"project_id,omitempty"`
}
