package chunking

import "github.com/Rhinks/Breadcrumbs/internal/models"

// FixedWindow groups messages into consecutive non-overlapping windows of
// size messages each; the last window may be shorter.
type FixedWindow struct {
	size int
}

// NewFixedWindow creates a fixed-window strategy. Size must be positive.
func NewFixedWindow(size int) *FixedWindow {
	if size <= 0 {
		size = 1
	}
	return &FixedWindow{size: size}
}

// Name returns the strategy identifier.
func (w *FixedWindow) Name() string { return "window" }

// Chunk splits msgs into windows of w.size messages.
func (w *FixedWindow) Chunk(conversationID string, msgs []models.Message) []*models.Chunk {
	if len(msgs) == 0 {
		return nil
	}
	chunks := make([]*models.Chunk, 0, (len(msgs)+w.size-1)/w.size)
	for start := 0; start < len(msgs); start += w.size {
		end := start + w.size
		if end > len(msgs) {
			end = len(msgs)
		}
		chunks = append(chunks, newChunk(conversationID, len(chunks), msgs[start:end]))
	}
	return chunks
}
