package chunking

import (
	"fmt"

	"github.com/Rhinks/Breadcrumbs/internal/config"
)

// NewStrategy creates the chunking strategy named by cfg.
// Supported strategies: "single" (default), "window".
// Swapping strategies changes no other component's contract.
func NewStrategy(cfg *config.ChunkingConfig) (Strategy, error) {
	switch cfg.Strategy {
	case "", "single":
		return NewSingleChunk(), nil
	case "window":
		if cfg.WindowSize <= 0 {
			return nil, fmt.Errorf("chunking window_size must be positive, got %d", cfg.WindowSize)
		}
		return NewFixedWindow(cfg.WindowSize), nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy: %s (supported: single, window)", cfg.Strategy)
	}
}
