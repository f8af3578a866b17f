package storage

import (
	"context"
	"fmt"

	"github.com/Rhinks/Breadcrumbs/internal/config"
)

// NewStorage creates the storage backend named by cfg.
// Supported backends: "sqlite" (default), "postgres".
func NewStorage(ctx context.Context, cfg *config.StorageConfig, dimensions int) (Storage, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteStorage(cfg.DatabasePath, dimensions)
	case "postgres":
		return NewPostgresStorage(ctx, cfg.DatabaseURL, dimensions)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: sqlite, postgres)", cfg.Backend)
	}
}
