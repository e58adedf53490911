package database

import (
	"fmt"
	"os"
	"path/filepath"

	"wkyt-go/internal/config"
	"wkyt-go/internal/lifegraph"
)

// NewStorageFromConfig creates a Storage implementation based on the database
// config type. The sqlite database file lives under DataDir, named by host.
func NewStorageFromConfig(cfg config.DatabaseConfig, hostID string, clock lifegraph.Clock, logger lifegraph.Logger) (lifegraph.Storage, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, hostID+".db")
		return NewSQLiteStorage(dbPath, clock, logger)
	case "memory":
		return NewSQLiteStorage(":memory:", clock, logger)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
