package database_test

import (
	"os"
	"path/filepath"
	"testing"

	"wkyt-go/internal/config"
	"wkyt-go/internal/database"
)

func TestNewStorageFromConfigSQLite(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	cfg := config.DatabaseConfig{Type: "sqlite", DataDir: dataDir}

	storage, err := database.NewStorageFromConfig(cfg, "host-1", nil, nil)
	if err != nil {
		t.Fatalf("NewStorageFromConfig() error = %v", err)
	}
	defer storage.Close()

	if err := storage.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	wantPath := filepath.Join(dataDir, "host-1.db")
	if storage.Path() != wantPath {
		t.Errorf("Path() = %q, want %q", storage.Path(), wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestNewStorageFromConfigSQLiteRequiresDataDir(t *testing.T) {
	cfg := config.DatabaseConfig{Type: "sqlite"}
	if _, err := database.NewStorageFromConfig(cfg, "host-1", nil, nil); err == nil {
		t.Error("NewStorageFromConfig() without data_dir should fail")
	}
}

func TestNewStorageFromConfigMemory(t *testing.T) {
	cfg := config.DatabaseConfig{Type: "memory"}
	storage, err := database.NewStorageFromConfig(cfg, "host-1", nil, nil)
	if err != nil {
		t.Fatalf("NewStorageFromConfig() error = %v", err)
	}
	defer storage.Close()

	if storage.Path() != ":memory:" {
		t.Errorf("Path() = %q, want %q", storage.Path(), ":memory:")
	}
}

func TestNewStorageFromConfigUnknownType(t *testing.T) {
	cfg := config.DatabaseConfig{Type: "postgres"}
	if _, err := database.NewStorageFromConfig(cfg, "host-1", nil, nil); err == nil {
		t.Error("NewStorageFromConfig() with unknown type should fail")
	}
}
