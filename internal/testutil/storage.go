package testutil

import (
	"testing"

	"wkyt-go/internal/database"
	"wkyt-go/internal/lifegraph"
)

// NewTestStorage creates a new in-memory SQLite storage with the schema
// migrated. The storage is automatically closed when the test completes.
func NewTestStorage(t *testing.T) *database.SQLiteStorage {
	t.Helper()
	return NewTestStorageWithClock(t, nil)
}

// NewTestStorageWithClock is NewTestStorage with an injected clock, for tests
// that assert on persisted timestamps.
func NewTestStorageWithClock(t *testing.T, clock lifegraph.Clock) *database.SQLiteStorage {
	t.Helper()

	storage, err := database.NewSQLiteStorage(":memory:", clock, nil)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Init(); err != nil {
		storage.Close()
		t.Fatalf("failed to migrate storage: %v", err)
	}

	t.Cleanup(func() {
		storage.Close()
	})

	return storage
}
