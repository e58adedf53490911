package lifegraph

import (
	"fmt"
	"time"
)

// Sync run status values.
const (
	SyncStatusRunning = "running"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// Sync operation names, recorded on sync runs.
const (
	OpFullSync        = "full_sync"
	OpIncrementalSync = "incremental_sync"
)

// SyncRun records one sync attempt by one connector.
type SyncRun struct {
	ID          int64
	ConnectorID string
	Operation   string    // OpFullSync or OpIncrementalSync
	StartedAt   time.Time
	FinishedAt  time.Time // zero while the run is still in flight
	Status      string    // SyncStatusRunning, SyncStatusSuccess or SyncStatusError
	ItemCount   int64
}

// Storage provides durable, transactional persistence of Items keyed by ID.
// Implementations must be safe to share across concurrently running sync
// tasks: mutating calls serialize, reads see state at commit granularity.
type Storage interface {
	// Init creates or migrates the schema. Idempotent and never
	// destructive; safe to call on every startup.
	Init() error

	// SaveItem persists one item. Equivalent to SaveItems with a
	// single-element batch.
	SaveItem(item *Item) error

	// SaveItems persists a batch inside one transaction with
	// upsert-by-ID semantics: an existing ID is fully replaced, a new ID
	// is inserted. The whole batch commits or none of it does.
	SaveItems(items []*Item) error

	// GetAllItems returns every stored item ordered by Timestamp
	// descending. A row whose stored kind, properties or timestamps fail
	// to decode is degraded (Other("parse_error") kind, nil properties,
	// current time) rather than failing the whole read.
	GetAllItems() ([]*Item, error)

	// Sync run bookkeeping. The started-at time of a connector's last
	// successful run is its incremental-sync watermark.

	CreateSyncRun(connectorID, operation string) (*SyncRun, error)
	FinishSyncRun(id int64, status string, itemCount int) error
	LastSuccessfulSync(connectorID string) (time.Time, bool, error)
	ListSyncRuns(limit int) ([]*SyncRun, error)

	// MaxSyncRunID returns the highest sync run ID, or 0 if none exist.
	// Used as the version marker for database snapshots.
	MaxSyncRunID() (int64, error)

	// BackupTo writes a complete, consistent copy of the database to
	// destPath.
	BackupTo(destPath string) error

	// Path returns the database file path ("" or ":memory:" when not
	// file-backed).
	Path() string

	Close() error
}

// StorageError wraps a failure from the storage engine. Unlike connector
// failures, storage failures are not isolated per caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
