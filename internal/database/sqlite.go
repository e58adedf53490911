package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wkyt-go/internal/database/migrations"
	"wkyt-go/internal/lifegraph"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// storedTimeFormat is the textual timestamp format used for all persisted
// times. Fixed width, always UTC, so the timestamp index sorts
// lexicographically and round-trips without ambiguity.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLiteStorage implements lifegraph.Storage on a single SQLite connection.
// SQLite serializes writer transactions itself, so concurrent SaveItems calls
// from different sync tasks queue rather than interleave; no additional lock
// is needed around the *sql.DB.
type SQLiteStorage struct {
	db     *sql.DB
	path   string
	clock  lifegraph.Clock
	logger lifegraph.Logger
}

// NewSQLiteStorage creates a new SQLite-backed storage.
// path can be a file path or ":memory:" for an in-memory database.
// clock and logger may be nil; real implementations are substituted.
func NewSQLiteStorage(path string, clock lifegraph.Clock, logger lifegraph.Logger) (*SQLiteStorage, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	s := NewSQLiteStorageFromDB(db, clock, logger)
	s.path = path
	return s, nil
}

// NewSQLiteStorageFromDB wraps an existing database connection. The caller is
// responsible for ensuring the connection is properly configured.
func NewSQLiteStorageFromDB(db *sql.DB, clock lifegraph.Clock, logger lifegraph.Logger) *SQLiteStorage {
	if clock == nil {
		clock = lifegraph.RealClock{}
	}
	if logger == nil {
		logger = lifegraph.NewNopLogger()
	}
	return &SQLiteStorage{
		db:     db,
		clock:  clock,
		logger: logger,
	}
}

// OpenConnection opens and configures a SQLite database connection with
// appropriate PRAGMAs. Exported for tools and tests that need a properly
// configured connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives in a single connection; letting the
	// pool open a second one would hand out an empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Init creates or migrates the schema. Idempotent: an up-to-date database is
// left untouched, an older one gains only the missing migrations.
func (s *SQLiteStorage) Init() error {
	if err := migrations.MigrateUp(s.db); err != nil {
		return &lifegraph.StorageError{Op: "init", Err: err}
	}
	return nil
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStorage) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// SaveItem persists one item.
func (s *SQLiteStorage) SaveItem(item *lifegraph.Item) error {
	return s.SaveItems([]*lifegraph.Item{item})
}

// SaveItems persists a batch inside one transaction with upsert-by-ID
// semantics. A serialization or constraint failure on any item rolls back the
// entire batch.
func (s *SQLiteStorage) SaveItems(items []*lifegraph.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &lifegraph.StorageError{Op: "starting transaction", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO items
		(id, source_id, connector_id, kind, timestamp, ingested_at, properties, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &lifegraph.StorageError{Op: "preparing upsert", Err: err}
	}
	defer stmt.Close()

	for _, item := range items {
		kindJSON, err := json.Marshal(item.Kind)
		if err != nil {
			return &lifegraph.StorageError{Op: "serializing kind", Err: err}
		}

		propsJSON, err := json.Marshal(item.Properties)
		if err != nil {
			return &lifegraph.StorageError{Op: "serializing properties", Err: err}
		}

		rawPayload := "null"
		if item.RawPayload != nil {
			rawPayload = string(item.RawPayload)
		}

		_, err = stmt.Exec(
			item.ID,
			item.SourceID,
			item.ConnectorID,
			string(kindJSON),
			item.Timestamp.UTC().Format(storedTimeFormat),
			item.IngestedAt.UTC().Format(storedTimeFormat),
			string(propsJSON),
			rawPayload,
		)
		if err != nil {
			return &lifegraph.StorageError{Op: "upserting item", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &lifegraph.StorageError{Op: "committing batch", Err: err}
	}
	return nil
}

// GetAllItems returns every stored item ordered by timestamp descending.
//
// A malformed row never aborts the read: an undecodable kind degrades to
// Other("parse_error"), malformed properties to nil, an unparsable timestamp
// to the current time. Each degradation is logged at Warn so corruption stays
// visible.
func (s *SQLiteStorage) GetAllItems() ([]*lifegraph.Item, error) {
	rows, err := s.db.Query(`SELECT id, source_id, connector_id, kind, timestamp, ingested_at, properties, raw_payload
		FROM items ORDER BY timestamp DESC`)
	if err != nil {
		return nil, &lifegraph.StorageError{Op: "querying items", Err: err}
	}
	defer rows.Close()

	var items []*lifegraph.Item
	for rows.Next() {
		var id, sourceID, connectorID, kindText, tsText, ingestedText, propsText, rawText string
		if err := rows.Scan(&id, &sourceID, &connectorID, &kindText, &tsText, &ingestedText, &propsText, &rawText); err != nil {
			return nil, &lifegraph.StorageError{Op: "scanning item row", Err: err}
		}
		items = append(items, s.decodeItem(id, sourceID, connectorID, kindText, tsText, ingestedText, propsText, rawText))
	}
	if err := rows.Err(); err != nil {
		return nil, &lifegraph.StorageError{Op: "iterating item rows", Err: err}
	}

	return items, nil
}

// decodeItem reconstructs an Item from its stored text columns, applying the
// documented per-field degradations instead of failing the row.
func (s *SQLiteStorage) decodeItem(id, sourceID, connectorID, kindText, tsText, ingestedText, propsText, rawText string) *lifegraph.Item {
	item := &lifegraph.Item{
		ID:          id,
		SourceID:    sourceID,
		ConnectorID: connectorID,
	}

	if err := json.Unmarshal([]byte(kindText), &item.Kind); err != nil {
		s.logger.Warn("undecodable item kind, degrading", "id", id, "kind", kindText, "error", err)
		item.Kind = lifegraph.OtherKind("parse_error")
	}

	item.Timestamp = s.parseStoredTime(id, "timestamp", tsText)
	item.IngestedAt = s.parseStoredTime(id, "ingested_at", ingestedText)

	if err := json.Unmarshal([]byte(propsText), &item.Properties); err != nil {
		s.logger.Warn("undecodable item properties, degrading", "id", id, "error", err)
		item.Properties = nil
	}

	if rawText != "" && rawText != "null" {
		item.RawPayload = json.RawMessage(rawText)
	}

	return item
}

// parseStoredTime falls back to the current time for unparsable values. This
// masks corruption as fresh data, which is an accepted imprecision; the Warn
// log is the trail.
func (s *SQLiteStorage) parseStoredTime(id, column, value string) time.Time {
	t, err := time.Parse(storedTimeFormat, value)
	if err != nil {
		s.logger.Warn("unparsable stored timestamp, substituting current time", "id", id, "column", column, "value", value)
		return s.clock.Now().UTC()
	}
	return t
}

// Sync run operations

func (s *SQLiteStorage) CreateSyncRun(connectorID, operation string) (*lifegraph.SyncRun, error) {
	startedAt := s.clock.Now().UTC()

	res, err := s.db.Exec(`INSERT INTO sync_runs (connector_id, operation, started_at, status)
		VALUES (?, ?, ?, ?)`,
		connectorID, operation, startedAt.Format(storedTimeFormat), lifegraph.SyncStatusRunning)
	if err != nil {
		return nil, &lifegraph.StorageError{Op: "creating sync run", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, &lifegraph.StorageError{Op: "reading sync run id", Err: err}
	}

	return &lifegraph.SyncRun{
		ID:          id,
		ConnectorID: connectorID,
		Operation:   operation,
		StartedAt:   startedAt,
		Status:      lifegraph.SyncStatusRunning,
	}, nil
}

func (s *SQLiteStorage) FinishSyncRun(id int64, status string, itemCount int) error {
	finishedAt := s.clock.Now().UTC()

	_, err := s.db.Exec(`UPDATE sync_runs SET finished_at = ?, status = ?, item_count = ? WHERE id = ?`,
		finishedAt.Format(storedTimeFormat), status, int64(itemCount), id)
	if err != nil {
		return &lifegraph.StorageError{Op: "finishing sync run", Err: err}
	}
	return nil
}

// LastSuccessfulSync returns the started-at time of the connector's most
// recent successful run. ok is false when the connector has never completed a
// sync.
func (s *SQLiteStorage) LastSuccessfulSync(connectorID string) (time.Time, bool, error) {
	var startedAt string
	err := s.db.QueryRow(`SELECT started_at FROM sync_runs
		WHERE connector_id = ? AND status = ?
		ORDER BY id DESC LIMIT 1`,
		connectorID, lifegraph.SyncStatusSuccess).Scan(&startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &lifegraph.StorageError{Op: "finding last successful sync", Err: err}
	}

	t, err := time.Parse(storedTimeFormat, startedAt)
	if err != nil {
		return time.Time{}, false, &lifegraph.StorageError{Op: "parsing sync watermark", Err: err}
	}
	return t, true, nil
}

func (s *SQLiteStorage) ListSyncRuns(limit int) ([]*lifegraph.SyncRun, error) {
	rows, err := s.db.Query(`SELECT id, connector_id, operation, started_at, finished_at, status, item_count
		FROM sync_runs ORDER BY id DESC LIMIT ?`, int64(limit))
	if err != nil {
		return nil, &lifegraph.StorageError{Op: "listing sync runs", Err: err}
	}
	defer rows.Close()

	var runs []*lifegraph.SyncRun
	for rows.Next() {
		var run lifegraph.SyncRun
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&run.ID, &run.ConnectorID, &run.Operation, &startedAt, &finishedAt, &run.Status, &run.ItemCount); err != nil {
			return nil, &lifegraph.StorageError{Op: "scanning sync run", Err: err}
		}

		run.StartedAt, err = time.Parse(storedTimeFormat, startedAt)
		if err != nil {
			return nil, &lifegraph.StorageError{Op: "parsing sync run start time", Err: err}
		}
		if finishedAt.Valid {
			run.FinishedAt, err = time.Parse(storedTimeFormat, finishedAt.String)
			if err != nil {
				return nil, &lifegraph.StorageError{Op: "parsing sync run finish time", Err: err}
			}
		}

		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, &lifegraph.StorageError{Op: "iterating sync runs", Err: err}
	}

	return runs, nil
}

// MaxSyncRunID returns the highest sync run ID, or 0 when no runs exist.
func (s *SQLiteStorage) MaxSyncRunID() (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM sync_runs`).Scan(&id)
	if err != nil {
		return 0, &lifegraph.StorageError{Op: "reading max sync run id", Err: err}
	}
	return id, nil
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteStorage) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return &lifegraph.StorageError{Op: "backing up database", Err: err}
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStorage implements lifegraph.Storage
var _ lifegraph.Storage = (*SQLiteStorage)(nil)
