package lifegraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// VaultService is the orchestration layer: it owns one Storage instance and
// zero-or-more Connectors and drives init → sync → save for each of them.
// Connector failures are isolated per connector; storage failures abort the
// run, since nothing useful can be persisted past them.
type VaultService struct {
	storage    Storage
	connectors []Connector
	vault      BackupVault
	encryptor  Encryptor
	logger     Logger
}

// NewVaultService creates a VaultService with the provided dependencies.
// vault and encryptor may be nil when snapshot backup is not configured;
// sync operations do not use them.
func NewVaultService(storage Storage, connectors []Connector, vault BackupVault, encryptor Encryptor, logger Logger) *VaultService {
	return &VaultService{
		storage:    storage,
		connectors: connectors,
		vault:      vault,
		encryptor:  encryptor,
		logger:     logger,
	}
}

// ConnectorReport describes one connector's contribution to a sync run.
type ConnectorReport struct {
	ConnectorID string
	Operation   string
	ItemCount   int
	Err         error // *ConnectorError when the connector failed
}

// SyncAll runs every configured connector once and persists its items.
//
// Each connector is initialized, synced (full on first run or when full is
// set, incremental from its last successful watermark otherwise) and its
// items saved as one atomic batch. A failing connector degrades to an empty
// contribution and is reported in its ConnectorReport; the run continues with
// the remaining connectors. A storage failure aborts the run and is returned.
func (s *VaultService) SyncAll(ctx context.Context, full bool) ([]*ConnectorReport, error) {
	reports := make([]*ConnectorReport, 0, len(s.connectors))

	for _, c := range s.connectors {
		report, err := s.syncOne(ctx, c, full)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// syncOne runs a single connector. The returned error is non-nil only for
// storage failures; connector failures land in the report.
func (s *VaultService) syncOne(ctx context.Context, c Connector, full bool) (*ConnectorReport, error) {
	report := &ConnectorReport{ConnectorID: c.ID()}

	if err := c.Init(ctx); err != nil {
		report.Err = &ConnectorError{ConnectorID: c.ID(), Op: "init", Err: err}
		s.logger.Error("connector init failed, skipping", "connector", c.ID(), "error", err)
		return report, nil
	}

	operation, since, err := s.resolveOperation(c.ID(), full)
	if err != nil {
		return report, &StorageError{Op: "resolving sync watermark", Err: err}
	}
	report.Operation = operation

	run, err := s.storage.CreateSyncRun(c.ID(), operation)
	if err != nil {
		return report, &StorageError{Op: "creating sync run", Err: err}
	}

	var items []*Item
	if operation == OpFullSync {
		items, err = c.FullSync(ctx)
	} else {
		items, err = c.IncrementalSync(ctx, since)
	}
	if err != nil {
		report.Err = &ConnectorError{ConnectorID: c.ID(), Op: operation, Err: err}
		s.logger.Error("connector sync failed", "connector", c.ID(), "operation", operation, "error", err)
		if ferr := s.storage.FinishSyncRun(run.ID, SyncStatusError, 0); ferr != nil {
			return report, &StorageError{Op: "finishing sync run", Err: ferr}
		}
		return report, nil
	}

	if err := s.storage.SaveItems(items); err != nil {
		// Best effort: mark the run failed before surfacing the save error.
		if ferr := s.storage.FinishSyncRun(run.ID, SyncStatusError, 0); ferr != nil {
			s.logger.Error("marking sync run failed", "connector", c.ID(), "error", ferr)
		}
		return report, fmt.Errorf("saving items for connector %s: %w", c.ID(), err)
	}

	if err := s.storage.FinishSyncRun(run.ID, SyncStatusSuccess, len(items)); err != nil {
		return report, &StorageError{Op: "finishing sync run", Err: err}
	}

	report.ItemCount = len(items)
	s.logger.Info("connector synced", "connector", c.ID(), "operation", operation, "items", len(items))
	return report, nil
}

// resolveOperation picks full or incremental sync for a connector. The
// watermark is the started-at time of the connector's last successful run, so
// records changed while that run was in flight are fetched again rather than
// missed.
func (s *VaultService) resolveOperation(connectorID string, full bool) (string, time.Time, error) {
	if full {
		return OpFullSync, time.Time{}, nil
	}
	since, ok, err := s.storage.LastSuccessfulSync(connectorID)
	if err != nil {
		return "", time.Time{}, err
	}
	if !ok {
		return OpFullSync, time.Time{}, nil
	}
	return OpIncrementalSync, since, nil
}

// GetAllItems returns every stored item, newest fact first.
func (s *VaultService) GetAllItems() ([]*Item, error) {
	return s.storage.GetAllItems()
}

// GetHistory returns the most recent sync runs, newest first.
func (s *VaultService) GetHistory(limit int) ([]*SyncRun, error) {
	return s.storage.ListSyncRuns(limit)
}

// BackupDatabase snapshots the database, encrypts the snapshot and uploads it
// to the backup vault, versioned by the max sync run ID. Refuses to overwrite
// a remote snapshot that is ahead of the local database.
func (s *VaultService) BackupDatabase(hostID string) error {
	if s.vault == nil || s.encryptor == nil {
		return fmt.Errorf("no backup vault configured")
	}

	version, err := s.storage.MaxSyncRunID()
	if err != nil {
		return fmt.Errorf("reading local version: %w", err)
	}

	remote, err := s.vault.SnapshotVersion(hostID)
	if err != nil {
		return fmt.Errorf("reading remote snapshot version: %w", err)
	}
	if remote > version {
		return fmt.Errorf("remote snapshot is ahead of local database (local=%d, remote=%d): pull it or re-initialize", version, remote)
	}

	tmpDir, err := os.MkdirTemp("", "wkyt-backup-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshotPath := filepath.Join(tmpDir, "db.snapshot")
	if err := s.storage.BackupTo(snapshotPath); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}

	encryptedPath := filepath.Join(tmpDir, "db.snapshot.age")
	if err := s.encryptFile(snapshotPath, encryptedPath); err != nil {
		return err
	}

	f, err := os.Open(encryptedPath)
	if err != nil {
		return fmt.Errorf("opening encrypted snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("sizing encrypted snapshot: %w", err)
	}

	if err := s.vault.PutSnapshot(hostID, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}

	s.logger.Info("database backed up", "host", hostID, "version", version, "bytes", info.Size())
	return nil
}

// RestoreDatabase downloads the host's snapshot from the backup vault and
// decrypts it to destPath. It never touches the live database file; the
// caller decides what to do with the restored copy.
func (s *VaultService) RestoreDatabase(hostID, destPath string, decryptCtx DecryptionContext) error {
	if s.vault == nil {
		return fmt.Errorf("no backup vault configured")
	}

	tmpDir, err := os.MkdirTemp("", "wkyt-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	encryptedPath := filepath.Join(tmpDir, "db.snapshot.age")
	ef, err := os.Create(encryptedPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	if err := s.vault.GetSnapshot(hostID, ef); err != nil {
		ef.Close()
		return fmt.Errorf("downloading snapshot: %w", err)
	}
	if err := ef.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot file: %w", err)
	}

	src, err := os.Open(encryptedPath)
	if err != nil {
		return fmt.Errorf("opening downloaded snapshot: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating restored database file: %w", err)
	}
	defer dst.Close()

	if err := decryptCtx.Decrypt(src, dst); err != nil {
		return fmt.Errorf("decrypting snapshot: %w", err)
	}

	s.logger.Info("database restored", "host", hostID, "path", destPath)
	return nil
}

// encryptFile encrypts srcPath to destPath with the configured public key.
func (s *VaultService) encryptFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	defer dst.Close()

	if err := s.encryptor.Encrypt(src, dst); err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	return nil
}
