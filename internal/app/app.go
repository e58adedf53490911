package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"wkyt-go/internal/auth"
	"wkyt-go/internal/config"
	"wkyt-go/internal/connector"
	"wkyt-go/internal/database"
	"wkyt-go/internal/encryption"
	"wkyt-go/internal/lifegraph"
	"wkyt-go/internal/vault"
)

// VaultApp is the application layer between the CLI and VaultService.
// It constructs all dependencies from config, exposes high-level operations,
// and manages the storage lifecycle on Close.
type VaultApp struct {
	cfg       *config.Config
	storage   lifegraph.Storage
	vault     lifegraph.BackupVault
	encryptor lifegraph.Encryptor
	auth      *auth.Service
	service   *lifegraph.VaultService
	logFile   *os.File
}

// NewVaultApp creates a fully wired VaultApp from the given config.
// operation identifies the CLI command being run (e.g. "SyncAll",
// "BackupPush"); it is attached, with a timestamp-derived invocation id, to
// every log line the invocation produces. The caller must call Close when
// done.
//
// A storage init failure is fatal here: the app cannot safely run without a
// working store.
func NewVaultApp(cfg *config.Config, operation string) (*VaultApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With("operation", operation)}

	storage, err := database.NewStorageFromConfig(cfg.Database, cfg.HostID, lifegraph.RealClock{}, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating storage: %w", err)
	}

	if err := storage.Init(); err != nil {
		storage.Close()
		logFile.Close()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	connectors, err := connector.NewConnectorsFromConfig(cfg.Connectors, logger)
	if err != nil {
		storage.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating connectors: %w", err)
	}

	v, err := vault.NewVaultFromConfig(cfg.Backup)
	if err != nil {
		storage.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating backup vault: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		storage.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	svc := lifegraph.NewVaultService(storage, connectors, v, enc, logger)

	return &VaultApp{
		cfg:       cfg,
		storage:   storage,
		vault:     v,
		encryptor: enc,
		auth:      auth.NewService(cfg.BaseDir),
		service:   svc,
		logFile:   logFile,
	}, nil
}

// Sync runs all configured connectors and persists their items.
func (a *VaultApp) Sync(ctx context.Context, full bool) ([]*lifegraph.ConnectorReport, error) {
	return a.service.SyncAll(ctx, full)
}

// ListItems returns every stored item, newest fact first.
func (a *VaultApp) ListItems() ([]*lifegraph.Item, error) {
	return a.service.GetAllItems()
}

// GetHistory returns the most recent sync runs, newest first.
func (a *VaultApp) GetHistory(limit int) ([]*lifegraph.SyncRun, error) {
	return a.service.GetHistory(limit)
}

// BackupPush snapshots the database, encrypts it and uploads it to the
// configured backup vault. The vault is validated first so a misconfigured
// backend fails before the snapshot is taken.
func (a *VaultApp) BackupPush() error {
	if err := a.vault.ValidateSetup(); err != nil {
		return fmt.Errorf("validating backup vault: %w", err)
	}
	return a.service.BackupDatabase(a.cfg.HostID)
}

// BackupPull downloads and decrypts the host's snapshot to destPath.
// The passphrase unlocks the private key for the session.
func (a *VaultApp) BackupPull(passphrase, destPath string) error {
	decryptCtx, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}
	return a.service.RestoreDatabase(a.cfg.HostID, destPath, decryptCtx)
}

// Auth returns the identity-provider glue service.
func (a *VaultApp) Auth() *auth.Service {
	return a.auth
}

// Close releases the storage connection and the log file.
func (a *VaultApp) Close() error {
	var firstErr error
	if err := a.storage.Close(); err != nil {
		firstErr = err
	}
	if err := a.logFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
