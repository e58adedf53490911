package lifegraph

import "io"

// BackupVault stores encrypted database snapshots off the local machine.
// One snapshot per host; each put replaces the previous snapshot.
type BackupVault interface {
	// PutSnapshot stores a snapshot for the given host. size is the number
	// of bytes that will be read from r. version is stored alongside the
	// snapshot for staleness checks.
	PutSnapshot(hostID string, r io.Reader, size int64, version int64) error

	// GetSnapshot retrieves the snapshot for a host and writes it to w.
	GetSnapshot(hostID string, w io.Writer) error

	// SnapshotVersion returns the stored snapshot version for a host, or
	// 0 if no snapshot has been stored.
	SnapshotVersion(hostID string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup() error
}
