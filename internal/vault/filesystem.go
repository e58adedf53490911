package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"wkyt-go/internal/lifegraph"
)

// FileSystemVault is a filesystem-based implementation of the BackupVault
// interface. It stores one snapshot per host:
//
//	<root>/
//	  <hostID>.snapshot    (encrypted database snapshot)
//	  <hostID>.version     (version marker)
type FileSystemVault struct {
	name string
	root string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	return &FileSystemVault{
		name: name,
		root: root,
	}, nil
}

// PutSnapshot stores a snapshot for the given host along with a version marker.
func (v *FileSystemVault) PutSnapshot(hostID string, r io.Reader, size int64, version int64) error {
	destPath := filepath.Join(v.root, hostID+".snapshot")
	if err := v.writeFile(destPath, r, size); err != nil {
		return err
	}

	versionPath := filepath.Join(v.root, hostID+".version")
	versionData := strconv.FormatInt(version, 10)
	return os.WriteFile(versionPath, []byte(versionData), 0644)
}

// GetSnapshot retrieves the snapshot for a host and writes it to w.
func (v *FileSystemVault) GetSnapshot(hostID string, w io.Writer) error {
	srcPath := filepath.Join(v.root, hostID+".snapshot")

	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("snapshot not found for host: %s", hostID)
		}
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	return nil
}

// SnapshotVersion returns the snapshot version for a host.
// Returns 0 if no version file exists.
func (v *FileSystemVault) SnapshotVersion(hostID string) (int64, error) {
	versionPath := filepath.Join(v.root, hostID+".version")
	data, err := os.ReadFile(versionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the vault directory is accessible and writable.
func (v *FileSystemVault) ValidateSetup() error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	probe := filepath.Join(v.root, ".wkyt-probe")
	if err := os.WriteFile(probe, []byte{}, 0644); err != nil {
		return fmt.Errorf("vault root not writable: %w", err)
	}
	os.Remove(probe)

	return nil
}

// writeFile writes exactly size bytes from r to path, atomically via a temp
// file so a crash mid-write never leaves a torn snapshot.
func (v *FileSystemVault) writeFile(path string, r io.Reader, size int64) error {
	tmp, err := os.CreateTemp(v.root, ".tmp-snapshot-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}
	return nil
}

// Compile-time check that FileSystemVault implements lifegraph.BackupVault
var _ lifegraph.BackupVault = (*FileSystemVault)(nil)
