package vault

import (
	"fmt"

	"wkyt-go/internal/config"
	"wkyt-go/internal/lifegraph"
)

// NewVaultFromConfig creates a BackupVault implementation based on the vault config type.
func NewVaultFromConfig(cfg config.VaultConfig) (lifegraph.BackupVault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		return NewS3Vault(cfg)
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
