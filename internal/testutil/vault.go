package testutil

import (
	"wkyt-go/internal/lifegraph"
	"wkyt-go/internal/vault"
)

// NewTestVault creates an in-memory backup vault.
func NewTestVault() lifegraph.BackupVault {
	return vault.NewMemoryVault("test")
}
