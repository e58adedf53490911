package testutil

import (
	"wkyt-go/internal/encryption"
	"wkyt-go/internal/lifegraph"
)

// NewTestEncryptor creates a marker-based encryptor for testing.
func NewTestEncryptor() lifegraph.Encryptor {
	return encryption.NewTestEncryptor()
}
