package encryption

import (
	"fmt"

	"wkyt-go/internal/config"
	"wkyt-go/internal/lifegraph"
)

// NewEncryptorFromConfig creates an Encryptor implementation based on the
// encryption config type. An empty type defaults to age.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (lifegraph.Encryptor, error) {
	switch cfg.Type {
	case "", "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %s", cfg.Type)
	}
}
