package encryption

import (
	"fmt"

	"papers-go/internal/config"
	"papers-go/internal/papers"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" (or empty) returns a nil Encryptor: scans are stored in plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (papers.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
