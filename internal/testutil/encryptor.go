package testutil

import (
	"papers-go/internal/encryption"
)

// NewTestEncryptor returns the deterministic marker encryptor.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}
