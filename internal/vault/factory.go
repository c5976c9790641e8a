package vault

import (
	"context"
	"errors"
	"fmt"

	"papers-go/internal/config"
	"papers-go/internal/papers"
)

// ErrContentNotFound is returned by GetContent for an unknown checksum.
var ErrContentNotFound = errors.New("content not found")

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (papers.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault("memory"), nil
	case "s3":
		v, err := NewS3Vault(ctx, "s3", cfg)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		v, err := NewFileSystemVault("filesystem", cfg.FSVaultRoot)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
