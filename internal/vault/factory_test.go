package vault

import (
	"context"
	"path/filepath"
	"testing"

	"papers-go/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.VaultConfig
		wantErr bool
	}{
		{
			name: "memory vault",
			cfg:  config.VaultConfig{Type: "memory"},
		},
		{
			name: "filesystem vault",
			cfg:  config.VaultConfig{Type: "filesystem", FSVaultRoot: filepath.Join(t.TempDir(), "vault")},
		},
		{
			name:    "filesystem vault without root",
			cfg:     config.VaultConfig{Type: "filesystem"},
			wantErr: true,
		},
		{
			name:    "s3 vault without bucket",
			cfg:     config.VaultConfig{Type: "s3"},
			wantErr: true,
		},
		{
			name:    "unknown vault type",
			cfg:     config.VaultConfig{Type: "unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(context.Background(), tt.cfg)

			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantErr {
				t.Errorf("NewVaultFromConfig() returned nil = %v, want %v", got == nil, tt.wantErr)
			}

			if !tt.wantErr {
				if err := got.ValidateSetup(); err != nil {
					t.Errorf("ValidateSetup() error = %v", err)
				}
			}
		})
	}

	t.Run("s3 vault with static credentials", func(t *testing.T) {
		cfg := config.VaultConfig{
			Type:              "s3",
			S3Bucket:          "worksheets",
			S3Region:          "us-east-1",
			S3Endpoint:        "http://localhost:9000",
			S3AccessKeyID:     "minio",
			S3SecretAccessKey: "minio-secret",
		}
		got, err := NewVaultFromConfig(context.Background(), cfg)
		if err != nil {
			t.Fatalf("NewVaultFromConfig() error = %v", err)
		}
		s3v, ok := got.(*S3Vault)
		if !ok {
			t.Fatalf("NewVaultFromConfig() = %T, want *S3Vault", got)
		}
		if s3v.bucket != "worksheets" {
			t.Errorf("bucket = %q, want %q", s3v.bucket, "worksheets")
		}
	})
}
