package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		OwnerID:  "owner-abc",
		BaseDir:  "/home/user/.local/share/papers",
		LogDir:   "/home/user/.local/share/papers/log",
		LogLevel: "debug",
		Vault: VaultConfig{
			Type:     "s3",
			S3Bucket: "worksheets",
			S3Prefix: "scans/",
			S3Region: "eu-west-1",
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/papers/keys/papers.pub",
			PrivateKeyPath: "/home/user/.local/share/papers/keys/papers.key",
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/papers/db"},
		Session:  SessionConfig{DefaultSize: 15, Seed: 42},
		Scan: ScanConfig{
			Extensions: []string{".png", ".pdf"},
			Ignore:     []string{"drafts"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.OwnerID != original.OwnerID {
		t.Errorf("OwnerID = %q, want %q", got.OwnerID, original.OwnerID)
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", got.LogLevel, "debug")
	}
	if got.Vault != original.Vault {
		t.Errorf("Vault = %+v, want %+v", got.Vault, original.Vault)
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Session != original.Session {
		t.Errorf("Session = %+v, want %+v", got.Session, original.Session)
	}
	if len(got.Scan.Extensions) != 2 || got.Scan.Extensions[1] != ".pdf" {
		t.Errorf("Scan.Extensions = %v, want [.png .pdf]", got.Scan.Extensions)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() after round trip = %v", err)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("owner-1", "/data/papers")

	if cfg.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %q, want %q", cfg.OwnerID, "owner-1")
	}
	if cfg.LogDir != "/data/papers/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/papers/log")
	}
	if cfg.Vault.FSVaultRoot != "/data/papers/vault" {
		t.Errorf("Vault.FSVaultRoot = %q, want %q", cfg.Vault.FSVaultRoot, "/data/papers/vault")
	}
	if cfg.Database.DataDir != "/data/papers/db" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/papers/db")
	}
	if cfg.Encryption.PrivateKeyPath != "/data/papers/keys/papers.key" {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", cfg.Encryption.PrivateKeyPath, "/data/papers/keys/papers.key")
	}
	if cfg.Session.DefaultSize != DefaultSessionSize {
		t.Errorf("Session.DefaultSize = %d, want %d", cfg.Session.DefaultSize, DefaultSessionSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing owner", func(c *Config) { c.OwnerID = "" }, "owner_id"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"unknown vault type", func(c *Config) { c.Vault.Type = "ftp" }, "vault.type"},
		{"filesystem vault without root", func(c *Config) { c.Vault.FSVaultRoot = "" }, "vault.fs_vault_root"},
		{"s3 vault without bucket", func(c *Config) { c.Vault = VaultConfig{Type: "s3"} }, "vault.s3_bucket"},
		{"s3 key without secret", func(c *Config) {
			c.Vault = VaultConfig{Type: "s3", S3Bucket: "b", S3AccessKeyID: "AKIA"}
		}, "vault.s3_secret_access_key"},
		{"sqlite without data dir", func(c *Config) { c.Database.DataDir = "" }, "database.data_dir"},
		{"unknown encryption", func(c *Config) { c.Encryption.Type = "rot13" }, "encryption.type"},
		{"age without keys", func(c *Config) {
			c.Encryption = EncryptionConfig{Type: "age"}
		}, "encryption.public_key_path"},
		{"negative session size", func(c *Config) { c.Session.DefaultSize = -1 }, "session.default_size"},
		{"blank extension", func(c *Config) { c.Scan.Extensions = []string{".png", ""} }, "scan.extensions[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("owner-1", "/data/papers")
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}

	t.Run("memory database and vault", func(t *testing.T) {
		cfg := NewConfig("owner-1", "/data/papers")
		cfg.Database = DatabaseConfig{Type: "memory"}
		cfg.Vault = VaultConfig{Type: "memory"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "papers.toml")

		if err := Init(path, NewConfig("o1", dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config file mode = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "papers.toml")
		cfg := NewConfig("o1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "papers.toml")

		if err := Init(path, NewConfig("", dir)); err == nil {
			t.Fatal("Init() expected error for missing owner")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("config file written despite invalid config")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "papers.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.OwnerID != "read-test" {
			t.Errorf("OwnerID = %q, want %q", got.OwnerID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/papers.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
