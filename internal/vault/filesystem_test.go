package vault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileSystemVault(t *testing.T) {
	t.Run("creates directory structure", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "vault")

		if _, err := NewFileSystemVault("test", root); err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "scans")); err != nil {
			t.Errorf("scans directory not created: %v", err)
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		if _, err := NewFileSystemVault("test", t.TempDir()); err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
	})
}

func TestFileSystemVault_PutContent(t *testing.T) {
	tests := []struct {
		name     string
		checksum string
		data     string
		size     int64
		wantErr  bool
	}{
		{"store content successfully", "abc123", "hello world", 11, false},
		{"size mismatch", "def456", "hello", 100, true},
		{"checksum too short", "ab", "hello", 5, true},
		{"checksum with path separator", "../etc/passwd", "hello", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewFileSystemVault("test", t.TempDir())
			if err != nil {
				t.Fatalf("NewFileSystemVault() error = %v", err)
			}

			err = v.PutContent(tt.checksum, strings.NewReader(tt.data), tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("PutContent() error = %v, wantErr %v", err, tt.wantErr)
			}

			if !tt.wantErr {
				data, err := os.ReadFile(filepath.Join(v.scansDir, tt.checksum[:2], tt.checksum))
				if err != nil {
					t.Fatalf("failed to read scan file: %v", err)
				}
				if string(data) != tt.data {
					t.Errorf("content = %q, want %q", string(data), tt.data)
				}
			}
		})
	}
}

func TestFileSystemVault_PutContent_Idempotent(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	data := "hello world"
	for i := 0; i < 2; i++ {
		if err := v.PutContent("abc123", strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("PutContent() iteration %d error = %v", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := v.GetContent("abc123", &buf); err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("content = %q, want %q", buf.String(), data)
	}
}

func TestFileSystemVault_GetContent(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	t.Run("retrieve existing content", func(t *testing.T) {
		data := "hello world"
		if err := v.PutContent("abc123", strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("PutContent() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetContent("abc123", &buf); err != nil {
			t.Fatalf("GetContent() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("content = %q, want %q", buf.String(), data)
		}
	})

	t.Run("content not found", func(t *testing.T) {
		var buf bytes.Buffer
		err := v.GetContent("nonexistent", &buf)
		if !errors.Is(err, ErrContentNotFound) {
			t.Errorf("GetContent() error = %v, want ErrContentNotFound", err)
		}
	})
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	t.Run("valid setup", func(t *testing.T) {
		v, err := NewFileSystemVault("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		if err := v.ValidateSetup(); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}

		entries, _ := os.ReadDir(v.scansDir)
		if len(entries) != 0 {
			t.Errorf("ValidateSetup() left %d entries behind", len(entries))
		}
	})

	t.Run("missing root directory", func(t *testing.T) {
		v := &FileSystemVault{
			name:     "test",
			root:     "/nonexistent/path",
			scansDir: "/nonexistent/path/scans",
		}
		if err := v.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error for missing root")
		}
	})
}

func TestFileSystemVault_AtomicWrite(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	// A failed write must not leave a partial scan or temp file.
	if err := v.PutContent("abc123", strings.NewReader("short"), 100); err == nil {
		t.Fatal("PutContent() expected size mismatch error")
	}

	entries, err := os.ReadDir(filepath.Join(v.scansDir, "ab"))
	if err != nil {
		t.Fatalf("failed to read shard dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("shard dir has %d entries after failed write, want 0", len(entries))
	}
}
