package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"papers-go/internal/papers"
)

// FileSystemVault stores scans as files named by checksum, fanned out by
// the first two hex characters:
//
//	<root>/
//	  scans/
//	    ab/
//	      ab12...    (scan bytes, possibly age-encrypted)
type FileSystemVault struct {
	name     string
	root     string
	scansDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	scansDir := filepath.Join(root, "scans")
	if err := os.MkdirAll(scansDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scans directory: %w", err)
	}

	return &FileSystemVault{
		name:     name,
		root:     root,
		scansDir: scansDir,
	}, nil
}

func (v *FileSystemVault) pathFor(checksum string) (string, error) {
	if len(checksum) < 3 || filepath.Base(checksum) != checksum {
		return "", fmt.Errorf("invalid checksum: %q", checksum)
	}
	return filepath.Join(v.scansDir, checksum[:2], checksum), nil
}

// PutContent stores content identified by its checksum.
// Storing the same checksum again only drains r.
func (v *FileSystemVault) PutContent(checksum string, r io.Reader, size int64) error {
	destPath, err := v.pathFor(checksum)
	if err != nil {
		return err
	}

	if _, err := os.Stat(destPath); err == nil {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create shard directory: %w", err)
	}
	return writeFileAtomic(destPath, r, size)
}

// GetContent retrieves content by checksum and writes it to w.
func (v *FileSystemVault) GetContent(checksum string, w io.Writer) error {
	srcPath, err := v.pathFor(checksum)
	if err != nil {
		return err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrContentNotFound, checksum)
		}
		return fmt.Errorf("failed to open scan: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read scan: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the scans directory exists and is writable.
func (v *FileSystemVault) ValidateSetup() error {
	info, err := os.Stat(v.scansDir)
	if err != nil {
		return fmt.Errorf("vault directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault path is not a directory: %s", v.scansDir)
	}

	probe, err := os.CreateTemp(v.scansDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("vault directory not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeFileAtomic writes r to destPath through a temp file and rename.
func writeFileAtomic(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

var _ papers.Vault = (*FileSystemVault)(nil)
