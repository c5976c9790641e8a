package papers

import "io"

// Vault stores scanned worksheet images addressed by the SHA-256 checksum
// of the original scan. Stored bytes may be encrypted.
type Vault interface {
	// PutContent stores size bytes read from r under checksum.
	// Storing the same checksum again is a no-op.
	PutContent(checksum string, r io.Reader, size int64) error

	// GetContent writes the content stored under checksum to w.
	GetContent(checksum string, w io.Writer) error

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup() error
}
