package encryption

import (
	"bytes"
	"fmt"
	"io"

	"papers-go/internal/papers"
)

// testMagic marks scans "encrypted" by TestEncryptor.
var testMagic = []byte("PAPERS-TEST\x00")

// TestEncryptor is a deterministic stand-in for AgeEncryptor. It prefixes a
// fixed marker on Encrypt and strips it on Decrypt, so stored bytes differ
// from the plaintext without any key material. Unlock accepts only the
// passphrase given to Setup, if Setup was called.
type TestEncryptor struct {
	passphrase string
}

var _ papers.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing test marker: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (papers.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, fmt.Errorf("wrong passphrase")
	}
	return testDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

type testDecryptionContext struct{}

func (testDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	marker := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, marker); err != nil {
		return fmt.Errorf("reading test marker: %w", err)
	}
	if !bytes.Equal(marker, testMagic) {
		return fmt.Errorf("data was not written by TestEncryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
