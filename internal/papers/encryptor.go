package papers

import "io"

// Encryptor protects scans at rest. Encryption uses the public key only, so
// uploads never prompt; reading a scan back requires unlocking the private
// key with a passphrase.
type Encryptor interface {
	// Setup generates a key pair and encrypts the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a context for the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
