package papers

import "io"

// ScanFile is a scan discovered on disk, ready for intake.
type ScanFile struct {
	Path string
	Size int64
}

// FilesystemManager finds and opens scan files so intake can be tested
// without touching the real filesystem.
type FilesystemManager interface {
	// FindScans resolves rawPath. A file is returned as-is if it has a scan
	// extension; a directory is searched, descending into subdirectories
	// only when recursive is set. Ignored and non-scan files are skipped.
	FindScans(rawPath string, recursive bool) ([]ScanFile, error)

	// Open opens a scan for reading.
	Open(path string) (io.ReadCloser, error)
}
