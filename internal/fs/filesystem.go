package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"papers-go/internal/papers"
)

// OSFilesystemManager finds scan files on the real filesystem.
type OSFilesystemManager struct {
	extensions map[string]bool
	ignore     []string
}

// NewOSFilesystemManager creates a manager accepting files with the given
// extensions (case-insensitive, with or without the leading dot) and
// skipping paths matched by the ignore rules.
func NewOSFilesystemManager(extensions, ignore []string) *OSFilesystemManager {
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}
	return &OSFilesystemManager{extensions: exts, ignore: ignore}
}

func (m *OSFilesystemManager) isScan(name string) bool {
	return m.extensions[strings.ToLower(filepath.Ext(name))]
}

// FindScans resolves rawPath to the scan files it names. Results are in
// lexical path order.
func (m *OSFilesystemManager) FindScans(rawPath string, recursive bool) ([]papers.ScanFile, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("not a regular file: %s", absPath)
		}
		if !m.isScan(absPath) {
			return nil, fmt.Errorf("not a scan file (unsupported extension): %s", absPath)
		}
		return []papers.ScanFile{{Path: absPath, Size: info.Size()}}, nil
	}

	return m.walk(absPath, recursive)
}

func (m *OSFilesystemManager) walk(root string, recursive bool) ([]papers.ScanFile, error) {
	matcher := NewIgnoreMatcher(m.ignore)
	local, err := ReadIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	matcher.Add(local...)

	var scans []papers.ScanFile
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if p == root {
				return nil
			}
			if !recursive || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !m.isScan(d.Name()) || matcher.Match(rel, false) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		scans = append(scans, papers.ScanFile{Path: p, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return scans, nil
}

// Open opens a scan for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

var _ papers.FilesystemManager = (*OSFilesystemManager)(nil)
