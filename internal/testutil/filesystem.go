package testutil

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"papers-go/internal/papers"
)

// MockFilesystemManager is an in-memory set of scan files for intake tests.
// Every added file counts as a scan; paths are used as given.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{files: make(map[string][]byte)}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = content
}

// FindScans returns rawPath itself when it is a file, or the files under it
// when it is a directory prefix. Without recursive only direct children count.
func (m *MockFilesystemManager) FindScans(rawPath string, recursive bool) ([]papers.ScanFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	root := filepath.Clean(rawPath)
	if data, ok := m.files[root]; ok {
		return []papers.ScanFile{{Path: root, Size: int64(len(data))}}, nil
	}

	var scans []papers.ScanFile
	prefix := root + string(filepath.Separator)
	for p, data := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		if !recursive && filepath.Dir(p) != root {
			continue
		}
		scans = append(scans, papers.ScanFile{Path: p, Size: int64(len(data))})
	}
	if len(scans) == 0 {
		return nil, fmt.Errorf("no such file or directory: %s", root)
	}
	slices.SortFunc(scans, func(a, b papers.ScanFile) int { return strings.Compare(a.Path, b.Path) })
	return scans, nil
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

var _ papers.FilesystemManager = (*MockFilesystemManager)(nil)
