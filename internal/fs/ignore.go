package fs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is read from the root of every scanned directory.
const IgnoreFileName = ".papersignore"

type ignoreRule struct {
	glob     string
	anchored bool // contains '/': matched against the relative path
	dirOnly  bool // trailing '/': matches directories only
}

// IgnoreMatcher decides which files and directories intake skips.
// A rule without '/' matches any basename, a rule with '/' matches the
// path relative to the scanned root, and a trailing '/' restricts the rule
// to directories. Malformed globs never match.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher parses rules, skipping blank lines and '#' comments.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	m.Add(lines...)
	return m
}

// Add appends more rules.
func (m *IgnoreMatcher) Add(lines ...string) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule := ignoreRule{}
		if strings.HasSuffix(line, "/") {
			rule.dirOnly = true
			line = strings.TrimRight(line, "/")
		}
		rule.anchored = strings.Contains(line, "/")
		rule.glob = line
		m.rules = append(m.rules, rule)
	}
}

// Match reports whether relPath (relative to the scanned root) is ignored.
func (m *IgnoreMatcher) Match(relPath string, isDir bool) bool {
	if relPath == "" || relPath == "." {
		return false
	}
	slashed := filepath.ToSlash(relPath)
	base := filepath.Base(relPath)

	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		subject := base
		if r.anchored {
			subject = slashed
		}
		if ok, err := filepath.Match(r.glob, subject); err == nil && ok {
			return true
		}
	}
	return false
}

// ReadIgnoreFile returns the raw lines of an ignore file, or nil when the
// file does not exist.
func ReadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
