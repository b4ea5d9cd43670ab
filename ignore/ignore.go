package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"
)

// Matcher determines whether a path should be skipped by page scans and the watcher.
// It combines exclude patterns and, optionally, the project's .gitignore.
// Thread-safe: Reload() acquires a write lock, ShouldIgnore()/ShouldIgnoreDir() acquire a read lock.
type Matcher struct {
	mu        sync.RWMutex
	rootDir   string
	gitIgnore gitignore.GitIgnore
	patterns  []string
	useGit    bool
}

// MatcherOptions configures the ignore matcher.
type MatcherOptions struct {
	RootDir string
	// Patterns are exclude patterns. A bare name ("node_modules") matches any
	// path component; anything else is a doublestar glob against the path
	// relative to RootDir.
	Patterns []string
	// Gitignore enables the .gitignore found in RootDir.
	Gitignore bool
}

// NewMatcher creates an ignore matcher.
func NewMatcher(options MatcherOptions) *Matcher {
	matcher := &Matcher{
		rootDir:  options.RootDir,
		useGit:   options.Gitignore,
		patterns: normalizePatterns(options.Patterns),
	}

	if matcher.useGit {
		matcher.gitIgnore = loadIgnoreFile(filepath.Join(options.RootDir, ".gitignore"), options.RootDir)
	}

	return matcher
}

// ShouldIgnore returns true if the given path should be excluded.
// The path should be absolute or relative to the root directory.
func (m *Matcher) ShouldIgnore(absolutePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	relativePath := m.relative(absolutePath)

	for _, pattern := range m.patterns {
		if matchPattern(pattern, relativePath) {
			return true
		}
	}

	if m.gitIgnore != nil {
		isDir := false
		if info, err := os.Stat(absolutePath); err == nil {
			isDir = info.IsDir()
		}
		match := m.gitIgnore.Relative(relativePath, isDir)
		if match != nil && match.Ignore() {
			return true
		}
	}

	return false
}

// ShouldIgnoreDir returns true if a directory should be skipped entirely during traversal.
// A directory is pruned when a bare-name pattern names one of its components,
// when a "<glob>/**" pattern covers it, or when .gitignore ignores it.
func (m *Matcher) ShouldIgnoreDir(absolutePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	relativePath := m.relative(absolutePath)

	for _, pattern := range m.patterns {
		if isBareName(pattern) {
			if hasComponent(relativePath, pattern) {
				return true
			}
			continue
		}
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if matched, err := doublestar.Match(prefix, relativePath); err == nil && matched {
				return true
			}
		}
	}

	if m.gitIgnore != nil {
		match := m.gitIgnore.Relative(relativePath, true)
		if match != nil && match.Ignore() {
			return true
		}
	}

	return false
}

// Patterns returns the active exclude patterns.
func (m *Matcher) Patterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.patterns...)
}

// Reload re-reads .gitignore from disk.
// Used when the watcher detects a change to it.
func (m *Matcher) Reload() {
	if !m.useGit {
		return
	}
	newGitIgnore := loadIgnoreFile(filepath.Join(m.rootDir, ".gitignore"), m.rootDir)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.gitIgnore = newGitIgnore
}

func (m *Matcher) relative(absolutePath string) string {
	relativePath, err := filepath.Rel(m.rootDir, absolutePath)
	if err != nil {
		relativePath = absolutePath
	}
	return filepath.ToSlash(relativePath)
}

func matchPattern(pattern, relativePath string) bool {
	if isBareName(pattern) {
		return hasComponent(relativePath, pattern)
	}
	matched, err := doublestar.Match(pattern, relativePath)
	return err == nil && matched
}

func isBareName(pattern string) bool {
	return !strings.ContainsAny(pattern, "*?[{/")
}

func hasComponent(relativePath, name string) bool {
	for _, part := range strings.Split(relativePath, "/") {
		if part == name {
			return true
		}
	}
	return false
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
		p = strings.TrimPrefix(p, "./")
		if p == "" || !doublestar.ValidatePattern(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// loadIgnoreFile reads an ignore file and creates a GitIgnore matcher from it.
// Uses io.Reader approach to ensure the file handle is properly closed on Windows.
func loadIgnoreFile(filePath string, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	return gitignore.New(f, baseDir, nil)
}
