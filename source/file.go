// Package source models component files on disk and their setup scripts.
package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lexandro/define-pages-json/logging"
)

// PageRef is the page built from a file.
type PageRef interface {
	URI() string
}

// slot is a memoized value with explicit invalidation.
type slot[T any] struct {
	value T
	ok    bool
}

func (s *slot[T]) get() (T, bool) { return s.value, s.ok }

func (s *slot[T]) set(v T) {
	s.value = v
	s.ok = true
}

func (s *slot[T]) clear() {
	var zero T
	s.value = zero
	s.ok = false
}

// File is one component file. Content and the parsed setup script are
// loaded lazily and cached; changing the content invalidates the script.
type File struct {
	absolutePath string
	relativePath string
	logger       *slog.Logger

	mu          sync.Mutex
	content     slot[string]
	scriptSetup slot[*ScriptSetup]
	page        PageRef

	namesOnce sync.Once
	filename  string
	name      string
	ext       string
}

// NewFile creates a file. A relative path is resolved against basePath; an
// absolute path gets its relative path computed from basePath.
func NewFile(path string, basePath string, logger *slog.Logger) *File {
	f := &File{logger: logger}
	if filepath.IsAbs(path) {
		f.absolutePath = filepath.Clean(path)
		rel, err := filepath.Rel(basePath, f.absolutePath)
		if err != nil {
			rel = f.absolutePath
		}
		f.relativePath = rel
	} else {
		f.relativePath = filepath.Clean(path)
		f.absolutePath = filepath.Join(basePath, f.relativePath)
	}
	return f
}

func (f *File) AbsolutePath() string { return f.absolutePath }
func (f *File) RelativePath() string { return f.relativePath }

// Filename returns the base name including extension.
func (f *File) Filename() string {
	f.names()
	return f.filename
}

// Name returns the base name without extension.
func (f *File) Name() string {
	f.names()
	return f.name
}

// Ext returns the extension without the leading dot.
func (f *File) Ext() string {
	f.names()
	return f.ext
}

func (f *File) names() {
	f.namesOnce.Do(func() {
		f.filename = filepath.Base(f.relativePath)
		ext := filepath.Ext(f.filename)
		f.name = strings.TrimSuffix(f.filename, ext)
		f.ext = strings.TrimPrefix(ext, ".")
	})
}

// GetContent returns the cached content, reading the file when forced or not loaded yet.
func (f *File) GetContent(force bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadContent(force)
}

func (f *File) loadContent(force bool) (string, error) {
	if content, ok := f.content.get(); ok && !force {
		return content, nil
	}
	data, err := readFileWithRetry(f.absolutePath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", f.absolutePath, err)
	}
	f.content.set(string(data))
	f.scriptSetup.clear()
	return string(data), nil
}

// SetContent overrides the content, for example with an unsaved editor buffer.
func (f *File) SetContent(content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content.set(content)
	f.scriptSetup.clear()
}

// ClearContent drops the cached content so the next read goes to disk.
func (f *File) ClearContent() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content.clear()
	f.scriptSetup.clear()
}

// ScriptSetup returns the parsed setup script, or nil when the component has
// none or cannot be split into blocks.
func (f *File) ScriptSetup(force bool) (*ScriptSetup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if setup, ok := f.scriptSetup.get(); ok && !force {
		return setup, nil
	}

	content, err := f.loadContent(force)
	if err != nil {
		return nil, err
	}

	setup, err := ParseScriptSetup(content, f)
	if err != nil {
		return nil, err
	}
	f.scriptSetup.set(setup)
	return setup, nil
}

// SetPage records the page built from this file.
func (f *File) SetPage(page PageRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = page
}

// Page returns the page built from this file, or nil.
func (f *File) Page() PageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

func (f *File) String() string {
	return f.absolutePath
}

func (f *File) scoped(scope string) *slog.Logger {
	if f.logger == nil {
		return logging.Discard()
	}
	return logging.Scope(f.logger, scope)
}

// readFileWithRetry attempts to read a file, retrying once after a short delay
// if the file is locked (common on Windows when editors are saving).
func readFileWithRetry(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		time.Sleep(50 * time.Millisecond)
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}
