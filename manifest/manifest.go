// Package manifest reads, merges and writes the pages.json manifest and the
// files generated next to it.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// Manifest is the decoded pages.json document.
type Manifest = map[string]any

// Pages returns the page list, or nil when absent or not a list.
func Pages(m Manifest) []any {
	list, _ := m["pages"].([]any)
	return list
}

// SubPackages returns the sub-package list, or nil.
func SubPackages(m Manifest) []any {
	list, _ := m["subPackages"].([]any)
	return list
}

// TabBar returns the tab bar object, or nil.
func TabBar(m Manifest) map[string]any {
	tb, _ := m["tabBar"].(map[string]any)
	return tb
}

// TabBarList returns the tab bar items, or nil.
func TabBarList(m Manifest) []any {
	tb := TabBar(m)
	if tb == nil {
		return nil
	}
	list, _ := tb["list"].([]any)
	return list
}

// Serialize renders v as the manifest is stored: 4-space indentation, object
// keys sorted, HTML characters unescaped, no trailing newline.
func Serialize(v any) (string, error) {
	return encode(v, "    ")
}

func encode(v any, indent string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func stringify(v any) string {
	s, err := encode(v, "")
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// Stringify renders v as compact JSON, used to compare snapshots.
func Stringify(v any) string {
	return stringify(v)
}

// EnsureFile creates a placeholder manifest when none exists. It reports
// whether the file existed before the call.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return true, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	stub, err := encode(map[string]any{"pages": []any{map[string]any{"path": ""}}}, "  ")
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("creating manifest directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(stub), 0644); err != nil {
		return false, fmt.Errorf("creating manifest stub: %w", err)
	}
	return false, nil
}

// Diff returns a unified diff between two manifest renderings.
func Diff(name, previous, current string) string {
	u := difflib.UnifiedDiff{
		A:        difflib.SplitLines(previous),
		B:        difflib.SplitLines(current),
		FromFile: name + " (previous)",
		ToFile:   name,
		Context:  2,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return ""
	}
	return s
}

// WriteFileAtomic writes data to a temporary sibling and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
