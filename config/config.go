// Package config resolves user options into absolute paths and derived
// output locations. Resolution is a pure function: callers hold the
// Resolved value and pass it to whatever needs it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ManifestFileName is the generated manifest, written under the base path.
	ManifestFileName = "pages.json"
	// DeclarationFileName is the default declaration file name under the base path.
	DeclarationFileName = "define-pages.d.ts"
	// BaseConfigName is the base name searched for the user-authored seed manifest.
	BaseConfigName = "pages.json"
	// MacroName is the call recognized inside component script-setup blocks.
	MacroName = "definePage"
	// FileName is the optional YAML config file looked up in the project root.
	FileName = "define-pages.yaml"

	DefaultBasePath    = "src"
	DefaultPages       = "src/pages"
	DefaultFileDeep    = 3
	DefaultEvalTimeout = 30 * time.Second
	DefaultWorkers     = 4
)

// FileExtensions are the component extensions picked up by page scans.
var FileExtensions = []string{"vue", "nvue", "uvue"}

// BaseConfigExtensions are tried in order when discovering the base config.
var BaseConfigExtensions = []string{"ts", "mts", "cts", "js", "mjs", "cjs", "json", "yaml", "yml"}

// DefaultExclude mirrors what page scans skip when nothing is configured.
var DefaultExclude = []string{"node_modules", ".git", "**/__*__/**"}

// UserConfig is the partial configuration supplied by flags or the config file.
// Zero values select defaults.
type UserConfig struct {
	Root        string        `yaml:"root"`
	BasePath    string        `yaml:"basePath"`
	Dts         string        `yaml:"dts"`
	NoDts       bool          `yaml:"noDts"`
	Pages       string        `yaml:"pages"`
	SubPackages []string      `yaml:"subPackages"`
	Exclude     []string      `yaml:"exclude"`
	FileDeep    int           `yaml:"fileDeep"`
	Debug       string        `yaml:"debug"`
	Gitignore   bool          `yaml:"gitignore"`
	Runner      []string      `yaml:"runner"`
	EvalTimeout time.Duration `yaml:"evalTimeout"`
	Workers     int           `yaml:"workers"`
}

// Resolved is a fully-resolved configuration. Every path is absolute.
type Resolved struct {
	Root        string
	BasePath    string
	Pages       string
	SubPackages []string
	Exclude     []string
	FileDeep    int
	Debug       string
	Gitignore   bool
	Runner      []string
	EvalTimeout time.Duration
	Workers     int

	dts   string
	noDts bool
	user  UserConfig
}

// Resolve normalizes user options. Relative root is taken against the working
// directory, base path, pages and sub-packages against root, and the
// declaration path against the base path.
func Resolve(user UserConfig) Resolved {
	root := user.Root
	if root == "" {
		root, _ = os.Getwd()
	}
	root, _ = filepath.Abs(root)

	basePath := user.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	pages := user.Pages
	if pages == "" {
		pages = DefaultPages
	}

	exclude := user.Exclude
	if len(exclude) == 0 {
		exclude = DefaultExclude
	}

	fileDeep := user.FileDeep
	if fileDeep <= 0 {
		fileDeep = DefaultFileDeep
	}

	workers := user.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	timeout := user.EvalTimeout
	if timeout == 0 {
		timeout = DefaultEvalTimeout
	}

	r := Resolved{
		Root:        root,
		BasePath:    absAgainst(root, basePath),
		Pages:       absAgainst(root, pages),
		Exclude:     append([]string(nil), exclude...),
		FileDeep:    fileDeep,
		Debug:       NormalizeDebug(user.Debug),
		Gitignore:   user.Gitignore,
		EvalTimeout: timeout,
		Workers:     workers,
		dts:         user.Dts,
		noDts:       user.NoDts,
		user:        user,
	}

	for _, dir := range user.SubPackages {
		r.SubPackages = append(r.SubPackages, absAgainst(root, dir))
	}

	r.Runner = append([]string(nil), user.Runner...)
	if len(r.Runner) == 0 {
		r.Runner = []string{filepath.Join(root, "node_modules", ".bin", "tsx")}
	} else if strings.ContainsAny(r.Runner[0], `/\`) {
		// The runner starts in each page's directory, so relative paths are pinned to the root.
		r.Runner[0] = absAgainst(root, r.Runner[0])
	}

	return r
}

// User returns the options this configuration was resolved from.
func (r Resolved) User() UserConfig {
	return r.user
}

// WithRoot re-resolves the configuration against a different project root.
func (r Resolved) WithRoot(root string) Resolved {
	user := r.user
	user.Root = root
	return Resolve(user)
}

// PagesJSONFile is the absolute path of the generated manifest.
func (r Resolved) PagesJSONFile() string {
	return filepath.Join(r.BasePath, ManifestFileName)
}

// DtsFile is the absolute path of the declaration file, or "" when disabled.
func (r Resolved) DtsFile() string {
	if r.noDts {
		return ""
	}
	if r.dts == "" {
		return filepath.Join(r.BasePath, DeclarationFileName)
	}
	return absAgainst(r.BasePath, r.dts)
}

// DebugEnabled reports whether debug logging is on, for any category.
func (r Resolved) DebugEnabled() bool {
	return r.Debug != ""
}

// NormalizeDebug maps the debug option onto "" (off), "*" (all categories)
// or a single category name.
func NormalizeDebug(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "0", "off":
		return ""
	case "true", "1", "on", "*":
		return "*"
	}
	return strings.TrimSpace(v)
}

// LoadFile reads a YAML config file. A missing file yields a zero config and
// found=false.
func LoadFile(path string) (UserConfig, bool, error) {
	var cfg UserConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, false, nil
		}
		return cfg, false, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, true, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, true, nil
}

func absAgainst(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
