// Package pagesjson builds the pages.json manifest from page components.
//
// A Context owns every scanned file and page, merges their macro results
// into the base config and writes the manifest and route declarations when
// the result changes.
package pagesjson

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lexandro/define-pages-json/config"
	"github.com/lexandro/define-pages-json/ignore"
	"github.com/lexandro/define-pages-json/logging"
	"github.com/lexandro/define-pages-json/manifest"
	"github.com/lexandro/define-pages-json/source"
)

// ErrClosed is returned by operations on a closed Context.
var ErrClosed = errors.New("context is closed")

// MaxTabBarItems is the most tab bar entries the manifest may hold.
const MaxTabBarItems = 5

// State is the lifecycle stage of a Context.
type State int

const (
	StateInitialized State = iota
	StateScanned
	StateWritten
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateScanned:
		return "scanned"
	case StateWritten:
		return "written"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a Context.
type Options struct {
	Evaluator Evaluator
	Logger    *slog.Logger
	// Macro is the macro name looked up in components. Defaults to definePage.
	Macro string
}

// pageSet is an ordered set of pages found under one scan directory.
type pageSet struct {
	root  string
	dir   string
	order []string
	pages map[string]*Page
}

func (s *pageSet) list() []*Page {
	out := make([]*Page, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, s.pages[p])
	}
	return out
}

// Context is the manifest orchestrator. All methods are safe for concurrent
// use; updates are serialized.
type Context struct {
	mu sync.Mutex

	cfg       config.Resolved
	evaluator Evaluator
	logger    *slog.Logger
	macro     string
	matcher   *ignore.Matcher
	base      *manifest.BaseLoader

	files       map[string]*source.File
	pages       *pageSet
	subPackages []*pageSet

	state        State
	lastWritten  string
	lastManifest manifest.Manifest
}

// New creates a Context for cfg.
func New(cfg config.Resolved, opts Options) *Context {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Macro == "" {
		opts.Macro = config.MacroName
	}
	c := &Context{
		evaluator: opts.Evaluator,
		logger:    opts.Logger,
		macro:     opts.Macro,
	}
	c.reset(cfg)
	return c
}

// Reset applies a new configuration and drops every cached entity.
func (c *Context) Reset(cfg config.Resolved) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset(cfg)
}

func (c *Context) reset(cfg config.Resolved) {
	c.cfg = cfg
	c.matcher = ignore.NewMatcher(ignore.MatcherOptions{
		RootDir:   cfg.Root,
		Patterns:  cfg.Exclude,
		Gitignore: cfg.Gitignore,
	})
	c.base = manifest.NewBaseLoader(cfg.BasePath, config.BaseConfigName, config.BaseConfigExtensions, c.evaluator, c.logger)
	c.files = make(map[string]*source.File)
	c.pages = &pageSet{dir: cfg.Pages, pages: make(map[string]*Page)}
	c.subPackages = nil
	c.state = StateInitialized
	c.lastWritten = ""
	c.lastManifest = nil
}

// Close drops all state. Later updates fail with ErrClosed.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = make(map[string]*source.File)
	c.pages = &pageSet{pages: make(map[string]*Page)}
	c.subPackages = nil
	c.lastManifest = nil
	c.state = StateClosed
	return nil
}

// Macro returns the macro name looked up in components.
func (c *Context) Macro() string {
	return c.macro
}

// Config returns the resolved configuration.
func (c *Context) Config() config.Resolved {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// State returns the lifecycle stage.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Matcher returns the exclude matcher used by scans.
func (c *Context) Matcher() *ignore.Matcher {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matcher
}

// ScanFiles lists the page and sub-package directories. Files and pages
// already known by path are reused so their caches stay warm.
func (c *Context) ScanFiles() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	return c.scanFiles()
}

func (c *Context) scanFiles() error {
	logger := logging.Scope(c.logger, logging.ScopeScanFiles)
	files := make(map[string]*source.File)

	pages, err := c.scanDir(c.cfg.Pages, c.pages, files)
	if err != nil {
		return err
	}
	for _, p := range pages.order {
		logger.Debug("page", "path", p)
	}

	previous := make(map[string]*pageSet, len(c.subPackages))
	for _, set := range c.subPackages {
		previous[set.dir] = set
	}

	subPackages := make([]*pageSet, 0, len(c.cfg.SubPackages))
	for _, dir := range c.cfg.SubPackages {
		root, ok := c.subPackageRoot(dir)
		if !ok {
			logger.Warn("sub-package directory is outside the base path, skipping", "dir", dir, "basePath", c.cfg.BasePath)
			continue
		}
		set, err := c.scanDir(dir, previous[dir], files)
		if err != nil {
			return err
		}
		set.root = root
		for _, p := range set.order {
			logger.Debug("sub-package page", "root", set.root, "path", p)
		}
		subPackages = append(subPackages, set)
	}

	c.files = files
	c.pages = pages
	c.subPackages = subPackages
	if c.state == StateInitialized {
		c.state = StateScanned
	}
	return nil
}

func (c *Context) scanDir(dir string, previous *pageSet, files map[string]*source.File) (*pageSet, error) {
	set := &pageSet{dir: dir, pages: make(map[string]*Page)}

	paths, err := c.listFiles(dir)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		file := c.files[p]
		if file == nil {
			file = files[p]
		}
		if file == nil {
			file = source.NewFile(p, c.cfg.BasePath, c.logger)
		}
		files[p] = file

		var page *Page
		if previous != nil {
			page = previous.pages[p]
		}
		if page == nil {
			page = NewPage(file, c.cfg.BasePath, c.macro, c.evaluator, c.logger)
		}
		set.pages[p] = page
		set.order = append(set.order, p)
	}
	return set, nil
}

// listFiles returns component files under dir, in lexical order, at most
// FileDeep path segments deep.
func (c *Context) listFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p == dir {
				return nil
			}
			if c.matcher.ShouldIgnoreDir(p) || depth(dir, p) >= c.cfg.FileDeep {
				return filepath.SkipDir
			}
			return nil
		}
		if c.isComponent(dir, p) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	return out, nil
}

func (c *Context) isComponent(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	if strings.Count(rel, "/")+1 > c.cfg.FileDeep {
		return false
	}
	pattern := "**/*.{" + strings.Join(config.FileExtensions, ",") + "}"
	if ok, _ := doublestar.Match(pattern, rel); !ok {
		return false
	}
	return !c.matcher.ShouldIgnore(p)
}

func depth(dir, p string) int {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}

// subPackageRoot is the sub-package directory relative to the base
// directory. It is false when dir is the base directory or lies outside it.
func (c *Context) subPackageRoot(dir string) (string, bool) {
	rel, err := filepath.Rel(c.cfg.BasePath, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Update regenerates the manifest. When changedPath names a known page whose
// macro result did not change, nothing happens. It reports whether the
// manifest file was written.
func (c *Context) Update(ctx context.Context, changedPath string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return false, ErrClosed
	}
	logger := logging.Scope(c.logger, logging.ScopeUpdatePagesJSON)

	if changedPath != "" {
		if page := c.pageByPath(changedPath); page != nil {
			changed, err := page.HasChanged(ctx)
			if err != nil {
				return false, err
			}
			if !changed {
				logger.Debug("page options did not change, skipping", "path", changedPath)
				return false, nil
			}
		}
	}

	pagesFile := c.cfg.PagesJSONFile()
	if _, err := manifest.EnsureFile(pagesFile); err != nil {
		return false, err
	}

	pagesJSON, err := c.base.Load(ctx)
	if err != nil {
		return false, err
	}

	if err := c.scanFiles(); err != nil {
		return false, err
	}
	if err := c.prefetch(ctx); err != nil {
		return false, err
	}
	if err := c.mergePagesOptions(ctx, pagesJSON); err != nil {
		return false, err
	}
	if err := c.mergeSubPackagesOptions(ctx, pagesJSON); err != nil {
		return false, err
	}
	if err := c.mergeTabbarOptions(ctx, pagesJSON); err != nil {
		return false, err
	}

	raw, err := manifest.Serialize(pagesJSON)
	if err != nil {
		return false, fmt.Errorf("serializing manifest: %w", err)
	}
	if raw == c.lastWritten {
		logger.Debug("manifest has not changed")
		return false, nil
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		previous := c.lastWritten
		if previous == "" {
			if data, err := os.ReadFile(pagesFile); err == nil {
				previous = string(data)
			}
		}
		logger.Debug("manifest changed", "diff", manifest.Diff(config.ManifestFileName, previous, raw))
	}

	if err := manifest.WriteFileAtomic(pagesFile, []byte(raw)); err != nil {
		return false, fmt.Errorf("writing manifest: %w", err)
	}
	if dts := c.cfg.DtsFile(); dts != "" {
		if err := manifest.WriteDeclaration(dts, pagesJSON); err != nil {
			return false, err
		}
	}

	c.lastWritten = raw
	c.lastManifest = pagesJSON
	c.state = StateWritten
	logger.Info("manifest written", "file", pagesFile, "pages", len(manifest.Pages(pagesJSON)))
	return true, nil
}

func (c *Context) mergePagesOptions(ctx context.Context, pagesJSON manifest.Manifest) error {
	options, err := c.pagesOptions(ctx)
	if err != nil {
		return err
	}
	pages := append(slices.Clone(manifest.Pages(pagesJSON)), options...)
	pagesJSON["pages"] = manifest.UniquePages(pages)
	return nil
}

// pagesOptions reads every top-level page, home pages first.
func (c *Context) pagesOptions(ctx context.Context) ([]any, error) {
	logger := logging.Scope(c.logger, logging.ScopeMergePages)
	pages := c.pages.list()

	entries := make(map[*Page]map[string]any, len(pages))
	for _, page := range pages {
		opt, err := page.GetPageOptions(ctx, false)
		if err != nil {
			return nil, err
		}
		entries[page] = opt
	}

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Type() == PageTypeHome && pages[j].Type() != PageTypeHome
	})

	options := make([]any, 0, len(pages))
	for _, page := range pages {
		logger.Debug("page options", "uri", page.URI(), "type", page.Type())
		options = append(options, entries[page])
	}
	return manifest.UniquePages(options), nil
}

func (c *Context) mergeSubPackagesOptions(ctx context.Context, pagesJSON manifest.Manifest) error {
	scanned, err := c.subPackagesOptions(ctx)
	if err != nil {
		return err
	}

	base := slices.Clone(manifest.SubPackages(pagesJSON))
	for i, item := range base {
		pkg, ok := item.(map[string]any)
		if !ok {
			continue
		}
		root, _ := pkg["root"].(string)
		idx := slices.IndexFunc(scanned, func(s map[string]any) bool { return s["root"] == root })
		if idx == -1 {
			continue
		}
		found := scanned[idx]
		scanned = slices.Delete(scanned, idx, idx+1)

		merged := manifest.CloneObject(pkg)
		existing, _ := pkg["pages"].([]any)
		merged["pages"] = manifest.UniquePages(append(slices.Clone(existing), found["pages"].([]any)...))
		base[i] = merged
	}

	result := make([]any, 0, len(base)+len(scanned))
	result = append(result, base...)
	for _, pkg := range scanned {
		result = append(result, pkg)
	}
	pagesJSON["subPackages"] = result
	return nil
}

func (c *Context) subPackagesOptions(ctx context.Context) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(c.subPackages))
	for _, set := range c.subPackages {
		options := make([]any, 0, len(set.order))
		for _, page := range set.list() {
			opt, err := page.GetPageOptions(ctx, false)
			if err != nil {
				return nil, err
			}
			path, _ := opt["path"].(string)
			opt["path"] = RouteURI(path, set.root)
			options = append(options, opt)
		}
		out = append(out, map[string]any{"root": set.root, "pages": manifest.UniquePages(options)})
	}
	return out, nil
}

func (c *Context) mergeTabbarOptions(ctx context.Context, pagesJSON manifest.Manifest) error {
	options, err := c.tabbarOptions(ctx)
	if err != nil {
		return err
	}
	if len(options) == 0 {
		return nil
	}

	tabBar := manifest.TabBar(pagesJSON)
	if tabBar == nil {
		tabBar = map[string]any{}
	} else {
		tabBar = manifest.CloneObject(tabBar)
	}
	existing, _ := tabBar["list"].([]any)

	list := make([]any, 0, len(existing)+len(options))
	for _, item := range existing {
		tb, ok := item.(map[string]any)
		if !ok {
			list = append(list, item)
			continue
		}
		idx := slices.IndexFunc(options, func(o map[string]any) bool { return o["pagePath"] == tb["pagePath"] })
		if idx == -1 {
			list = append(list, tb)
			continue
		}
		found := options[idx]
		options = slices.Delete(options, idx, idx+1)
		list = append(list, manifest.DeepMergeLastWins(tb, found))
	}
	for _, o := range options {
		list = append(list, o)
	}
	if len(list) > MaxTabBarItems {
		logging.Scope(c.logger, logging.ScopeMergePages).Warn("tab bar truncated",
			"items", len(list), "max", MaxTabBarItems)
		list = list[:MaxTabBarItems]
	}

	tabBar["list"] = list
	pagesJSON["tabBar"] = tabBar
	return nil
}

// tabbarOptions collects the tab bar items declared by top-level pages,
// merged by pagePath, sorted by index and with index removed.
func (c *Context) tabbarOptions(ctx context.Context) ([]map[string]any, error) {
	var order []string
	byPath := make(map[string]map[string]any)

	for _, page := range c.pages.list() {
		opt, err := page.GetTabbarOptions(ctx, false)
		if err != nil {
			return nil, err
		}
		if opt == nil {
			continue
		}
		pagePath := opt["pagePath"].(string)
		if cached, ok := byPath[pagePath]; ok {
			c.logger.Warn("duplicate tab bar pagePath, later page wins",
				"pagePath", pagePath, "file", page.File().AbsolutePath())
			byPath[pagePath] = manifest.DeepMergeLastWins(cached, opt)
			continue
		}
		order = append(order, pagePath)
		byPath[pagePath] = opt
	}

	items := make([]map[string]any, 0, len(order))
	for _, p := range order {
		items = append(items, byPath[p])
	}
	sort.SliceStable(items, func(i, j int) bool {
		return numberOf(items[i]["index"]) < numberOf(items[j]["index"])
	})
	for _, item := range items {
		delete(item, "index")
	}
	return items, nil
}

func (c *Context) pageByPath(p string) *Page {
	file := c.files[p]
	if file == nil {
		return nil
	}
	page, _ := file.Page().(*Page)
	return page
}

// HasFile reports whether path is a scanned component.
func (c *Context) HasFile(p string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.files[p]
	return ok
}

// File returns the scanned file at path, or nil.
func (c *Context) File(p string) *source.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.files[p]
}

// Files returns the scanned files sorted by path.
func (c *Context) Files() []*source.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*source.File, 0, len(c.files))
	for _, f := range c.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AbsolutePath() < out[j].AbsolutePath() })
	return out
}

// PageInfo describes a scanned page.
type PageInfo struct {
	URI        string
	File       string
	Type       PageType
	SubPackage string
}

// Pages lists the scanned pages: top-level pages first, then each sub-package.
func (c *Context) Pages() []PageInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []PageInfo
	for _, page := range c.pages.list() {
		out = append(out, PageInfo{URI: page.URI(), File: page.File().AbsolutePath(), Type: page.Type()})
	}
	for _, set := range c.subPackages {
		for _, page := range set.list() {
			out = append(out, PageInfo{
				URI:        RouteURI(page.URI(), set.root),
				File:       page.File().AbsolutePath(),
				Type:       page.Type(),
				SubPackage: set.root,
			})
		}
	}
	return out
}

// WatchDirs returns the directories that hold pages.
func (c *Context) WatchDirs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{c.cfg.Pages}, c.cfg.SubPackages...)
}

// IsPageCandidate reports whether p would be picked up by a scan.
func (c *Context) IsPageCandidate(p string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, dir := range append([]string{c.cfg.Pages}, c.cfg.SubPackages...) {
		if c.isComponent(dir, p) && !c.prunedBetween(dir, filepath.Dir(p)) {
			return true
		}
	}
	return false
}

// prunedBetween reports whether a scan of dir would skip any directory on
// the way down to sub.
func (c *Context) prunedBetween(dir, sub string) bool {
	for sub != dir && len(sub) > len(dir) {
		if c.matcher.ShouldIgnoreDir(sub) {
			return true
		}
		sub = filepath.Dir(sub)
	}
	return false
}

// ConfigSources returns every path a base config may be loaded from.
func (c *Context) ConfigSources() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Candidates()
}

// IsConfigSource reports whether p is, or could become, the base config.
func (c *Context) IsConfigSource(p string) bool {
	return slices.Contains(c.ConfigSources(), p)
}

// ReloadBase re-reads the base config.
func (c *Context) ReloadBase(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.base.Reload(ctx)
	return err
}

// Manifest returns a copy of the last written manifest, or nil.
func (c *Context) Manifest() manifest.Manifest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return manifest.CloneObject(c.lastManifest)
}

// LastWritten returns the last written manifest text.
func (c *Context) LastWritten() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastWritten
}
