package pagesjson

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/lexandro/define-pages-json/evaluator"
	"github.com/lexandro/define-pages-json/logging"
	"github.com/lexandro/define-pages-json/manifest"
	"github.com/lexandro/define-pages-json/source"
)

// Evaluator computes the value of an expression written in file.
type Evaluator interface {
	Eval(ctx context.Context, file string, expr evaluator.Expression, imports []string) (any, error)
}

// PageType tags a page; home pages are listed first.
type PageType string

const (
	PageTypeNormal PageType = "normal"
	PageTypeHome   PageType = "home"
)

// Page is a route built from a component file.
type Page struct {
	file      *source.File
	basePath  string
	macro     string
	evaluator Evaluator
	logger    *slog.Logger

	uriOnce sync.Once
	uri     string

	mu         sync.Mutex
	pageType   PageType
	rawOptions string
	options    map[string]any
}

// NewPage creates the page for file and links it back from the file.
func NewPage(file *source.File, basePath, macro string, ev Evaluator, logger *slog.Logger) *Page {
	p := &Page{
		file:      file,
		basePath:  basePath,
		macro:     macro,
		evaluator: ev,
		logger:    logger,
		pageType:  PageTypeNormal,
	}
	file.SetPage(p)
	return p
}

// File returns the component file of the page.
func (p *Page) File() *source.File {
	return p.file
}

// URI is the route of the page: its file path relative to the base
// directory, slash separated, without extension.
func (p *Page) URI() string {
	p.uriOnce.Do(func() {
		rel, err := filepath.Rel(p.basePath, p.file.AbsolutePath())
		if err != nil {
			rel = p.file.RelativePath()
		}
		p.uri = RouteURI(rel, "")
	})
	return p.uri
}

// Type returns the page type recorded by the last GetPageOptions call.
func (p *Page) Type() PageType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pageType
}

// RouteURI normalizes a component path into a route: backslashes become
// slashes, a leading root directory is removed and the extension is stripped.
// Applying it to its own result returns the same value.
func RouteURI(filePath, root string) string {
	p := strings.ReplaceAll(filePath, "\\", "/")
	r := strings.Trim(strings.ReplaceAll(root, "\\", "/"), "/")
	if r != "" {
		p = strings.TrimPrefix(p, r+"/")
	}
	return strings.TrimSuffix(p, path.Ext(p))
}

// GetPageOptions returns the manifest entry of the page. The macro's path,
// type and tabbar fields never reach the entry: path is always the URI, type
// only tags the page and tabbar is returned by GetTabbarOptions.
func (p *Page) GetPageOptions(ctx context.Context, force bool) (map[string]any, error) {
	options, err := p.ensureOptions(ctx, force)
	if err != nil {
		return nil, err
	}

	entry := manifest.CloneObject(options)
	pageType, _ := entry["type"].(string)
	delete(entry, "path")
	delete(entry, "tabbar")
	delete(entry, "type")
	entry["path"] = p.URI()

	p.mu.Lock()
	if PageType(pageType) == PageTypeHome {
		p.pageType = PageTypeHome
	} else {
		p.pageType = PageTypeNormal
	}
	p.mu.Unlock()

	return entry, nil
}

// GetTabbarOptions returns the tab bar item declared by the page, or nil.
// The item carries pagePath set to the URI and an index used for ordering.
func (p *Page) GetTabbarOptions(ctx context.Context, force bool) (map[string]any, error) {
	options, err := p.ensureOptions(ctx, force)
	if err != nil {
		return nil, err
	}

	tabbar, ok := options["tabbar"].(map[string]any)
	if !ok {
		return nil, nil
	}

	item := manifest.CloneObject(tabbar)
	if _, ok := item["index"]; !ok || item["index"] == nil {
		item["index"] = json.Number("0")
	}
	item["pagePath"] = p.URI()
	return item, nil
}

// HasChanged re-reads the page from disk and reports whether its macro
// result differs from the previous read.
func (p *Page) HasChanged(ctx context.Context) (bool, error) {
	return p.readOptions(ctx, true)
}

// loaded reports whether the page holds a macro result.
func (p *Page) loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.options != nil
}

func (p *Page) ensureOptions(ctx context.Context, force bool) (map[string]any, error) {
	p.mu.Lock()
	options := p.options
	p.mu.Unlock()

	if force || options == nil {
		if _, err := p.readOptions(ctx, force); err != nil {
			return nil, err
		}
		p.mu.Lock()
		options = p.options
		p.mu.Unlock()
	}
	return options, nil
}

// readOptions evaluates the macro and stores the result. A page without the
// macro has empty options.
func (p *Page) readOptions(ctx context.Context, fromDisk bool) (bool, error) {
	options, err := p.evaluate(ctx, fromDisk)
	if err != nil {
		logging.Scope(p.logger, logging.ScopeError).Error("read page options failed",
			"file", p.file.AbsolutePath(), "error", err)
		return false, fmt.Errorf("read page options in %s: %w", p.file.AbsolutePath(), err)
	}

	raw := manifest.Stringify(options)

	p.mu.Lock()
	defer p.mu.Unlock()
	changed := p.rawOptions != raw
	p.rawOptions = raw
	p.options = options
	return changed, nil
}

func (p *Page) evaluate(ctx context.Context, fromDisk bool) (map[string]any, error) {
	setup, err := p.file.ScriptSetup(fromDisk)
	if err != nil {
		return nil, err
	}
	if setup == nil {
		return map[string]any{}, nil
	}

	result, err := setup.MacroResult(ctx, p.evaluator, p.macro)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return map[string]any{}, nil
	}
	options, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s() returned %T, want an object", p.macro, result)
	}
	return options, nil
}

func numberOf(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		f, _ := n.Float64()
		return f
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
