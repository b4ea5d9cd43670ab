// Package plugin connects a Context to a build host: the config-resolved,
// transform and dev-server hooks, and the file watch loop.
package plugin

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/lexandro/define-pages-json/logging"
	"github.com/lexandro/define-pages-json/manifest"
	"github.com/lexandro/define-pages-json/pagesjson"
	"github.com/lexandro/define-pages-json/source"
	"github.com/lexandro/define-pages-json/watcher"
)

// ErrRestartRequired is returned by ConfigResolved in build mode when the
// manifest did not exist before the plugin started. The downstream build has
// already read the placeholder, so the build has to run again.
var ErrRestartRequired = errors.New("pages.json was missing at build start, restart required")

// Host commands.
const (
	CommandBuild = "build"
	CommandServe = "serve"
)

// HostConfig is what the build host reports once its configuration is final.
type HostConfig struct {
	Root    string
	Command string
	// Watch keeps watching page files after a build.
	Watch bool
}

// Options configures a Plugin.
type Options struct {
	Logger   *slog.Logger
	Debounce time.Duration
	// OnUpdate is called with the manifest after every write.
	OnUpdate func(manifest.Manifest)
}

// Plugin drives a Context from host hooks and file events.
type Plugin struct {
	pages    *pagesjson.Context
	logger   *slog.Logger
	debounce time.Duration
	onUpdate func(manifest.Manifest)

	manifestExisted bool

	mu      sync.Mutex
	watcher *watcher.Watcher
	done    chan struct{}
}

// New creates the plugin and makes sure a manifest file exists, recording
// whether it had to be created.
func New(pages *pagesjson.Context, opts Options) (*Plugin, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	existed, err := manifest.EnsureFile(pages.Config().PagesJSONFile())
	if err != nil {
		return nil, err
	}
	return &Plugin{
		pages:           pages,
		logger:          opts.Logger,
		debounce:        opts.Debounce,
		onUpdate:        opts.OnUpdate,
		manifestExisted: existed,
	}, nil
}

// Context returns the driven Context.
func (p *Plugin) Context() *pagesjson.Context {
	return p.pages
}

// ManifestExisted reports whether pages.json existed when the plugin was created.
func (p *Plugin) ManifestExisted() bool {
	return p.manifestExisted
}

// ConfigResolved runs the initial update. A host root different from the
// configured one re-resolves the configuration first.
func (p *Plugin) ConfigResolved(ctx context.Context, host HostConfig) error {
	cfg := p.pages.Config()
	if host.Root != "" {
		if root, err := filepath.Abs(host.Root); err == nil && root != cfg.Root {
			p.pages.Reset(cfg.WithRoot(root))
		}
	}

	if _, err := p.Update(ctx, ""); err != nil {
		return err
	}

	if host.Command != CommandBuild {
		return nil
	}
	if !p.manifestExisted {
		logging.Scope(p.logger, logging.ScopeError).Error(
			"pages.json did not exist before the build, it could not be complete when the build read it; restarting")
		return ErrRestartRequired
	}
	if host.Watch {
		return p.ConfigureServer(ctx)
	}
	return nil
}

// Update regenerates the manifest and notifies OnUpdate after a write.
func (p *Plugin) Update(ctx context.Context, changedPath string) (bool, error) {
	written, err := p.pages.Update(ctx, changedPath)
	if err != nil {
		return false, err
	}
	if written && p.onUpdate != nil {
		p.onUpdate(p.pages.Manifest())
	}
	return written, nil
}

// Transform removes the macro statement from a component's source. It
// reports false when id is not a scanned page or holds no macro call.
func (p *Plugin) Transform(code, id string) (string, bool, error) {
	file := p.pages.File(id)
	if file == nil {
		return code, false, nil
	}

	setup, err := source.ParseScriptSetup(code, file)
	if err != nil || setup == nil {
		return code, false, err
	}

	start, end, found, err := setup.MacroStatement(p.pages.Macro())
	if err != nil || !found {
		return code, false, err
	}

	out := code[:start] + code[end:]
	logging.Scope(p.logger, logging.ScopeWatcher).Debug("macro removed", "file", id)
	return out, true, nil
}

// ConfigureServer starts watching page directories and config sources.
// It returns immediately; events are handled until ctx is done or Close.
func (p *Plugin) ConfigureServer(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watcher != nil {
		return nil
	}

	cfg := p.pages.Config()
	targets := make([]watcher.Target, 0, len(cfg.SubPackages)+3)
	for _, dir := range p.pages.WatchDirs() {
		targets = append(targets, watcher.Target{Path: dir, Recursive: true})
	}
	targets = append(targets, watcher.Target{Path: cfg.BasePath})
	if cfg.Gitignore {
		targets = append(targets, watcher.Target{Path: cfg.Root})
	}

	w, err := watcher.NewWatcher(targets, p.pages.Matcher(), p.debounce, p.logger)
	if err != nil {
		return err
	}
	p.watcher = w
	p.done = make(chan struct{})

	go w.Start()
	go p.loop(ctx, w, p.done)

	logging.Scope(p.logger, logging.ScopeWatcher).Info("watching for changes", "targets", len(targets))
	return nil
}

func (p *Plugin) loop(ctx context.Context, w *watcher.Watcher, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			p.HandleEvents(ctx, batch)
		}
	}
}

// HandleEvents applies a batch of file events. For each event the effects
// run in a fixed order: the page-level update first, then the config source
// reload. Errors are logged and do not stop the batch.
func (p *Plugin) HandleEvents(ctx context.Context, batch []watcher.DebouncedEvent) {
	logger := logging.Scope(p.logger, logging.ScopeWatcher)
	errLogger := logging.Scope(p.logger, logging.ScopeError)

	for _, event := range batch {
		for _, effect := range p.effects(event) {
			logger.Debug(effect.name, "path", event.Path, "op", event.Op)
			if err := effect.run(ctx); err != nil {
				errLogger.Error("update after file change failed", "path", event.Path, "effect", effect.name, "error", err)
			}
		}
	}
}

type effect struct {
	name string
	run  func(context.Context) error
}

func (p *Plugin) effects(event watcher.DebouncedEvent) []effect {
	var out []effect
	path := event.Path
	changed := event.Op == watcher.OpCreate || event.Op == watcher.OpWrite

	switch {
	case p.pages.HasFile(path) && changed:
		out = append(out, effect{"page changed", func(ctx context.Context) error {
			_, err := p.Update(ctx, path)
			return err
		}})
	case p.pages.HasFile(path):
		out = append(out, effect{"page removed", func(ctx context.Context) error {
			_, err := p.Update(ctx, "")
			return err
		}})
	case changed && p.pages.IsPageCandidate(path):
		out = append(out, effect{"page added", func(ctx context.Context) error {
			_, err := p.Update(ctx, "")
			return err
		}})
	}

	if p.pages.IsConfigSource(path) {
		out = append(out, effect{"config source changed", func(ctx context.Context) error {
			if err := p.pages.ReloadBase(ctx); err != nil {
				return err
			}
			_, err := p.Update(ctx, "")
			return err
		}})
	}

	if filepath.Base(path) == ".gitignore" && p.pages.Config().Gitignore {
		out = append(out, effect{"ignore rules changed", func(ctx context.Context) error {
			p.pages.Matcher().Reload()
			_, err := p.Update(ctx, "")
			return err
		}})
	}
	return out
}

// Close stops watching.
func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watcher == nil {
		return nil
	}
	close(p.done)
	err := p.watcher.Close()
	p.watcher = nil
	return err
}
