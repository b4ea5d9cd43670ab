package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lexandro/define-pages-json/logging"
)

// DefaultDebounce is the quiet period before a batch is emitted.
const DefaultDebounce = 100 * time.Millisecond

// IgnoreChecker is used by the watcher to check if a path should be ignored.
type IgnoreChecker interface {
	ShouldIgnoreDir(absolutePath string) bool
	ShouldIgnore(absolutePath string) bool
}

// Target is a directory to watch. Non-recursive targets only report changes
// to their direct entries, which is how config files next to the manifest are
// followed without watching the whole source tree.
type Target struct {
	Path      string
	Recursive bool
}

// Watcher watches a set of directories and emits debounced batches.
type Watcher struct {
	fsWatcher     *fsnotify.Watcher
	debouncer     *Debouncer
	ignoreChecker IgnoreChecker
	targets       []Target
	logger        *slog.Logger
}

// NewWatcher registers every target. Recursive targets have all their
// non-ignored subdirectories added. Missing targets are skipped.
func NewWatcher(targets []Target, ignoreChecker IgnoreChecker, interval time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultDebounce
	}

	w := &Watcher{
		fsWatcher:     fsWatcher,
		debouncer:     NewDebouncer(interval),
		ignoreChecker: ignoreChecker,
		targets:       targets,
		logger:        logging.Scope(logger, logging.ScopeWatcher),
	}

	for _, target := range targets {
		if err := w.addTarget(target); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}

	return w, nil
}

func (w *Watcher) addTarget(target Target) error {
	info, err := os.Stat(target.Path)
	if err != nil || !info.IsDir() {
		w.logger.Debug("watch target not found, skipping", "path", target.Path)
		return nil
	}

	if !target.Recursive {
		if err := w.fsWatcher.Add(target.Path); err != nil {
			w.logger.Warn("failed to watch directory", "path", target.Path, "error", err)
		}
		return nil
	}

	return filepath.WalkDir(target.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != target.Path && w.ignoreChecker.ShouldIgnoreDir(path) {
			return filepath.SkipDir
		}
		if watchErr := w.fsWatcher.Add(path); watchErr != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", watchErr)
		}
		return nil
	})
}

// Events returns the channel of debounced batches.
func (w *Watcher) Events() <-chan []DebouncedEvent {
	return w.debouncer.Output()
}

// WatchList returns the directories currently registered.
func (w *Watcher) WatchList() []string {
	return w.fsWatcher.WatchList()
}

// Start forwards fsnotify events until the watcher is closed. Call it in a goroutine.
func (w *Watcher) Start() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if w.underRecursiveTarget(path) && !w.ignoreChecker.ShouldIgnoreDir(path) {
				w.addTarget(Target{Path: path, Recursive: true})
			}
			return
		}
	}

	if w.ignoreChecker.ShouldIgnore(path) {
		return
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove):
		op = OpRemove
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	w.logger.Debug("file event", "path", path, "op", op)
	w.debouncer.Add(path, op)
}

func (w *Watcher) underRecursiveTarget(path string) bool {
	for _, target := range w.targets {
		if !target.Recursive {
			continue
		}
		if path == target.Path || strings.HasPrefix(path, target.Path+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Close stops watching and closes the event channel.
func (w *Watcher) Close() error {
	err := w.fsWatcher.Close()
	w.debouncer.Stop()
	return err
}
