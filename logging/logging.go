package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ScopeKey is the attribute carrying the debug category of a logger.
const ScopeKey = "scope"

// Debug categories.
const (
	ScopeLoadPagesConfig  = "loadPagesConfig"
	ScopeUpdatePagesJSON  = "updatePagesJSON"
	ScopeScanFiles        = "scanFiles"
	ScopeExec             = "exec"
	ScopeWatcher          = "watcher"
	ScopeError            = "error"
	ScopeGetMacroResult   = "getMacroResult"
	ScopeParseScriptSetup = "parseScriptSetup"
	ScopeMergePages       = "mergePagesOptions"
)

// Scope returns a logger tagged with a debug category.
func Scope(logger *slog.Logger, scope string) *slog.Logger {
	return logger.With(ScopeKey, scope)
}

// Setup creates a text logger writing to a file or stderr. A non-empty debug
// value forces debug level; a category other than "*" limits debug records to
// loggers tagged with that scope.
func Setup(level string, logFile string, debug string) (*slog.Logger, io.Closer) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	if debug != "" {
		logLevel = slog.LevelDebug
	}

	var writer io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v, falling back to stderr\n", logFile, err)
		} else {
			writer = f
			closer = f
		}
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: logLevel})
	return slog.New(NewCategoryHandler(handler, debug)), closer
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CategoryHandler drops debug records whose scope does not match the enabled
// category. Records at info level and above always pass.
type CategoryHandler struct {
	next     slog.Handler
	category string
	scope    string
}

// NewCategoryHandler wraps next. An empty category or "*" lets every scope through.
func NewCategoryHandler(next slog.Handler, category string) *CategoryHandler {
	if category == "*" {
		category = ""
	}
	return &CategoryHandler{next: next, category: category}
}

func (h *CategoryHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *CategoryHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < slog.LevelInfo && h.category != "" && h.scope != h.category {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *CategoryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scope := h.scope
	for _, a := range attrs {
		if a.Key == ScopeKey {
			scope = a.Value.String()
		}
	}
	return &CategoryHandler{next: h.next.WithAttrs(attrs), category: h.category, scope: scope}
}

func (h *CategoryHandler) WithGroup(name string) slog.Handler {
	return &CategoryHandler{next: h.next.WithGroup(name), category: h.category, scope: h.scope}
}
