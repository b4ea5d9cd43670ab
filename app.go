package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/lexandro/define-pages-json/config"
	"github.com/lexandro/define-pages-json/evaluator"
	"github.com/lexandro/define-pages-json/manifest"
	"github.com/lexandro/define-pages-json/pagesjson"
	"github.com/lexandro/define-pages-json/plugin"
	"github.com/lexandro/define-pages-json/search"
	"github.com/lexandro/define-pages-json/watcher"
)

// app wires the evaluator, the Context and the plugin for one project.
type app struct {
	cfg    config.Resolved
	logger *slog.Logger
	pages  *pagesjson.Context
	plugin *plugin.Plugin

	stopSync chan struct{}
}

func newApp(cfg config.Resolved, logger *slog.Logger, onUpdate func(manifest.Manifest)) (*app, error) {
	runner := evaluator.NewProcessRunner(cfg.Runner)
	ev := evaluator.New(runner, cfg.EvalTimeout, logger)

	pages := pagesjson.New(cfg, pagesjson.Options{Evaluator: ev, Logger: logger})
	p, err := plugin.New(pages, plugin.Options{
		Logger:   logger,
		Debounce: watcher.DefaultDebounce,
		OnUpdate: onUpdate,
	})
	if err != nil {
		pages.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, pages: pages, plugin: p}, nil
}

// startSync runs periodic consistency checks until Close. A non-positive
// interval disables them.
func (a *app) startSync(ctx context.Context, intervalSeconds int) {
	if intervalSeconds <= 0 || a.stopSync != nil {
		return
	}
	a.stopSync = make(chan struct{})
	go runPeriodicSync(ctx, intervalSeconds, a.plugin, a.logger, a.stopSync)
}

func (a *app) Close() error {
	if a.stopSync != nil {
		close(a.stopSync)
		a.stopSync = nil
	}
	return errors.Join(a.plugin.Close(), a.pages.Close())
}

// indexUpdater keeps the route index in step with every manifest write.
func indexUpdater(pageIndex *search.PageIndex, logger *slog.Logger) func(manifest.Manifest) {
	return func(m manifest.Manifest) {
		start := time.Now()
		if err := pageIndex.Rebuild(m); err != nil {
			logger.Error("failed to rebuild page index", "error", err)
			return
		}
		logger.Debug("page index rebuilt", "routes", pageIndex.DocumentCount(), "duration", time.Since(start))
	}
}

// restart runs the same command line again in a child process and returns
// its exit status. The child finds the manifest written by this run.
func restart(logger *slog.Logger, stderr io.Writer) int {
	if os.Getenv(restartEnv) != "" {
		logger.Error("pages.json is still missing after a restart")
		fmt.Fprintf(stderr, "Error: pages.json could not be created\n")
		return 1
	}

	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintf(stderr, "Error: restarting build: %v\n", err)
		return 1
	}

	logger.Info("restarting build", "executable", exe)
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), restartEnv+"=1")

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(stderr, "Error: restarting build: %v\n", err)
		return 1
	}
	return 0
}
