package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lexandro/define-pages-json/plugin"
)

// SyncResult holds the outcome of a single sync verification run.
type SyncResult struct {
	MissingFiles  int // page components on disk but not scanned
	StaleFiles    int // scanned components no longer on disk
	ModifiedFiles int // components whose ModTime changed since the last run
	Written       bool
	Duration      time.Duration
}

// syncState remembers component modification times between runs.
type syncState struct {
	modTimes map[string]time.Time
}

func newSyncState() *syncState {
	return &syncState{modTimes: make(map[string]time.Time)}
}

// runPeriodicSync verifies at the given interval that the manifest matches
// the page components on disk, catching changes the watcher missed. It runs
// until ctx is done or stop is closed.
func runPeriodicSync(
	ctx context.Context,
	intervalSeconds int,
	p *plugin.Plugin,
	logger *slog.Logger,
	stop <-chan struct{},
) {
	ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
	defer ticker.Stop()

	state := newSyncState()
	logger.Info("periodic sync started", "intervalSeconds", intervalSeconds)

	for {
		select {
		case <-stop:
			logger.Info("periodic sync stopped")
			return
		case <-ctx.Done():
			logger.Info("periodic sync stopped")
			return
		case <-ticker.C:
			result := performSyncVerification(ctx, p, state, logger)
			totalDiscrepancies := result.MissingFiles + result.StaleFiles + result.ModifiedFiles
			if totalDiscrepancies > 0 {
				logger.Info("sync verification complete",
					"missing", result.MissingFiles,
					"stale", result.StaleFiles,
					"modified", result.ModifiedFiles,
					"written", result.Written,
					"duration", result.Duration,
				)
			} else {
				logger.Debug("sync verification complete, manifest is in sync", "duration", result.Duration)
			}
		}
	}
}

// performSyncVerification compares page components on disk with the scanned
// set. A modified component triggers an update for that path; added or
// removed components then trigger a full update.
func performSyncVerification(ctx context.Context, p *plugin.Plugin, state *syncState, logger *slog.Logger) SyncResult {
	start := time.Now()
	var result SyncResult
	pages := p.Context()

	diskFiles := make(map[string]os.FileInfo)
	for _, dir := range pages.WatchDirs() {
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != dir && pages.Matcher().ShouldIgnoreDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !pages.IsPageCandidate(path) {
				return nil
			}
			if info, err := d.Info(); err == nil {
				diskFiles[path] = info
			}
			return nil
		})
	}

	known := make(map[string]bool)
	for _, file := range pages.Files() {
		known[file.AbsolutePath()] = true
	}

	for path := range diskFiles {
		if !known[path] {
			logger.Info("sync: found unscanned page", "path", path)
			result.MissingFiles++
		}
	}
	for path := range known {
		if _, ok := diskFiles[path]; !ok {
			logger.Info("sync: scanned page is gone", "path", path)
			result.StaleFiles++
		}
	}

	var modified []string
	for path, info := range diskFiles {
		previous, seen := state.modTimes[path]
		if seen && known[path] && !info.ModTime().Equal(previous) {
			modified = append(modified, path)
		}
	}
	result.ModifiedFiles = len(modified)

	// Modified pages are re-read first so a full update does not merge their
	// cached options.
	for _, path := range modified {
		written, err := p.Update(ctx, path)
		if err != nil {
			logger.Error("sync: update failed", "path", path, "error", err)
			continue
		}
		logger.Info("sync: re-read modified page", "path", path)
		result.Written = result.Written || written
	}

	if result.MissingFiles+result.StaleFiles > 0 {
		written, err := p.Update(ctx, "")
		if err != nil {
			logger.Error("sync: update failed", "error", err)
		}
		result.Written = result.Written || written
	}

	state.modTimes = make(map[string]time.Time, len(diskFiles))
	for path, info := range diskFiles {
		state.modTimes[path] = info.ModTime()
	}

	result.Duration = time.Since(start)
	return result
}
