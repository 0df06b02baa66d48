package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a new log must stay unchanged before it is
// scanned. The crash generator writes logs in several bursts.
const DefaultSettle = 2 * time.Second

// Watcher scans crash logs as they appear in a set of directories.
type Watcher struct {
	runner *Runner
	dirs   []string
	settle time.Duration
	// OnScan, when set, is called after each scan attempt.
	OnScan func(path string, err error)
}

// NewWatcher creates a Watcher over dirs.
func NewWatcher(runner *Runner, dirs []string, settle time.Duration) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{runner: runner, dirs: dirs, settle: settle}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if dir == "" {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.runner.log.WithField("dir", dir).Info("watching for crash logs")
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if IsCrashLog(event.Name) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.runner.log.WithError(err).Warn("watcher error")

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < w.settle {
					continue
				}
				delete(pending, path)
				_, err := w.runner.ScanFile(ctx, path)
				if err != nil {
					w.runner.log.WithError(err).WithField("file", filepath.Base(path)).Warn("scan failed")
				}
				if w.OnScan != nil {
					w.OnScan(path, err)
				}
			}
		}
	}
}
