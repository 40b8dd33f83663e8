// Package watch turns file changes and a cron schedule into rebuild
// triggers.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a
// trigger fires.
const DefaultDebounce = 500 * time.Millisecond

// TriggerFunc is called once per settled burst of changes.
type TriggerFunc func(reason string)

// Options configures Watch.
type Options struct {
	Root string
	// Skip lists directory names that are never watched (e.g. ".git").
	Skip     []string
	Debounce time.Duration
	Trigger  TriggerFunc
	Logger   *slog.Logger
}

// Watch starts an fsnotify watcher on opts.Root and calls opts.Trigger after
// each burst of changes until ctx is cancelled. New directories created at
// runtime are added to the watch list.
func Watch(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "watch"))
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, opts.Root, opts.Skip); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", opts.Root), slog.Duration("debounce", debounce))

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		pending int
		first   string
	)
	schedule := func(path string) {
		if pending == 0 {
			first = path
		}
		pending++
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
			return
		}
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			rel, _ := filepath.Rel(opts.Root, first)
			logger.Debug("watcher: changes settled", slog.Int("events", pending), slog.String("first", rel))
			if opts.Trigger != nil {
				opts.Trigger("change: " + filepath.ToSlash(rel))
			}
			pending = 0

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ignored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if slices.Contains(opts.Skip, filepath.Base(ev.Name)) {
						continue
					}
					if addErr := addDirsRecursive(w, ev.Name, opts.Skip); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
				}
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			schedule(ev.Name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// ignored filters editor and atomic-write scratch files.
func ignored(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, ".gardensite-tmp-"),
		strings.HasPrefix(base, ".#"),
		strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"):
		return true
	}
	return false
}

// addDirsRecursive adds root and all its subdirectories, except skipped
// names, to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string, skip []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && slices.Contains(skip, d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
