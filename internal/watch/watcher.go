// Package watch applies filename tags to files as they land in a folder.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/franz/mp3-organizer/internal/scan"
	"github.com/franz/mp3-organizer/internal/tagger"
	"github.com/franz/mp3-organizer/internal/util"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is applied
const DefaultDebounce = 2 * time.Second

// FileApplier applies one file. *tagger.Applier satisfies it.
type FileApplier interface {
	ApplyOne(ctx context.Context, path string) (*tagger.Outcome, error)
}

// Config holds watcher configuration
type Config struct {
	Applier    FileApplier
	Extensions []string
	Debounce   time.Duration
	// OnApply is called after each file is handled; optional
	OnApply func(path string, out *tagger.Outcome, err error)
}

type signature struct {
	size  int64
	mtime int64
}

// Watcher watches a folder tree and applies new or rewritten files
type Watcher struct {
	applier    FileApplier
	extensions map[string]bool
	debounce   time.Duration
	onApply    func(string, *tagger.Outcome, error)

	mu      sync.Mutex
	pending map[string]time.Time
	// applied remembers the state each file was left in, so our own writes
	// do not trigger another round
	applied map[string]signature
}

// New creates a new Watcher
func New(cfg *Config) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	return &Watcher{
		applier:    cfg.Applier,
		extensions: scan.ExtensionSet(cfg.Extensions),
		debounce:   cfg.Debounce,
		onApply:    cfg.OnApply,
		pending:    make(map[string]time.Time),
		applied:    make(map[string]signature),
	}
}

// Run watches root until ctx is cancelled
func (w *Watcher) Run(ctx context.Context, root string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, root); err != nil {
		return err
	}

	util.InfoLog("Watching %s (debounce %s)", root, w.debounce)

	tick := w.debounce / 4
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if newDir := w.handleEvent(ev, time.Now()); newDir != "" {
				if err := w.addTree(fsw, newDir); err != nil {
					util.WarnLog("Failed to watch %s: %v", newDir, err)
				}
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			util.WarnLog("Watch error: %v", err)

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// addTree watches dir and every directory below it
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("cannot watch %s: %w", dir, err)
			}
			util.WarnLog("Error accessing path %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			util.DebugLog("Watching: %s", path)
			return nil
		}
		return nil
	})
}

// handleEvent records an event. It returns the path of a newly created
// directory that needs watching, or "".
func (w *Watcher) handleEvent(ev fsnotify.Event, now time.Time) string {
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.pending, ev.Name)
		delete(w.applied, ev.Name)
		w.mu.Unlock()
		return ""
	}

	// A folder moved in produces no per-file events, so its files are queued here
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.queueExisting(ev.Name, now)
			return ev.Name
		}
	}

	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return ""
	}
	if !w.isMusicFile(ev.Name) {
		return ""
	}

	w.mu.Lock()
	w.pending[ev.Name] = now
	w.mu.Unlock()
	return ""
}

func (w *Watcher) queueExisting(dir string, now time.Time) {
	paths, err := scan.DiscoverFiles(context.Background(), dir, w.extensions)
	if err != nil {
		return
	}
	w.mu.Lock()
	for _, p := range paths {
		w.pending[p] = now
	}
	w.mu.Unlock()
}

// ready removes and returns the pending files that have been quiet for the
// debounce interval
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var paths []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			paths = append(paths, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// flush applies every file that is ready
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	for _, path := range w.ready(now) {
		if ctx.Err() != nil {
			return
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		sig := signature{size: info.Size(), mtime: info.ModTime().UnixNano()}

		w.mu.Lock()
		prev, seen := w.applied[path]
		w.mu.Unlock()
		if seen && prev == sig {
			continue
		}

		out, err := w.applier.ApplyOne(ctx, path)
		switch {
		case err == nil:
			util.SuccessLog("Tagged %s", filepath.Base(path))
		case tagger.IsUnrecognized(err):
			util.WarnLog("Skipped %s: %v", filepath.Base(path), err)
		default:
			util.ErrorLog("Failed to tag %s: %v", filepath.Base(path), err)
		}

		if info, statErr := os.Stat(path); statErr == nil {
			w.mu.Lock()
			w.applied[path] = signature{size: info.Size(), mtime: info.ModTime().UnixNano()}
			w.mu.Unlock()
		}

		if w.onApply != nil {
			w.onApply(path, out, err)
		}
	}
}

// Pending returns the number of files waiting for their debounce to expire
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Watcher) isMusicFile(path string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}
