// Package watch re-runs a batch when documents or the inputs they are built
// from change on disk. Runs are serialized and debounced.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wsmith-bit/itstitanium/pkg/db"
)

// DefaultDebounce is how long the tree must stay quiet before a re-run.
const DefaultDebounce = 500 * time.Millisecond

// RunFunc performs one batch and returns the content hash of every document
// it left on disk, keyed by absolute path.
type RunFunc func(ctx context.Context) map[string]string

// Watcher watches a document tree plus individual input files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	inputs   map[string]bool
	debounce time.Duration
	logger   *slog.Logger
	run      RunFunc

	// last event per path waiting for the debounce window
	pending map[string]time.Time
	// hashes left by the previous run, used to ignore our own writes
	written map[string]string
}

// New creates a watcher over root and the given input files.
func New(root string, inputs []string, debounce time.Duration, logger *slog.Logger, run RunFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		watcher:  fw,
		root:     filepath.Clean(root),
		inputs:   map[string]bool{},
		debounce: debounce,
		logger:   logger,
		run:      run,
		pending:  map[string]time.Time{},
		written:  map[string]string{},
	}

	if err := w.addTree(w.root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	dirs := map[string]bool{}
	for _, in := range inputs {
		if in == "" {
			continue
		}
		in = filepath.Clean(in)
		w.inputs[in] = true
		dir := filepath.Dir(in)
		if dirs[dir] || w.underRoot(dir) {
			continue
		}
		dirs[dir] = true
		// Input directories may not exist yet.
		if err := fw.Add(dir); err != nil {
			logger.Warn("Cannot watch input directory", "dir", dir, "error", err)
		}
	}
	return w, nil
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run performs an initial batch and then re-runs after changes until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	w.trigger(ctx)

	ticker := time.NewTicker(w.debounce / 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case now := <-ticker.C:
			if w.settled(now) {
				w.trigger(ctx)
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && w.underRoot(ev.Name) {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("Cannot watch new directory", "dir", ev.Name, "error", err)
			}
			return
		}
	}
	if !w.relevant(ev) {
		return
	}
	w.logger.Info("Change detected", "path", ev.Name, "op", ev.Op.String())
	w.pending[filepath.Clean(ev.Name)] = time.Now()
}

func (w *Watcher) underRoot(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// relevant reports whether ev should schedule a re-run.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	path := filepath.Clean(ev.Name)
	if w.inputs[path] {
		return true
	}
	if !w.underRoot(path) || !strings.HasSuffix(strings.ToLower(path), ".html") {
		return false
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	// A write that leaves the content the last run produced is our own.
	if hash, ok := w.written[path]; ok && ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
		if data, err := os.ReadFile(path); err == nil && db.ContentHash(data) == hash {
			return false
		}
	}
	return true
}

// settled reports whether changes are pending and none arrived within the
// debounce window.
func (w *Watcher) settled(now time.Time) bool {
	if len(w.pending) == 0 {
		return false
	}
	for _, at := range w.pending {
		if now.Sub(at) < w.debounce {
			return false
		}
	}
	return true
}

func (w *Watcher) trigger(ctx context.Context) {
	w.pending = map[string]time.Time{}
	hashes := w.run(ctx)
	if hashes != nil {
		w.written = hashes
	}
}
