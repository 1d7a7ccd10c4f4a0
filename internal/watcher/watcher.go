// Package watcher turns file system notifications under the corpus root into
// incremental index updates, pairing rename/create events into renames.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/memolink/internal/checksum"
	"github.com/starford/memolink/internal/corpus"
	"github.com/starford/memolink/internal/models"
	"github.com/starford/memolink/internal/storage"
)

// Engine is the index surface the watcher drives.
type Engine interface {
	IsDocument(path string) bool
	DocumentChanged(path string, created bool)
	DocumentRemoved(path string)
	HandleRename(ctx context.Context, oldPath, newPath string) (models.RenameResult, error)
}

// Options configures a Watcher.
type Options struct {
	Corpus          corpus.Config
	RenameWindow    time.Duration
	RewriteOnRename bool
}

type pendingRename struct {
	path string
	sum  string
}

// Watcher tracks the checksum of every known document so a Rename of a
// document followed by a Create with the same content is seen as a move.
type Watcher struct {
	engine Engine
	store  storage.Store
	opts   Options
	logger *slog.Logger

	// Owned by the Run goroutine.
	sums    map[string]string
	pending []pendingRename
}

// New creates a Watcher.
func New(engine Engine, store storage.Store, opts Options, logger *slog.Logger) *Watcher {
	if opts.RenameWindow <= 0 {
		opts.RenameWindow = 500 * time.Millisecond
	}
	return &Watcher{
		engine: engine,
		store:  store,
		opts:   opts,
		logger: logger,
		sums:   make(map[string]string),
	}
}

// Seed records the checksum of every current corpus document.
func (w *Watcher) Seed(ctx context.Context) error {
	return corpus.Walk(ctx, w.store, w.opts.Corpus, w.logger, func(path string, _ storage.Info) {
		if text, err := w.store.ReadText(path); err == nil {
			w.sums[path] = checksum.SumString(text)
		}
	})
}

// Run watches the corpus root until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addDirsRecursive(fw, w.opts.Corpus.Root); err != nil {
		return err
	}
	if err := w.Seed(ctx); err != nil {
		return err
	}

	w.logger.Info("watcher: started", slog.String("root", w.opts.Corpus.Root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(w.opts.RenameWindow)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(w.opts.RenameWindow)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			w.reconcile()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					w.handleNewDir(fw, ev.Name)
					continue
				}
			}
			if w.handle(ctx, ev) {
				scheduleReconcile()
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handle applies one file event. It reports whether a reconcile pass should
// be scheduled.
func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) bool {
	path := ev.Name
	if ev.Op&fsnotify.Rename != 0 {
		// Rename fires on the old path; the new one arrives as a Create.
		if sum, ok := w.sums[path]; ok {
			w.pending = append(w.pending, pendingRename{path: path, sum: sum})
		}
		return true
	}
	if !w.engine.IsDocument(path) || w.hiddenDir(filepath.Dir(path)) {
		return false
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		text, err := w.store.ReadText(path)
		if err != nil {
			w.logger.Warn("watcher: read failed", slog.String("path", path), slog.String("error", err.Error()))
			return false
		}
		sum := checksum.SumString(text)
		if ev.Op&fsnotify.Create != 0 {
			if old, ok := w.takePending(sum); ok {
				w.sums[path] = sum
				delete(w.sums, old)
				w.renamed(ctx, old, path)
				return false
			}
		}
		prev, known := w.sums[path]
		if known && prev == sum {
			return false
		}
		w.sums[path] = sum
		w.engine.DocumentChanged(path, !known)
		w.logger.Debug("watcher: indexed", slog.String("path", path), slog.Bool("created", !known))

	case ev.Op&fsnotify.Remove != 0:
		delete(w.sums, path)
		w.engine.DocumentRemoved(path)
		w.logger.Debug("watcher: deleted", slog.String("path", path))
	}
	return false
}

func (w *Watcher) takePending(sum string) (string, bool) {
	for i, p := range w.pending {
		if p.sum == sum {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			return p.path, true
		}
	}
	return "", false
}

func (w *Watcher) renamed(ctx context.Context, oldPath, newPath string) {
	if !w.opts.RewriteOnRename {
		w.engine.DocumentRemoved(oldPath)
		w.engine.DocumentChanged(newPath, true)
		return
	}
	res, err := w.engine.HandleRename(ctx, oldPath, newPath)
	if err != nil {
		w.logger.Warn("watcher: rename propagation failed",
			slog.String("old_path", oldPath),
			slog.String("new_path", newPath),
			slog.String("error", err.Error()))
		return
	}
	w.logger.Info("watcher: rename propagated",
		slog.String("old_path", oldPath),
		slog.String("new_path", newPath),
		slog.Int("files", res.FilesUpdated),
		slog.Int("links", res.LinksUpdated))
}

// reconcile drops unpaired renames and any known document that vanished,
// for example after a directory was moved away.
func (w *Watcher) reconcile() {
	w.pending = nil
	for path := range w.sums {
		if w.store.Exists(path) {
			continue
		}
		delete(w.sums, path)
		w.engine.DocumentRemoved(path)
		w.logger.Debug("watcher: removed stale", slog.String("path", path))
	}
}

// handleNewDir watches a directory created at runtime and indexes the
// documents it already holds.
func (w *Watcher) handleNewDir(fw *fsnotify.Watcher, dir string) {
	if w.hiddenDir(dir) {
		return
	}
	if err := w.addDirsRecursive(fw, dir); err != nil {
		w.logger.Warn("watcher: add new dir failed", slog.String("path", dir), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: watching new dir", slog.String("path", dir))
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !w.engine.IsDocument(path) {
			return nil
		}
		if _, known := w.sums[path]; known {
			return nil
		}
		text, readErr := w.store.ReadText(path)
		if readErr != nil {
			return nil
		}
		w.sums[path] = checksum.SumString(text)
		w.engine.DocumentChanged(path, true)
		return nil
	})
}

// hiddenDir reports whether dir is, or lies in, a hidden directory below the root.
func (w *Watcher) hiddenDir(dir string) bool {
	if !w.opts.Corpus.SkipHidden {
		return false
	}
	rel, err := filepath.Rel(w.opts.Corpus.Root, dir)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its non-hidden subdirectories.
func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.opts.Corpus.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
