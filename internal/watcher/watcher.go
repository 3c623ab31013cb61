// Package watcher turns fsnotify activity in the vault into file-created and
// file-or-folder-renamed events.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/attachsync/internal/models"
	"github.com/starford/attachsync/internal/storage"
)

// DefaultPairWindow is how long a Rename waits for its matching Create.
const DefaultPairWindow = 250 * time.Millisecond

// Handler receives vault events. Calls are made one at a time from the
// watcher loop in the order the events were observed.
type Handler interface {
	OnCreate(ctx context.Context, e models.Entry)
	OnRename(ctx context.Context, ev models.RenameEvent)
}

// Watcher observes a vault directory tree.
type Watcher struct {
	store      storage.Provider
	handler    Handler
	logger     *slog.Logger
	pairWindow time.Duration

	dirs    map[string]bool
	pending []pendingRename
	// paired remembers old paths of dispatched renames; inotify may report
	// a moved watched directory a second time via its own watch.
	paired map[string]time.Time
}

// fsnotify reports a rename as Rename on the old path followed by Create on
// the new one. pendingRename holds the former until the latter shows up.
type pendingRename struct {
	path string
	at   time.Time
}

// New creates a Watcher for the vault behind store.
func New(store storage.Provider, h Handler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		store:      store,
		handler:    h,
		logger:     logger,
		pairWindow: DefaultPairWindow,
		dirs:       make(map[string]bool),
		paired:     make(map[string]time.Time),
	}
}

// Run watches until ctx is cancelled. New directories are added to the
// watch list as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	root := w.store.Root()
	if err := w.addDirsRecursive(fw, root); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", root))

	expire := time.NewTimer(w.pairWindow)
	expire.Stop()
	defer expire.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-expire.C:
			w.dropExpired(time.Now())
			if len(w.pending) > 0 {
				expire.Reset(w.pairWindow)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handle(ctx, fw, ev) {
				expire.Reset(w.pairWindow)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handle processes one fsnotify event. It reports whether a rename is now pending.
func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	rel, ok := w.rel(ev.Name)
	if !ok {
		return false
	}
	if hidden(rel) {
		if ev.Has(fsnotify.Create) {
			w.hiddenCreate(fw, ev.Name, rel)
		}
		return false
	}

	switch {
	case ev.Has(fsnotify.Create):
		entry, err := w.store.Stat(rel)
		if err != nil {
			// already gone again
			return false
		}
		if p, ok := w.popPending(time.Now()); ok {
			w.dispatchRename(ctx, fw, p, entry)
			return false
		}
		if entry.IsFolder() {
			if err := w.addDirsRecursive(fw, ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed", slog.String("path", rel), slog.String("error", err.Error()))
			}
			return false
		}
		w.logger.Debug("watcher: created", slog.String("path", rel))
		w.handler.OnCreate(ctx, entry)

	case ev.Has(fsnotify.Rename):
		now := time.Now()
		if at, ok := w.paired[rel]; ok && now.Sub(at) <= w.pairWindow {
			return false
		}
		for _, p := range w.pending {
			if p.path == rel {
				return false
			}
		}
		if w.dirs[rel] {
			_ = fw.Remove(ev.Name)
			w.forgetDirs(rel)
		}
		w.pending = append(w.pending, pendingRename{path: rel, at: now})
		return true

	case ev.Has(fsnotify.Remove):
		w.forgetDirs(rel)
	}
	return false
}

func (w *Watcher) dispatchRename(ctx context.Context, fw *fsnotify.Watcher, p pendingRename, entry models.Entry) {
	w.logger.Debug("watcher: renamed", slog.String("old", p.path), slog.String("new", entry.Path))
	w.paired[p.path] = time.Now()
	if !entry.IsFolder() {
		w.handler.OnRename(ctx, models.RenameEvent{Entry: entry, OldPath: p.path})
		return
	}

	if err := w.addDirsRecursive(fw, filepath.Join(w.store.Root(), filepath.FromSlash(entry.Path))); err != nil {
		w.logger.Warn("watcher: add renamed dir failed", slog.String("path", entry.Path), slog.String("error", err.Error()))
	}

	// Children are collected before dispatch since handlers may move them.
	var children []models.Entry
	err := w.store.Walk(entry.Path, func(e models.Entry) error {
		if e.Path != entry.Path {
			children = append(children, e)
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("watcher: walk renamed dir failed", slog.String("path", entry.Path), slog.String("error", err.Error()))
	}

	w.handler.OnRename(ctx, models.RenameEvent{Entry: entry, OldPath: p.path})
	for _, c := range children {
		old := p.path + strings.TrimPrefix(c.Path, entry.Path)
		w.handler.OnRename(ctx, models.RenameEvent{Entry: c, OldPath: old})
	}
}

// hiddenCreate ends a pending rename that moved an entry into a hidden
// folder such as .trash. New hidden folders are watched for such moves.
func (w *Watcher) hiddenCreate(fw *fsnotify.Watcher, abs, rel string) {
	if p, ok := w.popPendingNamed(time.Now(), path.Base(rel)); ok {
		w.paired[p.path] = time.Now()
		w.logger.Debug("watcher: moved to hidden folder", slog.String("old", p.path), slog.String("new", rel))
	}
	parent := path.Dir(rel)
	if parent == "." {
		parent = ""
	}
	if info, err := os.Lstat(abs); err == nil && info.IsDir() && !hidden(parent) {
		if err := fw.Add(abs); err != nil {
			w.logger.Warn("watcher: add hidden dir failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
	}
}

// popPendingNamed removes the oldest pending rename whose base name is name.
func (w *Watcher) popPendingNamed(now time.Time, name string) (pendingRename, bool) {
	w.dropExpired(now)
	for i, p := range w.pending {
		if path.Base(p.path) == name {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			return p, true
		}
	}
	return pendingRename{}, false
}

func (w *Watcher) popPending(now time.Time) (pendingRename, bool) {
	w.dropExpired(now)
	if len(w.pending) == 0 {
		return pendingRename{}, false
	}
	p := w.pending[0]
	w.pending = w.pending[1:]
	return p, true
}

// dropExpired forgets renames whose Create never came: the entry left the vault.
func (w *Watcher) dropExpired(now time.Time) {
	keep := w.pending[:0]
	for _, p := range w.pending {
		if now.Sub(p.at) <= w.pairWindow {
			keep = append(keep, p)
		} else {
			w.logger.Debug("watcher: moved out of vault", slog.String("path", p.path))
		}
	}
	w.pending = keep
	for path, at := range w.paired {
		if now.Sub(at) > w.pairWindow {
			delete(w.paired, path)
		}
	}
}

func (w *Watcher) rel(abs string) (string, bool) {
	rel, err := filepath.Rel(w.store.Root(), abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) forgetDirs(rel string) {
	for d := range w.dirs {
		if d == rel || strings.HasPrefix(d, rel+"/") {
			delete(w.dirs, d)
		}
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher. Hidden folders are watched without their contents.
func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, ok := w.rel(p)
		if ok && hidden(rel) {
			// only the folder itself, so moves into it are seen
			if err := fw.Add(p); err != nil {
				return err
			}
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			return err
		}
		if ok {
			w.dirs[rel] = true
		}
		return nil
	})
}

// hidden reports whether any element of the vault path starts with a dot.
// This covers .obsidian, .git and in-flight atomic writes.
func hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
