package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"procwatch/internal/db"
	"procwatch/internal/models"
)

type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher polls a directory tree and reports created, modified and
// deleted files between polls. Polling keeps it portable and dependency
// free; at the configured interval the walk is cheap for the small trees
// this daemon watches. The first poll only records the baseline.
type Watcher struct {
	root string
	repo *db.Repository
	log  *slog.Logger
	prev map[string]fileState
}

func New(root string, repo *db.Repository, logger *slog.Logger) *Watcher {
	return &Watcher{root: root, repo: repo, log: logger}
}

func (w *Watcher) Poll(ctx context.Context) {
	current := w.scan()
	if w.prev == nil {
		w.prev = current
		w.log.Info("file watcher baseline recorded", "root", w.root, "files", len(current))
		return
	}

	now := time.Now().UTC()
	for path, st := range current {
		old, existed := w.prev[path]
		switch {
		case !existed:
			w.emit(ctx, models.FileEvent{TS: now, Event: "created", Path: path})
		case old.modTime != st.modTime || old.size != st.size:
			w.emit(ctx, models.FileEvent{TS: now, Event: "modified", Path: path})
		}
	}
	for path := range w.prev {
		if _, ok := current[path]; !ok {
			w.emit(ctx, models.FileEvent{TS: now, Event: "deleted", Path: path})
		}
	}
	w.prev = current
}

func (w *Watcher) scan() map[string]fileState {
	states := map[string]fileState{}
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		states[path] = fileState{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return states
}

func (w *Watcher) emit(ctx context.Context, e models.FileEvent) {
	w.log.Info("file event", "event", e.Event, "path", e.Path)
	if w.repo != nil {
		if err := w.repo.InsertFileEvent(ctx, e); err != nil {
			w.log.Error("insert file event", "err", err)
		}
	}
}
