package casestore

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"loom/internal/types"
)

// Index keeps an in-memory listing of case summaries so the list-cases
// surface does not re-walk the tree on every request. A filesystem
// watcher on the cases directory marks the cache dirty whenever the
// pipeline (or anything else) touches it; the next read rebuilds.
type Index struct {
	store  *Store
	logger *zap.Logger

	mu      sync.Mutex
	cached  []types.CaseSummary
	dirty   bool
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewIndex builds the index and starts watching the cases directory.
// The index degrades to walk-per-read if the watcher cannot start.
func NewIndex(store *Store, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &Index{
		store:  store,
		logger: logger,
		dirty:  true,
		done:   make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("case index watcher unavailable, listing will re-walk", zap.Error(err))
		return idx
	}
	if err := watcher.Add(store.CasesDir()); err != nil {
		logger.Warn("case index watch failed, listing will re-walk", zap.Error(err))
		watcher.Close()
		return idx
	}

	idx.watcher = watcher
	go idx.watch()
	return idx
}

// watch marks the cache dirty on any event under the cases directory.
func (i *Index) watch() {
	for {
		select {
		case <-i.done:
			return
		case _, ok := <-i.watcher.Events:
			if !ok {
				return
			}
			i.mu.Lock()
			i.dirty = true
			i.mu.Unlock()
		case err, ok := <-i.watcher.Errors:
			if !ok {
				return
			}
			i.logger.Warn("case index watcher error", zap.Error(err))
		}
	}
}

// List returns the current case summaries, rebuilding from disk when the
// cache is dirty or the watcher is unavailable.
func (i *Index) List() ([]types.CaseSummary, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.watcher == nil || i.dirty {
		summaries, err := i.store.ListCases()
		if err != nil {
			return nil, err
		}
		i.cached = summaries
		i.dirty = false
	}
	return append([]types.CaseSummary(nil), i.cached...), nil
}

// Invalidate forces the next List to re-walk, for callers that change
// the tree through a path the watcher cannot see.
func (i *Index) Invalidate() {
	i.mu.Lock()
	i.dirty = true
	i.mu.Unlock()
}

// Close stops the watcher.
func (i *Index) Close() {
	close(i.done)
	if i.watcher != nil {
		i.watcher.Close()
	}
}
