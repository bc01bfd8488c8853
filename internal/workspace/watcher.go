package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fluxspace/spacesync/internal/hierarchy"
)

// SnapshotWatcher invalidates the cached private-space tree when
// another client rewrites the persisted snapshot file. Nothing else
// guards two processes sharing one snapshot, so the watcher is the only
// signal that the durable copy moved underneath the cache.
type SnapshotWatcher struct {
	store    *Store
	path     string
	logger   hierarchy.Logger
	debounce time.Duration
}

func NewSnapshotWatcher(store *Store, path string, logger hierarchy.Logger) (*SnapshotWatcher, error) {
	if store == nil || path == "" {
		return nil, hierarchy.ErrInvalidInput
	}
	return &SnapshotWatcher{
		store:    store,
		path:     filepath.Clean(path),
		logger:   logger,
		debounce: 100 * time.Millisecond,
	}, nil
}

// Watch blocks until ctx is done, invalidating the private-space cache
// whenever the snapshot file changes. The parent directory is watched
// rather than the file itself because atomic saves replace the file via
// rename.
func (w *SnapshotWatcher) Watch(ctx context.Context) error {
	if w == nil {
		return hierarchy.ErrInvalidInput
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.handleChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logf("snapshot watch error: %v", err)
		}
	}
}

// handleChange drops the cached private tree unless the write was our
// own write-through save, recognized by its payload digest.
func (w *SnapshotWatcher) handleChange() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		w.logf("snapshot changed but is unreadable: %v", err)
		return
	}
	if snapshotDigest(data) == w.store.LastSnapshotDigest() {
		return
	}
	privateID := w.store.PrivateSpaceID()
	w.store.InvalidateSpace(privateID)
	w.logf("snapshot for %s rewritten externally, cache invalidated", privateID)
}

func (w *SnapshotWatcher) logf(format string, args ...any) {
	if w == nil || w.logger == nil {
		return
	}
	w.logger.Printf(format, args...)
}
