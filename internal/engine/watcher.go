package engine

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stitchtool/stitch/internal/checksum"
)

// EventCallback is called after a watcher-driven change.
// kind is one of "patched", "clean", "removed".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the workspace root and re-patches
// files as they change until ctx is cancelled. It calls cb (if non-nil)
// after each processed file.
//
// Writing a patched file back triggers a new event for that file; the
// checksum guard recognises the content as the recorded post-patch state
// and reports it as "clean" instead of patching again. New directories
// created at runtime are added to the watch list. Rename events trigger a
// debounced reconciliation pass that prunes state for files no longer on
// disk and patches files that appeared.
func (e *Engine) Watch(ctx context.Context, root string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	e.logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			e.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			e.reconcile(cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						e.logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						e.logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Patch any matching files already in the new directory.
					e.patchNewDir(root, absPath, cb)
					continue
				}
			}

			// Only process patchable files from here on.
			if !e.store.Matches(absPath) {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				e.patchIfStale(rel, cb)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := e.db.DeleteFile(rel); delErr != nil {
					e.logger.Warn("watcher: prune failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				e.logger.Debug("watcher: removed", slog.String("path", rel))
				if cb != nil {
					cb("removed", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new path
				// will arrive as a separate Create event (if it stays within
				// a watched dir). We prune the old entry immediately and
				// schedule a short reconciliation pass to catch stragglers.
				if delErr := e.db.DeleteFile(rel); delErr != nil {
					e.logger.Warn("watcher: rename prune failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					e.logger.Debug("watcher: rename old pruned", slog.String("path", rel))
					if cb != nil {
						cb("removed", rel)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// patchIfStale patches rel unless its content already matches the recorded
// post-patch checksum. The guard keeps the watcher from reacting to its
// own writes.
func (e *Engine) patchIfStale(rel string, cb EventCallback) {
	data, readErr := e.store.Read(rel)
	if readErr != nil {
		e.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
		return
	}

	if row, err := e.db.GetFile(rel); err == nil && row.Checksum == checksum.Sum(data) {
		e.logger.Debug("watcher: already patched", slog.String("path", rel))
		if cb != nil {
			cb("clean", rel)
		}
		return
	}

	out, err := e.PatchFile(rel)
	if err != nil {
		e.logger.Warn("watcher: patch failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	kind := "clean"
	if out.Changed {
		kind = "patched"
	}
	e.logger.Debug("watcher: processed", slog.String("path", rel), slog.String("result", kind))
	if cb != nil {
		cb(kind, rel)
	}
}

// reconcile does a lightweight pass using batch lookups: prunes state for
// files without a counterpart on disk and patches files whose content
// differs from the recorded state.
func (e *Engine) reconcile(cb EventCallback) {
	checksums, err := e.db.AllChecksums()
	if err != nil {
		e.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := e.store.List("")
	if err != nil {
		e.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := e.db.DeleteFile(p); delErr == nil {
				e.logger.Debug("reconcile: pruned stale", slog.String("path", p))
				if cb != nil {
					cb("removed", p)
				}
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		e.patchIfStale(p, cb)
	}
}

// patchNewDir patches any matching files found in a newly created directory.
func (e *Engine) patchNewDir(root, dirPath string, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !e.store.Matches(path) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		e.patchIfStale(rel, cb)
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
