package assets

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch flushes the listing snapshot whenever something under the root
// changes. It blocks until ctx is cancelled.
func (r *Resolver) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	// fsnotify is not recursive
	err = filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return w.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", r.root, err)
	}
	slog.Info("watching sound root", "root", r.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				if fi, err := os.Stat(evt.Name); err == nil && fi.IsDir() {
					_ = w.Add(evt.Name)
				}
			}
			slog.Debug("sound root changed", "path", evt.Name, "op", evt.Op.String())
			r.Invalidate()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("sound root watcher error", "error", err)
		}
	}
}
