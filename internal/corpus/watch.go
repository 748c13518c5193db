package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch applies file changes under dir to the engine until ctx is
// cancelled. Directories created while watching are watched too.
func (l *Loader) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTree(watcher, dir); err != nil {
		return err
	}
	l.logger.Info("watching corpus directory", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						l.logger.Error("watching new directory failed", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if _, err := l.handleEvent(ctx, event); err != nil {
				l.logger.Error("applying file change failed", "path", event.Name, "op", event.Op.String(), "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("watcher error", "error", err)
		}
	}
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// handleEvent maps one fsnotify event to a collection change. Chmod,
// directories and files the loader does not accept are ignored.
func (l *Loader) handleEvent(ctx context.Context, event fsnotify.Event) (ChangeType, error) {
	if !l.accepts(event.Name) {
		return ChangeNone, nil
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return l.remove(ctx, event.Name)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return ChangeNone, nil
		}
		return l.upsert(ctx, event.Name)
	default:
		return ChangeNone, nil
	}
}
