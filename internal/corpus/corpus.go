// Package corpus loads a directory of text files into the engine and can
// keep the engine in sync with the directory as files change.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// Engine is the part of indexer.Engine the loader drives.
type Engine interface {
	AddDocument(ctx context.Context, title, body string) (store.Document, error)
	RemoveDocument(ctx context.Context, id uint64) error
	GetDocument(id uint64) (store.Document, error)
	FindByHash(hash string) (uint64, bool)
}

// ChangeType describes what a file event did to the collection.
type ChangeType int

const (
	ChangeNone ChangeType = iota
	ChangeAdded
	ChangeReplaced
	ChangeRemoved
)

// Loader maps files to documents. A file's document is replaced when the
// file's content changes and removed when the file is removed or renamed.
type Loader struct {
	engine     Engine
	extensions map[string]bool
	mu         sync.Mutex
	byPath     map[string]uint64
	byID       map[uint64]string
	logger     *slog.Logger
}

// NewLoader creates a Loader accepting files with the given extensions
// (case-insensitive, with leading dot). No extensions accepts every file.
func NewLoader(engine Engine, extensions []string) *Loader {
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}
	return &Loader{
		engine:     engine,
		extensions: exts,
		byPath:     make(map[string]uint64),
		byID:       make(map[uint64]string),
		logger:     slog.Default().With("component", "corpus"),
	}
}

// Title derives a document title from a file path: the base name without
// its extension.
func Title(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (l *Loader) accepts(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	if len(l.extensions) == 0 {
		return true
	}
	return l.extensions[strings.ToLower(filepath.Ext(path))]
}

// LoadDir adds every accepted file under dir and returns how many were
// added. Hidden files and directories are skipped.
func (l *Loader) LoadDir(ctx context.Context, dir string) (int, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if l.accepts(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking corpus directory %s: %w", dir, err)
	}

	added := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		change, err := l.upsert(ctx, path)
		if err != nil {
			return added, err
		}
		if change != ChangeNone {
			added++
		}
	}
	l.logger.Info("corpus loaded", "dir", dir, "documents", added)
	return added, nil
}

// DocumentID returns the id of the document loaded from path.
func (l *Loader) DocumentID(path string) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byPath[filepath.Clean(path)]
	return id, ok
}

func (l *Loader) upsert(ctx context.Context, path string) (ChangeType, error) {
	path = filepath.Clean(path)
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l.remove(ctx, path)
		}
		return ChangeNone, fmt.Errorf("reading %s: %w", path, err)
	}
	hash := store.ContentHash(string(body))

	l.mu.Lock()
	defer l.mu.Unlock()
	old, replacing := l.byPath[path]
	if replacing {
		if doc, err := l.engine.GetDocument(old); err == nil && doc.ContentHash == hash {
			return ChangeNone, nil
		}
	} else if id, ok := l.engine.FindByHash(hash); ok {
		// Stored by an earlier run with a persistent backend.
		if _, claimed := l.byID[id]; !claimed {
			l.track(path, id)
			l.logger.Debug("file already stored", "path", path, "doc_id", id)
			return ChangeNone, nil
		}
	}

	// The new document goes in before the old one is removed, so a failed
	// add leaves the previous version searchable.
	doc, err := l.engine.AddDocument(ctx, Title(path), string(body))
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			l.logger.Info("skipping duplicate file", "path", path, "error", err)
			return ChangeNone, nil
		}
		return ChangeNone, fmt.Errorf("adding %s: %w", path, err)
	}
	if replacing {
		delete(l.byID, old)
	}
	l.track(path, doc.ID)
	if replacing {
		if err := l.engine.RemoveDocument(ctx, old); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return ChangeReplaced, fmt.Errorf("removing previous version of %s: %w", path, err)
		}
		l.logger.Debug("file reindexed", "path", path, "doc_id", doc.ID, "previous_id", old)
		return ChangeReplaced, nil
	}
	l.logger.Debug("file indexed", "path", path, "doc_id", doc.ID, "length", doc.Length)
	return ChangeAdded, nil
}

func (l *Loader) track(path string, id uint64) {
	l.byPath[path] = id
	l.byID[id] = path
}

func (l *Loader) remove(ctx context.Context, path string) (ChangeType, error) {
	path = filepath.Clean(path)
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byPath[path]
	if !ok {
		return ChangeNone, nil
	}
	delete(l.byPath, path)
	delete(l.byID, id)
	if err := l.engine.RemoveDocument(ctx, id); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return ChangeNone, fmt.Errorf("removing %s: %w", path, err)
	}
	l.logger.Debug("file removed", "path", path, "doc_id", id)
	return ChangeRemoved, nil
}
