package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/ignore"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Watcher keeps a directory tree in sync with the vector store: changed
// files are re-ingested and removed files have their chunks deleted.
// Events are coalesced per path and applied after a quiet period.
type Watcher struct {
	pipeline *Pipeline
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	matcher  *ignore.Matcher
	logger   *zap.Logger
}

type change int

const (
	changeUpsert change = iota
	changeRemove
)

// NewWatcher creates a watcher for root. debounce <= 0 uses 500ms.
func (p *Pipeline) NewWatcher(root string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	root = SourcePath(root)
	matcher, err := p.matcher(root)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	w := &Watcher{
		pipeline: p,
		root:     root,
		debounce: debounce,
		watcher:  fw,
		matcher:  matcher,
		logger:   p.logger.With(zap.String("watch_root", root)),
	}
	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			rel, _ := filepath.Rel(w.root, path)
			if ignore.DefaultSkipDirs[d.Name()] || w.matcher.Excluded(rel, true) {
				return filepath.SkipDir
			}
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	pending := make(map[string]change)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event, pending)
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			for path, c := range pending {
				w.apply(ctx, path, c)
				delete(pending, path)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event, pending map[string]change) {
	path := event.Name
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("watching new directory", zap.String("path", path), zap.Error(err))
			}
			return
		}
	}

	if !w.pipeline.Supports(path) || w.matcher.Excluded(rel, false) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		pending[path] = changeRemove
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		pending[path] = changeUpsert
	}
}

func (w *Watcher) apply(ctx context.Context, path string, c change) {
	switch c {
	case changeUpsert:
		if _, err := w.pipeline.IngestFile(ctx, path); err != nil {
			w.logger.Warn("re-ingest failed", zap.String("path", path), zap.Error(err))
		}
	case changeRemove:
		n, err := w.pipeline.store.DeleteByMetadata(ctx, vectorstore.Filter{chunker.KeySource: path})
		if err != nil {
			w.logger.Warn("removing chunks failed", zap.String("path", path), zap.Error(err))
		} else {
			w.logger.Info("removed chunks of deleted file", zap.String("path", path), zap.Int("deleted", n))
		}
	}
}
