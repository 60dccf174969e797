package examples

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Corpus whenever its backing file changes on disk, so
// hand edits to the examples file apply without a restart.
type Watcher struct {
	corpus   *Corpus
	path     string
	logger   *slog.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

func NewWatcher(corpus *Corpus, path string, logger *slog.Logger) (*Watcher, error) {
	if corpus == nil {
		return nil, fmt.Errorf("corpus is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve examples path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create examples watcher: %w", err)
	}
	// Watch the directory: atomic rewrites replace the file itself.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch examples dir: %w", err)
	}
	return &Watcher{
		corpus:   corpus,
		path:     abs,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		watcher:  w,
	}, nil
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "examples watcher error", slog.Any("error", err))
		case <-timer.C:
			if err := w.corpus.Reload(ctx); err != nil {
				w.logger.WarnContext(ctx, "examples reload failed", slog.Any("error", err))
				continue
			}
			w.logger.InfoContext(ctx, "examples reloaded",
				slog.String("path", w.path),
				slog.Int("examples", len(w.corpus.Examples())),
			)
		}
	}
}
