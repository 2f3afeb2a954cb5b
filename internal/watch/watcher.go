package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"songlens/internal/audio"
	"songlens/internal/logging"
	"songlens/internal/worker"
)

// Handler receives each debounced group of audio paths. Calls are
// serialized; events keep being collected while a handler runs.
type Handler func(ctx context.Context, paths []string)

// Watcher observes a single directory.
type Watcher struct {
	dir      string
	debounce time.Duration
	handler  Handler
	logger   *slog.Logger
}

// New creates a watcher for dir.
func New(dir string, debounce time.Duration, handler Handler, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 1500 * time.Millisecond
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		handler:  handler,
		logger:   logging.NewComponentLogger(logger, "watch"),
	}
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("stat watch dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch path %s is not a directory", w.dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	groups := worker.NewMailbox[[]string](ctx.Done())
	handlerDone := make(chan struct{})
	go func() {
		defer close(handlerDone)
		for paths := range groups.C() {
			w.handler(ctx, paths)
		}
	}()
	defer func() {
		groups.Close()
		<-handlerDone
	}()

	w.logger.Info("watching drop folder",
		logging.String(logging.FieldEventType, "watch_start"),
		logging.String("dir", w.dir),
		logging.Duration("debounce", w.debounce),
	)

	pending := make(map[string]struct{})
	var lastEvent time.Time
	tick := time.NewTicker(w.debounce / 4)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			pending[event.Name] = struct{}{}
			lastEvent = time.Now()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some new files may be missed"),
			)
		case <-tick.C:
			if len(pending) == 0 || time.Since(lastEvent) < w.debounce {
				continue
			}
			if paths := w.ready(pending); len(paths) > 0 {
				w.logger.Info("new audio files detected",
					logging.String(logging.FieldEventType, "watch_batch"),
					logging.Int("files", len(paths)),
				)
				groups.Push(paths)
			}
			pending = make(map[string]struct{})
		}
	}
}

// ready keeps the pending paths that are regular audio files.
func (w *Watcher) ready(pending map[string]struct{}) []string {
	out := make([]string, 0, len(pending))
	for p := range pending {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			continue
		}
		if !audio.IsAudioFile(p) {
			w.logger.Debug("ignoring non-audio file", logging.String("path", p))
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
