// Package watch batches file system changes under a set of directory trees.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 200 * time.Millisecond

// Handler receives the sorted, de-duplicated paths changed since the last batch.
type Handler func(ctx context.Context, paths []string)

// Watcher watches directory trees recursively.
type Watcher struct {
	fw       *fsnotify.Watcher
	debounce time.Duration
	match    func(path string) bool
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter limits delivered paths to those for which match returns true.
func WithFilter(match func(path string) bool) Option {
	return func(w *Watcher) { w.match = match }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New registers every directory under roots. Roots that do not exist are
// skipped with a warning.
func New(roots []string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fw:       fw,
		debounce: DefaultDebounce,
		match:    func(string) bool { return true },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, root := range roots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			w.logger.Warn("watch: root missing", slog.String("root", root))
			continue
		}
		if err := addDirsRecursive(fw, root); err != nil {
			_ = fw.Close()
			return nil, err
		}
		w.logger.Info("watch: started", slog.String("root", root))
	}
	return w, nil
}

// Run delivers batches to h until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	defer w.fw.Close()

	pending := map[string]struct{}{}
	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			fire = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watch: stopped")
			return nil

		case <-fire:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			clear(pending)
			h(ctx, paths)

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addDirsRecursive(w.fw, ev.Name); err != nil {
						w.logger.Warn("watch: add new dir failed",
							slog.String("path", ev.Name), slog.String("error", err.Error()))
					}
					continue
				}
			}
			if ev.Op == fsnotify.Chmod || !w.match(ev.Name) {
				continue
			}
			w.logger.Debug("watch: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			pending[ev.Name] = struct{}{}
			schedule()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch: error", slog.String("error", err.Error()))
		}
	}
}

func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
