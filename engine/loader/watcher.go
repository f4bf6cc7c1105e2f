package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-models/common"
	"github.com/Carmen-Shannon/oxy-models/engine/model"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the Watcher waits after the last file event before reloading.
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc receives the result of every load performed by a Watcher. Exactly one of m and err is non-nil.
// The callback owns m and must release the model it replaces.
type ReloadFunc func(m model.Model, err error)

// Watcher reloads a model whenever the model file, its material libraries or its textures change on disk.
type Watcher struct {
	loader   Loader
	path     string
	onReload ReloadFunc
	debounce time.Duration
	logger   *zap.Logger

	fs      *fsnotify.Watcher
	tracked map[string]struct{}
	dirs    map[string]struct{}
}

// WatcherOption is a function that configures a Watcher during construction.
type WatcherOption func(*Watcher)

// WithDebounce is an option builder that sets the quiet period before a reload.
//
// Parameters:
//   - d: the debounce duration
//
// Returns:
//   - WatcherOption: a function that applies the debounce option to a Watcher
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatcherLogger is an option builder that sets the logger for watch and reload events.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - WatcherOption: a function that applies the logger option to a Watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a Watcher for the model at path.
//
// Parameters:
//   - l: the loader used for every reload
//   - path: the model file path
//   - onReload: the callback receiving each load result
//   - options: a variadic list of WatcherOption functions
//
// Returns:
//   - *Watcher: the created watcher
//   - error: an error if the file system watcher could not be created
func NewWatcher(l Loader, path string, onReload ReloadFunc, options ...WatcherOption) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		loader:   l,
		path:     filepath.Clean(path),
		onReload: onReload,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		fs:       fs,
		tracked:  make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(w)
	}
	return w, nil
}

// Run performs the initial load, then reloads on every debounced change until ctx is cancelled.
// Directories are watched rather than files so editors that replace files on save are seen.
//
// Parameters:
//   - ctx: stops the watcher when cancelled
//
// Returns:
//   - error: ctx.Err() once cancelled, or a file system watcher error
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	w.reload(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case e, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if _, ok := w.tracked[filepath.Clean(e.Name)]; !ok {
				continue
			}
			w.logger.Debug("watched file changed", zap.String("file", e.Name), zap.Stringer("op", e.Op))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload(ctx)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher: %w", err)
		}
	}
}

// Tracked returns the files whose changes trigger a reload.
//
// Returns:
//   - []string: the tracked file paths
func (w *Watcher) Tracked() []string {
	out := make([]string, 0, len(w.tracked))
	for f := range w.tracked {
		out = append(out, f)
	}
	return out
}

func (w *Watcher) reload(ctx context.Context) {
	m, err := w.loader.Load(ctx, w.path)
	if err != nil {
		w.logger.Warn("reload failed", zap.String("path", w.path), zap.Error(err))
		deps := w.Tracked()
		if f := failedFile(err); f != "" {
			deps = append(deps, f)
		}
		w.track(deps)
		w.onReload(nil, err)
		return
	}
	w.logger.Info("model reloaded", zap.String("path", w.path), zap.Stringer("id", m.ID()))
	w.track(m.Dependencies())
	w.onReload(m, nil)
}

// failedFile returns the on-disk file a load error names, or "" when it names none.
func failedFile(err error) string {
	var texErr *common.TextureLoadError
	if errors.As(err, &texErr) && !strings.HasPrefix(texErr.Path, "embedded:") {
		return texErr.Path
	}
	var parseErr *common.AssetParseError
	if errors.As(err, &parseErr) {
		return parseErr.Path
	}
	return ""
}

// track replaces the tracked set with the model and deps. After a failed load deps holds the previous set
// plus the file that failed, so creating or fixing any of them triggers the next attempt.
func (w *Watcher) track(deps []string) {
	w.tracked = map[string]struct{}{w.path: {}}
	for _, d := range deps {
		w.tracked[filepath.Clean(d)] = struct{}{}
	}
	for f := range w.tracked {
		dir := filepath.Dir(f)
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.dirs[dir] = struct{}{}
	}
}
