package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce collapses the burst of events editors produce when saving a file.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes of the config file.
type Watcher struct {
	path    string
	log     zerolog.Logger
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher starts watching path. The parent directory is watched, so the file may be
// replaced or created later.
func NewWatcher(path string, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{
		path:    filepath.Clean(path),
		log:     log,
		watcher: fw,
	}, nil
}

// Run calls fn once the file has been quiet for DefaultDebounce after a change, until ctx
// is done.
func (w *Watcher) Run(ctx context.Context, fn func()) {
	defer w.watcher.Close()
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceCall(ctx, DefaultDebounce, fn)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) debounceCall(ctx context.Context, delay time.Duration, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, func() {
		if ctx.Err() == nil {
			fn()
		}
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}

// Watch is NewWatcher followed by Run.
func Watch(ctx context.Context, path string, log zerolog.Logger, fn func()) error {
	w, err := NewWatcher(path, log)
	if err != nil {
		return err
	}
	w.Run(ctx, fn)
	return nil
}
