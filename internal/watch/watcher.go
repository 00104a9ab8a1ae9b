// Package watch reports changes to schedule and config files.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Config configures the file watcher.
type Config struct {
	// Paths are the files to watch. Their parent directories are watched so
	// that editors replacing a file by rename are noticed.
	Paths []string

	// Debounce is the quiet period after the last write before an event is
	// delivered. Defaults to 250ms if zero.
	Debounce time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c Config) debounceOrDefault() time.Duration {
	if c.Debounce > 0 {
		return c.Debounce
	}
	return defaultDebounce
}

// Event reports that a watched file changed.
type Event struct {
	Path string
}

// Watcher delivers debounced change events for a set of files.
type Watcher struct {
	cfg     Config
	logger  *slog.Logger
	files   []string
	events  chan Event
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a watcher. Call Start to begin watching.
func New(cfg Config) *Watcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	files := make([]string, 0, len(cfg.Paths))
	for _, p := range cfg.Paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		files = append(files, filepath.Clean(p))
	}
	return &Watcher{
		cfg:     cfg,
		logger:  logger,
		files:   files,
		events:  make(chan Event, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start registers the watches and begins delivering events. Only the first
// call has an effect.
func (w *Watcher) Start(ctx context.Context) error {
	var err error
	w.startOnce.Do(func() {
		var fw *fsnotify.Watcher
		fw, err = fsnotify.NewWatcher()
		if err != nil {
			err = fmt.Errorf("watch: creating watcher: %w", err)
			return
		}

		var dirs []string
		for _, f := range w.files {
			if dir := filepath.Dir(f); !slices.Contains(dirs, dir) {
				dirs = append(dirs, dir)
			}
		}
		for _, dir := range dirs {
			if err = fw.Add(dir); err != nil {
				_ = fw.Close()
				err = fmt.Errorf("watch: adding %s: %w", dir, err)
				return
			}
		}

		w.started.Store(true)
		go w.loop(ctx, fw)
	})
	return err
}

// Events returns the channel of change events. An event is dropped when
// the previous one has not been received yet.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher. Safe to call multiple times and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer close(w.stopped)
	defer fw.Close()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			pending = filepath.Clean(ev.Name)
			if timer == nil {
				timer = time.NewTimer(w.cfg.debounceOrDefault())
			} else {
				timer.Reset(w.cfg.debounceOrDefault())
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			select {
			case w.events <- Event{Path: pending}:
			default:
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch: watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return slices.Contains(w.files, filepath.Clean(ev.Name))
}
