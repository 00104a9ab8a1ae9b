package app

import (
	"context"
	"time"

	"github.com/flemzord/crongen/internal/watch"
)

// WatchParams configures Watch.
type WatchParams struct {
	// Paths are the files whose changes trigger a run.
	Paths []string

	// Debounce defaults to the watcher's default.
	Debounce time.Duration
}

// Watch calls fn once, then again after every change to one of the watched
// files, until ctx is done. Failures of fn are logged and do not stop the
// loop.
func Watch(ctx context.Context, p Params, wp WatchParams, fn func(context.Context) error) error {
	p = p.withDefaults()
	logger := p.Logger

	w := watch.New(watch.Config{Paths: wp.Paths, Debounce: wp.Debounce, Logger: logger})
	if err := w.Start(ctx); err != nil {
		return &Error{Kind: KindIO, Err: err}
	}
	defer w.Stop()

	run := func() {
		if err := fn(ctx); err != nil {
			logger.Error("compile failed", "error", err)
		}
	}
	run()

	logger.Info("watching for changes", "paths", wp.Paths)
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case evt := <-w.Events():
			logger.Info("file changed, recompiling", "path", evt.Path)
			run()
		}
	}
}
