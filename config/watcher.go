package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"go.igtrack.org/tracking/logging"
	"go.igtrack.org/tracking/utils"
)

// unreadableWarnInterval spaces out warnings about broken saves; editors often write a file in
// several steps.
const unreadableWarnInterval = 5 * time.Second

// Watcher re-reads a config file whenever it changes and publishes every config that reads and
// validates cleanly. Broken intermediate saves are logged and skipped.
type Watcher struct {
	path    string
	logger  logging.Logger
	fs      *fsnotify.Watcher
	out     chan *Config
	workers utils.StoppableWorkers
	warn    rate.Sometimes
}

// NewWatcher starts watching path. The directory is watched rather than the file so editors that
// replace the file on save are followed.
func NewWatcher(path string, logger logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file watcher")
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		return nil, errors.Wrapf(multiCloseWatcher(err, fsWatcher), "watching %q", abs)
	}
	w := &Watcher{
		path:   abs,
		logger: logger,
		fs:     fsWatcher,
		out:    make(chan *Config, 1),
		warn:   rate.Sometimes{First: 1, Interval: unreadableWarnInterval},
	}
	w.workers = utils.NewStoppableWorkers(w.run)
	return w, nil
}

func multiCloseWatcher(err error, fsWatcher *fsnotify.Watcher) error {
	if closeErr := fsWatcher.Close(); closeErr != nil {
		return errors.Wrapf(err, "also failed to close watcher: %v", closeErr)
	}
	return err
}

// Config returns the channel new configs are published on. It is closed by Close.
func (w *Watcher) Config() <-chan *Config {
	return w.out
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.out)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watcher error", "error", err)
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Read(ctx, w.path, w.logger)
			if err != nil {
				w.warn.Do(func() {
					w.logger.Warnw("ignoring unreadable config change", "path", w.path, "error", err)
				})
				w.logger.Debugw("unreadable config change", "error", err)
				continue
			}
			select {
			case <-w.out:
			default:
			}
			select {
			case w.out <- cfg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.workers.Stop()
	return w.fs.Close()
}
