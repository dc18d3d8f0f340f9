package config

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"

	"chunkvault/internal/logging"
)

// ReloadFunc is called with the config file's path on every write/create
// event. Returning an error only logs; the watcher keeps running.
// Non-hot-reloadable fields (heartbeat interval, rate limits, chunk size)
// are read once at startup and never affected by a reload; an operator
// changing those requires a restart.
type ReloadFunc func(path string) error

// WatchFile starts watching path and calls reload on every write/create
// event. Call Close to stop: one watcher goroutine, Events/Errors fan-in,
// idempotent Close.
func WatchFile(path string, logger *slog.Logger, reload ReloadFunc) (*FileWatcher, error) {
	logger = logging.Default(logger).With("component", "config", "part", "watcher")

	abs, err := absPath(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := w.Add(abs); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("config: watch %s: %w", abs, err)
	}

	fw := &FileWatcher{
		watcher: w,
		path:    abs,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go fw.loop(reload)
	return fw, nil
}

// FileWatcher is a running config file watch. The zero value is not usable;
// obtain one via WatchFile.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func (fw *FileWatcher) loop(reload ReloadFunc) {
	defer close(fw.done)
	for {
		select {
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := reload(fw.path); err != nil {
				fw.logger.Error("reload config", "path", fw.path, "error", err)
				continue
			}
			fw.logger.Info("reloaded config", "path", fw.path)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit. Safe to
// call more than once.
func (fw *FileWatcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		err = fw.watcher.Close()
		<-fw.done
	})
	return err
}
