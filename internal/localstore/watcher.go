package localstore

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the manager when the JSON state file is rewritten by
// another process. Invalid content is rejected by Reload, so an external
// writer cannot corrupt the in-memory snapshot.
type Watcher struct {
	manager   *Manager
	inner     *fsnotify.Watcher
	path      string
	logger    Logger
	closeOnce sync.Once
	done      chan struct{}
}

// WatchFile starts watching the directory holding path. Watching the
// directory rather than the file survives atomic rename-replace writes.
func WatchFile(manager *Manager, path string, logger Logger) (*Watcher, error) {
	if manager == nil {
		return nil, fmt.Errorf("manager is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := inner.Add(filepath.Dir(abs)); err != nil {
		_ = inner.Close()
		return nil, err
	}
	w := &Watcher{
		manager: manager,
		inner:   inner,
		path:    abs,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.run(inner.Events, inner.Errors)
	return w, nil
}

func (w *Watcher) run(events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logf("state file watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.matches(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if err := w.manager.Reload(); err != nil {
		w.logf("external change to %s rejected: %v", w.path, err)
		return
	}
	w.logf("reloaded local state after external change to %s", w.path)
}

func (w *Watcher) matches(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return abs == w.path
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.inner.Close()
	})
	return err
}

func (w *Watcher) logf(format string, args ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Printf(format, args...)
}
