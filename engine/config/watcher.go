package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/penumbra/engine/core"
)

// Watcher reloads a config file whenever it changes on disk and publishes
// every valid result on Updates. Invalid files are logged and skipped; the
// last good config stays in effect.
type Watcher struct {
	path     string
	fsnotify *fsnotify.Watcher

	updates chan Config
	errors  chan error
	done    chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors often replace the file instead of writing it, so watch the directory.
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		fsnotify: fsWatch,
		updates:  make(chan Config, 1),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

func (w *Watcher) Updates() <-chan Config {
	return w.updates
}

func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsnotify.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) start() {
	defer w.wg.Done()
	defer close(w.updates)
	defer close(w.errors)

	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				core.LogWarn("ignoring config change: %s", err)
				w.publishError(err)
				continue
			}
			core.LogInfo("config %s reloaded", w.path)
			w.publish(cfg)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())
			w.publishError(err)

		case <-w.done:
			return
		}
	}
}

// publish keeps only the newest config when the consumer lags behind.
func (w *Watcher) publish(cfg Config) {
	for {
		select {
		case w.updates <- cfg:
			return
		case <-w.done:
			return
		default:
			select {
			case <-w.updates:
			default:
			}
		}
	}
}

func (w *Watcher) publishError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}
