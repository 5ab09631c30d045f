package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher re-reads the backing file when it changes and passes the fresh
// Config to every OnReload callback. Only what a callback applies takes
// effect; components that copied their settings at construction keep the
// values they were built with.
type Watcher struct {
	path      string
	logger    *logrus.Logger
	mu        sync.RWMutex
	cfg       *Config
	callbacks []func(*Config)
	fsw       *fsnotify.Watcher
	done      chan struct{}
}

// NewWatcher loads path once and begins watching it for changes.
func NewWatcher(path string, logger *logrus.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:   path,
		logger: logger,
		cfg:    cfg,
		fsw:    fsw,
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.WithError(err).Warn("config reload failed, keeping previous configuration")
				continue
			}
			w.mu.Lock()
			w.cfg = cfg
			callbacks := append([]func(*Config){}, w.callbacks...)
			w.mu.Unlock()
			for _, cb := range callbacks {
				cb(cfg)
			}
			w.logger.Info("configuration reloaded")
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("config watcher error")
		case <-w.done:
			return
		}
	}
}

// OnReload registers fn to run after every successful reload, with the
// fresh configuration. Callbacks run on the watcher goroutine and must
// not block.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

// Current returns the most recently loaded configuration snapshot.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Close stops the watcher goroutine and releases the underlying fsnotify
// watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
