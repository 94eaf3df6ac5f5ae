package main

import (
	"os"
	"sync"
	"time"

	"github.com/cours-de-latin/cgrule"
	"github.com/cours-de-latin/cgrule/adapter"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// grammarStore holds the currently active compiled grammar and
// optionally reloads it when the backing file changes, the way the
// teacher's am.ConfigWatcher debounces fsnotify events before firing a
// reload callback.
type grammarStore struct {
	path string
	log  *zap.Logger

	mu      sync.RWMutex
	current *cgrule.Grammar

	watcher *fsnotify.Watcher
	timer   *time.Timer
}

func newGrammarStore(path string, log *zap.Logger) (*grammarStore, error) {
	s := &grammarStore{path: path, log: log}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *grammarStore) get() *cgrule.Grammar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *grammarStore) reload() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	g, err := adapter.DecodeGrammar(f)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = g
	s.mu.Unlock()
	return nil
}

func (s *grammarStore) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.path); err != nil {
		w.Close()
		return err
	}
	s.watcher = w

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.debouncedReload()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("grammar watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// debouncedReload coalesces bursts of filesystem events (editors often
// write a file more than once per save) into a single reload 250ms
// after the last event.
func (s *grammarStore) debouncedReload() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(250*time.Millisecond, func() {
		if err := s.reload(); err != nil {
			s.log.Warn("grammar reload failed", zap.Error(err))
			return
		}
		s.log.Info("grammar reloaded", zap.String("path", s.path))
	})
	s.mu.Unlock()
}

func (s *grammarStore) close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}
