package heuristics

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"grouplock/internal/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Source serves the current profile and, once started, reloads it whenever the
// profile file changes. A file that fails to load leaves the previous profile
// in place.
type Source struct {
	path    string
	current atomic.Pointer[Profile]
	reloads atomic.Uint64

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	debounceDur time.Duration
	pending     time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewSource loads path (or the default profile when path is empty).
func NewSource(path string) (*Source, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Source{path: path, debounceDur: 200 * time.Millisecond}
	if path != "" {
		s.path = filepath.Clean(path)
	}
	s.current.Store(p)
	return s, nil
}

// Static returns a Source that always serves p.
func Static(p *Profile) *Source {
	s := &Source{}
	s.current.Store(p)
	return s
}

// Current returns the active profile. Callers must not mutate it.
func (s *Source) Current() *Profile {
	return s.current.Load()
}

// Reloads counts successful reloads since start.
func (s *Source) Reloads() uint64 { return s.reloads.Load() }

// Reload re-reads the profile file.
func (s *Source) Reload() error {
	if s.path == "" {
		return nil
	}
	p, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(p)
	s.reloads.Add(1)
	return nil
}

// Start watches the profile's directory. It is a no-op for a Source without a
// file or one already running.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors replace files by rename, so watch the directory.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return err
	}
	s.watcher = w
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true

	logging.Get(logging.CategoryHeuristics).Info("watching profile", zap.String("path", s.path))
	go s.run(ctx, w, s.stopCh, s.doneCh)
	return nil
}

// Stop ends the watch and waits for the loop to exit.
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh, w := s.stopCh, s.doneCh, s.watcher
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := w.Close(); err != nil {
		logging.Get(logging.CategoryHeuristics).Warn("error closing watcher", zap.Error(err))
	}
}

func (s *Source) run(ctx context.Context, w *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	log := logging.Get(logging.CategoryHeuristics)
	defer s.release(w, stopCh)

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.pending = time.Now().Add(s.debounceDur)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error", zap.Error(err))
		case now := <-tick.C:
			if s.pending.IsZero() || now.Before(s.pending) {
				continue
			}
			s.pending = time.Time{}
			if err := s.Reload(); err != nil {
				log.Warn("profile reload failed, keeping previous profile", zap.Error(err))
				continue
			}
			log.Info("profile reloaded", zap.String("path", s.path))
		}
	}
}

// release marks the watch stopped when the loop ended by itself (ctx done or
// watcher closed) so Start can be called again. After Stop it does nothing.
func (s *Source) release(w *fsnotify.Watcher, stopCh chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.stopCh != stopCh {
		return
	}
	s.running = false
	s.pending = time.Time{}
	if err := w.Close(); err != nil {
		logging.Get(logging.CategoryHeuristics).Warn("error closing watcher", zap.Error(err))
	}
}
