// Package browsertest provides in-memory fakes of browser.Launcher and
// browser.Session for tests that must not start a real browser.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"grouplock/internal/browser"
)

// Launcher is a fake browser.Launcher.
type Launcher struct {
	// Err, when set, is returned (wrapped in ErrBrowserUnavailable) by Open.
	Err error
	// NewSession builds the session returned by Open. Defaults to NewSession.
	NewSession func() *Session

	opened atomic.Int64

	mu       sync.Mutex
	sessions []*Session
}

// Open implements browser.Launcher.
func (l *Launcher) Open(ctx context.Context, opts browser.LaunchOptions) (browser.Session, error) {
	if l.Err != nil {
		return nil, fmt.Errorf("%w: %w", browser.ErrBrowserUnavailable, l.Err)
	}
	n := l.opened.Add(1)
	var s *Session
	if l.NewSession != nil {
		s = l.NewSession()
	} else {
		s = NewSession()
	}
	if s.id == "" {
		s.id = fmt.Sprintf("fake-%d", n)
	}
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return s, nil
}

// Opened reports how many sessions were launched.
func (l *Launcher) Opened() int { return int(l.opened.Load()) }

// Sessions returns every launched session.
func (l *Launcher) Sessions() []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Session(nil), l.sessions...)
}

// Session is a fake browser.Session that records what was asked of it.
type Session struct {
	id string

	// EvalFunc answers Eval calls. Nil means every script succeeds with no
	// result.
	EvalFunc func(js string, arg any, out any) error
	// TitleText is returned by Title.
	TitleText string
	// RejectCookie makes AddCookie fail for the named cookie.
	RejectCookie string

	mu      sync.Mutex
	visited []string
	cookies []browser.Cookie
	evals   int
	closed  int
}

// NewSession returns an empty fake session.
func NewSession() *Session { return &Session{} }

func (s *Session) ID() string { return s.id }

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed > 0 {
		return errors.New("session closed")
	}
	s.visited = append(s.visited, url)
	return nil
}

func (s *Session) Eval(ctx context.Context, js string, arg any, out any) error {
	s.mu.Lock()
	s.evals++
	fn := s.EvalFunc
	s.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(js, arg, out)
}

func (s *Session) AddCookie(ctx context.Context, c browser.Cookie) error {
	if s.RejectCookie != "" && c.Name == s.RejectCookie {
		return errors.New("cookie rejected")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = append(s.cookies, c)
	return nil
}

func (s *Session) Title(ctx context.Context) (string, error) { return s.TitleText, nil }

func (s *Session) URL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.visited) == 0 {
		return "about:blank", nil
	}
	return s.visited[len(s.visited)-1], nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Visited returns navigated URLs in order.
func (s *Session) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

// Cookies returns the cookies that were accepted.
func (s *Session) Cookies() []browser.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]browser.Cookie(nil), s.cookies...)
}

// Closed reports how many times Close was called.
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Evals reports how many scripts were evaluated.
func (s *Session) Evals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evals
}
