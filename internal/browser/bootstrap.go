package browser

import (
	"context"
	"fmt"
	"time"
)

// Target is the remote messenger being driven.
type Target struct {
	BaseURL      string // site root, with trailing slash
	CookieDomain string
}

// ConversationURL returns the thread address for chatID, or the inbox when
// chatID is empty.
func (t Target) ConversationURL(chatID string) string {
	if chatID == "" {
		return t.BaseURL + "messages"
	}
	return t.BaseURL + "messages/t/" + chatID
}

// Waits are the fixed pauses taken while a session is prepared.
type Waits struct {
	Landing time.Duration
	Thread  time.Duration
}

// Logf receives progress lines for the owning task's log.
type Logf func(format string, args ...any)

// Setup describes how to prepare a session for a conversation.
type Setup struct {
	Launcher Launcher
	Options  LaunchOptions
	Target   Target
	Waits    Waits
	Cookies  string
	ChatID   string
	Log      Logf
}

// Open launches a browser, loads the site root, injects cookies and opens the
// conversation. The browser steps themselves run to completion even when ctx
// is cancelled; cancellation is observed during the waits, in which case the
// session is closed and ctx.Err is returned.
func Open(ctx context.Context, st Setup) (Session, error) {
	logf := st.Log
	if logf == nil {
		logf = func(string, ...any) {}
	}
	op := context.WithoutCancel(ctx)

	logf("Setting up browser...")
	s, err := st.Launcher.Open(op, st.Options)
	if err != nil {
		return nil, err
	}
	logf("Browser setup completed")

	fail := func(err error) (Session, error) {
		_ = s.Close()
		return nil, err
	}

	if err := s.Navigate(op, st.Target.BaseURL); err != nil {
		return fail(fmt.Errorf("open site root: %w", err))
	}
	if !Sleep(ctx, st.Waits.Landing) {
		return fail(ctx.Err())
	}

	if st.Cookies != "" {
		rep := InjectCookies(op, s, st.Cookies, st.Target.CookieDomain)
		logf("Injected %d cookies (%d failed)", rep.Added, rep.Failed)
	}

	url := st.Target.ConversationURL(st.ChatID)
	logf("Opening conversation %s", url)
	if err := s.Navigate(op, url); err != nil {
		return fail(fmt.Errorf("open conversation: %w", err))
	}
	if !Sleep(ctx, st.Waits.Thread) {
		return fail(ctx.Err())
	}
	return s, nil
}

// Sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
