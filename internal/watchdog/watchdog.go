// Package watchdog polls a conversation's displayed name and restores it when
// it drifts from the locked value.
package watchdog

import (
	"context"
	"errors"
	"time"

	"grouplock/internal/browser"
	"grouplock/internal/heuristics"
	"grouplock/internal/locator"
	"grouplock/internal/logging"
	"grouplock/internal/runstate"

	"go.uber.org/zap"
)

// ErrNoConversation means the lock was started without a chat id.
var ErrNoConversation = errors.New("group ID required")

// Config is one lock run's settings.
type Config struct {
	ChatID     string
	LockedName string
	Nicknames  map[string]string
	Cookies    string
}

// Watchdog owns the polling loop.
type Watchdog struct {
	Launcher browser.Launcher
	Options  browser.LaunchOptions
	Target   browser.Target
	Waits    browser.Waits
	Interval time.Duration
	Profile  *heuristics.Source
	// Remediator defaults to a Reverter with zero pauses.
	Remediator Remediator
	// Bind adapts a session to a Surface. Defaults to locator.Bind.
	Bind func(browser.Session) locator.Surface
}

func (w *Watchdog) profile() *heuristics.Profile {
	if w.Profile == nil {
		return heuristics.Default()
	}
	return w.Profile.Current()
}

func (w *Watchdog) remediator() Remediator {
	if w.Remediator == nil {
		return &Reverter{}
	}
	return w.Remediator
}

// Run executes one lock run, writing progress into st. It returns nil when the
// run was stopped and the failure otherwise.
func (w *Watchdog) Run(ctx context.Context, cfg Config, st *runstate.State) error {
	log := logging.Get(logging.CategoryWatchdog)
	if cfg.ChatID == "" {
		st.Log("Group ID required!")
		return ErrNoConversation
	}
	bind := w.Bind
	if bind == nil {
		bind = locator.Bind
	}

	st.Log("Starting group name lock...")
	s, err := browser.Open(ctx, browser.Setup{
		Launcher: w.Launcher,
		Options:  w.Options,
		Target:   w.Target,
		Waits:    w.Waits,
		Cookies:  cfg.Cookies,
		ChatID:   cfg.ChatID,
		Log:      st.Logf,
	})
	if err != nil {
		if ctx.Err() != nil {
			st.Log("Group name lock stopped before the browser was ready")
			return nil
		}
		st.Logf("Cannot start browser: %v", err)
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			log.Warn("session close failed", zap.String("session", s.ID()), zap.Error(cerr))
		}
		st.Log("Browser closed")
	}()

	if n := len(cfg.Nicknames); n > 0 {
		st.Logf("%d nickname locks configured (stored only, not enforced)", n)
	}
	st.Logf("Locking group name to %q", cfg.LockedName)

	surf := bind(s)
	op := context.WithoutCancel(ctx)
	for st.Running() && ctx.Err() == nil {
		w.Tick(op, surf, cfg, st)
		if !browser.Sleep(ctx, w.Interval) {
			break
		}
	}
	st.Logf("Group name lock stopped after %d checks", st.Checks())
	return nil
}

// Tick performs one check: read the displayed name and revert it when it
// differs from the locked name. It reports whether a revert was attempted.
func (w *Watchdog) Tick(ctx context.Context, surf locator.Surface, cfg Config, st *runstate.State) bool {
	p := w.profile()
	n := st.AddCheck()
	st.Logf("Check #%d", n)

	current, err := surf.FirstText(ctx, p.Heading)
	if err != nil {
		st.Logf("Error reading group name: %v", err)
		return false
	}
	if current == "" {
		st.Log("Could not read group name")
		return false
	}

	if cfg.LockedName != "" && current != cfg.LockedName {
		st.Logf("Name changed to %q! Reverting to %q...", current, cfg.LockedName)
		st.AddRevert()
		res := w.remediator().Revert(ctx, surf, p.Revert, cfg.LockedName, st.Logf)
		st.Logf("Revert attempted: %d/%d steps applied", res.Applied(), len(res))
		return true
	}
	st.Logf("Group name locked: %q", current)
	return false
}
