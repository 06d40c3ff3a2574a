// Package dispatch runs the message loop: it opens a session on the target
// conversation, locates the composer and keeps sending rotating messages until
// stopped.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"grouplock/internal/browser"
	"grouplock/internal/heuristics"
	"grouplock/internal/locator"
	"grouplock/internal/logging"
	"grouplock/internal/runstate"

	"go.uber.org/zap"
)

// Config is one automation run's settings.
type Config struct {
	ChatID   string
	Messages []string
	Prefix   string
	Delay    time.Duration
	Cookies  string
}

// Pauses are the fixed waits inside a send attempt.
type Pauses struct {
	Click time.Duration // after focusing the composer
	Step  time.Duration // after filling and after triggering send
}

// Dispatcher sends messages into one conversation. A Dispatcher holds no
// per-run state and may be reused for successive runs.
type Dispatcher struct {
	Launcher browser.Launcher
	Options  browser.LaunchOptions
	Target   browser.Target
	Waits    browser.Waits
	Locator  locator.Locator
	Pauses   Pauses
	Profile  *heuristics.Source
	// Bind adapts a session to a Surface. Defaults to locator.Bind.
	Bind func(browser.Session) locator.Surface
}

// Run executes one automation run, writing progress into st. It returns nil
// when the run was stopped and the failure otherwise. The session is always
// closed before Run returns.
func (d *Dispatcher) Run(ctx context.Context, cfg Config, st *runstate.State) (err error) {
	log := logging.Get(logging.CategoryDispatch)
	profile := heuristics.Default()
	if d.Profile != nil {
		profile = d.Profile.Current()
	}
	bind := d.Bind
	if bind == nil {
		bind = locator.Bind
	}

	loc := d.Locator
	loc.Log = st.Logf

	s, err := browser.Open(ctx, browser.Setup{
		Launcher: d.Launcher,
		Options:  d.Options,
		Target:   d.Target,
		Waits:    d.Waits,
		Cookies:  cfg.Cookies,
		ChatID:   cfg.ChatID,
		Log:      st.Logf,
	})
	if err != nil {
		if ctx.Err() != nil {
			st.Log("Automation stopped before the browser was ready")
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
	defer func() {
		st.Logf("Automation stopped. Total messages sent: %d", st.Messages())
	}()

	surf := bind(s)
	el, err := loc.Find(ctx, surf, profile)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		st.Log("Message input not found!")
		return err
	}
	st.Log("Message input found, starting to send")

	op := context.WithoutCancel(ctx)
	for st.Running() && ctx.Err() == nil {
		msg := Compose(cfg.Prefix, NextMessage(cfg.Messages, st))
		if err := d.send(op, surf, el, profile, msg); err != nil {
			st.Logf("Error sending message: %v", err)
			return err
		}
		n := st.AddMessage()
		st.Logf("Message %d sent: %s", n, Preview(msg, 60))

		if !browser.Sleep(ctx, cfg.Delay) {
			break
		}
	}
	return nil
}

// send performs one attempt. Pauses inside it ignore cancellation so an
// attempt is never cut off halfway.
func (d *Dispatcher) send(ctx context.Context, surf locator.Surface, el locator.Element, p *heuristics.Profile, msg string) error {
	if err := surf.Click(ctx, el); err != nil {
		return fmt.Errorf("focus composer: %w", err)
	}
	browser.Sleep(ctx, d.Pauses.Click)

	if err := surf.Fill(ctx, el, msg); err != nil {
		return fmt.Errorf("fill composer: %w", err)
	}
	browser.Sleep(ctx, d.Pauses.Step)

	clicked, err := surf.ClickFirst(ctx, p.SendButton)
	if err != nil {
		return fmt.Errorf("click send: %w", err)
	}
	if !clicked {
		if err := surf.PressEnter(ctx, el); err != nil {
			return fmt.Errorf("press enter: %w", err)
		}
	}
	browser.Sleep(ctx, d.Pauses.Step)
	return nil
}
