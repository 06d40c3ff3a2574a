package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"grouplock/internal/browser"
	"grouplock/internal/browser/browsertest"
	"grouplock/internal/config"
	"grouplock/internal/dispatch"
	"grouplock/internal/orchestrator"
	"grouplock/internal/runstate"
	"grouplock/internal/store"
	"grouplock/internal/watchdog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSender struct {
	mu   sync.Mutex
	last dispatch.Config
}

func (b *blockingSender) Run(ctx context.Context, cfg dispatch.Config, st *runstate.State) error {
	b.mu.Lock()
	b.last = cfg
	b.mu.Unlock()
	<-ctx.Done()
	return nil
}

type blockingLocker struct {
	mu   sync.Mutex
	last watchdog.Config
	runs int
}

func (b *blockingLocker) Run(ctx context.Context, cfg watchdog.Config, st *runstate.State) error {
	b.mu.Lock()
	b.last = cfg
	b.runs++
	b.mu.Unlock()
	<-ctx.Done()
	return nil
}

func newService(t *testing.T) (*Service, *store.Store, *blockingSender, *blockingLocker) {
	t.Helper()
	st, err := store.Open("sqlite", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	sender := &blockingSender{}
	locker := &blockingLocker{}
	svc := NewService(st, sender, locker)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
		st.Close()
	})
	return svc, st, sender, locker
}

func TestLoginAndAutoStart(t *testing.T) {
	svc, _, _, locker := newService(t)
	ctx := context.Background()

	id, err := svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "nope")
	require.ErrorIs(t, err, store.ErrInvalidCredentials)

	acct, err := svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, id, acct.ID)

	started, err := svc.AutoStart(ctx, id)
	require.NoError(t, err)
	assert.False(t, started, "lock is disabled for a new account")

	require.NoError(t, svc.UpdateLock(ctx, id, LockUpdate{ChatID: " 99 ", LockedName: "Team", Cookies: "a=1"}))
	started, err = svc.StartLock(ctx, id)
	require.NoError(t, err)
	require.True(t, started)
	waitRuns(t, locker, 1)
	_, err = svc.StopLock(ctx, id)
	require.NoError(t, err)
	require.NoError(t, svc.Wait(ctx, id, orchestrator.KindLock))

	_, enabled, err := svc.LockConfig(ctx, id)
	require.NoError(t, err)
	assert.False(t, enabled, "StopLock clears the flag")

	// Shutdown without StopLock leaves the flag on, as after a process exit.
	_, err = svc.StartLock(ctx, id)
	require.NoError(t, err)
	waitRuns(t, locker, 2)
	require.NoError(t, svc.Shutdown(ctx))

	svc2 := NewService(svc.accounts, &blockingSender{}, locker)
	started, err = svc2.AutoStart(ctx, id)
	require.NoError(t, err)
	assert.True(t, started)
	waitRuns(t, locker, 3)
	locker.mu.Lock()
	assert.Equal(t, "99", locker.last.ChatID)
	assert.Equal(t, "Team", locker.last.LockedName)
	locker.mu.Unlock()
	require.NoError(t, svc2.Shutdown(ctx))
}

func waitRuns(t *testing.T, l *blockingLocker, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.runs == n
	}, 5*time.Second, time.Millisecond)
}

type failingLocker struct {
	err error
}

func (f failingLocker) Run(ctx context.Context, cfg watchdog.Config, st *runstate.State) error {
	st.Logf("Cannot start browser: %v", f.err)
	return f.err
}

func TestFailedLockIsNotResumed(t *testing.T) {
	st, err := store.Open("sqlite", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	svc := NewService(st, &blockingSender{}, failingLocker{err: browser.ErrBrowserUnavailable})
	ctx := context.Background()

	id, err := svc.Register(ctx, "erin", "pw")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateLock(ctx, id, LockUpdate{ChatID: "1", LockedName: "Team"}))

	started, err := svc.StartLock(ctx, id)
	require.NoError(t, err)
	require.True(t, started)
	require.NoError(t, svc.Wait(ctx, id, orchestrator.KindLock))

	status := svc.Status(id, 10)
	require.NotNil(t, status.Lock)
	assert.Equal(t, runstate.Failed, status.Lock.Phase)

	_, enabled, err := svc.LockConfig(ctx, id)
	require.NoError(t, err)
	assert.False(t, enabled, "a failed lock run clears the flag")

	started, err = svc.AutoStart(ctx, id)
	require.NoError(t, err)
	assert.False(t, started, "a failed lock must be restarted by hand")
}

func TestStartLock_RequiresConfig(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, "bob", "pw")
	require.NoError(t, err)

	_, err = svc.StartLock(ctx, id)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.False(t, svc.Running(id, orchestrator.KindLock))
}

func TestStartAutomation_IdempotentAndUsesStoredConfig(t *testing.T) {
	svc, _, sender, _ := newService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, "carol", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateAutomation(ctx, id, AutomationUpdate{
		ChatID:       "5",
		Messages:     dispatch.ParseMessages("one\ntwo\n"),
		Prefix:       "C",
		DelaySeconds: 2,
	}))

	started, err := svc.StartAutomation(ctx, id)
	require.NoError(t, err)
	assert.True(t, started)
	started, err = svc.StartAutomation(ctx, id)
	require.NoError(t, err)
	assert.False(t, started)

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return sender.last.ChatID == "5"
	}, 5*time.Second, time.Millisecond)
	sender.mu.Lock()
	assert.Equal(t, []string{"one", "two"}, sender.last.Messages)
	assert.Equal(t, 2*time.Second, sender.last.Delay)
	sender.mu.Unlock()

	status := svc.Status(id, 50)
	require.NotNil(t, status.Automation)
	assert.Nil(t, status.Lock)
	assert.True(t, status.Automation.Running)
	assert.Equal(t, "Starting automation...", status.Automation.Tail[0].Text)

	assert.True(t, svc.StopAutomation(id))
	require.NoError(t, svc.Wait(ctx, id, orchestrator.KindAutomation))
	assert.Equal(t, runstate.Stopped, svc.Status(id, 0).Automation.Phase)
}

func TestNicknames(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, "dave", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.SetNickname(ctx, id, "100", "Ace"))
	require.NoError(t, svc.UpdateLock(ctx, id, LockUpdate{ChatID: "1", LockedName: "G"}))
	lc, _, err := svc.LockConfig(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"100": "Ace"}, lc.Nicknames)

	removed, err := svc.RemoveNickname(ctx, id, "100")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = svc.RemoveNickname(ctx, id, "100")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Error(t, svc.SetNickname(ctx, id, " ", "x"))
}

func TestUpdateAutomation_KeepsCookiesWhenBlank(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, "erin", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateAutomation(ctx, id, AutomationUpdate{Cookies: "a=1", Messages: []string{"x"}}))
	require.NoError(t, svc.UpdateAutomation(ctx, id, AutomationUpdate{ChatID: "9"}))
	ac, err := svc.AutomationConfig(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a=1", ac.Cookies)
	assert.Equal(t, []string{"x"}, ac.Messages)
	assert.Equal(t, "9", ac.ChatID)

	assert.Error(t, svc.UpdateAutomation(ctx, id, AutomationUpdate{DelaySeconds: -3}))
}

func TestLoops_FromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timings.PollInterval = "250ms"
	l := &browsertest.Launcher{}

	d, w := Loops(cfg, l, nil)
	assert.Equal(t, "https://www.facebook.com/", d.Target.BaseURL)
	assert.Equal(t, 250*time.Millisecond, w.Interval)
	assert.True(t, d.Options.Headless)
	assert.Equal(t, 1920, d.Options.ViewportWidth)
	assert.IsType(t, &watchdog.Reverter{}, w.Remediator)

	launcher, err := Launcher(cfg)
	require.NoError(t, err)
	assert.IsType(t, &browser.RodLauncher{}, launcher)
}
