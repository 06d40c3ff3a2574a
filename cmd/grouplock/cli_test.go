package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"grouplock/internal/runstate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command against a throwaway config and store.
func execute(t *testing.T, cfgFile string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", cfgFile}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "store:\n  driver: sqlite\n  path: " + filepath.Join(dir, "grouplock.db") + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func resetFlags() {
	username, password = "", ""
	lockChatID, lockName, lockCookies, lockCookiesFile = "", "", "", ""
	sendChatID, sendMessagesFile, sendPrefix, sendCookies, sendCookiesFile = "", "", "", "", ""
	sendDelay = 5
	runSend, runLock = false, false
}

func TestAccountAndLockCommands(t *testing.T) {
	t.Setenv("GROUPLOCK_USERNAME", "")
	t.Setenv("GROUPLOCK_PASSWORD", "")
	t.Setenv("GROUPLOCK_DB", "")
	cfgFile := writeConfig(t)
	t.Cleanup(resetFlags)
	creds := []string{"--username", "alice", "--password", "s3cret"}

	out, err := execute(t, cfgFile, append([]string{"account", "create"}, creds...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `Account "alice" created`)

	_, err = execute(t, cfgFile, append([]string{"account", "create"}, creds...)...)
	assert.Error(t, err, "duplicate account must fail")

	_, err = execute(t, cfgFile, append([]string{"lock", "set",
		"--chat-id", "123", "--name", "Team", "--cookies", "c_user=1; xs=abc"}, creds...)...)
	require.NoError(t, err)

	_, err = execute(t, cfgFile, append([]string{"lock", "nick", "add", "42", "Boss"}, creds...)...)
	require.NoError(t, err)

	out, err = execute(t, cfgFile, append([]string{"lock", "show"}, creds...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Chat ID:   123")
	assert.Contains(t, out, "Name:      Team")
	assert.Contains(t, out, "c_user=***; xs=***")
	assert.NotContains(t, out, "abc")
	assert.Contains(t, out, "42 -> Boss")

	_, err = execute(t, cfgFile, "lock", "show", "--username", "alice", "--password", "wrong")
	assert.Error(t, err)
}

func TestSendSetCommand(t *testing.T) {
	t.Setenv("GROUPLOCK_DB", "")
	cfgFile := writeConfig(t)
	t.Cleanup(resetFlags)
	creds := []string{"--username", "bob", "--password", "pw"}

	_, err := execute(t, cfgFile, append([]string{"account", "create"}, creds...)...)
	require.NoError(t, err)

	msgs := filepath.Join(t.TempDir(), "messages.txt")
	require.NoError(t, os.WriteFile(msgs, []byte("hello\n\n  world  \n"), 0o644))

	_, err = execute(t, cfgFile, append([]string{"send", "set",
		"--chat-id", "99", "--messages-file", msgs, "--prefix", "Ann", "--delay", "3"}, creds...)...)
	require.NoError(t, err)

	out, err := execute(t, cfgFile, append([]string{"send", "show"}, creds...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Chat ID:   99")
	assert.Contains(t, out, "Prefix:    Ann")
	assert.Contains(t, out, "Delay:     3s")
	assert.Contains(t, out, "Messages:  2")
	assert.Contains(t, out, "2. world")
}

func TestRunRequiresLoop(t *testing.T) {
	runSend, runLock = false, false
	err := runLoops(runCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--send")
}

func TestCredentials(t *testing.T) {
	t.Cleanup(resetFlags)
	username, password = "", ""
	t.Setenv("GROUPLOCK_USERNAME", "env-user")
	t.Setenv("GROUPLOCK_PASSWORD", "env-pass")

	u, p, err := credentials()
	require.NoError(t, err)
	assert.Equal(t, "env-user", u)
	assert.Equal(t, "env-pass", p)

	username = "flag-user"
	u, _, err = credentials()
	require.NoError(t, err)
	assert.Equal(t, "flag-user", u)

	username = ""
	t.Setenv("GROUPLOCK_USERNAME", "")
	_, _, err = credentials()
	assert.Error(t, err)
}

func TestMaskCookies(t *testing.T) {
	assert.Equal(t, "a=***; b=***", maskCookies("a=1; b=x=y; junk"))
	assert.Equal(t, "", maskCookies(""))
}

func TestReadCookies(t *testing.T) {
	v, err := readCookies("  a=1  ", "")
	require.NoError(t, err)
	assert.Equal(t, "a=1", v)

	file := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(file, []byte("b=2\n"), 0o644))
	v, err = readCookies("ignored", file)
	require.NoError(t, err)
	assert.Equal(t, "b=2", v)

	_, err = readCookies("", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestStreamLog_DedupesBacklog(t *testing.T) {
	at := time.Date(2024, 1, 1, 9, 30, 0, 0, time.Local)
	backlog := []runstate.Entry{
		{Seq: 1, Time: at, Text: "Setting up browser..."},
		{Seq: 2, Time: at, Text: "Browser setup completed"},
	}
	ch := make(chan runstate.Entry, 4)
	ch <- runstate.Entry{Seq: 2, Time: at, Text: "Browser setup completed"}
	ch <- runstate.Entry{Seq: 3, Time: at, Text: "Check #1"}
	done := make(chan struct{})
	close(done)

	var out bytes.Buffer
	streamLog(&out, "[lock]", backlog, ch, done)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[lock] [09:30:00] Setting up browser...", lines[0])
	assert.Equal(t, "[lock] [09:30:00] Check #1", lines[2])
}

func TestStreamLog_ClosedChannel(t *testing.T) {
	ch := make(chan runstate.Entry)
	close(ch)
	var out bytes.Buffer
	streamLog(&out, "[send]", nil, ch, make(chan struct{}))
	assert.Empty(t, out.String())
}

type stuckService struct{ calls int }

func (s *stuckService) Shutdown(ctx context.Context) error {
	s.calls++
	<-ctx.Done()
	return ctx.Err()
}

func TestShutdown_BoundedAndReported(t *testing.T) {
	prev := shutdownTimeout
	shutdownTimeout = 20 * time.Millisecond
	t.Cleanup(func() { shutdownTimeout = prev })

	svc := &stuckService{}
	start := time.Now()
	err := shutdown(svc)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, svc.calls)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, writeConfig(t), "version")
	require.NoError(t, err)
	assert.Equal(t, "grouplock dev\n", out)
}
