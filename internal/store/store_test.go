package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	s.cost = bcrypt.MinCost
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAccount_Defaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateAccount(ctx, "alice", "secret")
	require.NoError(t, err)

	enabled, err := s.LockEnabled(ctx, id)
	require.NoError(t, err)
	assert.False(t, enabled)

	lc, err := s.LockConfig(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(LockConfig{Nicknames: map[string]string{}}, lc); diff != "" {
		t.Errorf("new lock config mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, lc.Configured())

	ac, err := s.AutomationConfig(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, DefaultDelaySeconds, ac.DelaySeconds)
	assert.Empty(t, ac.Messages)
}

func TestCreateAccount_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateAccount(ctx, "alice", "secret")
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, " alice ", "other")
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	_, err = s.CreateAccount(ctx, "", "x")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateAccount(ctx, "bob", "hunter2")
	require.NoError(t, err)

	got, err := s.Verify(ctx, "bob", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = s.Verify(ctx, "bob", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Verify(ctx, "nobody", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLockConfig_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.CreateAccount(ctx, "carol", "pw")
	require.NoError(t, err)

	want := LockConfig{
		ChatID:     "1234",
		LockedName: "Team",
		Nicknames:  map[string]string{"100": "Ace", "200": "Bee"},
		Cookies:    "c_user=1; xs=a=b",
	}
	require.NoError(t, s.UpdateLockConfig(ctx, id, want))

	got, err := s.LockConfig(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lock config mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got.Configured())

	require.NoError(t, s.SetLockEnabled(ctx, id, true))
	enabled, err := s.LockEnabled(ctx, id)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestLockConfig_MalformedNicknames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.CreateAccount(ctx, "dave", "pw")
	require.NoError(t, err)

	_, err = s.db.Exec(`UPDATE lock_config SET locked_nicknames = '{not json' WHERE account_id = ?`, id)
	require.NoError(t, err)

	got, err := s.LockConfig(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{}, got.Nicknames)
}

func TestLockConfig_MissingRowYieldsDefaults(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LockConfig(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{}, got.Nicknames)
	assert.Empty(t, got.ChatID)
}

func TestAutomationConfig_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.CreateAccount(ctx, "erin", "pw")
	require.NoError(t, err)

	want := AutomationConfig{
		ChatID:       "55",
		Messages:     []string{"hello", "world"},
		Prefix:       "Erin",
		DelaySeconds: 12,
		Cookies:      "a=1",
	}
	require.NoError(t, s.UpdateAutomationConfig(ctx, id, want))
	got, err := s.AutomationConfig(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("automation config mismatch (-want +got):\n%s", diff)
	}

	want.DelaySeconds = -1
	assert.Error(t, s.UpdateAutomationConfig(ctx, id, want))
}

func TestUnknownAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LockEnabled(ctx, 42)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.ErrorIs(t, s.SetLockEnabled(ctx, 42, true), ErrAccountNotFound)
	assert.ErrorIs(t, s.UpdateLockConfig(ctx, 42, LockConfig{}), ErrAccountNotFound)
	assert.ErrorIs(t, s.UpdateAutomationConfig(ctx, 42, AutomationConfig{}), ErrAccountNotFound)
}

func TestMigrationAddsColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	s, err := Open("sqlite", path)
	require.NoError(t, err)
	has, err := columnExists(s.db, "automation_config", "prefix")
	require.NoError(t, err)
	assert.True(t, has)
	require.NoError(t, s.Close())

	// Re-opening is idempotent.
	s, err = Open("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, runMigrations(db))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("postgres", filepath.Join(t.TempDir(), "x.db"))
	assert.Error(t, err)
}
