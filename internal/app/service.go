// Package app wires the account store to the two loops: it validates settings,
// starts and stops runs through the orchestrator, and restores the lock after
// login.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"grouplock/internal/dispatch"
	"grouplock/internal/logging"
	"grouplock/internal/orchestrator"
	"grouplock/internal/runstate"
	"grouplock/internal/store"
	"grouplock/internal/watchdog"

	"go.uber.org/zap"
)

// ErrLockNotConfigured means the lock was started without a chat id or a
// locked name.
var ErrLockNotConfigured = errors.New("chat ID and group name are required")

// Accounts is the persistence the service needs.
type Accounts interface {
	CreateAccount(ctx context.Context, username, password string) (int64, error)
	Verify(ctx context.Context, username, password string) (int64, error)
	Account(ctx context.Context, id int64) (store.Account, error)
	LockEnabled(ctx context.Context, id int64) (bool, error)
	SetLockEnabled(ctx context.Context, id int64, enabled bool) error
	LockConfig(ctx context.Context, id int64) (store.LockConfig, error)
	UpdateLockConfig(ctx context.Context, id int64, cfg store.LockConfig) error
	AutomationConfig(ctx context.Context, id int64) (store.AutomationConfig, error)
	UpdateAutomationConfig(ctx context.Context, id int64, cfg store.AutomationConfig) error
}

// AutomationRunner runs the message loop.
type AutomationRunner interface {
	Run(ctx context.Context, cfg dispatch.Config, st *runstate.State) error
}

// LockRunner runs the group name lock loop.
type LockRunner interface {
	Run(ctx context.Context, cfg watchdog.Config, st *runstate.State) error
}

// Service is the application facade used by the CLI and the dashboard.
type Service struct {
	accounts Accounts
	sender   AutomationRunner
	locker   LockRunner
	orch     *orchestrator.Orchestrator
}

// NewService builds a service with its own orchestrator.
func NewService(accounts Accounts, sender AutomationRunner, locker LockRunner) *Service {
	s := &Service{accounts: accounts, sender: sender, locker: locker}
	s.orch = orchestrator.New(orchestrator.Hooks{Finished: s.finished})
	return s
}

// finished disables a lock that failed so it is not resumed on the next
// login. Stopped runs keep the flag as is.
func (s *Service) finished(key orchestrator.Key, err error) {
	log := logging.Get(logging.CategoryApp)
	if err == nil {
		log.Info("run ended", zap.Stringer("key", key))
		return
	}
	log.Warn("run ended with error", zap.Stringer("key", key), zap.Error(err))
	if key.Kind != orchestrator.KindLock || s.orch.Running(key) {
		return
	}
	if derr := s.accounts.SetLockEnabled(context.Background(), key.Account, false); derr != nil {
		log.Warn("failed to disable lock", zap.Int64("account", key.Account), zap.Error(derr))
	}
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, username, password string) (int64, error) {
	id, err := s.accounts.CreateAccount(ctx, username, password)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	return id, nil
}

// Login verifies credentials and returns the account.
func (s *Service) Login(ctx context.Context, username, password string) (store.Account, error) {
	id, err := s.accounts.Verify(ctx, username, password)
	if err != nil {
		return store.Account{}, err
	}
	acct, err := s.accounts.Account(ctx, id)
	if err != nil {
		return store.Account{}, fmt.Errorf("load account: %w", err)
	}
	logging.Get(logging.CategoryApp).Info("login", zap.Int64("account", id), zap.String("username", acct.Username))
	return acct, nil
}

// AutoStart starts the lock when it was left enabled and is configured. It
// reports whether a lock run was started.
func (s *Service) AutoStart(ctx context.Context, id int64) (bool, error) {
	enabled, err := s.accounts.LockEnabled(ctx, id)
	if err != nil {
		return false, err
	}
	if !enabled {
		return false, nil
	}
	cfg, err := s.accounts.LockConfig(ctx, id)
	if err != nil {
		return false, err
	}
	if !cfg.Configured() {
		return false, nil
	}
	return s.StartLock(ctx, id)
}

func automationKey(id int64) orchestrator.Key {
	return orchestrator.Key{Account: id, Kind: orchestrator.KindAutomation}
}

func lockKey(id int64) orchestrator.Key {
	return orchestrator.Key{Account: id, Kind: orchestrator.KindLock}
}

// StartAutomation starts the message loop with the stored settings. It is a
// no-op returning false when the loop is already running.
func (s *Service) StartAutomation(ctx context.Context, id int64) (bool, error) {
	ac, err := s.accounts.AutomationConfig(ctx, id)
	if err != nil {
		return false, fmt.Errorf("load automation config: %w", err)
	}
	cfg := dispatch.Config{
		ChatID:   ac.ChatID,
		Messages: ac.Messages,
		Prefix:   ac.Prefix,
		Delay:    time.Duration(ac.DelaySeconds) * time.Second,
		Cookies:  ac.Cookies,
	}
	_, started := s.orch.Start(automationKey(id), func(ctx context.Context, st *runstate.State) error {
		st.Log("Starting automation...")
		return s.sender.Run(ctx, cfg, st)
	})
	return started, nil
}

// StopAutomation signals the message loop to stop.
func (s *Service) StopAutomation(id int64) bool {
	return s.orch.Stop(automationKey(id))
}

// StartLock validates the stored lock settings, marks the lock enabled and
// starts the watchdog.
func (s *Service) StartLock(ctx context.Context, id int64) (bool, error) {
	lc, err := s.accounts.LockConfig(ctx, id)
	if err != nil {
		return false, fmt.Errorf("load lock config: %w", err)
	}
	if !lc.Configured() {
		return false, ErrLockNotConfigured
	}
	if err := s.accounts.SetLockEnabled(ctx, id, true); err != nil {
		return false, fmt.Errorf("enable lock: %w", err)
	}
	cfg := watchdog.Config{
		ChatID:     lc.ChatID,
		LockedName: lc.LockedName,
		Nicknames:  lc.Nicknames,
		Cookies:    lc.Cookies,
	}
	_, started := s.orch.Start(lockKey(id), func(ctx context.Context, st *runstate.State) error {
		return s.locker.Run(ctx, cfg, st)
	})
	return started, nil
}

// StopLock marks the lock disabled and signals the watchdog to stop.
func (s *Service) StopLock(ctx context.Context, id int64) (bool, error) {
	if err := s.accounts.SetLockEnabled(ctx, id, false); err != nil {
		return false, fmt.Errorf("disable lock: %w", err)
	}
	return s.orch.Stop(lockKey(id)), nil
}

// LockConfig returns the stored lock settings and the enabled flag.
func (s *Service) LockConfig(ctx context.Context, id int64) (store.LockConfig, bool, error) {
	lc, err := s.accounts.LockConfig(ctx, id)
	if err != nil {
		return store.LockConfig{}, false, err
	}
	enabled, err := s.accounts.LockEnabled(ctx, id)
	if err != nil {
		return store.LockConfig{}, false, err
	}
	return lc, enabled, nil
}

// LockUpdate holds the editable lock fields. Blank cookies keep the stored
// value.
type LockUpdate struct {
	ChatID     string
	LockedName string
	Cookies    string
}

// UpdateLock saves chat id, locked name and cookies, keeping nicknames.
func (s *Service) UpdateLock(ctx context.Context, id int64, u LockUpdate) error {
	lc, err := s.accounts.LockConfig(ctx, id)
	if err != nil {
		return err
	}
	lc.ChatID = strings.TrimSpace(u.ChatID)
	lc.LockedName = strings.TrimSpace(u.LockedName)
	if c := strings.TrimSpace(u.Cookies); c != "" {
		lc.Cookies = c
	}
	return s.accounts.UpdateLockConfig(ctx, id, lc)
}

// SetNickname stores a nickname lock for a member.
func (s *Service) SetNickname(ctx context.Context, id int64, member, nickname string) error {
	member = strings.TrimSpace(member)
	if member == "" {
		return fmt.Errorf("member id is required")
	}
	lc, err := s.accounts.LockConfig(ctx, id)
	if err != nil {
		return err
	}
	if lc.Nicknames == nil {
		lc.Nicknames = map[string]string{}
	}
	lc.Nicknames[member] = nickname
	return s.accounts.UpdateLockConfig(ctx, id, lc)
}

// RemoveNickname deletes a member's nickname lock. It reports whether one
// existed.
func (s *Service) RemoveNickname(ctx context.Context, id int64, member string) (bool, error) {
	lc, err := s.accounts.LockConfig(ctx, id)
	if err != nil {
		return false, err
	}
	if _, ok := lc.Nicknames[member]; !ok {
		return false, nil
	}
	delete(lc.Nicknames, member)
	return true, s.accounts.UpdateLockConfig(ctx, id, lc)
}

// AutomationConfig returns the stored sending settings.
func (s *Service) AutomationConfig(ctx context.Context, id int64) (store.AutomationConfig, error) {
	return s.accounts.AutomationConfig(ctx, id)
}

// AutomationUpdate holds the editable sending fields. Blank cookies keep the
// stored value; a nil Messages keeps the stored messages.
type AutomationUpdate struct {
	ChatID       string
	Messages     []string
	Prefix       string
	DelaySeconds int
	Cookies      string
}

// UpdateAutomation saves the sending settings.
func (s *Service) UpdateAutomation(ctx context.Context, id int64, u AutomationUpdate) error {
	if u.DelaySeconds < 0 {
		return fmt.Errorf("delay must be >= 0, got %d", u.DelaySeconds)
	}
	ac, err := s.accounts.AutomationConfig(ctx, id)
	if err != nil {
		return err
	}
	ac.ChatID = strings.TrimSpace(u.ChatID)
	ac.Prefix = strings.TrimSpace(u.Prefix)
	ac.DelaySeconds = u.DelaySeconds
	if u.Messages != nil {
		ac.Messages = u.Messages
	}
	if c := strings.TrimSpace(u.Cookies); c != "" {
		ac.Cookies = c
	}
	return s.accounts.UpdateAutomationConfig(ctx, id, ac)
}

// Status is what the UI shows for one account.
type Status struct {
	Automation *runstate.Snapshot
	Lock       *runstate.Snapshot
}

// Status snapshots both loops of an account with the last tail log entries.
// A loop that never ran has a nil snapshot.
func (s *Service) Status(id int64, tail int) Status {
	var st Status
	if rs := s.orch.State(automationKey(id)); rs != nil {
		snap := rs.Snapshot(tail)
		st.Automation = &snap
	}
	if rs := s.orch.State(lockKey(id)); rs != nil {
		snap := rs.Snapshot(tail)
		st.Lock = &snap
	}
	return st
}

// Subscribe streams log entries of the current run of a loop kind. It returns
// nil when the loop never ran. Unsubscribe through the returned function.
func (s *Service) Subscribe(id int64, kind orchestrator.Kind) (<-chan runstate.Entry, func()) {
	rs := s.orch.State(orchestrator.Key{Account: id, Kind: kind})
	if rs == nil {
		return nil, func() {}
	}
	ch := rs.Subscribe()
	return ch, func() { rs.Unsubscribe(ch) }
}

// Wait blocks until the current run of a loop kind has exited.
func (s *Service) Wait(ctx context.Context, id int64, kind orchestrator.Kind) error {
	return s.orch.Wait(ctx, orchestrator.Key{Account: id, Kind: kind})
}

// Running reports whether a loop kind is running for an account.
func (s *Service) Running(id int64, kind orchestrator.Kind) bool {
	return s.orch.Running(orchestrator.Key{Account: id, Kind: kind})
}

// Shutdown stops every loop and waits for browser cleanup. The persisted lock
// flag is left as is so the lock resumes on the next login.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.orch.Shutdown(ctx)
}
