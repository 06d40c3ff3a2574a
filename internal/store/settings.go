package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"grouplock/internal/logging"

	"go.uber.org/zap"
)

// LockConfig returns the lock settings of an account. A missing row yields
// empty defaults and malformed nickname JSON yields an empty map.
func (s *Store) LockConfig(ctx context.Context, id int64) (LockConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := LockConfig{Nicknames: map[string]string{}}
	var nicknames string
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, locked_group_name, locked_nicknames, cookies FROM lock_config WHERE account_id = ?`, id).
		Scan(&cfg.ChatID, &cfg.LockedName, &nicknames, &cfg.Cookies)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return LockConfig{}, err
	}
	if nicknames != "" {
		if err := json.Unmarshal([]byte(nicknames), &cfg.Nicknames); err != nil || cfg.Nicknames == nil {
			logging.Get(logging.CategoryStore).Warn("malformed nickname map, using empty",
				zap.Int64("account", id), zap.Error(err))
			cfg.Nicknames = map[string]string{}
		}
	}
	return cfg, nil
}

// UpdateLockConfig replaces the lock settings of an account.
func (s *Store) UpdateLockConfig(ctx context.Context, id int64, cfg LockConfig) error {
	nick := cfg.Nicknames
	if nick == nil {
		nick = map[string]string{}
	}
	data, err := json.Marshal(nick)
	if err != nil {
		return fmt.Errorf("failed to encode nicknames: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAccount(ctx, id); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lock_config (account_id, chat_id, locked_group_name, locked_nicknames, cookies)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			locked_group_name = excluded.locked_group_name,
			locked_nicknames = excluded.locked_nicknames,
			cookies = excluded.cookies`,
		id, cfg.ChatID, cfg.LockedName, string(data), cfg.Cookies)
	if err != nil {
		return fmt.Errorf("failed to update lock config: %w", err)
	}
	return nil
}

// AutomationConfig returns the message sending settings of an account.
func (s *Store) AutomationConfig(ctx context.Context, id int64) (AutomationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := AutomationConfig{DelaySeconds: DefaultDelaySeconds}
	var messages string
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, messages, prefix, delay_seconds, cookies FROM automation_config WHERE account_id = ?`, id).
		Scan(&cfg.ChatID, &messages, &cfg.Prefix, &cfg.DelaySeconds, &cfg.Cookies)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return AutomationConfig{}, err
	}
	if messages != "" {
		if err := json.Unmarshal([]byte(messages), &cfg.Messages); err != nil {
			cfg.Messages = nil
		}
	}
	return cfg, nil
}

// UpdateAutomationConfig replaces the message sending settings of an account.
func (s *Store) UpdateAutomationConfig(ctx context.Context, id int64, cfg AutomationConfig) error {
	if cfg.DelaySeconds < 0 {
		return fmt.Errorf("delay must not be negative, got %d", cfg.DelaySeconds)
	}
	msgs := cfg.Messages
	if msgs == nil {
		msgs = []string{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireAccount(ctx, id); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO automation_config (account_id, chat_id, messages, prefix, delay_seconds, cookies)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			messages = excluded.messages,
			prefix = excluded.prefix,
			delay_seconds = excluded.delay_seconds,
			cookies = excluded.cookies`,
		id, cfg.ChatID, string(data), cfg.Prefix, cfg.DelaySeconds, cfg.Cookies)
	if err != nil {
		return fmt.Errorf("failed to update automation config: %w", err)
	}
	return nil
}

// requireAccount must be called with s.mu held.
func (s *Store) requireAccount(ctx context.Context, id int64) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrAccountNotFound, id)
	}
	return nil
}
