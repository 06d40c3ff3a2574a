package store

import "time"

// Account is a registered user.
type Account struct {
	ID          int64
	Username    string
	LockEnabled bool
	CreatedAt   time.Time
}

// LockConfig is the group name lock settings of an account.
type LockConfig struct {
	ChatID     string
	LockedName string
	// Nicknames maps member id to nickname. Stored, never enforced.
	Nicknames map[string]string
	Cookies   string
}

// Configured reports whether the lock can start.
func (c LockConfig) Configured() bool {
	return c.ChatID != "" && c.LockedName != ""
}

// AutomationConfig is the message sending settings of an account.
type AutomationConfig struct {
	ChatID       string
	Messages     []string
	Prefix       string
	DelaySeconds int
	Cookies      string
}

// DefaultDelaySeconds is the delay of a new account.
const DefaultDelaySeconds = 5
