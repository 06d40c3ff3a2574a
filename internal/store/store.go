// Package store persists accounts and their lock and automation settings in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"grouplock/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var (
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountNotFound    = errors.New("account not found")
)

// Store is the account database.
type Store struct {
	db     *sql.DB
	dbPath string
	driver string
	cost   int
	mu     sync.RWMutex
}

// Open creates or opens the database at path using driver, either "sqlite3"
// (mattn/go-sqlite3) or "sqlite" (modernc.org/sqlite).
func Open(driver, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var dsn string
	switch driver {
	case "sqlite3":
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	case "sqlite":
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path, driver: driver, cost: bcrypt.DefaultCost}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	logging.Get(logging.CategoryStore).Debug("store opened",
		zap.String("path", path), zap.String("driver", driver))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		lock_enabled INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lock_config (
		account_id INTEGER PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
		chat_id TEXT NOT NULL DEFAULT '',
		locked_group_name TEXT NOT NULL DEFAULT '',
		locked_nicknames TEXT NOT NULL DEFAULT '{}',
		cookies TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS automation_config (
		account_id INTEGER PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
		chat_id TEXT NOT NULL DEFAULT '',
		messages TEXT NOT NULL DEFAULT '[]',
		delay_seconds INTEGER NOT NULL DEFAULT 5,
		cookies TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateAccount registers a new account with empty lock and automation
// settings.
func (s *Store) CreateAccount(ctx context.Context, username, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, fmt.Errorf("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE username = ?`, username).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateAccount, username)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (username, password_hash, lock_enabled, created_at) VALUES (?, ?, 0, ?)`,
		username, string(hash), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO lock_config (account_id) VALUES (?)`, id); err != nil {
		return 0, fmt.Errorf("failed to create lock config: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO automation_config (account_id) VALUES (?)`, id); err != nil {
		return 0, fmt.Errorf("failed to create automation config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	logging.Get(logging.CategoryStore).Info("account created", zap.Int64("account", id), zap.String("username", username))
	return id, nil
}

// Verify checks credentials and returns the account id.
func (s *Store) Verify(ctx context.Context, username, password string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		id   int64
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM accounts WHERE username = ?`, strings.TrimSpace(username)).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return 0, ErrInvalidCredentials
	}
	return id, nil
}

// Account loads an account by id.
func (s *Store) Account(ctx context.Context, id int64) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		a       Account
		enabled int
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, lock_enabled, created_at FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Username, &enabled, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("%w: %d", ErrAccountNotFound, id)
	}
	if err != nil {
		return Account{}, err
	}
	a.LockEnabled = enabled != 0
	a.CreatedAt = time.Unix(created, 0)
	return a, nil
}

// LockEnabled reports the persisted lock flag.
func (s *Store) LockEnabled(ctx context.Context, id int64) (bool, error) {
	a, err := s.Account(ctx, id)
	if err != nil {
		return false, err
	}
	return a.LockEnabled, nil
}

// SetLockEnabled stores the lock flag.
func (s *Store) SetLockEnabled(ctx context.Context, id int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := 0
	if enabled {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET lock_enabled = ? WHERE id = ?`, v, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrAccountNotFound, id)
	}
	return nil
}
