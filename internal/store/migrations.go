package store

import (
	"database/sql"
	"fmt"

	"grouplock/internal/logging"

	"go.uber.org/zap"
)

// Migration adds a column to a table created by an older schema.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists columns added after the first schema. They apply to
// fresh and existing databases alike.
var pendingMigrations = []Migration{
	{"automation_config", "prefix", "TEXT NOT NULL DEFAULT ''"},
}

func runMigrations(db *sql.DB) error {
	log := logging.Get(logging.CategoryStore)
	for _, m := range pendingMigrations {
		has, err := columnExists(db, m.Table, m.Column)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", m.Table, err)
		}
		if has {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		log.Info("applied migration", zap.String("table", m.Table), zap.String("column", m.Column))
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
