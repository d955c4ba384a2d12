package db

import (
	"database/sql"
	"fmt"
)

// migrations are idempotent schema statements, re-run on every open.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS preferences (
		scope      TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (scope, key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_preferences_key ON preferences(key)`,
}

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
