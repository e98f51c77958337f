// Package repo persists client-session state in SQLite.
package repo

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"fetcharr/internal/domain/consts"
)

// OpenDB opens (creating if needed) the Fetcharr SQLite database at path and
// ensures its tables exist.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to make database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at path %q: %w", path, err)
	}

	if err := initTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}
	return db, nil
}

// initTables initializes the SQL tables.
func initTables(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s TEXT NOT NULL,
			%s TEXT NOT NULL,
			%s TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (%s, %s)
		)`,
		consts.DBSessionDownloads,
		consts.QSessionClientID,
		consts.QSessionJobID,
		consts.QSessionCreatedAt,
		consts.QSessionClientID, consts.QSessionJobID,
	)
	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("failed to create %s table: %w", consts.DBSessionDownloads, err)
	}

	return tx.Commit()
}
