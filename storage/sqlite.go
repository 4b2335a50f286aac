package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)
)

// SQLiteStore implements Store using SQLite. It is the default backend for
// single-node installs.
type SQLiteStore struct {
	BaseStore
	dbPath string
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed store.
// Pass ":memory:" for an in-memory database, used heavily in tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	connStr := dbPath
	if dbPath != ":memory:" {
		connStr += "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON"
	} else {
		connStr += "?_foreign_keys=ON"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The modernc driver serializes access per connection; a single
	// connection avoids "database is locked" errors under concurrent writes
	// and keeps :memory: databases from being per-connection copies.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		BaseStore: BaseStore{db: db, dialect: &SQLiteDialect{}},
		dbPath:    dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return store, nil
}

// Path returns the database file path this store was opened with.
func (s *SQLiteStore) Path() string { return s.dbPath }
