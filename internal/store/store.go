package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/brandon/mboxadmin/internal/config"
)

// Store persists folder listings to SQLite so a later session can warm its
// cache without a server round trip
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open opens (creating if needed) the snapshot store at the given path
func Open(dbPath string, logger *logrus.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.WithField("path", dbPath).Info("Snapshot store opened")
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureAccount upserts an account row and returns its id
func (s *Store) EnsureAccount(acc *config.AccountConfig) (int64, error) {
	query := `
		INSERT INTO accounts (name, host, port, username, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			host = excluded.host,
			port = excluded.port,
			username = excluded.username,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.Exec(query, acc.Name, acc.Host, acc.Port, acc.Username); err != nil {
		return 0, fmt.Errorf("failed to upsert account: %w", err)
	}

	var id int64
	if err := s.db.QueryRow("SELECT id FROM accounts WHERE name = ?", acc.Name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to get account ID: %w", err)
	}
	return id, nil
}

// Account returns a view of the store scoped to one account, satisfying the
// cache's persister contract
func (s *Store) Account(id int64) *AccountStore {
	return &AccountStore{store: s, accountID: id}
}
