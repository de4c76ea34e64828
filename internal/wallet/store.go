package wallet

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the sqlite-backed Store implementation, grounded on the
// original's WalletDBManager: public_key as primary key, a unique alias,
// and the matching private key alongside it.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (creating if absent) the wallet database.
func NewSQLiteStore(dataDir, fileName string) (*SQLiteStore, error) {
	if len(dataDir) > 0 && dataDir[0] == '~' {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, dataDir[1:])
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if fileName == "" {
		fileName = "wallet.db"
	}
	dbPath := filepath.Join(dataDir, fileName)

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS wallets (
			public_key TEXT PRIMARY KEY,
			private_key TEXT NOT NULL,
			alias TEXT UNIQUE
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// SaveWallet inserts a new key pair, returning false (not an error) if the
// public key or alias already exists.
func (s *SQLiteStore) SaveWallet(publicKey, privateKey, alias string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("INSERT INTO wallets (public_key, private_key, alias) VALUES (?, ?, ?)",
		publicKey, privateKey, alias)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert wallet: %w", err)
	}
	return true, nil
}

// GetPrivateKeyByAlias looks up a private key by alias.
func (s *SQLiteStore) GetPrivateKeyByAlias(alias string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var priv string
	err := s.db.QueryRow("SELECT private_key FROM wallets WHERE alias = ?", alias).Scan(&priv)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query private key: %w", err)
	}
	return priv, true, nil
}

// GetPublicKeyByAlias looks up a public key by alias.
func (s *SQLiteStore) GetPublicKeyByAlias(alias string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pub string
	err := s.db.QueryRow("SELECT public_key FROM wallets WHERE alias = ?", alias).Scan(&pub)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query public key: %w", err)
	}
	return pub, true, nil
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
