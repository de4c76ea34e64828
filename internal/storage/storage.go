// Package storage provides the Block Store: persistent storage for the
// committed chain and the known-peers table, backed by SQLite (spec §4.2,
// §6.4). It is one of two independent stores the ledger core owns; the
// other, the UTXO Store, lives in package utxo and guards its own
// connection with its own mutex.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the Block Store: the blocks table and the peers side-table.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds Block Store configuration.
type Config struct {
	DataDir string
	// FileName overrides the default "blocks.db", letting callers salt the
	// filename by port (spec §6.5's NODE_PORT) so multiple nodes can share
	// a data directory in tests and demos.
	FileName string
}

// New opens (creating if absent) the Block Store database at cfg.DataDir.
func New(cfg Config) (*Store, error) {
	dataDir := expandPath(cfg.DataDir)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	fileName := cfg.FileName
	if fileName == "" {
		fileName = "blocks.db"
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

	// SQLite only supports one writer; match that with the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blocks (
		index_id INTEGER PRIMARY KEY,
		timestamp REAL NOT NULL,
		previous_hash TEXT NOT NULL,
		merkle_root TEXT NOT NULL,
		proof INTEGER NOT NULL,
		hash TEXT UNIQUE NOT NULL,
		transactions_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS peers (
		address TEXT PRIMARY KEY,
		last_seen REAL NOT NULL,
		reputation INTEGER DEFAULT 10
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
