// Package utxo implements the UTXO Store: the sqlite-backed unspent output
// set the ledger core consults for balance checks and double-spend
// prevention (spec §4.2, §6.4). It is independent of the Block Store and
// guards its own connection with its own mutex.
package utxo

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/klingon-exchange/pqchain/internal/amount"
)

// Record is one row of the utxos table: an output, spent or not.
type Record struct {
	TxID        string
	OutputIndex int
	Address     string
	Amount      amount.Amount
	SpentTxID   sql.NullString
	SpentIndex  sql.NullInt64
}

// IsSpent reports whether this record has been consumed by a later
// transaction.
func (r Record) IsSpent() bool { return r.SpentTxID.Valid }

// Store is the UTXO Store.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Config holds UTXO Store configuration.
type Config struct {
	DataDir  string
	FileName string
}

// New opens (creating if absent) the UTXO Store database.
func New(cfg Config) (*Store, error) {
	dataDir := cfg.DataDir
	if len(dataDir) > 0 && dataDir[0] == '~' {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, dataDir[1:])
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	fileName := cfg.FileName
	if fileName == "" {
		fileName = "utxo.db"
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

	s := &Store{db: db}
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS utxos (
			txid TEXT NOT NULL,
			output_index INTEGER NOT NULL,
			address TEXT NOT NULL,
			amount REAL NOT NULL,
			spent_txid TEXT,
			spent_index INTEGER,
			PRIMARY KEY (txid, output_index)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// AddUTXOs inserts new unspent outputs, ignoring duplicates — mirrors the
// original's INSERT OR IGNORE so replaying a block twice during UTXO
// rebuild is harmless.
func (s *Store) AddUTXOs(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO utxos (txid, output_index, address, amount) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.TxID, r.OutputIndex, r.Address, r.Amount.Float64()); err != nil {
			return fmt.Errorf("insert utxo: %w", err)
		}
	}
	return tx.Commit()
}

// MarkSpent atomically marks (txid, outputIndex) spent by spentTxID at
// spentIndex, but only if it is not already spent. It returns false if the
// output was already spent or doesn't exist — the caller (block commit)
// treats this as a double-spend and aborts the whole commit (spec §7).
func (s *Store) MarkSpent(txid string, outputIndex int, spentTxID string, spentIndex int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE utxos SET spent_txid = ?, spent_index = ?
		WHERE txid = ? AND output_index = ? AND spent_txid IS NULL
	`, spentTxID, spentIndex, txid, outputIndex)
	if err != nil {
		return false, fmt.Errorf("mark spent: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// GetUnspentByAddress returns every unspent output owned by address.
func (s *Store) GetUnspentByAddress(address string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT txid, output_index, address, amount, spent_txid, spent_index
		FROM utxos WHERE spent_txid IS NULL AND address = ?`, address)
	if err != nil {
		return nil, fmt.Errorf("query unspent: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetAllUnspent returns every unspent output across all addresses.
func (s *Store) GetAllUnspent() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT txid, output_index, address, amount, spent_txid, spent_index
		FROM utxos WHERE spent_txid IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("query unspent: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetByID looks up a single UTXO regardless of spent status, used for
// input validation (spec §4.1's is_valid).
func (s *Store) GetByID(txid string, outputIndex int) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT txid, output_index, address, amount, spent_txid, spent_index
		FROM utxos WHERE txid = ? AND output_index = ?`, txid, outputIndex)

	var r Record
	var amt float64
	err := row.Scan(&r.TxID, &r.OutputIndex, &r.Address, &amt, &r.SpentTxID, &r.SpentIndex)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("scan utxo: %w", err)
	}
	r.Amount = amount.FromFloat64(amt)
	return r, true, nil
}

// ClearAll deletes every UTXO record. Used before a full rebuild (spec
// §4.3) or before rewriting the set during chain reconciliation.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM utxos")
	return err
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var amt float64
		if err := rows.Scan(&r.TxID, &r.OutputIndex, &r.Address, &amt, &r.SpentTxID, &r.SpentIndex); err != nil {
			return nil, fmt.Errorf("scan utxo row: %w", err)
		}
		r.Amount = amount.FromFloat64(amt)
		records = append(records, r)
	}
	return records, rows.Err()
}
