package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klingon-exchange/pqchain/internal/chainmodel"
)

// blockRow is the row shape persisted for one block (spec §6.4).
type blockRow struct {
	Index        int
	Timestamp    float64
	PreviousHash string
	MerkleRoot   string
	Proof        int64
	Hash         string
	TxJSON       string
}

// SaveBlock inserts a block. It returns (false, nil) rather than an error
// when the block already exists — a UNIQUE constraint violation on hash or
// a duplicate primary key on index_id — matching spec §7's AlreadyExists
// handling: logged at warn by the caller, not treated as a failure.
func (s *Store) SaveBlock(b chainmodel.Block) (bool, error) {
	txJSON, err := json.Marshal(b.Transactions)
	if err != nil {
		return false, fmt.Errorf("marshal transactions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO blocks (index_id, timestamp, previous_hash, merkle_root, proof, hash, transactions_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Index, b.Timestamp, b.PreviousHash, b.MerkleRoot, b.Proof, b.Hash, string(txJSON),
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert block: %w", err)
	}
	return true, nil
}

// LoadLastBlock returns the highest-indexed stored block, or (Block{},
// false, nil) if the store is empty.
func (s *Store) LoadLastBlock() (chainmodel.Block, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT index_id, timestamp, previous_hash, merkle_root, proof, hash, transactions_json
		FROM blocks ORDER BY index_id DESC LIMIT 1`)
	b, ok, err := scanBlock(row)
	return b, ok, err
}

// LoadAllBlocks returns every stored block ordered by height ascending.
func (s *Store) LoadAllBlocks() ([]chainmodel.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT index_id, timestamp, previous_hash, merkle_root, proof, hash, transactions_json
		FROM blocks ORDER BY index_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []chainmodel.Block
	for rows.Next() {
		var r blockRow
		if err := rows.Scan(&r.Index, &r.Timestamp, &r.PreviousHash, &r.MerkleRoot, &r.Proof, &r.Hash, &r.TxJSON); err != nil {
			return nil, fmt.Errorf("scan block row: %w", err)
		}
		b, err := rowToBlock(r)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// ClearBlocks deletes every stored block. Used by chain reconciliation
// before rewriting the chain from a peer's longer alternative (spec §4.5).
func (s *Store) ClearBlocks() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM blocks")
	return err
}

func scanBlock(row *sql.Row) (chainmodel.Block, bool, error) {
	var r blockRow
	err := row.Scan(&r.Index, &r.Timestamp, &r.PreviousHash, &r.MerkleRoot, &r.Proof, &r.Hash, &r.TxJSON)
	if err == sql.ErrNoRows {
		return chainmodel.Block{}, false, nil
	}
	if err != nil {
		return chainmodel.Block{}, false, fmt.Errorf("scan block row: %w", err)
	}
	b, err := rowToBlock(r)
	return b, true, err
}

func rowToBlock(r blockRow) (chainmodel.Block, error) {
	var txs []chainmodel.Transaction
	if err := json.Unmarshal([]byte(r.TxJSON), &txs); err != nil {
		return chainmodel.Block{}, fmt.Errorf("unmarshal transactions: %w", err)
	}
	return chainmodel.Block{
		Index:        r.Index,
		Timestamp:    r.Timestamp,
		Transactions: txs,
		PreviousHash: r.PreviousHash,
		MerkleRoot:   r.MerkleRoot,
		Proof:        r.Proof,
		Hash:         r.Hash,
	}, nil
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "primary key")
}
