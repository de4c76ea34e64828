package chainmodel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/klingon-exchange/pqchain/internal/pqc"
)

// Block is a committed batch of transactions. Hash is computed over the
// header only — index, timestamp, previous hash, Merkle root, and proof —
// not over the transaction bodies directly; the Merkle root is what binds
// the transaction set to the header (spec §4.4).
// Hash is deliberately excluded from the JSON encoding (spec §6.2): it is
// derived, and every receiver recomputes it rather than trusting the
// sender's claim.
type Block struct {
	Index        int           `json:"index"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previous_hash"`
	MerkleRoot   string        `json:"merkle_root"`
	Proof        int64         `json:"proof"`
	Hash         string        `json:"-"`
}

// NewBlock constructs a block, deriving its Merkle root and header hash.
// proof is the PoW nonce found by the miner; callers assembling a block
// before the search has run should pass 0 and set Proof/Hash afterward via
// WithProof.
func NewBlock(index int, transactions []Transaction, previousHash string, proof int64, timestamp float64) (Block, error) {
	if timestamp == 0 {
		timestamp = float64(time.Now().UnixNano()) / 1e9
	}
	txids := make([]string, len(transactions))
	for i, tx := range transactions {
		txids[i] = tx.TxID
	}
	merkleRoot := pqc.MerkleRoot(txids)

	b := Block{
		Index:        index,
		Timestamp:    timestamp,
		Transactions: transactions,
		PreviousHash: previousHash,
		MerkleRoot:   merkleRoot,
		Proof:        proof,
	}
	hash, err := b.computeHash()
	if err != nil {
		return Block{}, err
	}
	b.Hash = hash
	return b, nil
}

// WithProof returns a copy of the block with the given nonce and its hash
// recomputed. Used by the PoW search loop, which holds the header fixed and
// only varies the nonce.
func (b Block) WithProof(proof int64) (Block, error) {
	b.Proof = proof
	hash, err := b.computeHash()
	if err != nil {
		return Block{}, err
	}
	b.Hash = hash
	return b, nil
}

func (b Block) computeHash() (string, error) {
	header := map[string]any{
		"index":         b.Index,
		"timestamp":     b.Timestamp,
		"previous_hash": b.PreviousHash,
		"merkle_root":   b.MerkleRoot,
		"proof":         b.Proof,
	}
	return pqc.HashCanonical(header)
}

// wireBlock is the JSON shape of Block (spec §6.2): Hash is never
// transmitted, only recomputed by the receiver.
type wireBlock struct {
	Index        int           `json:"index"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previous_hash"`
	MerkleRoot   string        `json:"merkle_root"`
	Proof        int64         `json:"proof"`
}

// MarshalJSON emits the canonical block shape, omitting Hash.
func (b Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireBlock{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Transactions: b.Transactions,
		PreviousHash: b.PreviousHash,
		MerkleRoot:   b.MerkleRoot,
		Proof:        b.Proof,
	})
}

// UnmarshalJSON decodes the canonical block shape and recomputes Hash from
// the decoded header fields.
func (b *Block) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("unmarshal block: %w", err)
	}
	b.Index = w.Index
	b.Timestamp = w.Timestamp
	b.Transactions = w.Transactions
	b.PreviousHash = w.PreviousHash
	b.MerkleRoot = w.MerkleRoot
	b.Proof = w.Proof

	hash, err := b.computeHash()
	if err != nil {
		return fmt.Errorf("compute hash: %w", err)
	}
	b.Hash = hash
	return nil
}

// HeaderPrefix is the string the PoW search hashes together with the nonce
// (spec §4.4): height, previous hash, and Merkle root concatenated.
func (b Block) HeaderPrefix() string {
	return strconv.Itoa(b.Index) + b.PreviousHash + b.MerkleRoot
}
