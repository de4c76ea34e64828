// Package chainmodel defines the wire and consensus data types shared by
// every component of the ledger core: transactions, blocks, and the
// canonical encodings their hashes are rooted in (spec §3).
package chainmodel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klingon-exchange/pqchain/internal/amount"
	"github.com/klingon-exchange/pqchain/internal/pqc"
	"github.com/klingon-exchange/pqchain/pkg/helpers"
)

// TxInput references a previously created, unspent output.
type TxInput struct {
	TxID        string `json:"txid"`
	OutputIndex int    `json:"output_index"`
	Signature   string `json:"signature"`
	PubKey      string `json:"pub_key"`
}

func (in TxInput) canonicalMap(includeSignature bool) map[string]any {
	sig := in.Signature
	if !includeSignature {
		sig = ""
	}
	return map[string]any{
		"txid":         in.TxID,
		"output_index": in.OutputIndex,
		"signature":    sig,
		"pub_key":      in.PubKey,
	}
}

// IsCoinbaseSentinel reports whether this input is the coinbase marker input
// (spec §3.1): txid is the all-zero 128-hex sentinel and output_index is -1.
func (in TxInput) IsCoinbaseSentinel() bool {
	return in.TxID == helpers.ZeroHash128 && in.OutputIndex == -1
}

// TxOutput creates spendable value for an address.
type TxOutput struct {
	Amount  amount.Amount `json:"amount"`
	Address string        `json:"address"`
}

func (o TxOutput) canonicalMap() map[string]any {
	return map[string]any{
		"address": o.Address,
		"amount":  o.Amount.Float64(),
	}
}

// Transaction is the atomic unit of value transfer. TxID is derived, never
// set directly: it is the hash of the transaction's canonical form with
// every input signature blanked out (spec §4.1), so a signature can be
// attached after TxID is already fixed.
//
// TxID is excluded from the JSON encoding (spec §6.3's canonical shape
// carries only version/timestamp/inputs/outputs); every receiver
// recomputes it from the decoded fields rather than trusting a wire value.
type Transaction struct {
	Version   int        `json:"version"`
	Timestamp float64    `json:"timestamp"`
	Inputs    []TxInput  `json:"inputs"`
	Outputs   []TxOutput `json:"outputs"`
	TxID      string     `json:"-"`
}

// wireTransaction is the JSON shape of Transaction, used so
// MarshalJSON/UnmarshalJSON don't recurse into themselves via the named
// type's methods.
type wireTransaction struct {
	Version   int        `json:"version"`
	Timestamp float64    `json:"timestamp"`
	Inputs    []TxInput  `json:"inputs"`
	Outputs   []TxOutput `json:"outputs"`
}

// MarshalJSON emits the canonical transaction shape, omitting TxID.
func (tx Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTransaction{
		Version:   tx.Version,
		Timestamp: tx.Timestamp,
		Inputs:    tx.Inputs,
		Outputs:   tx.Outputs,
	})
}

// UnmarshalJSON decodes the canonical transaction shape and recomputes
// TxID from the decoded fields.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var w wireTransaction
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("unmarshal transaction: %w", err)
	}
	tx.Version = w.Version
	tx.Timestamp = w.Timestamp
	tx.Inputs = w.Inputs
	tx.Outputs = w.Outputs

	txid, err := tx.computeTxID()
	if err != nil {
		return fmt.Errorf("compute txid: %w", err)
	}
	tx.TxID = txid
	return nil
}

// TransactionVersion is the version stamped on every transaction this node
// constructs. It is a fixed constant: the TRANSACTION_VERSION value that
// package config loads is not consulted here.
const TransactionVersion = 1

// NewTransaction builds a transaction and computes its txid. The caller
// attaches input signatures afterward with SignInput; doing so never
// changes TxID, since signatures are excluded from the hashed form.
func NewTransaction(inputs []TxInput, outputs []TxOutput, timestamp float64) (Transaction, error) {
	if timestamp == 0 {
		timestamp = float64(time.Now().UnixNano()) / 1e9
	}
	tx := Transaction{
		Version:   TransactionVersion,
		Timestamp: timestamp,
		Inputs:    inputs,
		Outputs:   outputs,
	}
	txid, err := tx.computeTxID()
	if err != nil {
		return Transaction{}, err
	}
	tx.TxID = txid
	return tx, nil
}

func (tx Transaction) computeTxID() (string, error) {
	return pqc.HashCanonical(tx.canonicalMap(false))
}

// canonicalMap mirrors the original's to_dict(include_signature): the
// signature-blanked form is what TxID (and therefore every signature) is
// computed over. Wire transfer and storage do not use this map; they go
// through MarshalJSON.
func (tx Transaction) canonicalMap(includeSignature bool) map[string]any {
	inputs := make([]any, len(tx.Inputs))
	for i, in := range tx.Inputs {
		inputs[i] = in.canonicalMap(includeSignature)
	}
	outputs := make([]any, len(tx.Outputs))
	for i, out := range tx.Outputs {
		outputs[i] = out.canonicalMap()
	}
	return map[string]any{
		"inputs":    inputs,
		"outputs":   outputs,
		"timestamp": tx.Timestamp,
		"version":   tx.Version,
	}
}

// SignInput signs the transaction's txid with the given scheme and private
// key, attaching the result to the input at idx.
func (tx *Transaction) SignInput(idx int, scheme pqc.Scheme, privKey string) error {
	if idx < 0 || idx >= len(tx.Inputs) {
		return ErrInputIndexOutOfRange
	}
	tx.Inputs[idx].Signature = scheme.Sign(privKey, tx.TxID)
	return nil
}

// OutputSum totals the transaction's outputs.
func (tx Transaction) OutputSum() amount.Amount {
	total := amount.Zero
	for _, o := range tx.Outputs {
		total = total.Add(o.Amount)
	}
	return total
}

// IsCoinbase reports whether this transaction is structurally a coinbase:
// exactly one input carrying the coinbase sentinel.
func (tx Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].IsCoinbaseSentinel()
}
