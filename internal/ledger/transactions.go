package ledger

import (
	"github.com/klingon-exchange/pqchain/internal/amount"
	"github.com/klingon-exchange/pqchain/internal/chainmodel"
)

// AddTransaction admits a transaction to the mempool after validating it
// against the current UTXO Store. It returns false (never an error) for a
// structurally or cryptographically invalid transaction or a duplicate
// already pending — this is the boolean-result boundary spec §7 requires
// of the core.
func (l *Ledger) AddTransaction(tx chainmodel.Transaction) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.validateTransaction(tx, false) {
		l.log.Warn("rejected invalid transaction", "txid", shortID(tx.TxID))
		return false
	}

	for _, pending := range l.mempool {
		if pending.TxID == tx.TxID {
			return false
		}
	}

	l.mempool = append(l.mempool, tx)
	l.log.Info("transaction added to mempool", "txid", shortID(tx.TxID))
	return true
}

// Mempool returns a snapshot copy of the pending transaction list.
func (l *Ledger) Mempool() []chainmodel.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]chainmodel.Transaction, len(l.mempool))
	copy(out, l.mempool)
	return out
}

// validateTransaction implements spec §4.1's is_valid: non-empty outputs;
// for a coinbase, just the sentinel input shape; otherwise every input
// must reference an existing, unspent UTXO owned by the signing key, carry
// a signature the configured scheme accepts, and the transaction must not
// spend more than its inputs carry. Caller holds l.mu.
func (l *Ledger) validateTransaction(tx chainmodel.Transaction, isCoinbase bool) bool {
	if len(tx.Outputs) == 0 {
		return false
	}

	if isCoinbase {
		return tx.IsCoinbase()
	}

	inputSum := amount.Zero
	outputSum := tx.OutputSum()

	for _, in := range tx.Inputs {
		record, ok, err := l.utxoStore.GetByID(in.TxID, in.OutputIndex)
		if err != nil {
			l.log.Error("utxo lookup failed", "error", err)
			return false
		}
		if !ok {
			return false
		}
		if record.IsSpent() {
			return false
		}
		if record.Address != in.PubKey {
			return false
		}
		if !l.scheme.Verify(in.PubKey, tx.TxID, in.Signature) {
			return false
		}
		inputSum = inputSum.Add(record.Amount)
	}

	return inputSum.GreaterThanOrEqual(outputSum)
}

func shortID(txid string) string {
	if len(txid) <= 8 {
		return txid
	}
	return txid[:8]
}
