package ledger

import (
	"github.com/klingon-exchange/pqchain/internal/amount"
	"github.com/klingon-exchange/pqchain/internal/chainmodel"
)

// TipSnapshot is the chain state a miner needs to prepare a candidate
// block before running the (lock-free) PoW search: spec §5 requires the
// search itself not hold the ledger lock, so the miner reads this once,
// searches, then calls CommitBlock — which re-validates the previous-hash
// link and naturally fails if the tip advanced meanwhile.
type TipSnapshot struct {
	NextIndex    int
	PreviousHash string
	Difficulty   int
}

// Tip returns the current chain tip snapshot.
func (l *Ledger) Tip() TipSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	tip := l.chain[len(l.chain)-1]
	return TipSnapshot{
		NextIndex:    len(l.chain),
		PreviousHash: tip.Hash,
		Difficulty:   l.difficulty,
	}
}

// SelectAndValidateMempool validates every pending transaction against the
// live UTXO Store, drops invalid ones from the mempool (spec §4.4: "select
// txs" silently prunes what no longer validates), and returns the
// survivors along with the total fee (sum of input amounts minus output
// amounts across the validated set).
//
// validateTransaction alone only checks a transaction against the
// persisted UTXO Store, which still shows an output unspent until a block
// actually commits — so two mempool transactions racing to spend the same
// output both pass it independently. claimed tracks inputs already spent
// by an earlier transaction in this same pass so the second one is pruned
// here rather than surviving into the same candidate block (spec §8 S3:
// exactly one of the two is included).
func (l *Ledger) SelectAndValidateMempool() ([]chainmodel.Transaction, amount.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()

	type spendKey struct {
		txid string
		idx  int
	}
	claimed := make(map[spendKey]bool)

	var validated []chainmodel.Transaction
	fees := amount.Zero

	for _, tx := range l.mempool {
		if !l.validateTransaction(tx, false) {
			continue
		}

		conflict := false
		for _, in := range tx.Inputs {
			if claimed[spendKey{in.TxID, in.OutputIndex}] {
				conflict = true
				break
			}
		}
		if conflict {
			l.log.Warn("pruned mempool transaction spending an input already claimed this round", "txid", shortID(tx.TxID))
			continue
		}

		inputSum := amount.Zero
		for _, in := range tx.Inputs {
			claimed[spendKey{in.TxID, in.OutputIndex}] = true
			record, ok, err := l.utxoStore.GetByID(in.TxID, in.OutputIndex)
			if err != nil || !ok {
				continue
			}
			inputSum = inputSum.Add(record.Amount)
		}
		fees = fees.Add(inputSum.Sub(tx.OutputSum()))
		validated = append(validated, tx)
	}

	l.mempool = validated
	return validated, fees
}

// BuildCoinbase constructs a fresh coinbase transaction paying amt to this
// ledger's configured miner address.
func (l *Ledger) BuildCoinbase(amt amount.Amount) (chainmodel.Transaction, error) {
	return l.newCoinbaseTx(l.cfg.MinerAddress, amt)
}

// MinerReward returns the configured base block reward.
func (l *Ledger) MinerReward() amount.Amount {
	return l.cfg.MinerReward
}
