package ledger

import (
	"fmt"

	"github.com/klingon-exchange/pqchain/internal/chainmodel"
	"github.com/klingon-exchange/pqchain/internal/ledgererr"
	"github.com/klingon-exchange/pqchain/internal/pqc"
	"github.com/klingon-exchange/pqchain/pkg/helpers"
)

// CommitBlock runs the commit protocol spec §4.3/§5 require to be atomic
// with respect to external observation: check the block extends the current
// tip and its UTXO effects are internally consistent, persist to the Block
// Store, append to the in-memory chain, apply the block's effect to the UTXO
// Store, then prune committed transactions from the mempool. The whole
// sequence runs under the ledger lock. The tip-link and UTXO checks run
// first and mutate nothing, so a stale block or a block with a double spend (two conflicting transactions both admitted,
// or an input that's already spent) is rejected before the Block Store or
// chain are ever touched (spec §7: a failed commit leaves both untouched).
func (l *Ledger) CommitBlock(block chainmodel.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commitBlockLocked(block)
}

func (l *Ledger) commitBlockLocked(block chainmodel.Block) error {
	if n := len(l.chain); n > 0 && block.PreviousHash != l.chain[n-1].Hash {
		return fmt.Errorf("%w: block %d does not extend the current tip", ledgererr.ErrValidation, block.Index)
	}
	if err := l.checkBlockUTXOEffects(block); err != nil {
		return fmt.Errorf("%w: %v", ledgererr.ErrDoubleSpend, err)
	}

	saved, err := l.blockStore.SaveBlock(block)
	if err != nil {
		return fmt.Errorf("%w: %v", ledgererr.ErrPersistence, err)
	}
	if !saved {
		return fmt.Errorf("%w: block %d", ledgererr.ErrAlreadyExists, block.Index)
	}

	l.chain = append(l.chain, block)

	if err := l.applyBlockToUTXOSet(block); err != nil {
		return fmt.Errorf("%w: %v", ledgererr.ErrDoubleSpend, err)
	}

	l.pruneMempool(block)
	return nil
}

func (l *Ledger) pruneMempool(block chainmodel.Block) {
	mined := make(map[string]bool, len(block.Transactions))
	for _, tx := range block.Transactions {
		mined[tx.TxID] = true
	}
	kept := l.mempool[:0]
	for _, tx := range l.mempool {
		if !mined[tx.TxID] {
			kept = append(kept, tx)
		}
	}
	l.mempool = kept
}

// AdjustDifficulty recomputes the PoW difficulty if the chain length has
// just crossed a DifficultyAdjustmentInterval boundary, comparing the
// actual time spent mining the last interval against the expected time
// (spec §4.3's retarget rule, §8 scenario S6).
func (l *Ledger) AdjustDifficulty() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.adjustDifficulty()
}

func (l *Ledger) adjustDifficulty() {
	n := l.cfg.DifficultyAdjustmentInterval
	if n <= 0 || len(l.chain)%n != 0 || len(l.chain) <= 1 {
		return
	}

	prevAdjustmentBlock := l.chain[len(l.chain)-n]
	lastBlock := l.chain[len(l.chain)-1]
	timeTaken := lastBlock.Timestamp - prevAdjustmentBlock.Timestamp
	expectedTime := l.cfg.BlockTimeTarget * float64(n)

	switch {
	case timeTaken < expectedTime/2:
		l.difficulty++
		l.log.Info("difficulty increased", "difficulty", l.difficulty)
	case timeTaken > expectedTime*2:
		if l.difficulty > 1 {
			l.difficulty--
		}
		l.log.Info("difficulty decreased", "difficulty", l.difficulty)
	}
}

// IsChainValid performs the relaxed structural check spec §4.5 specifies
// for foreign chains: the hash-link chain, a single leading zero hex char
// on every block hash (not this node's current difficulty — a foreign
// chain's own difficulty history isn't recorded per block, spec §9's known
// weakness), and Merkle root recomputation. It does not replay UTXO state;
// that only happens after a chain is accepted, via RebuildUTXOSet.
func IsChainValid(chain []chainmodel.Block) bool {
	for i, block := range chain {
		if i > 0 && block.PreviousHash != chain[i-1].Hash {
			return false
		}
		if !helpers.HasLeadingZeroHex(block.Hash, 1) {
			return false
		}

		txids := make([]string, len(block.Transactions))
		for j, tx := range block.Transactions {
			txids[j] = tx.TxID
		}
		expectedRoot := pqc.MerkleRoot(txids)
		if block.MerkleRoot != expectedRoot {
			return false
		}
	}
	return true
}

// ReplaceChain atomically swaps the in-memory and persisted chain for a
// longer, structurally valid alternative (spec §4.5), then rebuilds the
// UTXO Store from it. The whole clear+rewrite+rebuild sequence runs under
// the ledger lock so readers see either the old chain or the new one, never
// a partial rewrite.
func (l *Ledger) ReplaceChain(newChain []chainmodel.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.blockStore.ClearBlocks(); err != nil {
		return fmt.Errorf("%w: %v", ledgererr.ErrPersistence, err)
	}
	for _, block := range newChain {
		if _, err := l.blockStore.SaveBlock(block); err != nil {
			return fmt.Errorf("%w: %v", ledgererr.ErrPersistence, err)
		}
	}

	l.chain = newChain
	if err := l.RebuildUTXOSet(); err != nil {
		return fmt.Errorf("rebuild utxo set after replacement: %w", err)
	}

	l.mempool = pruneAgainstChain(l.mempool, newChain)
	return nil
}

func pruneAgainstChain(mempool []chainmodel.Transaction, chain []chainmodel.Block) []chainmodel.Transaction {
	mined := make(map[string]bool)
	for _, block := range chain {
		for _, tx := range block.Transactions {
			mined[tx.TxID] = true
		}
	}
	kept := mempool[:0]
	for _, tx := range mempool {
		if !mined[tx.TxID] {
			kept = append(kept, tx)
		}
	}
	return kept
}

// AddBlockFromPeer validates an inbound block against the current tip
// (previous-hash link and this node's live difficulty, spec §4.5's inbound
// handling — stricter than the relaxed foreign-chain check IsChainValid
// uses) and commits it if it extends the chain.
func (l *Ledger) AddBlockFromPeer(block chainmodel.Block) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	tip := l.chain[len(l.chain)-1]
	if block.PreviousHash != tip.Hash {
		return false
	}
	if !helpers.HasLeadingZeroHex(block.Hash, l.difficulty) {
		return false
	}
	if err := l.commitBlockLocked(block); err != nil {
		l.log.Warn("failed to commit block from peer", "error", err)
		return false
	}
	return true
}
