// Package miner implements the Miner component (spec §4.4): transaction
// selection, coinbase construction, Merkle root computation, the
// proof-of-work search, and handing the assembled block back to the Ledger
// Core to commit.
package miner

import (
	"context"
	"strconv"

	"github.com/klingon-exchange/pqchain/internal/chainmodel"
	"github.com/klingon-exchange/pqchain/internal/ledger"
	"github.com/klingon-exchange/pqchain/internal/pqc"
	"github.com/klingon-exchange/pqchain/pkg/helpers"
	"github.com/klingon-exchange/pqchain/pkg/logging"
)

// Miner drives block production against a Ledger Core.
type Miner struct {
	ledger *ledger.Ledger
	log    *logging.Logger
}

// New returns a Miner bound to the given ledger.
func New(l *ledger.Ledger, log *logging.Logger) *Miner {
	return &Miner{ledger: l, log: log.Component("miner")}
}

// MineBlock selects and validates pending transactions, builds a coinbase
// paying the base reward plus collected fees, runs the PoW search, and
// commits the result. It returns (Block{}, false, nil) rather than an
// error when there is nothing to mine — the original's "No transactions or
// mining failed" response (spec §6.1).
//
// The PoW search below does not hold the ledger lock (spec §5): Tip() reads
// the header inputs once, the search runs free, and CommitBlock re-checks
// the previous-hash link at the end. If a peer's block landed first, that
// check fails and this call returns false — the caller is expected to
// treat this the same as "nothing to mine".
func (m *Miner) MineBlock(ctx context.Context) (chainmodel.Block, bool, error) {
	m.ledger.AdjustDifficulty()

	validated, fees := m.ledger.SelectAndValidateMempool()
	if len(validated) == 0 {
		return chainmodel.Block{}, false, nil
	}

	reward := m.ledger.MinerReward().Add(fees)
	coinbase, err := m.ledger.BuildCoinbase(reward)
	if err != nil {
		return chainmodel.Block{}, false, err
	}

	finalTxs := append([]chainmodel.Transaction{coinbase}, validated...)

	tip := m.ledger.Tip()
	m.log.Info("mining block", "height", tip.NextIndex, "difficulty", tip.Difficulty, "txs", len(finalTxs))

	candidate, err := chainmodel.NewBlock(tip.NextIndex, finalTxs, tip.PreviousHash, 0, 0)
	if err != nil {
		return chainmodel.Block{}, false, err
	}

	mined, err := proofOfWork(ctx, candidate, tip.Difficulty)
	if err != nil {
		return chainmodel.Block{}, false, err
	}

	if err := m.ledger.CommitBlock(mined); err != nil {
		m.log.Warn("mined block failed to commit, tip advanced underneath it", "error", err)
		return chainmodel.Block{}, false, nil
	}

	m.log.Info("block mined", "height", mined.Index, "hash", shortHash(mined.Hash))
	return mined, true, nil
}

// proofOfWork finds the smallest nonce such that
// sha3_512(str(index)+previous_hash+merkle_root+str(nonce)) has at least
// difficulty leading zero hex characters (spec §4.4). It is a linear scan,
// matching the original's proof_of_work — no mining hardware acceleration,
// just the reference algorithm.
func proofOfWork(ctx context.Context, candidate chainmodel.Block, difficulty int) (chainmodel.Block, error) {
	prefix := candidate.HeaderPrefix()
	for nonce := int64(0); ; nonce++ {
		select {
		case <-ctx.Done():
			return chainmodel.Block{}, ctx.Err()
		default:
		}

		hash := pqc.HashString(prefix + strconv.FormatInt(nonce, 10))
		if helpers.HasLeadingZeroHex(hash, difficulty) {
			return candidate.WithProof(nonce)
		}
	}
}

func shortHash(h string) string {
	if len(h) <= 10 {
		return h
	}
	return h[:10]
}
