// Package ledger implements the Ledger Core (spec §4.3): startup/genesis,
// mempool admission, block commit, and difficulty adjustment. It owns the
// chain, mempool, and current difficulty, and serializes every mutation of
// them behind a single ledger-scoped lock (spec §5) — block commit,
// mempool pruning, and chain replacement during reconciliation all acquire
// it for their whole sequence, never piecemeal.
package ledger

import (
	"fmt"
	"sync"

	"github.com/klingon-exchange/pqchain/internal/amount"
	"github.com/klingon-exchange/pqchain/internal/chainmodel"
	"github.com/klingon-exchange/pqchain/internal/ledgererr"
	"github.com/klingon-exchange/pqchain/internal/pqc"
	"github.com/klingon-exchange/pqchain/internal/storage"
	"github.com/klingon-exchange/pqchain/internal/utxo"
	"github.com/klingon-exchange/pqchain/pkg/helpers"
	"github.com/klingon-exchange/pqchain/pkg/logging"
)

// Config carries the consensus parameters spec §6.5 exposes as
// configuration (MINER_REWARD, BLOCK_TIME_TARGET, etc).
type Config struct {
	MinerAddress                 string
	InitialDifficulty            int
	MinerReward                  amount.Amount
	BlockTimeTarget              float64
	DifficultyAdjustmentInterval int
}

// Ledger is the Ledger Core. All exported methods are safe for concurrent
// use.
type Ledger struct {
	cfg        Config
	blockStore *storage.Store
	utxoStore  *utxo.Store
	scheme     pqc.Scheme
	log        *logging.Logger

	mu         sync.Mutex
	chain      []chainmodel.Block
	mempool    []chainmodel.Transaction
	difficulty int
}

// New loads the chain from the Block Store, creating and persisting a
// genesis block if the store is empty, then rebuilds the UTXO Store from
// the loaded chain (spec §4.3 startup sequence; §9 notes the rebuild is
// the canonical reconstruction path, not an optimization).
func New(cfg Config, blockStore *storage.Store, utxoStore *utxo.Store, scheme pqc.Scheme, log *logging.Logger) (*Ledger, error) {
	l := &Ledger{
		cfg:        cfg,
		blockStore: blockStore,
		utxoStore:  utxoStore,
		scheme:     scheme,
		log:        log.Component("ledger"),
		difficulty: cfg.InitialDifficulty,
	}

	blocks, err := blockStore.LoadAllBlocks()
	if err != nil {
		return nil, fmt.Errorf("load chain: %w", err)
	}

	if len(blocks) == 0 {
		l.log.Warn("no chain found, creating genesis block")
		if err := l.createGenesisBlock(); err != nil {
			return nil, fmt.Errorf("create genesis block: %w", err)
		}
		return l, nil
	}

	l.chain = blocks
	l.adjustDifficulty()
	if err := l.RebuildUTXOSet(); err != nil {
		return nil, fmt.Errorf("rebuild utxo set: %w", err)
	}
	return l, nil
}

func (l *Ledger) createGenesisBlock() error {
	genesisReward := l.cfg.MinerReward
	for i := 0; i < 999; i++ {
		genesisReward = genesisReward.Add(l.cfg.MinerReward)
	}
	cb, err := l.newCoinbaseTx(l.cfg.MinerAddress, genesisReward)
	if err != nil {
		return err
	}
	genesis, err := chainmodel.NewBlock(0, []chainmodel.Transaction{cb}, helpers.ZeroHash128, 0, 0)
	if err != nil {
		return err
	}

	saved, err := l.blockStore.SaveBlock(genesis)
	if err != nil {
		return fmt.Errorf("%w: %v", ledgererr.ErrPersistence, err)
	}
	if !saved {
		return fmt.Errorf("%w: genesis block", ledgererr.ErrAlreadyExists)
	}

	l.chain = append(l.chain, genesis)
	if err := l.applyBlockToUTXOSet(genesis); err != nil {
		return err
	}
	l.log.Info("genesis block created", "miner", l.cfg.MinerAddress)
	return nil
}

// newCoinbaseTx builds the sentinel coinbase transaction: one input with
// txid = 128 zero hex chars and output_index = -1, signature "COINBASE",
// pub_key the same zero sentinel (spec §3.1). It is never run through
// Sign/Verify — these fields are fixed literals, not real signature
// material.
func (l *Ledger) newCoinbaseTx(recipient string, amt amount.Amount) (chainmodel.Transaction, error) {
	tx, err := chainmodel.NewTransaction(
		[]chainmodel.TxInput{{TxID: helpers.ZeroHash128, OutputIndex: -1}},
		[]chainmodel.TxOutput{{Amount: amt, Address: recipient}},
		0,
	)
	if err != nil {
		return chainmodel.Transaction{}, err
	}
	tx.Inputs[0].Signature = helpers.CoinbaseTag
	tx.Inputs[0].PubKey = helpers.ZeroHash128
	return tx, nil
}

// LastBlock returns the current chain tip.
func (l *Ledger) LastBlock() chainmodel.Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chain[len(l.chain)-1]
}

// Chain returns a snapshot copy of the full chain.
func (l *Ledger) Chain() []chainmodel.Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]chainmodel.Block, len(l.chain))
	copy(out, l.chain)
	return out
}

// Difficulty returns the current PoW difficulty.
func (l *Ledger) Difficulty() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.difficulty
}

// MinerAddress returns the address mined rewards are paid to.
func (l *Ledger) MinerAddress() string { return l.cfg.MinerAddress }

// Scheme returns the signature scheme this ledger verifies against.
func (l *Ledger) Scheme() pqc.Scheme { return l.scheme }
