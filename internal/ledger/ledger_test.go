package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/pqchain/internal/amount"
	"github.com/klingon-exchange/pqchain/internal/chainmodel"
	"github.com/klingon-exchange/pqchain/internal/ledgererr"
	"github.com/klingon-exchange/pqchain/internal/pqc"
	"github.com/klingon-exchange/pqchain/internal/storage"
	"github.com/klingon-exchange/pqchain/internal/utxo"
	"github.com/klingon-exchange/pqchain/pkg/logging"
)

type testFixture struct {
	ledger   *Ledger
	scheme   pqc.Scheme
	minerPub string
	minerKey string
}

func newTestLedger(t *testing.T) testFixture {
	t.Helper()
	dir := t.TempDir()

	blockStore, err := storage.New(storage.Config{DataDir: dir, FileName: "blocks.db"})
	require.NoError(t, err)
	t.Cleanup(func() { blockStore.Close() })

	utxoStore, err := utxo.New(utxo.Config{DataDir: dir, FileName: "utxo.db"})
	require.NoError(t, err)
	t.Cleanup(func() { utxoStore.Close() })

	scheme := pqc.Dilithium3()
	minerPub, minerKey, err := scheme.GenerateKeyPair()
	require.NoError(t, err)

	l, err := New(Config{
		MinerAddress:                 minerPub,
		InitialDifficulty:            1,
		MinerReward:                  amount.FromFloat64(1),
		BlockTimeTarget:              10,
		DifficultyAdjustmentInterval: 5,
	}, blockStore, utxoStore, scheme, logging.Default())
	require.NoError(t, err)

	return testFixture{ledger: l, scheme: scheme, minerPub: minerPub, minerKey: minerKey}
}

// transferFrom builds and signs a transaction spending the given UTXO.
func (f testFixture) transferFrom(t *testing.T, txid string, outputIndex int, recipient string, amt, fee amount.Amount, inputTotal amount.Amount) chainmodel.Transaction {
	t.Helper()
	change := inputTotal.Sub(amt).Sub(fee)

	outputs := []chainmodel.TxOutput{{Amount: amt, Address: recipient}}
	if change.GreaterThanOrEqual(amount.FromFloat64(0)) && !change.IsZero() {
		outputs = append(outputs, chainmodel.TxOutput{Amount: change, Address: f.minerPub})
	}

	tx, err := chainmodel.NewTransaction(
		[]chainmodel.TxInput{{TxID: txid, OutputIndex: outputIndex, PubKey: f.minerPub}},
		outputs,
		1,
	)
	require.NoError(t, err)
	require.NoError(t, tx.SignInput(0, f.scheme, f.minerKey))
	return tx
}

func TestNewCreatesGenesisBlock(t *testing.T) {
	f := newTestLedger(t)

	chain := f.ledger.Chain()
	require.Len(t, chain, 1)
	assert.Equal(t, 0, chain[0].Index)
	assert.True(t, chain[0].Transactions[0].IsCoinbase())

	balance, err := f.ledger.BalanceOf(f.minerPub)
	require.NoError(t, err)
	assert.True(t, balance.GreaterThanOrEqual(amount.FromFloat64(1000)))
}

func TestAddTransactionAcceptsValidSpend(t *testing.T) {
	f := newTestLedger(t)
	genesisTx := f.ledger.Chain()[0].Transactions[0]

	tx := f.transferFrom(t, genesisTx.TxID, 0, "alice-pubkey", amount.FromFloat64(10), amount.Zero, genesisTx.Outputs[0].Amount)

	assert.True(t, f.ledger.AddTransaction(tx))
	assert.Len(t, f.ledger.Mempool(), 1)
}

func TestAddTransactionRejectsInvalidSignature(t *testing.T) {
	f := newTestLedger(t)
	genesisTx := f.ledger.Chain()[0].Transactions[0]

	tx := f.transferFrom(t, genesisTx.TxID, 0, "alice-pubkey", amount.FromFloat64(10), amount.Zero, genesisTx.Outputs[0].Amount)
	tx.Inputs[0].Signature = "too-short"

	assert.False(t, f.ledger.AddTransaction(tx))
	assert.Empty(t, f.ledger.Mempool())
}

func TestAddTransactionRejectsUnknownInput(t *testing.T) {
	f := newTestLedger(t)

	tx, err := chainmodel.NewTransaction(
		[]chainmodel.TxInput{{TxID: "does-not-exist", OutputIndex: 0, PubKey: f.minerPub}},
		[]chainmodel.TxOutput{{Amount: amount.FromFloat64(1), Address: "alice-pubkey"}},
		1,
	)
	require.NoError(t, err)
	require.NoError(t, tx.SignInput(0, f.scheme, f.minerKey))

	assert.False(t, f.ledger.AddTransaction(tx))
}

func TestAddTransactionRejectsDuplicateInMempool(t *testing.T) {
	f := newTestLedger(t)
	genesisTx := f.ledger.Chain()[0].Transactions[0]

	tx := f.transferFrom(t, genesisTx.TxID, 0, "alice-pubkey", amount.FromFloat64(10), amount.Zero, genesisTx.Outputs[0].Amount)

	require.True(t, f.ledger.AddTransaction(tx))
	assert.False(t, f.ledger.AddTransaction(tx), "identical txid must not be admitted twice")
}

func TestCommitBlockAppliesUTXOEffectsAndPrunesMempool(t *testing.T) {
	f := newTestLedger(t)
	genesisTx := f.ledger.Chain()[0].Transactions[0]

	tx := f.transferFrom(t, genesisTx.TxID, 0, "alice-pubkey", amount.FromFloat64(10), amount.Zero, genesisTx.Outputs[0].Amount)
	require.True(t, f.ledger.AddTransaction(tx))

	tip := f.ledger.Tip()
	block, err := chainmodel.NewBlock(tip.NextIndex, []chainmodel.Transaction{tx}, tip.PreviousHash, 0, 2000)
	require.NoError(t, err)

	require.NoError(t, f.ledger.CommitBlock(block))

	assert.Empty(t, f.ledger.Mempool())

	aliceBalance, err := f.ledger.BalanceOf("alice-pubkey")
	require.NoError(t, err)
	assert.True(t, aliceBalance.Cmp(amount.FromFloat64(10)) == 0)
}

func TestCommitBlockRejectsDoubleSpendAcrossTwoTransactions(t *testing.T) {
	f := newTestLedger(t)
	genesisTx := f.ledger.Chain()[0].Transactions[0]

	tx1 := f.transferFrom(t, genesisTx.TxID, 0, "alice-pubkey", amount.FromFloat64(10), amount.Zero, genesisTx.Outputs[0].Amount)
	tx2 := f.transferFrom(t, genesisTx.TxID, 0, "bob-pubkey", amount.FromFloat64(20), amount.Zero, genesisTx.Outputs[0].Amount)

	tip := f.ledger.Tip()
	block, err := chainmodel.NewBlock(tip.NextIndex, []chainmodel.Transaction{tx1, tx2}, tip.PreviousHash, 0, 2000)
	require.NoError(t, err)

	chainBefore := f.ledger.Chain()
	aliceBefore, err := f.ledger.BalanceOf("alice-pubkey")
	require.NoError(t, err)
	bobBefore, err := f.ledger.BalanceOf("bob-pubkey")
	require.NoError(t, err)

	err = f.ledger.CommitBlock(block)
	assert.Error(t, err, "second transaction spends the same output the first already consumed")
	assert.ErrorIs(t, err, ledgererr.ErrDoubleSpend)

	assert.Equal(t, chainBefore, f.ledger.Chain(), "a rejected commit must leave the chain untouched")

	aliceAfter, err := f.ledger.BalanceOf("alice-pubkey")
	require.NoError(t, err)
	bobAfter, err := f.ledger.BalanceOf("bob-pubkey")
	require.NoError(t, err)
	assert.True(t, aliceBefore.Cmp(aliceAfter) == 0, "a rejected commit must leave the utxo set untouched")
	assert.True(t, bobBefore.Cmp(bobAfter) == 0, "a rejected commit must leave the utxo set untouched")

	genesisBalance, err := f.ledger.BalanceOf(f.minerPub)
	require.NoError(t, err)
	assert.True(t, genesisBalance.GreaterThanOrEqual(genesisTx.Outputs[0].Amount), "the original output must still be spendable")
}

func TestAddBlockFromPeerRejectsWrongPreviousHash(t *testing.T) {
	f := newTestLedger(t)

	block, err := chainmodel.NewBlock(99, nil, "not-the-real-tip", 0, 2000)
	require.NoError(t, err)

	assert.False(t, f.ledger.AddBlockFromPeer(block))
}

func TestIsChainValidRejectsBrokenLink(t *testing.T) {
	f := newTestLedger(t)
	genesis := f.ledger.Chain()[0]

	second, err := genesis.WithProof(0)
	require.NoError(t, err)
	second.PreviousHash = "wrong"

	assert.False(t, IsChainValid([]chainmodel.Block{genesis, second}))
}

func TestAdjustDifficultyIncreasesWhenBlocksComeFast(t *testing.T) {
	f := newTestLedger(t)

	base := f.ledger.Chain()[0]
	chain := []chainmodel.Block{base}
	for i := 1; i <= 4; i++ {
		tip := chain[len(chain)-1]
		b, err := chainmodel.NewBlock(i, nil, tip.Hash, 0, tip.Timestamp+0.1)
		require.NoError(t, err)
		chain = append(chain, b)
	}
	require.Len(t, chain, 5)

	require.NoError(t, f.ledger.ReplaceChain(chain))
	before := f.ledger.Difficulty()
	f.ledger.AdjustDifficulty()
	assert.Equal(t, before+1, f.ledger.Difficulty(), "blocks mined far faster than target should raise difficulty")
}
