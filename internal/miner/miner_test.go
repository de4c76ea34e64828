package miner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/pqchain/internal/amount"
	"github.com/klingon-exchange/pqchain/internal/chainmodel"
	"github.com/klingon-exchange/pqchain/internal/ledger"
	"github.com/klingon-exchange/pqchain/internal/pqc"
	"github.com/klingon-exchange/pqchain/internal/storage"
	"github.com/klingon-exchange/pqchain/internal/utxo"
	"github.com/klingon-exchange/pqchain/pkg/logging"
)

type fixture struct {
	ledger   *ledger.Ledger
	scheme   pqc.Scheme
	minerPub string
	minerKey string
}

func newFixture(t *testing.T) fixture {
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

	l, err := ledger.New(ledger.Config{
		MinerAddress:                 minerPub,
		InitialDifficulty:            1,
		MinerReward:                  amount.FromFloat64(1),
		BlockTimeTarget:              10,
		DifficultyAdjustmentInterval: 1000,
	}, blockStore, utxoStore, scheme, logging.Default())
	require.NoError(t, err)

	return fixture{ledger: l, scheme: scheme, minerPub: minerPub, minerKey: minerKey}
}

func TestMineBlockReturnsFalseWithEmptyMempool(t *testing.T) {
	f := newFixture(t)
	m := New(f.ledger, logging.Default())

	block, mined, err := m.MineBlock(context.Background())
	require.NoError(t, err)
	assert.False(t, mined)
	assert.Equal(t, chainmodel.Block{}, block)
}

func TestMineBlockMinesPendingTransaction(t *testing.T) {
	f := newFixture(t)
	m := New(f.ledger, logging.Default())

	genesisTx := f.ledger.Chain()[0].Transactions[0]
	tx, err := chainmodel.NewTransaction(
		[]chainmodel.TxInput{{TxID: genesisTx.TxID, OutputIndex: 0, PubKey: f.minerPub}},
		[]chainmodel.TxOutput{{Amount: amount.FromFloat64(50), Address: "alice-pubkey"}},
		1,
	)
	require.NoError(t, err)
	require.NoError(t, tx.SignInput(0, f.scheme, f.minerKey))
	require.True(t, f.ledger.AddTransaction(tx))

	block, mined, err := m.MineBlock(context.Background())
	require.NoError(t, err)
	require.True(t, mined)

	assert.Equal(t, 1, block.Index)
	require.Len(t, block.Transactions, 2, "coinbase plus the one pending transaction")
	assert.True(t, block.Transactions[0].IsCoinbase())

	assert.Empty(t, f.ledger.Mempool())

	aliceBalance, err := f.ledger.BalanceOf("alice-pubkey")
	require.NoError(t, err)
	assert.True(t, aliceBalance.Cmp(amount.FromFloat64(50)) == 0)
}

func TestMineBlockPrunesSecondTransactionSpendingSameInput(t *testing.T) {
	f := newFixture(t)
	m := New(f.ledger, logging.Default())

	genesisTx := f.ledger.Chain()[0].Transactions[0]

	tx1, err := chainmodel.NewTransaction(
		[]chainmodel.TxInput{{TxID: genesisTx.TxID, OutputIndex: 0, PubKey: f.minerPub}},
		[]chainmodel.TxOutput{{Amount: amount.FromFloat64(10), Address: "alice-pubkey"}},
		1,
	)
	require.NoError(t, err)
	require.NoError(t, tx1.SignInput(0, f.scheme, f.minerKey))

	tx2, err := chainmodel.NewTransaction(
		[]chainmodel.TxInput{{TxID: genesisTx.TxID, OutputIndex: 0, PubKey: f.minerPub}},
		[]chainmodel.TxOutput{{Amount: amount.FromFloat64(20), Address: "bob-pubkey"}},
		2,
	)
	require.NoError(t, err)
	require.NoError(t, tx2.SignInput(0, f.scheme, f.minerKey))

	require.True(t, f.ledger.AddTransaction(tx1))
	require.True(t, f.ledger.AddTransaction(tx2))
	require.Len(t, f.ledger.Mempool(), 2, "both pass independent validation against the still-unspent output")

	block, mined, err := m.MineBlock(context.Background())
	require.NoError(t, err)
	require.True(t, mined)

	spending := 0
	var minedTxID string
	for _, tx := range block.Transactions {
		if tx.IsCoinbase() {
			continue
		}
		spending++
		minedTxID = tx.TxID
	}
	assert.Equal(t, 1, spending, "exactly one of the two conflicting transactions is mined")
	assert.Contains(t, []string{tx1.TxID, tx2.TxID}, minedTxID)
	assert.Empty(t, f.ledger.Mempool(), "the conflicting transaction is pruned rather than left pending")
}

func TestMineBlockPaysCoinbaseToMinerAddress(t *testing.T) {
	f := newFixture(t)
	m := New(f.ledger, logging.Default())

	genesisTx := f.ledger.Chain()[0].Transactions[0]
	tx, err := chainmodel.NewTransaction(
		[]chainmodel.TxInput{{TxID: genesisTx.TxID, OutputIndex: 0, PubKey: f.minerPub}},
		[]chainmodel.TxOutput{{Amount: amount.FromFloat64(10), Address: "bob-pubkey"}},
		1,
	)
	require.NoError(t, err)
	require.NoError(t, tx.SignInput(0, f.scheme, f.minerKey))
	require.True(t, f.ledger.AddTransaction(tx))

	block, mined, err := m.MineBlock(context.Background())
	require.NoError(t, err)
	require.True(t, mined)

	coinbase := block.Transactions[0]
	assert.Equal(t, f.minerPub, coinbase.Outputs[0].Address)
	assert.True(t, coinbase.Outputs[0].Amount.Cmp(f.ledger.MinerReward()) >= 0)
}
