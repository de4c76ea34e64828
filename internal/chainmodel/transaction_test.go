package chainmodel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/pqchain/internal/amount"
	"github.com/klingon-exchange/pqchain/internal/pqc"
	"github.com/klingon-exchange/pqchain/pkg/helpers"
)

func TestNewTransactionComputesTxID(t *testing.T) {
	tx, err := NewTransaction(
		[]TxInput{{TxID: "prev", OutputIndex: 0, PubKey: "pub"}},
		[]TxOutput{{Amount: amount.FromFloat64(10), Address: "addr"}},
		1234.5,
	)
	require.NoError(t, err)
	assert.NotEmpty(t, tx.TxID)
	assert.Len(t, tx.TxID, 128)
}

func TestTxIDIsStableAcrossSigning(t *testing.T) {
	tx, err := NewTransaction(
		[]TxInput{{TxID: "prev", OutputIndex: 0, PubKey: "pub"}},
		[]TxOutput{{Amount: amount.FromFloat64(10), Address: "addr"}},
		1234.5,
	)
	require.NoError(t, err)
	before := tx.TxID

	scheme := pqc.Dilithium3()
	_, priv, err := scheme.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, tx.SignInput(0, scheme, priv))

	assert.Equal(t, before, tx.TxID, "signing must not change txid, since signatures are blanked out during computation")
	assert.NotEmpty(t, tx.Inputs[0].Signature)
}

func TestTransactionJSONOmitsTxIDAndRecomputesOnDecode(t *testing.T) {
	tx, err := NewTransaction(
		[]TxInput{{TxID: "prev", OutputIndex: 0, PubKey: "pub", Signature: "sig"}},
		[]TxOutput{{Amount: amount.FromFloat64(5), Address: "addr"}},
		100,
	)
	require.NoError(t, err)

	data, err := json.Marshal(tx)
	require.NoError(t, err)

	var asMap map[string]any
	require.NoError(t, json.Unmarshal(data, &asMap))
	_, hasTxID := asMap["txid"]
	assert.False(t, hasTxID, "canonical transaction JSON must not carry a txid field")

	var decoded Transaction
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tx.TxID, decoded.TxID)
}

func TestTwoTransactionsWithSameContentHaveSameTxID(t *testing.T) {
	inputs := []TxInput{{TxID: "prev", OutputIndex: 0, PubKey: "pub"}}
	outputs := []TxOutput{{Amount: amount.FromFloat64(1), Address: "addr"}}

	tx1, err := NewTransaction(inputs, outputs, 42)
	require.NoError(t, err)
	tx2, err := NewTransaction(inputs, outputs, 42)
	require.NoError(t, err)

	assert.Equal(t, tx1.TxID, tx2.TxID)
}

func TestIsCoinbase(t *testing.T) {
	coinbase := Transaction{
		Inputs:  []TxInput{{TxID: helpers.ZeroHash128, OutputIndex: -1, Signature: helpers.CoinbaseTag, PubKey: helpers.ZeroHash128}},
		Outputs: []TxOutput{{Amount: amount.FromFloat64(10), Address: "miner"}},
	}
	assert.True(t, coinbase.IsCoinbase())

	ordinary, err := NewTransaction(
		[]TxInput{{TxID: "prev", OutputIndex: 0, PubKey: "pub"}},
		[]TxOutput{{Amount: amount.FromFloat64(1), Address: "addr"}},
		1,
	)
	require.NoError(t, err)
	assert.False(t, ordinary.IsCoinbase())
}

func TestOutputSum(t *testing.T) {
	tx, err := NewTransaction(
		nil,
		[]TxOutput{
			{Amount: amount.FromFloat64(3), Address: "a"},
			{Amount: amount.FromFloat64(4), Address: "b"},
		},
		1,
	)
	require.NoError(t, err)
	assert.True(t, tx.OutputSum().Cmp(amount.FromFloat64(7)) == 0)
}

func TestSignInputOutOfRange(t *testing.T) {
	tx, err := NewTransaction(nil, []TxOutput{{Amount: amount.FromFloat64(1), Address: "a"}}, 1)
	require.NoError(t, err)

	scheme := pqc.Dilithium3()
	_, priv, err := scheme.GenerateKeyPair()
	require.NoError(t, err)

	assert.ErrorIs(t, tx.SignInput(0, scheme, priv), ErrInputIndexOutOfRange)
}
