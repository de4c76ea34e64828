package pqc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/pqchain/pkg/helpers"
)

func TestHashStringIsDeterministicAndLength128Hex(t *testing.T) {
	h1 := HashString("hello")
	h2 := HashString("hello")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 128)

	h3 := HashString("hello!")
	assert.NotEqual(t, h1, h3)
}

func TestHashCanonicalKeyOrderIndependence(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1, "c": 3}
	b := map[string]any{"c": 3, "a": 1, "b": 2}

	hashA, err := HashCanonical(a)
	require.NoError(t, err)
	hashB, err := HashCanonical(b)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB, "canonical hash must not depend on map insertion order")
}

func TestMerkleRootEmptyIsZeroSentinel(t *testing.T) {
	assert.Equal(t, helpers.ZeroHash128, MerkleRoot(nil))
}

func TestMerkleRootSingle(t *testing.T) {
	txid := HashString("tx1")
	assert.Equal(t, txid, MerkleRoot([]string{txid}))
}

func TestMerkleRootOddCountDuplicatesLast(t *testing.T) {
	a, b, c := HashString("a"), HashString("b"), HashString("c")

	withThree := MerkleRoot([]string{a, b, c})
	withDuplicatedLast := MerkleRoot([]string{a, b, c, c})

	assert.Equal(t, withDuplicatedLast, withThree)
}

func TestMerkleRootIsOrderSensitive(t *testing.T) {
	a, b := HashString("a"), HashString("b")
	assert.NotEqual(t, MerkleRoot([]string{a, b}), MerkleRoot([]string{b, a}))
}
