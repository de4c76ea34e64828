package amount

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFloat64RoundTripsThroughJSON(t *testing.T) {
	a := FromFloat64(12.5)
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, "12.5", string(data))

	var decoded Amount
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, a.Cmp(decoded) == 0)
}

func TestAddSubPreciseUnderRepeatedOperations(t *testing.T) {
	total := Zero
	tenth := FromFloat64(0.1)
	for i := 0; i < 10; i++ {
		total = total.Add(tenth)
	}
	assert.True(t, total.Cmp(FromFloat64(1.0)) == 0, "expected exact 1.0, got %s", total)
}

func TestSub(t *testing.T) {
	a := FromFloat64(10)
	b := FromFloat64(3.5)
	assert.True(t, a.Sub(b).Cmp(FromFloat64(6.5)) == 0)
}

func TestComparisons(t *testing.T) {
	small := FromFloat64(1)
	big := FromFloat64(2)

	assert.True(t, small.LessThan(big))
	assert.False(t, big.LessThan(small))
	assert.True(t, big.GreaterThanOrEqual(small))
	assert.True(t, big.GreaterThanOrEqual(big))
}

func TestIsZeroAndIsNegative(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, Zero.IsNegative())

	neg := FromFloat64(0).Sub(FromFloat64(1))
	assert.True(t, neg.IsNegative())
	assert.False(t, neg.IsZero())
}

func TestSum(t *testing.T) {
	total := Sum(FromFloat64(1), FromFloat64(2), FromFloat64(3.5))
	assert.True(t, total.Cmp(FromFloat64(6.5)) == 0)
}

func TestFromStringInvalid(t *testing.T) {
	_, err := FromString("not-a-number")
	assert.Error(t, err)
}
