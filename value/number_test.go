package value_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaidvm/luacore/value"
)

func TestFloorDivInt(t *testing.T) {
	q, err := value.FloorDivInt(7, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), q)

	q, err = value.FloorDivInt(-7, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(-4), q)

	_, err = value.FloorDivInt(1, 0)
	assert.ErrorIs(t, err, value.ErrDivideByZero)
}

func TestModIntSignMatchesDivisor(t *testing.T) {
	r, err := value.ModInt(-5, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r)

	r, err = value.ModInt(5, -3)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), r)
}

func TestIntArithWraps(t *testing.T) {
	max := int64(math.MaxInt64)
	assert.Equal(t, int64(math.MinInt64), value.AddInt(max, 1))
}

func TestFloorDivIntMinByNegOne(t *testing.T) {
	min := int64(math.MinInt64)
	q, err := value.FloorDivInt(min, -1)
	require.NoError(t, err)
	assert.Equal(t, min, q) // wraps rather than overflowing
}
