package luatable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaidvm/luacore/luatable"
	"github.com/plaidvm/luacore/value"
)

func TestArrayPartFastPath(t *testing.T) {
	tbl := luatable.New(0, 0)
	require.NoError(t, tbl.RawSet(value.Integer(1), value.Integer(10)))
	require.NoError(t, tbl.RawSet(value.Integer(2), value.Integer(20)))
	require.NoError(t, tbl.RawSet(value.Integer(3), value.Integer(30)))

	assert.Equal(t, int64(3), tbl.Len())
	assert.Equal(t, value.Integer(20), tbl.RawGet(value.Integer(2)))
}

func TestFloatKeyNormalizesToInteger(t *testing.T) {
	tbl := luatable.New(0, 0)
	require.NoError(t, tbl.RawSet(value.Float(1.0), value.Integer(99)))
	assert.Equal(t, value.Integer(99), tbl.RawGet(value.Integer(1)))
}

func TestNilKeyErrors(t *testing.T) {
	tbl := luatable.New(0, 0)
	err := tbl.RawSet(value.Nil, value.Integer(1))
	assert.Error(t, err)
}

func TestHashPartCollisionChaining(t *testing.T) {
	tbl := luatable.New(0, 0)
	keys := make([]value.Value, 0, 64)
	for i := 0; i < 64; i++ {
		k := value.Integer(int64(1000 + i))
		keys = append(keys, k)
		require.NoError(t, tbl.RawSet(k, value.Integer(int64(i))))
	}
	for i, k := range keys {
		assert.Equal(t, value.Integer(int64(i)), tbl.RawGet(k))
	}
}

func TestDeleteMarksSlotEmptyWithoutShrinking(t *testing.T) {
	tbl := luatable.New(0, 0)
	require.NoError(t, tbl.RawSet(value.Integer(100), value.Integer(1)))
	require.NoError(t, tbl.RawSet(value.Integer(100), value.Nil))
	assert.True(t, tbl.RawGet(value.Integer(100)).IsNil())
}

func TestMetatableMutationClearsAbsentCache(t *testing.T) {
	tbl := luatable.New(0, 0)
	tbl.SetAbsentTM(0)
	assert.True(t, tbl.AbsentTM(0))
	tbl.SetMetatable(luatable.New(0, 0))
	assert.False(t, tbl.AbsentTM(0))
}

func TestIterVisitsArrayThenHash(t *testing.T) {
	tbl := luatable.New(0, 0)
	require.NoError(t, tbl.RawSet(value.Integer(1), value.Integer(1)))
	require.NoError(t, tbl.RawSet(value.Integer(2), value.Integer(2)))
	require.NoError(t, tbl.RawSet(value.Integer(1000), value.Integer(1000)))

	var keys []int64
	tbl.Iter(func(k, v value.Value) bool {
		ik, _ := k.AsIntegerStrict()
		keys = append(keys, ik)
		return true
	})
	assert.Equal(t, []int64{1, 2, 1000}, keys)
}

func TestWeakValueSweep(t *testing.T) {
	tbl := luatable.New(0, 0)
	tbl.SetWeak(false, true)
	inner := luatable.New(0, 0)
	require.NoError(t, tbl.RawSet(value.Integer(1), value.FromObject(inner)))

	tbl.SweepWeak(func(v value.Value) bool { return false })
	assert.True(t, tbl.RawGet(value.Integer(1)).IsNil())
}
