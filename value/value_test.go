package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plaidvm/luacore/value"
)

func TestTruthiness(t *testing.T) {
	assert.False(t, value.Nil.IsTruthy())
	assert.False(t, value.False.IsTruthy())
	assert.True(t, value.True.IsTruthy())
	assert.True(t, value.Integer(0).IsTruthy())
	assert.True(t, value.Float(0).IsTruthy())
}

func TestAsInteger(t *testing.T) {
	if i, ok := value.Integer(7).AsInteger(); assert.True(t, ok) {
		assert.Equal(t, int64(7), i)
	}
	if i, ok := value.Float(3.0).AsInteger(); assert.True(t, ok) {
		assert.Equal(t, int64(3), i)
	}
	_, ok := value.Float(3.5).AsInteger()
	assert.False(t, ok)
}

func TestRawEqualCrossTagNumbers(t *testing.T) {
	assert.True(t, value.RawEqual(value.Integer(2), value.Float(2.0)))
	assert.False(t, value.RawEqual(value.Integer(2), value.Float(2.5)))
}

func TestRawEqualNaN(t *testing.T) {
	nan := value.Float(nanValue())
	assert.False(t, value.RawEqual(nan, nan))
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}
