package vm

import (
	"math"

	"github.com/plaidvm/luacore/value"
)

// fastArith implements the numeric fast path for every arithmetic/bitwise
// binary opcode: integer-integer operations stay integers (with Lua's
// wraparound semantics, value/number.go), any float operand promotes the
// whole operation to float (except the bitwise family, which requires
// both operands to be integer-representable), division and power always
// produce floats. Returns ok=false when either operand isn't a number (or,
// for bitwise ops, not integer-representable), signaling the caller to
// fall back to metamethod dispatch (spec.md §6.3).
func fastArith(kind TmKind, a, b value.Value) (value.Value, bool) {
	switch kind {
	case TmAdd, TmSub, TmMul, TmMod, TmIDiv:
		if ai, aok := a.AsIntegerStrict(); aok {
			if bi, bok := b.AsIntegerStrict(); bok {
				return intArith(kind, ai, bi)
			}
		}
		af, aok := a.AsNumber()
		bf, bok := b.AsNumber()
		if !aok || !bok {
			return value.Nil, false
		}
		return floatArith(kind, af, bf), true

	case TmPow, TmDiv:
		af, aok := a.AsNumber()
		bf, bok := b.AsNumber()
		if !aok || !bok {
			return value.Nil, false
		}
		if kind == TmPow {
			return value.Float(math.Pow(af, bf)), true
		}
		return value.Float(af / bf), true

	case TmBAnd, TmBOr, TmBXor, TmShl, TmShr:
		ai, aok := a.AsInteger()
		bi, bok := b.AsInteger()
		if !aok || !bok {
			return value.Nil, false
		}
		return bitArith(kind, ai, bi), true

	default:
		return value.Nil, false
	}
}

func intArith(kind TmKind, a, b int64) (value.Value, bool) {
	switch kind {
	case TmAdd:
		return value.Integer(value.AddInt(a, b)), true
	case TmSub:
		return value.Integer(value.SubInt(a, b)), true
	case TmMul:
		return value.Integer(value.MulInt(a, b)), true
	case TmMod:
		r, err := value.ModInt(a, b)
		if err != nil {
			return value.Nil, false
		}
		return value.Integer(r), true
	case TmIDiv:
		r, err := value.FloorDivInt(a, b)
		if err != nil {
			return value.Nil, false
		}
		return value.Integer(r), true
	default:
		return value.Nil, false
	}
}

func floatArith(kind TmKind, a, b float64) value.Value {
	switch kind {
	case TmAdd:
		return value.Float(a + b)
	case TmSub:
		return value.Float(a - b)
	case TmMul:
		return value.Float(a * b)
	case TmMod:
		return value.Float(value.ModFloat(a, b))
	case TmIDiv:
		return value.Float(value.FloorDivFloat(a, b))
	default:
		return value.Nil
	}
}

func bitArith(kind TmKind, a, b int64) value.Value {
	switch kind {
	case TmBAnd:
		return value.Integer(a & b)
	case TmBOr:
		return value.Integer(a | b)
	case TmBXor:
		return value.Integer(a ^ b)
	case TmShl:
		return value.Integer(shiftLeft(a, b))
	case TmShr:
		return value.Integer(shiftLeft(a, -b))
	default:
		return value.Nil
	}
}

// shiftLeft implements Lua's logical shift: a negative count shifts the
// other way, and any count with magnitude >= 64 yields zero instead of
// relying on Go's undefined-for-large-shift-counts behavior.
func shiftLeft(a, n int64) int64 {
	if n <= -64 || n >= 64 {
		return 0
	}
	if n >= 0 {
		return int64(uint64(a) << uint(n))
	}
	return int64(uint64(a) >> uint(-n))
}

// fastUnary implements UNM (negate) and BNOT (bitwise complement).
func fastUnary(kind TmKind, a value.Value) (value.Value, bool) {
	switch kind {
	case TmUnm:
		if ai, ok := a.AsIntegerStrict(); ok {
			return value.Integer(value.NegInt(ai)), true
		}
		if af, ok := a.AsFloatStrict(); ok {
			return value.Float(-af), true
		}
		return value.Nil, false
	case TmBNot:
		if ai, ok := a.AsInteger(); ok {
			return value.Integer(^ai), true
		}
		return value.Nil, false
	default:
		return value.Nil, false
	}
}
