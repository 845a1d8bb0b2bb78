package vm

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/plaidvm/luacore/luatable"
	"github.com/plaidvm/luacore/value"
)

// TmKind enumerates the metamethod events the interpreter dispatches,
// indexing both tmEventNames below and luatable.Table's fasttm absent
// cache (spec.md §4.6/§6.3).
type TmKind int

const (
	TmIndex TmKind = iota
	TmNewIndex
	TmGC
	TmMode
	TmLen
	TmEq
	TmAdd
	TmSub
	TmMul
	TmMod
	TmPow
	TmDiv
	TmIDiv
	TmBAnd
	TmBOr
	TmBXor
	TmShl
	TmShr
	TmUnm
	TmBNot
	TmLt
	TmLe
	TmConcat
	TmCall
	TmClose
	TmName
	TmToString

	tmKindCount
)

var tmEventNames = [tmKindCount]string{
	TmIndex: "__index", TmNewIndex: "__newindex", TmGC: "__gc", TmMode: "__mode",
	TmLen: "__len", TmEq: "__eq",
	TmAdd: "__add", TmSub: "__sub", TmMul: "__mul", TmMod: "__mod", TmPow: "__pow",
	TmDiv: "__div", TmIDiv: "__idiv",
	TmBAnd: "__band", TmBOr: "__bor", TmBXor: "__bxor", TmShl: "__shl", TmShr: "__shr",
	TmUnm: "__unm", TmBNot: "__bnot",
	TmLt: "__lt", TmLe: "__le", TmConcat: "__concat", TmCall: "__call", TmClose: "__close",
	TmName: "__name", TmToString: "__tostring",
}

// metatableOf returns v's metatable, consulting the shared string
// metatable for strings (spec.md §6.3: "every string value shares one
// metatable, set once at VM construction for the string library").
func (s *State) metatableOf(v value.Value) *luatable.Table {
	if v.IsString() {
		return s.stringMeta
	}
	if v.IsTable() {
		obj, _ := v.Object()
		return obj.(*luatable.Table).GetMetatable()
	}
	return nil
}

// tm looks up event kind k on v's metatable, consulting and maintaining
// the fasttm absent cache on table metatables so repeated lookups for an
// event nobody defined skip straight past the table get (spec.md §4.6).
func (s *State) tm(v value.Value, k TmKind) value.Value {
	var mt *luatable.Table
	if v.IsTable() {
		obj, _ := v.Object()
		t := obj.(*luatable.Table)
		if t.AbsentTM(int(k)) {
			return value.Nil
		}
		mt = t.GetMetatable()
		if mt == nil {
			t.SetAbsentTM(int(k))
			return value.Nil
		}
		result := mt.RawGet(s.tmNames[k])
		if result.IsNil() {
			t.SetAbsentTM(int(k))
		}
		return result
	}

	mt = s.metatableOf(v)
	if mt == nil {
		return value.Nil
	}
	return mt.RawGet(s.tmNames[k])
}

// Index implements __index chain-walking table/value reads (spec.md
// §6.3): a raw table hit short-circuits; otherwise the metamethod (a
// table, itself walked, or a function, called with (t, key)) takes over.
// The chain is capped to guard against a metatable cycle.
func (s *State) Index(t value.Value, key value.Value) (value.Value, error) {
	const maxChain = 100
	cur := t
	for i := 0; i < maxChain; i++ {
		if cur.IsTable() {
			obj, _ := cur.Object()
			tbl := obj.(*luatable.Table)
			v := tbl.RawGet(key)
			if !v.IsNil() {
				return v, nil
			}
			h := s.tm(cur, TmIndex)
			if h.IsNil() {
				return value.Nil, nil
			}
			if h.IsFunction() {
				res, err := s.CallValue(h, []value.Value{cur, key})
				if err != nil {
					return value.Nil, err
				}
				if len(res) == 0 {
					return value.Nil, nil
				}
				return res[0], nil
			}
			cur = h
			continue
		}
		h := s.tm(cur, TmIndex)
		if h.IsNil() {
			return value.Nil, errors.Errorf("attempt to index a %s value", cur.Tag())
		}
		if h.IsFunction() {
			res, err := s.CallValue(h, []value.Value{cur, key})
			if err != nil {
				return value.Nil, err
			}
			if len(res) == 0 {
				return value.Nil, nil
			}
			return res[0], nil
		}
		cur = h
	}
	return value.Nil, errors.New("'__index' chain too long; possible loop")
}

// NewIndex implements __newindex chain-walking table/value writes,
// mirroring Index's structure (spec.md §6.3).
func (s *State) NewIndex(t value.Value, key, val value.Value) error {
	const maxChain = 100
	cur := t
	for i := 0; i < maxChain; i++ {
		if cur.IsTable() {
			obj, _ := cur.Object()
			tbl := obj.(*luatable.Table)
			if !tbl.RawGet(key).IsNil() {
				return tbl.RawSet(key, val)
			}
			h := s.tm(cur, TmNewIndex)
			if h.IsNil() {
				return tbl.RawSet(key, val)
			}
			if h.IsFunction() {
				_, err := s.CallValue(h, []value.Value{cur, key, val})
				return err
			}
			cur = h
			continue
		}
		h := s.tm(cur, TmNewIndex)
		if h.IsNil() {
			return errors.Errorf("attempt to index a %s value", cur.Tag())
		}
		if h.IsFunction() {
			_, err := s.CallValue(h, []value.Value{cur, key, val})
			return err
		}
		cur = h
	}
	return errors.New("'__newindex' chain too long; possible loop")
}

// arithMeta dispatches a binary arithmetic/bitwise metamethod: tries a's
// metamethod, then b's, matching spec.md §6.3's "binary ops try a's then
// b's metamethod" rule.
func (s *State) arithMeta(kind TmKind, a, b value.Value) (value.Value, error) {
	if h := s.tm(a, kind); !h.IsNil() {
		res, err := s.CallValue(h, []value.Value{a, b})
		return first(res), err
	}
	if h := s.tm(b, kind); !h.IsNil() {
		res, err := s.CallValue(h, []value.Value{a, b})
		return first(res), err
	}
	return value.Nil, errors.Errorf("attempt to perform arithmetic on a %s value", pickBadOperand(a, b))
}

func pickBadOperand(a, b value.Value) value.Tag {
	if !a.IsNumber() {
		return a.Tag()
	}
	return b.Tag()
}

func first(vs []value.Value) value.Value {
	if len(vs) == 0 {
		return value.Nil
	}
	return vs[0]
}

// Concat implements string/number concatenation falling through to
// __concat, tried on a then b, matching arithMeta's rule (spec.md §6.3).
func (s *State) Concat(a, b value.Value) (value.Value, error) {
	as, aok := s.coerceConcatString(a)
	bs, bok := s.coerceConcatString(b)
	if aok && bok {
		return s.Interner.CreateString(as + bs), nil
	}
	if h := s.tm(a, TmConcat); !h.IsNil() {
		res, err := s.CallValue(h, []value.Value{a, b})
		return first(res), err
	}
	if h := s.tm(b, TmConcat); !h.IsNil() {
		res, err := s.CallValue(h, []value.Value{a, b})
		return first(res), err
	}
	bad := a
	if aok {
		bad = b
	}
	return value.Nil, errors.Errorf("attempt to concatenate a %s value", bad.Tag())
}

func (s *State) coerceConcatString(v value.Value) (string, bool) {
	if v.IsString() {
		obj, _ := v.Object()
		return fmt.Sprint(obj), true
	}
	if i, ok := v.AsIntegerStrict(); ok {
		return fmt.Sprintf("%d", i), true
	}
	if f, ok := v.AsFloatStrict(); ok {
		return fmt.Sprintf("%.14g", f), true
	}
	return "", false
}

// Len implements the length operator: strings report byte length; tables
// without a __len fall back to Table.Len; everything else requires
// __len (spec.md §6.3).
func (s *State) Len(v value.Value) (value.Value, error) {
	if v.IsString() {
		obj, _ := v.Object()
		type lenner interface{ Len() int }
		if l, ok := obj.(lenner); ok {
			return value.Integer(int64(l.Len())), nil
		}
	}
	if h := s.tm(v, TmLen); !h.IsNil() {
		res, err := s.CallValue(h, []value.Value{v})
		return first(res), err
	}
	if v.IsTable() {
		obj, _ := v.Object()
		return value.Integer(obj.(*luatable.Table).Len()), nil
	}
	return value.Nil, errors.Errorf("attempt to get length of a %s value", v.Tag())
}

// Equal implements == including __eq, which Lua only consults when both
// operands are tables (or both userdata) and raw equality already failed
// (spec.md §6.3).
func (s *State) Equal(a, b value.Value) (bool, error) {
	if value.RawEqual(a, b) {
		return true, nil
	}
	if a.Tag() != b.Tag() {
		return false, nil
	}
	if !a.IsTable() && !a.IsUserdata() {
		return false, nil
	}
	h := s.tm(a, TmEq)
	if h.IsNil() {
		h = s.tm(b, TmEq)
	}
	if h.IsNil() {
		return false, nil
	}
	res, err := s.CallValue(h, []value.Value{a, b})
	if err != nil {
		return false, err
	}
	return first(res).IsTruthy(), nil
}

// Lt and Le implement ordering comparisons, falling through to __lt/__le
// when neither operand is directly comparable (spec.md §6.3).
func (s *State) Lt(a, b value.Value) (bool, error) {
	if af, aok := a.AsNumber(); aok {
		if bf, bok := b.AsNumber(); bok {
			return af < bf, nil
		}
	}
	if a.IsString() && b.IsString() {
		return s.compareStrings(a, b) < 0, nil
	}
	h := s.tm(a, TmLt)
	if h.IsNil() {
		h = s.tm(b, TmLt)
	}
	if h.IsNil() {
		return false, errors.Errorf("attempt to compare %s with %s", a.Tag(), b.Tag())
	}
	res, err := s.CallValue(h, []value.Value{a, b})
	if err != nil {
		return false, err
	}
	return first(res).IsTruthy(), nil
}

func (s *State) Le(a, b value.Value) (bool, error) {
	if af, aok := a.AsNumber(); aok {
		if bf, bok := b.AsNumber(); bok {
			return af <= bf, nil
		}
	}
	if a.IsString() && b.IsString() {
		return s.compareStrings(a, b) <= 0, nil
	}
	h := s.tm(a, TmLe)
	if h.IsNil() {
		h = s.tm(b, TmLe)
	}
	if h.IsNil() {
		return false, errors.Errorf("attempt to compare %s with %s", a.Tag(), b.Tag())
	}
	res, err := s.CallValue(h, []value.Value{a, b})
	if err != nil {
		return false, err
	}
	return first(res).IsTruthy(), nil
}

func (s *State) compareStrings(a, b value.Value) int {
	ao, _ := a.Object()
	bo, _ := b.Object()
	as := fmt.Sprint(ao)
	bs := fmt.Sprint(bo)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
