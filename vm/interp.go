package vm

import (
	"github.com/pkg/errors"

	"github.com/plaidvm/luacore/value"
)

// interp runs the fetch-decode-execute loop for f until a RETURN family
// instruction produces a result slice, or a runtime error propagates
// (spec.md §4.5, §6). It is the single dispatch point every call
// (top-level, nested, metamethod-triggered) eventually reaches for a Lua
// closure.
func (s *State) interp(f *Frame) ([]value.Value, error) {
	proto := f.closure.Proto
	code := proto.Code

	for {
		if f.pc >= len(code) {
			return nil, nil
		}
		instr := code[f.pc]
		op := instr.OpCode()
		f.pc++

		switch op {
		case OpMove:
			f.SetReg(int(instr.A()), f.Reg(int(instr.B())))

		case OpLoadI:
			f.SetReg(int(instr.A()), value.Integer(int64(instr.SBx())))
		case OpLoadF:
			f.SetReg(int(instr.A()), value.Float(float64(instr.SBx())))
		case OpLoadK:
			f.SetReg(int(instr.A()), proto.Constants[instr.Bx()])
		case OpLoadKX:
			extra := code[f.pc]
			f.pc++
			f.SetReg(int(instr.A()), proto.Constants[extra.Ax()])
		case OpLoadFalse:
			f.SetReg(int(instr.A()), value.False)
		case OpLFalseSkip:
			f.SetReg(int(instr.A()), value.False)
			f.pc++
		case OpLoadTrue:
			f.SetReg(int(instr.A()), value.True)
		case OpLoadNil:
			a, n := int(instr.A()), int(instr.B())
			for i := 0; i <= n; i++ {
				f.SetReg(a+i, value.Nil)
			}

		case OpGetUpval:
			f.SetReg(int(instr.A()), f.closure.Upvals[instr.B()].Get())
		case OpSetUpval:
			f.closure.Upvals[instr.B()].Set(f.Reg(int(instr.A())))

		case OpGetTabUp:
			uv := f.closure.Upvals[instr.B()].Get()
			key := proto.Constants[instr.C()]
			v, err := s.Index(uv, key)
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)
		case OpGetTable:
			v, err := s.Index(f.Reg(int(instr.B())), f.Reg(int(instr.C())))
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)
		case OpGetI:
			v, err := s.Index(f.Reg(int(instr.B())), value.Integer(int64(instr.C())))
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)
		case OpGetField:
			v, err := s.Index(f.Reg(int(instr.B())), proto.Constants[instr.C()])
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)

		case OpSetTabUp:
			uv := f.closure.Upvals[instr.A()].Get()
			key := proto.Constants[instr.B()]
			val := s.rkC(f, proto, instr)
			if err := s.NewIndex(uv, key, val); err != nil {
				return nil, err
			}
		case OpSetTable:
			val := s.rkC(f, proto, instr)
			if err := s.NewIndex(f.Reg(int(instr.A())), f.Reg(int(instr.B())), val); err != nil {
				return nil, err
			}
		case OpSetI:
			val := s.rkC(f, proto, instr)
			if err := s.NewIndex(f.Reg(int(instr.A())), value.Integer(int64(instr.B())), val); err != nil {
				return nil, err
			}
		case OpSetField:
			val := s.rkC(f, proto, instr)
			if err := s.NewIndex(f.Reg(int(instr.A())), proto.Constants[instr.B()], val); err != nil {
				return nil, err
			}

		case OpNewTable:
			f.SetReg(int(instr.A()), value.FromObject(s.NewTable(int(instr.B()), int(instr.C()))))
		case OpSelf:
			obj := f.Reg(int(instr.B()))
			f.SetReg(int(instr.A())+1, obj)
			v, err := s.Index(obj, proto.Constants[instr.C()])
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)

		case OpAddI:
			a, b, c := f.Reg(int(instr.B())), value.Integer(int64(instr.SC())), int(instr.A())
			v, err := s.arith(TmAdd, a, b)
			if err != nil {
				return nil, err
			}
			f.SetReg(c, v)
		case OpAddK, OpSubK, OpMulK, OpModK, OpPowK, OpDivK, OpIDivK,
			OpBAndK, OpBOrK, OpBXorK:
			kind := kArithKind(op)
			v, err := s.arith(kind, f.Reg(int(instr.B())), proto.Constants[instr.C()])
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)
		case OpShrI:
			v, err := s.arith(TmShr, f.Reg(int(instr.B())), value.Integer(int64(instr.SC())))
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)
		case OpShlI:
			v, err := s.arith(TmShl, value.Integer(int64(instr.SC())), f.Reg(int(instr.B())))
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)

		case OpAdd, OpSub, OpMul, OpMod, OpPow, OpDiv, OpIDiv,
			OpBAnd, OpBOr, OpBXor, OpShl, OpShr:
			kind := regArithKind(op)
			v, err := s.arith(kind, f.Reg(int(instr.B())), f.Reg(int(instr.C())))
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)

		case OpMmBin:
			v, err := s.arithMeta(TmKind(instr.C()), f.Reg(int(instr.A())), f.Reg(int(instr.B())))
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)
		case OpMmBinI:
			v, err := s.arithMeta(TmKind(instr.C()), f.Reg(int(instr.A())), value.Integer(int64(instr.SB())))
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)
		case OpMmBinK:
			v, err := s.arithMeta(TmKind(instr.C()), f.Reg(int(instr.A())), proto.Constants[instr.B()])
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)

		case OpUnm:
			v, err := s.unary(TmUnm, f.Reg(int(instr.B())))
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)
		case OpBNot:
			v, err := s.unary(TmBNot, f.Reg(int(instr.B())))
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)
		case OpNot:
			f.SetReg(int(instr.A()), value.Boolean(!f.Reg(int(instr.B())).IsTruthy()))
		case OpLen:
			v, err := s.Len(f.Reg(int(instr.B())))
			if err != nil {
				return nil, err
			}
			f.SetReg(int(instr.A()), v)

		case OpConcat:
			a, b := int(instr.A()), int(instr.B())
			acc := f.Reg(a)
			for i := a + 1; i <= b; i++ {
				v, err := s.Concat(acc, f.Reg(i))
				if err != nil {
					return nil, err
				}
				acc = v
			}
			f.SetReg(a, acc)

		case OpClose:
			f.stack.CloseFrom(f.base + int(instr.A()))
		case OpTbc:
			f.MarkTBC(int(instr.A()))

		case OpJmp:
			f.pc += int(instr.SJ())

		case OpEq:
			eq, err := s.Equal(f.Reg(int(instr.A())), f.Reg(int(instr.B())))
			if err != nil {
				return nil, err
			}
			if eq != instr.K() {
				f.pc++
			}
		case OpLt:
			lt, err := s.Lt(f.Reg(int(instr.A())), f.Reg(int(instr.B())))
			if err != nil {
				return nil, err
			}
			if lt != instr.K() {
				f.pc++
			}
		case OpLe:
			le, err := s.Le(f.Reg(int(instr.A())), f.Reg(int(instr.B())))
			if err != nil {
				return nil, err
			}
			if le != instr.K() {
				f.pc++
			}
		case OpEqK:
			eq := value.RawEqual(f.Reg(int(instr.A())), proto.Constants[instr.B()])
			if eq != instr.K() {
				f.pc++
			}
		case OpEqI:
			eq := numEq(f.Reg(int(instr.A())), int64(instr.SB()))
			if eq != instr.K() {
				f.pc++
			}
		case OpLtI:
			lt, ok := numCmp(f.Reg(int(instr.A())), int64(instr.SB()))
			if ok && (lt < 0) != instr.K() {
				f.pc++
			}
		case OpLeI:
			lt, ok := numCmp(f.Reg(int(instr.A())), int64(instr.SB()))
			if ok && (lt <= 0) != instr.K() {
				f.pc++
			}
		case OpGtI:
			lt, ok := numCmp(f.Reg(int(instr.A())), int64(instr.SB()))
			if ok && (lt > 0) != instr.K() {
				f.pc++
			}
		case OpGeI:
			lt, ok := numCmp(f.Reg(int(instr.A())), int64(instr.SB()))
			if ok && (lt >= 0) != instr.K() {
				f.pc++
			}

		case OpTest:
			if f.Reg(int(instr.A())).IsTruthy() != instr.K() {
				f.pc++
			}
		case OpTestSet:
			v := f.Reg(int(instr.B()))
			if v.IsTruthy() != instr.K() {
				f.pc++
			} else {
				f.SetReg(int(instr.A()), v)
			}

		case OpCall:
			results, err := s.execCall(f, instr)
			if err != nil {
				return nil, err
			}
			a, c := int(instr.A()), int(instr.C())
			want := c - 1 // c==0 means "all results": want is -1, which placeResults handles
			placeResults(f, a, want, results)

		case OpTailCall:
			results, err := s.execCall(f, instr)
			if err != nil {
				return nil, err
			}
			return results, nil

		case OpReturn:
			a, b := int(instr.A()), int(instr.B())
			n := b - 1
			if n < 0 {
				n = f.stack.top - (f.base + a)
			}
			out := make([]value.Value, n)
			for i := 0; i < n; i++ {
				out[i] = f.Reg(a + i)
			}
			return out, nil
		case OpReturn0:
			return nil, nil
		case OpReturn1:
			return []value.Value{f.Reg(int(instr.A()))}, nil

		case OpForPrep:
			a := int(instr.A())
			if done, err := forPrep(f, a); err != nil {
				return nil, err
			} else if done {
				f.pc += int(instr.Bx()) + 1
			}
		case OpForLoop:
			a := int(instr.A())
			if forLoop(f, a) {
				f.pc -= int(instr.Bx())
			}

		case OpTForPrep:
			f.pc += int(instr.Bx())
		case OpTForCall:
			a := int(instr.A())
			fn := f.Reg(a)
			results, err := s.CallValue(fn, []value.Value{f.Reg(a + 1), f.Reg(a + 2)})
			if err != nil {
				return nil, err
			}
			for i := 0; i < int(instr.C()); i++ {
				if i < len(results) {
					f.SetReg(a+4+i, results[i])
				} else {
					f.SetReg(a+4+i, value.Nil)
				}
			}
		case OpTForLoop:
			a := int(instr.A())
			if !f.Reg(a + 2).IsNil() {
				f.SetReg(a+1, f.Reg(a+2))
				f.pc -= int(instr.Bx())
			}

		case OpSetList:
			a, b, c := int(instr.A()), int(instr.B()), int(instr.C())
			obj, _ := f.Reg(a).Object()
			tbl := obj.(tableSetter)
			n := b
			if n == 0 {
				n = f.stack.top - (f.base + a + 1)
			}
			for i := 1; i <= n; i++ {
				tbl.SetInt(int64(c+i), f.Reg(a+i))
			}

		case OpClosure:
			cl := s.NewClosure(proto.Protos[instr.Bx()], f)
			f.SetReg(int(instr.A()), value.FromObject(cl))

		case OpVararg:
			a, c := int(instr.A()), int(instr.C())
			n := c - 1
			if n < 0 {
				n = len(f.varargs)
			}
			for i := 0; i < n; i++ {
				if i < len(f.varargs) {
					f.SetReg(a+i, f.varargs[i])
				} else {
					f.SetReg(a+i, value.Nil)
				}
			}
		case OpVarargPrep:
			// Parameters were already bound by bindArgs; nothing further to do.

		case OpExtraArg:
			// Only ever consumed inline by OpLoadKX above; reaching it directly
			// is a malformed program.
			return nil, errors.New("stray EXTRAARG instruction")

		default:
			return nil, errors.Errorf("unimplemented opcode %s", op)
		}
	}
}

// rkC reads operand C for the SET* family, which (per spec.md §4.5) may
// reference either a register or, when Instruction.K() is set, a
// constant.
func (s *State) rkC(f *Frame, proto *Prototype, instr Instruction) value.Value {
	if instr.K() {
		return proto.Constants[instr.C()]
	}
	return f.Reg(int(instr.C()))
}

func kArithKind(op OpCode) TmKind {
	switch op {
	case OpAddK:
		return TmAdd
	case OpSubK:
		return TmSub
	case OpMulK:
		return TmMul
	case OpModK:
		return TmMod
	case OpPowK:
		return TmPow
	case OpDivK:
		return TmDiv
	case OpIDivK:
		return TmIDiv
	case OpBAndK:
		return TmBAnd
	case OpBOrK:
		return TmBOr
	case OpBXorK:
		return TmBXor
	default:
		return TmAdd
	}
}

func regArithKind(op OpCode) TmKind {
	switch op {
	case OpAdd:
		return TmAdd
	case OpSub:
		return TmSub
	case OpMul:
		return TmMul
	case OpMod:
		return TmMod
	case OpPow:
		return TmPow
	case OpDiv:
		return TmDiv
	case OpIDiv:
		return TmIDiv
	case OpBAnd:
		return TmBAnd
	case OpBOr:
		return TmBOr
	case OpBXor:
		return TmBXor
	case OpShl:
		return TmShl
	case OpShr:
		return TmShr
	default:
		return TmAdd
	}
}

func numEq(v value.Value, i int64) bool {
	if vi, ok := v.AsIntegerStrict(); ok {
		return vi == i
	}
	if vf, ok := v.AsFloatStrict(); ok {
		return vf == float64(i)
	}
	return false
}

// numCmp returns (cmp, true) when v is a number, comparing it against i.
func numCmp(v value.Value, i int64) (int, bool) {
	f, ok := v.AsNumber()
	if !ok {
		return 0, false
	}
	fi := float64(i)
	switch {
	case f < fi:
		return -1, true
	case f > fi:
		return 1, true
	default:
		return 0, true
	}
}

func placeResults(f *Frame, a, want int, results []value.Value) {
	if want < 0 {
		for i, v := range results {
			f.SetReg(a+i, v)
		}
		f.stack.top = f.base + a + len(results)
		return
	}
	for i := 0; i < want; i++ {
		if i < len(results) {
			f.SetReg(a+i, results[i])
		} else {
			f.SetReg(a+i, value.Nil)
		}
	}
}

// execCall gathers the argument window for a CALL/TAILCALL instruction
// and dispatches through CallValue.
func (s *State) execCall(f *Frame, instr Instruction) ([]value.Value, error) {
	a, b := int(instr.A()), int(instr.B())
	fn := f.Reg(a)
	var args []value.Value
	if b == 0 {
		n := f.stack.top - (f.base + a + 1)
		args = make([]value.Value, n)
		for i := 0; i < n; i++ {
			args[i] = f.Reg(a + 1 + i)
		}
	} else {
		args = make([]value.Value, b-1)
		for i := 0; i < b-1; i++ {
			args[i] = f.Reg(a + 1 + i)
		}
	}
	return s.CallValue(fn, args)
}

// tableSetter is the subset of *luatable.Table's API SETLIST needs; kept
// as a narrow local interface so interp.go doesn't need to import
// luatable just to name the concrete type.
type tableSetter interface {
	SetInt(i int64, v value.Value)
}

// arith attempts a's fast numeric path for kind, falling back to
// arithMeta when neither operand is a number it knows how to combine
// (spec.md §6.3).
func (s *State) arith(kind TmKind, a, b value.Value) (value.Value, error) {
	if v, ok := fastArith(kind, a, b); ok {
		return v, nil
	}
	if kind == TmMod || kind == TmIDiv {
		if _, aok := a.AsIntegerStrict(); aok {
			if bi, bok := b.AsIntegerStrict(); bok && bi == 0 {
				return value.Nil, value.ErrDivideByZero
			}
		}
	}
	return s.arithMeta(kind, a, b)
}

func (s *State) unary(kind TmKind, a value.Value) (value.Value, error) {
	if v, ok := fastUnary(kind, a); ok {
		return v, nil
	}
	return s.arithMeta(kind, a, a)
}
