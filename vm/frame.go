package vm

import "github.com/plaidvm/luacore/value"

// Frame is one activation record on the call chain: which closure is
// running, where its register window starts on the shared Stack, the
// current program counter, and any extra arguments a vararg function
// received beyond its declared parameters (spec.md §5.4).
type Frame struct {
	closure  *Closure
	stack    *Stack
	base     int // absolute index of register 0 for this frame
	pc       int
	varargs  []value.Value
	prevBase int // caller's base, restored on return (0 for the root frame)
	parent   *Frame
	tbc      []int // open to-be-closed register indices, ascending; spec.md §6.3
}

// Reg/SetReg address a frame-local register (R(n) in the interpreter
// loop's instruction operands).
func (f *Frame) Reg(n int) value.Value    { return f.stack.regs[f.base+n] }
func (f *Frame) SetReg(n int, v value.Value) { f.stack.regs[f.base+n] = v }

// Base returns this frame's absolute register window start, the offset
// InStack upvalue descriptors are resolved against (closure.go's
// NewLuaClosure reads the same field directly).
func (f *Frame) Base() int { return f.base }

// Closure, Parent, and PC expose a frame's call-chain identity for
// tracebacks (diag.Traceback walks Parent; spec.md §6.4).
func (f *Frame) Closure() *Closure { return f.closure }
func (f *Frame) Parent() *Frame    { return f.parent }
func (f *Frame) PC() int           { return f.pc }

func (f *Frame) findOrAddUpvalue(absIndex int) *Upvalue {
	return f.stack.findOrAddUpvalue(absIndex)
}

// MarkTBC records register n as holding a to-be-closed variable (OP_TBC).
func (f *Frame) MarkTBC(n int) {
	f.tbc = append(f.tbc, n)
}

// PopTBCAbove pops and returns, in LIFO (highest register first) order,
// every to-be-closed register at or above n — called when a scope exits
// so their __close metamethods can run before the registers are reused
// (spec.md §6.3).
func (f *Frame) PopTBCAbove(n int) []int {
	i := len(f.tbc)
	for i > 0 && f.tbc[i-1] >= n {
		i--
	}
	popped := append([]int(nil), f.tbc[i:]...)
	f.tbc = f.tbc[:i]
	for lo, hi := 0, len(popped)-1; lo < hi; lo, hi = lo+1, hi-1 {
		popped[lo], popped[hi] = popped[hi], popped[lo]
	}
	return popped
}
