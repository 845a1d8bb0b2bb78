package vm

import "github.com/plaidvm/luacore/value"

// Stack is the register array shared by every frame on one thread's call
// chain (spec.md §5.4: "register stack addressed by absolute index").
// Frames don't own their own arrays; they each claim a contiguous window
// of Stack.regs (Frame.base..base+Proto.MaxStack) and a frame's local
// register N is Stack.regs[Frame.base+N].
//
// Open upvalues reference registers by absolute index rather than by raw
// Go pointer, so growing regs (which reallocates the backing array) never
// invalidates them — Upvalue.Get/Set re-index into stack.regs on every
// access instead of caching a pointer. This sidesteps the raw-pointer
// fixup original_source needs on stack growth (spec.md's "stack-growth
// pointer fixup" open question; decision recorded in DESIGN.md).
type Stack struct {
	regs []value.Value
	top  int // first free absolute register index; frames claim [base, base+MaxStack)

	// openUpvals is kept sorted ascending by Upvalue.Index so
	// findOrAddUpvalue and closeFrom can binary-search / prefix-scan it.
	openUpvals []*Upvalue
}

const initialStackSize = 64

// NewStack allocates a register stack with a modest initial capacity;
// Ensure grows it on demand.
func NewStack() *Stack {
	return &Stack{regs: make([]value.Value, initialStackSize)}
}

// Ensure grows regs, if needed, so that indices up to n-1 are valid.
func (s *Stack) Ensure(n int) {
	if n <= len(s.regs) {
		return
	}
	newCap := len(s.regs) * 2
	if newCap < n {
		newCap = n
	}
	grown := make([]value.Value, newCap)
	copy(grown, s.regs)
	s.regs = grown
}

// PushFrame claims the next free register window on s for a call to cl,
// returning the new frame linked to parent (nil for a thread's outermost
// call).
func (s *Stack) PushFrame(cl *Closure, parent *Frame) *Frame {
	base := s.top
	s.Ensure(base + cl.Proto.requiredStack())
	s.top = base + cl.Proto.requiredStack()
	return &Frame{closure: cl, stack: s, base: base, parent: parent}
}

// PopFrame releases f's register window, closing any upvalues still open
// into it first (spec.md §5.3/§5.4: returning from a frame closes every
// upvalue pointing into its registers).
func (s *Stack) PopFrame(f *Frame) {
	s.CloseFrom(f.base)
	s.top = f.base
}

// Get/Set read and write an absolute register index.
func (s *Stack) Get(abs int) value.Value    { return s.regs[abs] }
func (s *Stack) Set(abs int, v value.Value) { s.regs[abs] = v }

// findOrAddUpvalue returns the already-open upvalue at absIndex if one
// exists, or opens and inserts a new one in sorted position. Reusing an
// existing open upvalue for the same register is required so that two
// closures capturing the same local actually share mutations to it
// (spec.md §5.3).
func (s *Stack) findOrAddUpvalue(absIndex int) *Upvalue {
	lo, hi := 0, len(s.openUpvals)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.openUpvals[mid].Index() < absIndex {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(s.openUpvals) && s.openUpvals[lo].Index() == absIndex {
		return s.openUpvals[lo]
	}
	uv := NewOpenUpvalue(s, absIndex)
	s.openUpvals = append(s.openUpvals, nil)
	copy(s.openUpvals[lo+1:], s.openUpvals[lo:])
	s.openUpvals[lo] = uv
	return uv
}

// CloseFrom closes every open upvalue with index >= absIndex (OP_CLOSE,
// and implicitly on return/scope-exit), highest index first. It closes
// upvalues only: to-be-closed registers recorded by OP_TBC are not
// handled here, and no __close metamethod is called.
func (s *Stack) CloseFrom(absIndex int) {
	lo, hi := 0, len(s.openUpvals)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.openUpvals[mid].Index() < absIndex {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	for i := len(s.openUpvals) - 1; i >= lo; i-- {
		s.openUpvals[i].Close()
	}
	s.openUpvals = s.openUpvals[:lo]
}
