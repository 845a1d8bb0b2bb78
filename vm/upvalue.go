package vm

import (
	"github.com/plaidvm/luacore/gc"
	"github.com/plaidvm/luacore/value"
)

// Upvalue is a single captured variable. While open, it points into a
// live register on some thread's shared register stack (identified by
// absolute stack index, not a raw Go pointer, so that stack growth can
// relocate the backing array without invalidating open upvalues — see
// Stack.Ensure); once closed, it owns its value directly and Stack no
// longer stores anything at that index. Mirrors the open/closed split in
// spec.md §5.3 and original_source's UpVal.
type Upvalue struct {
	gc.Header
	stack    *Stack // nil once closed
	index    int    // absolute register index into stack.regs; valid only while open
	closed   value.Value
	isClosed bool
}

// NewOpenUpvalue creates an upvalue pointing at a live register on stk.
func NewOpenUpvalue(stk *Stack, absIndex int) *Upvalue {
	return &Upvalue{stack: stk, index: absIndex}
}

// GCHeader implements gc.Collectible.
func (u *Upvalue) GCHeader() *gc.Header { return &u.Header }

// GCTag implements value.Object. Upvalues are never directly observable
// as Lua values; the tag is nominal and exists only so Upvalue can share
// the gc.Traceable path with every other heap object.
func (u *Upvalue) GCTag() value.Tag { return value.TagLightUserdata }

// Trace implements gc.Traceable.
func (u *Upvalue) Trace(mark func(value.Value)) {
	mark(u.Get())
}

// Get reads the upvalue's current value: the live register if open, the
// owned slot if closed.
func (u *Upvalue) Get() value.Value {
	if u.isClosed {
		return u.closed
	}
	return u.stack.regs[u.index]
}

// Set writes through to the live register (open) or the owned slot
// (closed).
func (u *Upvalue) Set(v value.Value) {
	if u.isClosed {
		u.closed = v
		return
	}
	u.stack.regs[u.index] = v
}

// IsOpen reports whether this upvalue still points into a register stack.
func (u *Upvalue) IsOpen() bool { return !u.isClosed }

// Index returns the absolute stack index this upvalue tracks while open;
// used by Stack's ascending-index open-upvalue list to find/insert/close
// upvalues in order (spec.md §5.3).
func (u *Upvalue) Index() int { return u.index }

// Close snapshots the live register into the upvalue's own slot and
// severs the link to the stack; called when a scope exits and its
// registers are about to be reused or the stack is about to shrink below
// this upvalue's index (OP_CLOSE, return, block exit).
func (u *Upvalue) Close() {
	if u.isClosed {
		return
	}
	u.closed = u.stack.regs[u.index]
	u.isClosed = true
	u.stack = nil
}
