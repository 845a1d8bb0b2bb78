package vm

import (
	"github.com/plaidvm/luacore/gc"
	"github.com/plaidvm/luacore/value"
)

// GoFunc is the signature host-provided (C-equivalent) functions use: they
// receive the calling State and the frame's argument registers, and
// return result values plus an error. Matches the teacher's backend
// built-in calling convention (backend/interpreter.go's builtins) adapted
// to Lua's variadic-args/variadic-results call shape.
type GoFunc func(s *State, args []value.Value) ([]value.Value, error)

// Closure is a callable Lua value. Of the three closure flavors, two are
// Closures, and exactly one of their fields is populated:
//   - Lua closure: Proto + Upvals, runs through the interpreter loop.
//   - Go/native closure: Go func value, called directly; Upvals stays
//     empty (the Go func value captures whatever host state it needs).
//
// The third flavor, a bare host function pointer with nothing captured,
// is not a Closure: it is a value.CFunction (TagCFunction).
type Closure struct {
	gc.Header
	Proto  *Prototype // nil for Go closures
	Upvals []*Upvalue // nested closures capturing outer locals/upvalues
	Go     GoFunc     // nil for Lua closures
	Name   string     // for tracebacks; best-effort
}

// GCHeader implements gc.Collectible.
func (c *Closure) GCHeader() *gc.Header { return &c.Header }

// GCTag implements value.Object. A native closure (Go func, however many
// upvalues it captures, including zero) reports TagNativeClosure, distinct
// from the bare, non-GC-managed TagCFunction value.CFunction produces.
func (c *Closure) GCTag() value.Tag {
	if c.Proto != nil {
		return value.TagLuaFunction
	}
	return value.TagNativeClosure
}

// IsLua reports whether this closure runs through the bytecode
// interpreter (true) or is a host-provided Go function (false).
func (c *Closure) IsLua() bool { return c.Proto != nil }

// NewLuaClosure builds a closure over proto, resolving each UpvalDesc
// against the enclosing frame: InStack descriptors open a new upvalue (or
// reuse one already open at that index, via findOrAddUpvalue) on the
// enclosing frame's stack; non-InStack descriptors copy a pointer out of
// the enclosing closure's own Upvals array. Mirrors OP_CLOSURE's runtime
// behavior in spec.md §4.5 / §5.3.
func NewLuaClosure(proto *Prototype, enclosing *Frame) *Closure {
	cl := &Closure{Proto: proto, Upvals: make([]*Upvalue, len(proto.Upvalues))}
	for i, desc := range proto.Upvalues {
		if desc.InStack {
			cl.Upvals[i] = enclosing.findOrAddUpvalue(enclosing.base + desc.Index)
		} else {
			cl.Upvals[i] = enclosing.closure.Upvals[desc.Index]
		}
	}
	return cl
}

// NewGoClosure wraps a host function with no captured upvalues.
func NewGoClosure(name string, fn GoFunc) *Closure {
	return &Closure{Go: fn, Name: name}
}

// Trace implements gc.Traceable: a closure keeps its constants and
// captured upvalues (and, transitively through each Upvalue.Trace, the
// values they hold) alive.
func (c *Closure) Trace(mark func(value.Value)) {
	if c.Proto != nil {
		for _, k := range c.Proto.Constants {
			mark(k)
		}
	}
	for _, uv := range c.Upvals {
		mark(value.FromObject(uv))
	}
}
