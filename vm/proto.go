package vm

import (
	"github.com/plaidvm/luacore/strtab"
	"github.com/plaidvm/luacore/value"
)

// UpvalDesc describes, at prototype-definition time, where a closure
// built from this prototype should source one of its upvalues from: either
// the enclosing function's register stack (InStack true, Index is a
// register number relative to the enclosing frame) or the enclosing
// closure's own upvalue array (InStack false, Index is an upvalue index).
// Mirrors original_source's Upvaldesc.
type UpvalDesc struct {
	Name    string
	InStack bool
	Index   int
	IsConst bool
}

// Prototype is the immutable, shareable template a closure is built from:
// the code, constants, and static metadata a compiler (or, here, the
// Assembler) emits for one function body. Multiple closures can reference
// the same Prototype with different captured upvalues, matching Lua's
// closure/prototype split (spec.md §5.2).
type Prototype struct {
	Code       []Instruction
	Constants  []value.Value
	Protos     []*Prototype // nested function prototypes, for OP_CLOSURE
	Upvalues   []UpvalDesc
	NumParams  int
	IsVararg   bool
	MaxStack   int // register high-water mark the frame allocator must reserve
	Source     string
	LineDefined int
	Lines      []int // Lines[pc] = source line for instruction pc, parallel to Code
}

// NewPrototype returns an empty, fillable prototype; the Assembler appends
// to its fields directly rather than going through a builder API, matching
// the teacher's approach in backend/compiler.go where the emitted
// function's instruction/constant slices are grown incrementally as
// compilation proceeds.
func NewPrototype(source string) *Prototype {
	return &Prototype{Source: source}
}

// AddConstant interns a constant into the prototype's constant pool,
// reusing an existing slot when the value is already present (RawEqual,
// which for strings is content equality since strtab interns short
// strings) so the same literal compiled twice doesn't duplicate slots.
func (p *Prototype) AddConstant(v value.Value) int {
	for i, existing := range p.Constants {
		if existing.Tag() == v.Tag() && value.RawEqual(existing, v) {
			return i
		}
	}
	p.Constants = append(p.Constants, v)
	return len(p.Constants) - 1
}

// AddConstantString is a convenience wrapper interning a Go string through
// the given Interner before adding it as a constant.
func (p *Prototype) AddConstantString(in *strtab.Interner, s string) int {
	return p.AddConstant(in.CreateString(s))
}

// LineAt returns the source line recorded for instruction pc, or
// LineDefined if no per-instruction line table was emitted.
func (p *Prototype) LineAt(pc int) int {
	if pc >= 0 && pc < len(p.Lines) && p.Lines[pc] != 0 {
		return p.Lines[pc]
	}
	return p.LineDefined
}

// requiredStack is the size of the register window a frame running p
// claims on the shared Stack: MaxStack, raised to NumParams when the
// prototype declares more parameters than that (bindArgs writes every
// parameter register).
func (p *Prototype) requiredStack() int {
	if p.NumParams > p.MaxStack {
		return p.NumParams
	}
	return p.MaxStack
}
