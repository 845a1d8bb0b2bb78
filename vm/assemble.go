package vm

import "github.com/plaidvm/luacore/value"

// Assembler builds a Prototype instruction-by-instruction. luacore has no
// Lua-source front end (SPEC_FULL.md §D: the compiler->VM boundary is
// realized directly as this builder API, not a lexer/parser); tests and
// any embedding host construct bytecode through it the way a real
// compiler's code-generation pass would.
type Assembler struct {
	proto *Prototype
}

// NewAssembler starts building a fresh prototype for source (used only
// for diagnostics/tracebacks).
func NewAssembler(source string) *Assembler {
	return &Assembler{proto: NewPrototype(source)}
}

// Params sets the prototype's declared parameter count and varargs flag.
func (as *Assembler) Params(n int, isVararg bool) *Assembler {
	as.proto.NumParams = n
	as.proto.IsVararg = isVararg
	return as
}

// MaxStack reserves at least n registers for this prototype's frames.
func (as *Assembler) MaxStack(n int) *Assembler {
	if n > as.proto.MaxStack {
		as.proto.MaxStack = n
	}
	return as
}

// Const interns a constant value, returning its index for use as a Bx/C
// operand.
func (as *Assembler) Const(v value.Value) uint32 {
	return uint32(as.proto.AddConstant(v))
}

// ChildProto registers a nested Prototype (built with its own Assembler)
// for OP_CLOSURE to reference by index.
func (as *Assembler) ChildProto(child *Prototype) uint32 {
	as.proto.Protos = append(as.proto.Protos, child)
	return uint32(len(as.proto.Protos) - 1)
}

// emit appends instr, recording line (0 if unknown/untracked) in parallel.
func (as *Assembler) emit(instr Instruction, line int) int {
	as.proto.Code = append(as.proto.Code, instr)
	as.proto.Lines = append(as.proto.Lines, line)
	return len(as.proto.Code) - 1
}

// ABC emits an iABC-mode instruction.
func (as *Assembler) ABC(op OpCode, a, b, c uint32, k bool) int {
	i := Encode(op)
	i.SetA(a)
	i.SetB(b)
	i.SetC(c)
	i.SetK(k)
	return as.emit(i, 0)
}

// ABx emits an iABx-mode instruction.
func (as *Assembler) ABx(op OpCode, a, bx uint32) int {
	i := Encode(op)
	i.SetA(a)
	i.SetBx(bx)
	return as.emit(i, 0)
}

// AsBx emits an iAsBx-mode instruction (signed Bx).
func (as *Assembler) AsBx(op OpCode, a uint32, sbx int32) int {
	i := Encode(op)
	i.SetA(a)
	i.SetSBx(sbx)
	return as.emit(i, 0)
}

// Ax emits an iAx-mode instruction (EXTRAARG).
func (as *Assembler) Ax(op OpCode, ax uint32) int {
	i := Encode(op)
	i.SetAx(ax)
	return as.emit(i, 0)
}

// J emits an isJ-mode jump instruction with a placeholder offset; use
// PatchJump to fix it up once the target address is known.
func (as *Assembler) J(op OpCode, sj int32) int {
	i := Encode(op)
	i.SetSJ(sj)
	return as.emit(i, 0)
}

// Here returns the address the next emitted instruction will occupy —
// useful as a branch target before it exists.
func (as *Assembler) Here() int { return len(as.proto.Code) }

// PatchJump rewrites the isJ instruction at pc so it jumps to target
// (an absolute instruction index), matching how a real compiler
// backpatches forward jumps once it reaches the label.
func (as *Assembler) PatchJump(pc int, target int) {
	as.proto.Code[pc].SetSJ(int32(target - pc - 1))
}

// PatchABx rewrites an iABx-mode instruction's Bx field in place (used to
// backpatch FORPREP's loop-skip offset once FORLOOP's address is known).
func (as *Assembler) PatchABx(pc int, bx uint32) {
	as.proto.Code[pc].SetBx(bx)
}

// Finish returns the completed prototype.
func (as *Assembler) Finish() *Prototype { return as.proto }
