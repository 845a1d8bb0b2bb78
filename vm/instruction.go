package vm

// Instruction is one packed 32-bit bytecode word. Field layout (spec.md
// §4.5, matching the reference interpreter's lopcodes.h port in
// original_source/src/lua_vm/opcode/mod.rs bit-for-bit):
//
//	iABC:  [31..24 C(8)] [23..16 B(8)] [15 k(1)] [14..7 A(8)] [6..0 Op(7)]
//	iABx:  [31..15 Bx(17)] [14..7 A(8)] [6..0 Op(7)]
//	iAsBx: Bx above, read as signed with an excess-K bias
//	iAx:   [31..7 Ax(25)] [6..0 Op(7)]
//	isJ:   [31..7 sJ(25)] [6..0 Op(7)]  (note: no k bit in this format)
type Instruction uint32

const (
	sizeOp = 7
	sizeA  = 8
	sizeB  = 8
	sizeC  = 8
	sizeK  = 1
	sizeBx = sizeC + sizeB + sizeK // 17
	sizeAx = sizeBx + sizeA        // 25
	sizeSJ = sizeBx + sizeA        // 25

	posOp = 0
	posA  = posOp + sizeOp
	posK  = posA + sizeA
	posB  = posK + sizeK
	posC  = posB + sizeB
	posBx = posK
	posAx = posA
	posSJ = posA

	maxA  = 1<<sizeA - 1
	maxBx = 1<<sizeBx - 1
	maxAx = 1<<sizeAx - 1
	maxSJ = 1<<sizeSJ - 1
	maxC  = 1<<sizeC - 1

	offsetSBx = maxBx >> 1
	offsetSJ  = maxSJ >> 1
	offsetSC  = maxC >> 1
)

func mask1(n, p uint) uint32 { return (^(^uint32(0) << n)) << p }

func getArg(i Instruction, pos, size uint) uint32 {
	return (uint32(i) >> pos) & mask1(size, 0)
}

func setArg(i *Instruction, v uint32, pos, size uint) {
	*i = Instruction((uint32(*i) &^ mask1(size, pos)) | ((v << pos) & mask1(size, pos)))
}

// Encode packs an opcode with zeroed operand fields; callers then use the
// SetX helpers (or the higher-level constructors in assemble.go) to fill
// in A/B/C/k or Bx/Ax/sJ as the opcode's Mode dictates.
func Encode(op OpCode) Instruction {
	var i Instruction
	setArg(&i, uint32(op), posOp, sizeOp)
	return i
}

// OpCode extracts the opcode field.
func (i Instruction) OpCode() OpCode { return OpCode(getArg(i, posOp, sizeOp)) }

// A, B, C, K extract the iABC operand fields.
func (i Instruction) A() uint32 { return getArg(i, posA, sizeA) }
func (i Instruction) B() uint32 { return getArg(i, posB, sizeB) }
func (i Instruction) C() uint32 { return getArg(i, posC, sizeC) }
func (i Instruction) K() bool   { return getArg(i, posK, sizeK) != 0 }

// SB and SC read B/C as signed, excess-offsetSC-biased immediates (used by
// e.g. ADDI's sC and SHLI's sC/SHRI's sC operands).
func (i Instruction) SB() int32 { return int32(i.B()) - offsetSC }
func (i Instruction) SC() int32 { return int32(i.C()) - offsetSC }

// Bx and SBx extract the iABx/iAsBx operand.
func (i Instruction) Bx() uint32  { return getArg(i, posBx, sizeBx) }
func (i Instruction) SBx() int32  { return int32(i.Bx()) - offsetSBx }

// Ax extracts the iAx operand (used only by EXTRAARG).
func (i Instruction) Ax() uint32 { return getArg(i, posAx, sizeAx) }

// SJ extracts the isJ signed jump offset (JMP only).
func (i Instruction) SJ() int32 { return int32(getArg(i, posSJ, sizeSJ)) - offsetSJ }

// SetA, SetB, SetC, SetK, SetBx, SetAx, SetSJ: operand field setters used
// by the assembler (assemble.go).
func (i *Instruction) SetA(v uint32)  { setArg(i, v, posA, sizeA) }
func (i *Instruction) SetB(v uint32)  { setArg(i, v, posB, sizeB) }
func (i *Instruction) SetC(v uint32)  { setArg(i, v, posC, sizeC) }
func (i *Instruction) SetK(v bool) {
	if v {
		setArg(i, 1, posK, sizeK)
	} else {
		setArg(i, 0, posK, sizeK)
	}
}
func (i *Instruction) SetBx(v uint32) { setArg(i, v, posBx, sizeBx) }
func (i *Instruction) SetSBx(v int32) { setArg(i, uint32(v+offsetSBx), posBx, sizeBx) }
func (i *Instruction) SetAx(v uint32) { setArg(i, v, posAx, sizeAx) }
func (i *Instruction) SetSJ(v int32)  { setArg(i, uint32(v+offsetSJ), posSJ, sizeSJ) }
func (i *Instruction) SetSC(v int32)  { setArg(i, uint32(v+offsetSC), posC, sizeC) }
func (i *Instruction) SetSB(v int32)  { setArg(i, uint32(v+offsetSC), posB, sizeB) }

const maxArgBx = maxBx
const maxArgA = maxA
const maxArgAx = maxAx
