package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders a prototype's code as human-readable text, one
// instruction per line, in the style the teacher's backend/disassembly.go
// uses for its own opcode dump (mnemonic plus decoded operands) —
// extended here with Bx/Ax/sJ-mode operands the teacher's simpler
// register machine never needed.
func Disassemble(p *Prototype) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; function <%s:%d> (%d instructions)\n", p.Source, p.LineDefined, len(p.Code))
	for pc, instr := range p.Code {
		fmt.Fprintf(&b, "%4d  %s\n", pc, disasmOne(instr))
	}
	return b.String()
}

func disasmOne(instr Instruction) string {
	op := instr.OpCode()
	switch op.Mode() {
	case ModeIABC:
		return fmt.Sprintf("%-12s A=%d B=%d C=%d k=%v", op, instr.A(), instr.B(), instr.C(), instr.K())
	case ModeIABx:
		return fmt.Sprintf("%-12s A=%d Bx=%d", op, instr.A(), instr.Bx())
	case ModeIAsBx:
		return fmt.Sprintf("%-12s A=%d sBx=%d", op, instr.A(), instr.SBx())
	case ModeIAx:
		return fmt.Sprintf("%-12s Ax=%d", op, instr.Ax())
	case ModeIsJ:
		return fmt.Sprintf("%-12s sJ=%d", op, instr.SJ())
	default:
		return fmt.Sprintf("%-12s <?>", op)
	}
}
