package main

import (
	"github.com/plaidvm/luacore/value"
	"github.com/plaidvm/luacore/vm"
)

// buildArithDemo hand-assembles a prototype standing in for what a
// compiler's code-generation pass would emit from source text (luacore
// has no Lua-source front end; SPEC_FULL.md §D explains the decision to
// expose the compiler->VM boundary as vm.Assembler directly). Equivalent
// to:
//
//	return 2 + 3 * 4
func buildArithDemo() *vm.Prototype {
	as := vm.NewAssembler("=arith-demo")
	as.Params(0, false)
	as.MaxStack(2)

	two := as.Const(value.Integer(2))
	three := as.Const(value.Integer(3))
	four := as.Const(value.Integer(4))

	as.ABx(vm.OpLoadK, 0, three)
	as.ABC(vm.OpMulK, 0, 0, four, false) // R0 = 3 * 4
	as.ABx(vm.OpLoadK, 1, two)
	as.ABC(vm.OpAdd, 0, 1, 0, false) // R0 = 2 + R0
	as.ABC(vm.OpReturn1, 0, 0, 0, false)

	return as.Finish()
}

// buildSumLoopDemo assembles a numeric `for` loop summing 1..10.
// Equivalent to:
//
//	local sum = 0
//	for i = 1, 10 do
//	  sum = sum + i
//	end
//	return sum
func buildSumLoopDemo() *vm.Prototype {
	as := vm.NewAssembler("=sum-loop-demo")
	as.Params(0, false)
	as.MaxStack(6)

	zero := as.Const(value.Integer(0))
	one := as.Const(value.Integer(1))
	ten := as.Const(value.Integer(10))

	// R0 = sum = 0
	as.ABx(vm.OpLoadK, 0, zero)

	// R1..R4 = for-loop control block (init, limit, step, var)
	as.ABx(vm.OpLoadK, 1, one)
	as.ABx(vm.OpLoadK, 2, ten)
	as.ABx(vm.OpLoadK, 3, one)

	prepPC := as.ABx(vm.OpForPrep, 1, 0)
	bodyStart := as.Here()

	// sum = sum + i  (R4 is the visible loop variable)
	as.ABC(vm.OpAdd, 0, 0, 4, false)

	loopPC := as.ABx(vm.OpForLoop, 1, 0)

	// FORPREP's Bx, if the loop never runs, skips to one past FORLOOP;
	// FORLOOP's Bx jumps back to the first body instruction. See
	// vm/interp.go's OpForPrep/OpForLoop cases for the exact pc arithmetic
	// these offsets satisfy.
	as.PatchABx(prepPC, uint32(loopPC-bodyStart))
	as.PatchABx(loopPC, uint32(loopPC-bodyStart+1))

	as.ABC(vm.OpReturn1, 0, 0, 0, false)

	return as.Finish()
}
