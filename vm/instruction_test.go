package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plaidvm/luacore/vm"
)

func TestInstructionABCRoundTrip(t *testing.T) {
	i := vm.Encode(vm.OpAdd)
	i.SetA(5)
	i.SetB(200)
	i.SetC(17)
	i.SetK(true)

	assert.Equal(t, vm.OpAdd, i.OpCode())
	assert.Equal(t, uint32(5), i.A())
	assert.Equal(t, uint32(200), i.B())
	assert.Equal(t, uint32(17), i.C())
	assert.True(t, i.K())
}

func TestInstructionSignedBx(t *testing.T) {
	i := vm.Encode(vm.OpLoadI)
	i.SetSBx(-12345)
	assert.Equal(t, int32(-12345), i.SBx())

	i2 := vm.Encode(vm.OpLoadI)
	i2.SetSBx(54321)
	assert.Equal(t, int32(54321), i2.SBx())
}

func TestInstructionAx(t *testing.T) {
	i := vm.Encode(vm.OpExtraArg)
	i.SetAx(12345678)
	assert.Equal(t, uint32(12345678), i.Ax())
}

func TestInstructionSJ(t *testing.T) {
	i := vm.Encode(vm.OpJmp)
	i.SetSJ(-500)
	assert.Equal(t, int32(-500), i.SJ())

	i.SetSJ(500)
	assert.Equal(t, int32(500), i.SJ())
}

func TestOpCodeMode(t *testing.T) {
	assert.Equal(t, vm.ModeIABC, vm.OpAdd.Mode())
	assert.Equal(t, vm.ModeIABx, vm.OpLoadK.Mode())
	assert.Equal(t, vm.ModeIsJ, vm.OpJmp.Mode())
	assert.Equal(t, vm.ModeIAx, vm.OpExtraArg.Mode())
}
